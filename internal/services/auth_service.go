package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/soaringjerry/stsportal/internal/models"
)

const minPasswordLen = 8

type AuthStore interface {
	// FindUserByEmail matches case-insensitively and returns nil, nil when absent.
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	AddUser(ctx context.Context, u *models.User) error
	RevokeToken(ctx context.Context, t *models.RevokedToken) error
	IsTokenRevoked(ctx context.Context, hash string) (bool, error)
	PurgeRevokedTokens(ctx context.Context, before time.Time) (int64, error)
}

type TokenSigner func(uid, email string, role models.Role, ttl time.Duration) (string, error)

type AuthService struct {
	store     AuthStore
	now       func() time.Time
	idGen     func() string
	signToken TokenSigner
	tokenTTL  time.Duration
}

type AuthResult struct {
	Token     string      `json:"token"`
	UserID    string      `json:"user_id"`
	Role      models.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func NewAuthService(store AuthStore, signer TokenSigner, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthService{
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     uuid.NewString,
		signToken: signer,
		tokenTTL:  ttl,
	}
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	u, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, NewPersistenceError("could not look up user", err)
	}
	if u == nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PassHash), []byte(password)); err != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	token, err := s.signToken(u.ID, u.Email, u.Role, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, UserID: u.ID, Role: u.Role, ExpiresAt: s.now().Add(s.tokenTTL)}, nil
}

func (s *AuthService) Me(ctx context.Context, uid string) (*models.User, error) {
	u, err := s.store.GetUser(ctx, uid)
	if err != nil {
		return nil, NewPersistenceError("could not load user", err)
	}
	if u == nil {
		return nil, NewUnauthorizedError("account no longer exists")
	}
	return u, nil
}

// CreateUser adds an administrator account. Only super admins may call it.
func (s *AuthService) CreateUser(ctx context.Context, actor, email, password string, role models.Role) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, NewInvalidError("a valid email is required")
	}
	if len(password) < minPasswordLen {
		return nil, NewInvalidError("password must be at least 8 characters")
	}
	if !role.Valid() {
		return nil, NewInvalidError("unknown role")
	}
	existing, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, NewPersistenceError("could not look up user", err)
	}
	if existing != nil {
		return nil, NewConflictError("email exists")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{ID: s.idGen(), Email: email, PassHash: string(hash), Role: role, CreatedAt: s.now()}
	if err := s.store.AddUser(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, NewConflictError("email exists")
		}
		return nil, NewPersistenceError("could not create user", err)
	}
	audit(ctx, actor, "user.create", u.ID, email+":"+string(role))
	return u, nil
}

// EnsureSuperAdmin creates the bootstrap account on first start. It is a
// no-op when the email already exists.
func (s *AuthService) EnsureSuperAdmin(ctx context.Context, email, password string) (bool, error) {
	if normalizeEmail(email) == "" {
		return false, nil
	}
	_, err := s.CreateUser(ctx, "bootstrap", email, password, models.RoleSuperAdmin)
	if HasCode(err, ErrorConflict) {
		return false, nil
	}
	return err == nil, err
}

// Logout revokes token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, token string, expiresAt time.Time) error {
	if token == "" {
		return NewInvalidError("token required")
	}
	err := s.store.RevokeToken(ctx, &models.RevokedToken{TokenHash: TokenHash(token), ExpiresAt: expiresAt, CreatedAt: s.now()})
	if err != nil && !errors.Is(err, ErrDuplicate) {
		return NewPersistenceError("could not sign out", err)
	}
	return nil
}

func (s *AuthService) IsRevoked(ctx context.Context, token string) (bool, error) {
	return s.store.IsTokenRevoked(ctx, TokenHash(token))
}

// PurgeRevoked drops denylist rows for tokens that have expired.
func (s *AuthService) PurgeRevoked(ctx context.Context) (int64, error) {
	return s.store.PurgeRevokedTokens(ctx, s.now())
}

func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}

// TokenHash is the denylist key; raw tokens are never stored.
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/soaringjerry/stsportal/internal/models"
	"github.com/soaringjerry/stsportal/internal/utils"
)

type authCtxKey int

const (
	authKey authCtxKey = iota + 7
	tokenKey
)

const issuer = "stsportal"

type Claims struct {
	UID   string      `json:"uid"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

// RevocationChecker reports whether a token was signed out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// JWT signs and verifies administrator tokens with HS256.
type JWT struct {
	secret  []byte
	revoked RevocationChecker
	now     func() time.Time
}

func NewJWT(secret string, revoked RevocationChecker) *JWT {
	return &JWT{secret: []byte(secret), revoked: revoked, now: time.Now}
}

// SetRevocationChecker installs the checker after construction, since the
// auth service needs the signer first.
func (j *JWT) SetRevocationChecker(rc RevocationChecker) { j.revoked = rc }

func (j *JWT) Sign(uid, email string, role models.Role, ttl time.Duration) (string, error) {
	now := j.now()
	claims := Claims{UID: uid, Email: email, Role: role, RegisteredClaims: jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    issuer,
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

func (j *JWT) Parse(tok string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tok, &Claims{}, func(token *jwt.Token) (interface{}, error) { return j.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid && c.UID != "" {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

// WithAuth attaches claims to the context when the bearer token is valid
// and has not been revoked. Requests without a usable token pass through
// anonymously.
func (j *JWT) WithAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			next.ServeHTTP(w, r)
			return
		}
		c, err := j.Parse(tok)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		if j.revoked != nil {
			revoked, err := j.revoked.IsRevoked(r.Context(), tok)
			if err != nil {
				slog.ErrorContext(r.Context(), "token revocation lookup failed", "err", err)
				writeError(w, http.StatusServiceUnavailable, "unavailable", utils.T(utils.MsgUnavailable))
				return
			}
			if revoked {
				next.ServeHTTP(w, r)
				return
			}
		}
		ctx := context.WithValue(r.Context(), authKey, c)
		ctx = context.WithValue(ctx, tokenKey, tok)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", utils.T(utils.MsgUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole admits authenticated callers holding one of roles.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", utils.T(utils.MsgUnauthorized))
				return
			}
			if !slices.Contains(roles, c.Role) {
				writeError(w, http.StatusForbidden, "forbidden", utils.T(utils.MsgForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(authKey).(*Claims)
	return c, ok
}

// TokenFromContext returns the raw bearer token WithAuth accepted.
func TokenFromContext(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey).(string)
	return tok
}

// WithClaims is used by tests and internal callers to act as a user.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, authKey, c)
}

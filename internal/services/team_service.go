package services

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/soaringjerry/stsportal/internal/models"
)

const (
	codePrefixLen   = 6
	codeRandomLen   = 6
	codeGenAttempts = 5
	codeAlphabet    = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

type TeamStore interface {
	GetCollaborative(ctx context.Context, id string) (*models.Collaborative, error)
	// CreateTeam inserts the team and its codes in one transaction and
	// returns ErrDuplicate when a code collides.
	CreateTeam(ctx context.Context, t *models.Team) error
	UpdateTeam(ctx context.Context, t *models.Team) error
	GetTeam(ctx context.Context, id string) (*models.Team, error)
	// ListTeams returns the collaborative's teams with their codes.
	ListTeams(ctx context.Context, collaborativeID string) ([]*models.Team, error)
	GetAccessCode(ctx context.Context, id string) (*models.AccessCode, error)
	UpdateAccessCode(ctx context.Context, ac *models.AccessCode) error
}

type TeamInput struct {
	AgencyName          string `json:"agency_name"`
	TeamName            string `json:"team_name,omitempty"`
	PrimaryContactName  string `json:"primary_contact_name,omitempty"`
	PrimaryContactEmail string `json:"primary_contact_email,omitempty"`
	EstimatedStaffCount *int   `json:"estimated_staff_count,omitempty"`
}

// AccessCodeUpdate toggles a code or moves its expiry. ClearExpiry wins over
// ExpiresAt.
type AccessCodeUpdate struct {
	Active      *bool      `json:"active,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ClearExpiry bool       `json:"clear_expiry,omitempty"`
}

type TeamService struct {
	store      TeamStore
	now        func() time.Time
	idGen      func() string
	randomPart func() string
}

func NewTeamService(store TeamStore) *TeamService {
	return &TeamService{
		store:      store,
		now:        func() time.Time { return time.Now().UTC() },
		idGen:      uuid.NewString,
		randomPart: randomCodePart,
	}
}

// Add enrolls a team and issues one access code per timepoint.
func (s *TeamService) Add(ctx context.Context, actor, collaborativeID string, in TeamInput) (*models.Team, error) {
	c, err := s.store.GetCollaborative(ctx, collaborativeID)
	if err != nil {
		return nil, NewPersistenceError("could not load collaborative", err)
	}
	if c == nil {
		return nil, NewNotFoundError("collaborative not found")
	}
	now := s.now()
	t := &models.Team{ID: s.idGen(), CollaborativeID: c.ID, CreatedAt: now, UpdatedAt: now}
	if err := applyTeam(t, in); err != nil {
		return nil, err
	}
	for attempt := 0; attempt < codeGenAttempts; attempt++ {
		t.Codes = s.issueCodes(t, now)
		err = s.store.CreateTeam(ctx, t)
		if !errors.Is(err, ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return nil, NewPersistenceError("could not create team", err)
	}
	audit(ctx, actor, "team.create", t.ID, t.AgencyName)
	return t, nil
}

func (s *TeamService) Update(ctx context.Context, actor, id string, in TeamInput) (*models.Team, error) {
	t, err := s.store.GetTeam(ctx, id)
	if err != nil {
		return nil, NewPersistenceError("could not load team", err)
	}
	if t == nil {
		return nil, NewNotFoundError("team not found")
	}
	if err := applyTeam(t, in); err != nil {
		return nil, err
	}
	t.UpdatedAt = s.now()
	if err := s.store.UpdateTeam(ctx, t); err != nil {
		return nil, NewPersistenceError("could not update team", err)
	}
	audit(ctx, actor, "team.update", t.ID, t.AgencyName)
	return t, nil
}

func (s *TeamService) List(ctx context.Context, collaborativeID string) ([]*models.Team, error) {
	teams, err := s.store.ListTeams(ctx, collaborativeID)
	if err != nil {
		return nil, NewPersistenceError("could not list teams", err)
	}
	return teams, nil
}

func (s *TeamService) UpdateCode(ctx context.Context, actor, id string, in AccessCodeUpdate) (*models.AccessCode, error) {
	ac, err := s.store.GetAccessCode(ctx, id)
	if err != nil {
		return nil, NewPersistenceError("could not load team code", err)
	}
	if ac == nil {
		return nil, NewNotFoundError("team code not found")
	}
	note := []string{}
	if in.Active != nil {
		ac.Active = *in.Active
		if ac.Active {
			note = append(note, "activate")
		} else {
			note = append(note, "deactivate")
		}
	}
	switch {
	case in.ClearExpiry:
		ac.ExpiresAt = nil
		note = append(note, "clear expiry")
	case in.ExpiresAt != nil:
		exp := in.ExpiresAt.UTC()
		ac.ExpiresAt = &exp
		note = append(note, "expires "+exp.Format(time.RFC3339))
	}
	if len(note) == 0 {
		return nil, NewInvalidError("nothing to update")
	}
	if err := s.store.UpdateAccessCode(ctx, ac); err != nil {
		return nil, NewPersistenceError("could not update team code", err)
	}
	audit(ctx, actor, "code.update", ac.Code, strings.Join(note, ", "))
	return ac, nil
}

func (s *TeamService) issueCodes(t *models.Team, now time.Time) []models.AccessCode {
	base := CodePrefix(t.AgencyName) + "-" + s.randomPart()
	codes := make([]models.AccessCode, 0, len(models.Timepoints))
	for _, tp := range models.Timepoints {
		codes = append(codes, models.AccessCode{
			ID:        s.idGen(),
			TeamID:    t.ID,
			Code:      base + "-" + tp.CodeSuffix(),
			Timepoint: tp,
			Active:    true,
			CreatedAt: now,
		})
	}
	return codes
}

// CodePrefix keeps the first six letters or digits of the agency name.
func CodePrefix(agency string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(agency) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			if b.Len() == codePrefixLen {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "TEAM"
	}
	return b.String()
}

func randomCodePart() string {
	out := make([]byte, codeRandomLen)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic(err)
		}
		out[i] = codeAlphabet[n.Int64()]
	}
	return string(out)
}

func applyTeam(t *models.Team, in TeamInput) error {
	agency := strings.TrimSpace(in.AgencyName)
	if agency == "" {
		return NewInvalidError("agency name is required")
	}
	email := strings.TrimSpace(in.PrimaryContactEmail)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return NewInvalidError("primary contact email is not valid")
		}
	}
	if in.EstimatedStaffCount != nil && *in.EstimatedStaffCount < 0 {
		return NewInvalidError("estimated staff count cannot be negative")
	}
	t.AgencyName = agency
	t.TeamName = strings.TrimSpace(in.TeamName)
	t.PrimaryContactName = strings.TrimSpace(in.PrimaryContactName)
	t.PrimaryContactEmail = email
	t.EstimatedStaffCount = in.EstimatedStaffCount
	return nil
}

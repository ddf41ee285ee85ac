package services

import (
	"context"
	"strings"
	"time"

	"github.com/soaringjerry/stsportal/internal/models"
	"github.com/soaringjerry/stsportal/internal/utils"
)

var (
	msgInvalidCode = utils.T(utils.MsgInvalidCode)
	msgExpiredCode = utils.T(utils.MsgExpiredCode)
)

type CodeStore interface {
	// GetAccessCodeByCode returns nil, nil when no row matches.
	GetAccessCodeByCode(ctx context.Context, code string) (*models.AccessCode, error)
	GetTeam(ctx context.Context, id string) (*models.Team, error)
}

// CodeValidation identifies the team and timepoint an access code unlocks.
type CodeValidation struct {
	AccessCodeID    string           `json:"access_code_id"`
	Code            string           `json:"code"`
	TeamID          string           `json:"team_id"`
	CollaborativeID string           `json:"collaborative_id"`
	Timepoint       models.Timepoint `json:"timepoint"`
}

type CodeService struct {
	store CodeStore
	now   func() time.Time
}

func NewCodeService(store CodeStore) *CodeService {
	return &CodeService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// NormalizeCode trims and upper-cases user input.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Validate resolves a participant-entered code. It never writes.
func (s *CodeService) Validate(ctx context.Context, raw string) (*CodeValidation, error) {
	code := NormalizeCode(raw)
	if code == "" {
		return nil, NewInvalidCodeError(msgInvalidCode)
	}
	ac, err := s.store.GetAccessCodeByCode(ctx, code)
	if err != nil {
		return nil, NewPersistenceError("could not look up team code", err)
	}
	if ac == nil || !ac.Active {
		return nil, NewInvalidCodeError(msgInvalidCode)
	}
	if ac.ExpiresAt != nil && ac.ExpiresAt.Before(s.now()) {
		return nil, NewExpiredCodeError(msgExpiredCode)
	}
	team, err := s.store.GetTeam(ctx, ac.TeamID)
	if err != nil {
		return nil, NewPersistenceError("could not look up team", err)
	}
	if team == nil {
		return nil, NewInvalidCodeError(msgInvalidCode)
	}
	return &CodeValidation{
		AccessCodeID:    ac.ID,
		Code:            ac.Code,
		TeamID:          team.ID,
		CollaborativeID: team.CollaborativeID,
		Timepoint:       ac.Timepoint,
	}, nil
}

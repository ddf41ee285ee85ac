package services

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/soaringjerry/stsportal/internal/models"
)

type CompletionStore interface {
	GetCollaborative(ctx context.Context, id string) (*models.Collaborative, error)
	ListTeams(ctx context.Context, collaborativeID string) ([]*models.Team, error)
	ListSessionsByCodes(ctx context.Context, codeIDs []string) ([]*models.AssessmentSession, error)
}

type TeamCompletion struct {
	TeamID         string     `json:"team_id"`
	TeamName       string     `json:"team_name"`
	AgencyName     string     `json:"agency_name"`
	AccessCodeID   string     `json:"team_code_id,omitempty"`
	Code           string     `json:"code,omitempty"`
	CodeActive     bool       `json:"code_active"`
	Started        int        `json:"started"`
	Completed      int        `json:"completed"`
	LastSubmission *time.Time `json:"last_submission,omitempty"`
}

type CompletionStats struct {
	TotalTeams     int `json:"total_teams"`
	TeamsResponded int `json:"teams_responded"`
	Percentage     int `json:"percentage"`
	TotalResponses int `json:"total_responses"`
}

type CompletionReport struct {
	CollaborativeID string           `json:"collaborative_id"`
	Timepoint       models.Timepoint `json:"timepoint"`
	Teams           []TeamCompletion `json:"teams"`
	Stats           CompletionStats  `json:"stats"`
}

type CompletionService struct{ store CompletionStore }

func NewCompletionService(store CompletionStore) *CompletionService {
	return &CompletionService{store: store}
}

// Report counts started and completed sessions per team code for one
// timepoint. A team counts as responded once any session completed.
func (s *CompletionService) Report(ctx context.Context, collaborativeID string, tp models.Timepoint) (*CompletionReport, error) {
	if !tp.Valid() {
		return nil, NewInvalidError("unknown timepoint")
	}
	if _, err := findCollaborative(ctx, s.store, collaborativeID); err != nil {
		return nil, err
	}
	teams, err := s.store.ListTeams(ctx, collaborativeID)
	if err != nil {
		return nil, NewPersistenceError("could not list teams", err)
	}
	teams, codes, err := cohortCodes(teams, CohortSelector{CollaborativeID: collaborativeID, Timepoint: tp})
	if err != nil {
		return nil, err
	}
	var sessions []*models.AssessmentSession
	if len(codes) > 0 {
		sessions, err = s.store.ListSessionsByCodes(ctx, lo.Map(codes, func(ac models.AccessCode, _ int) string { return ac.ID }))
		if err != nil {
			return nil, NewPersistenceError("could not list sessions", err)
		}
	}
	byCode := lo.GroupBy(sessions, func(ss *models.AssessmentSession) string { return ss.AccessCodeID })

	report := &CompletionReport{CollaborativeID: collaborativeID, Timepoint: tp, Teams: []TeamCompletion{}}
	for _, t := range teams {
		row := TeamCompletion{TeamID: t.ID, TeamName: t.DisplayName(), AgencyName: t.AgencyName}
		if ac, ok := lo.Find(t.Codes, func(ac models.AccessCode) bool { return ac.Timepoint == tp }); ok {
			row.AccessCodeID, row.Code, row.CodeActive = ac.ID, ac.Code, ac.Active
			for _, ss := range byCode[ac.ID] {
				row.Started++
				if !ss.IsComplete || ss.CompletedAt == nil {
					continue
				}
				row.Completed++
				if row.LastSubmission == nil || ss.CompletedAt.After(*row.LastSubmission) {
					last := *ss.CompletedAt
					row.LastSubmission = &last
				}
			}
		}
		report.Stats.TotalResponses += row.Completed
		if row.Completed > 0 {
			report.Stats.TeamsResponded++
		}
		report.Teams = append(report.Teams, row)
	}
	sort.SliceStable(report.Teams, func(i, j int) bool {
		return strings.ToLower(report.Teams[i].TeamName) < strings.ToLower(report.Teams[j].TeamName)
	})
	report.Stats.TotalTeams = len(report.Teams)
	if report.Stats.TotalTeams > 0 {
		report.Stats.Percentage = int(math.Round(100 * float64(report.Stats.TeamsResponded) / float64(report.Stats.TotalTeams)))
	}
	return report, nil
}

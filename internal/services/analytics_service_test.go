package services

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/soaringjerry/stsportal/internal/models"
)

type stubAnalyticsStore struct {
	collab       *models.Collaborative
	teams        []*models.Team
	sessions     []*models.AssessmentSession
	demographics []*models.DemographicsRecord
	stss         []*models.StssRecord
	proqol       []*models.ProqolRecord
	stsioa       []*models.StsioaRecord
	failStss     error
}

func (s *stubAnalyticsStore) GetCollaborative(_ context.Context, id string) (*models.Collaborative, error) {
	if s.collab != nil && s.collab.ID == id {
		copy := *s.collab
		return &copy, nil
	}
	return nil, nil
}

func (s *stubAnalyticsStore) ListTeams(_ context.Context, collaborativeID string) ([]*models.Team, error) {
	out := []*models.Team{}
	for _, t := range s.teams {
		if t.CollaborativeID == collaborativeID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *stubAnalyticsStore) ListSessionsByCodes(_ context.Context, codeIDs []string) ([]*models.AssessmentSession, error) {
	out := []*models.AssessmentSession{}
	for _, ss := range s.sessions {
		if slices.Contains(codeIDs, ss.AccessCodeID) {
			out = append(out, ss)
		}
	}
	return out, nil
}

func filterBySession[T any](items []T, ids []string, sid func(T) string) []T {
	out := []T{}
	for _, it := range items {
		if slices.Contains(ids, sid(it)) {
			out = append(out, it)
		}
	}
	return out
}

func (s *stubAnalyticsStore) ListDemographics(_ context.Context, ids []string) ([]*models.DemographicsRecord, error) {
	return filterBySession(s.demographics, ids, func(r *models.DemographicsRecord) string { return r.SessionID }), nil
}

func (s *stubAnalyticsStore) ListStss(_ context.Context, ids []string) ([]*models.StssRecord, error) {
	if s.failStss != nil {
		return nil, s.failStss
	}
	return filterBySession(s.stss, ids, func(r *models.StssRecord) string { return r.SessionID }), nil
}

func (s *stubAnalyticsStore) ListProqol(_ context.Context, ids []string) ([]*models.ProqolRecord, error) {
	return filterBySession(s.proqol, ids, func(r *models.ProqolRecord) string { return r.SessionID }), nil
}

func (s *stubAnalyticsStore) ListStsioa(_ context.Context, ids []string) ([]*models.StsioaRecord, error) {
	return filterBySession(s.stsioa, ids, func(r *models.StsioaRecord) string { return r.SessionID }), nil
}

func newCohortStore() *stubAnalyticsStore {
	return &stubAnalyticsStore{
		collab: &models.Collaborative{ID: "COL1"},
		teams: []*models.Team{
			{ID: "T1", CollaborativeID: "COL1", AgencyName: "Alpha", Codes: []models.AccessCode{
				{ID: "T1B", TeamID: "T1", Timepoint: models.TimepointBaseline, Active: true},
				{ID: "T1E", TeamID: "T1", Timepoint: models.TimepointEndline, Active: true},
			}},
			{ID: "T2", CollaborativeID: "COL1", AgencyName: "Beta", Codes: []models.AccessCode{
				{ID: "T2B", TeamID: "T2", Timepoint: models.TimepointBaseline, Active: true},
			}},
		},
	}
}

// addRespondent stores a full set of records for one completed session.
func (s *stubAnalyticsStore) addRespondent(id, codeID, gender, role string, areas string, exposure, stssValue, proqolValue, stsioaValue int) {
	done := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	s.sessions = append(s.sessions, &models.AssessmentSession{ID: id, AccessCodeID: codeID, IsComplete: true, CompletedAt: &done})
	s.demographics = append(s.demographics, &models.DemographicsRecord{
		SessionID: id, Gender: gender, Age: 30, YearsInService: 5, JobRole: role,
		AreasOfResponsibility: datatypes.JSON(areas), ExposureLevel: exposure,
	})
	stssResp := fill(stssCatalog, stssValue)
	st, _ := ScoreStss(stssResp)
	s.stss = append(s.stss, &models.StssRecord{
		SessionID: id, Responses: datatypes.NewJSONType(stssResp),
		IntrusionScore: st.Intrusion, AvoidanceScore: st.Avoidance, ArousalScore: st.Arousal, TotalScore: st.Total,
	})
	proqolResp := fill(proqolCatalog, proqolValue)
	pq, _ := ScoreProqol(proqolResp)
	s.proqol = append(s.proqol, &models.ProqolRecord{
		SessionID: id, Responses: datatypes.NewJSONType(proqolResp),
		CompassionSatisfactionScore: pq.CompassionSatisfaction, BurnoutScore: pq.Burnout, SecondaryTraumaScore: pq.SecondaryTrauma,
	})
	oa, _ := ScoreStsioa(fill(stsioaCatalog, stsioaValue))
	rec := &models.StsioaRecord{SessionID: id, TotalScore: oa.Total}
	rec.SetDomainScores(oa.Domains)
	s.stsioa = append(s.stsioa, rec)
}

func mean(t *testing.T, st Stat) float64 {
	t.Helper()
	if st.Mean == nil {
		t.Fatalf("expected a mean, got null (n=%d)", st.N)
	}
	return *st.Mean
}

func TestAnalyticsEmptyCohort(t *testing.T) {
	svc := NewAnalyticsService(newCohortStore())
	seq := int64(7)
	sum, err := svc.Summary(context.Background(), CohortSelector{CollaborativeID: "COL1", Timepoint: models.TimepointBaseline}, &seq)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalResponses != 0 || sum.Stss.Total.Mean != nil || sum.Proqol.Burnout.Mean != nil ||
		sum.Stsioa.Total.Mean != nil || sum.Demographics.FemalePercent != nil || sum.Demographics.Exposure.Mean != nil {
		t.Fatalf("expected null means for empty cohort, got %+v", sum)
	}
	if len(sum.Demographics.ExposureHistogram) != 4 || sum.Demographics.ExposureHistogram[0].Count != 0 {
		t.Fatalf("unexpected histogram %+v", sum.Demographics.ExposureHistogram)
	}
	if sum.Seq == nil || *sum.Seq != 7 {
		t.Fatalf("seq must be echoed back")
	}
}

func TestAnalyticsSingleRespondent(t *testing.T) {
	store := newCohortStore()
	store.addRespondent("S1", "T1B", "F", "Case Manager", `["Multi-Team"]`, 40, 3, 2, 4)
	svc := NewAnalyticsService(store)
	sum, err := svc.Summary(context.Background(), CohortSelector{CollaborativeID: "COL1", Timepoint: models.TimepointBaseline}, nil)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalResponses != 1 || mean(t, sum.Stss.Total) != 51 || mean(t, sum.Stss.Intrusion) != 15 {
		t.Fatalf("unexpected stss summary %+v", sum.Stss)
	}
	if *sum.Stss.Total.SD != 0 {
		t.Fatalf("single respondent SD must be 0")
	}
	if mean(t, sum.Stsioa.Total) != 160 || mean(t, sum.Stsioa.Domains[3].Stat) != 36 {
		t.Fatalf("unexpected stsioa summary %+v", sum.Stsioa)
	}
	if *sum.Demographics.FemalePercent != 100 || sum.Demographics.Areas["Multi-Team"] != 1 {
		t.Fatalf("unexpected demographics %+v", sum.Demographics)
	}
	if len(sum.Reliability) != 0 {
		t.Fatalf("alpha needs at least two respondents")
	}
}

func TestAnalyticsCohortMeansAndHistograms(t *testing.T) {
	store := newCohortStore()
	store.addRespondent("S1", "T1B", "F", "Case Manager", `["Multi-Team","Children's Services"]`, 0, 1, 1, 1)
	store.addRespondent("S2", "T1B", "M", "Case Manager", `["Multi-Team"]`, 25, 3, 3, 3)
	store.addRespondent("S3", "T2B", "F", "Leadership", `not json`, 75, 5, 5, 5)
	store.addRespondent("S4", "T2B", "M", "Leadership", `[]`, 100, 3, 3, 3)
	store.addRespondent("S5", "T1E", "F", "Leadership", `[]`, 50, 5, 5, 5) // endline, excluded
	svc := NewAnalyticsService(store)
	sum, err := svc.Summary(context.Background(), CohortSelector{CollaborativeID: "COL1", Timepoint: models.TimepointBaseline}, nil)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalResponses != 4 || sum.Sessions != 4 || sum.CompletedSessions != 4 {
		t.Fatalf("unexpected counts %+v", sum)
	}
	// STSS totals 17, 51, 85, 51
	if got := mean(t, sum.Stss.Total); got != 51 {
		t.Fatalf("expected STSS mean 51, got %v", got)
	}
	if got := *sum.Demographics.FemalePercent; got != 50 {
		t.Fatalf("expected 50%% female, got %v", got)
	}
	wantBuckets := []int{1, 1, 0, 2}
	for i, b := range sum.Demographics.ExposureHistogram {
		if b.Count != wantBuckets[i] {
			t.Fatalf("bucket %s: expected %d, got %d", b.Label, wantBuckets[i], b.Count)
		}
	}
	if sum.Demographics.JobRoles["Case Manager"] != 2 || sum.Demographics.JobRoles["Leadership"] != 2 {
		t.Fatalf("unexpected job roles %v", sum.Demographics.JobRoles)
	}
	if sum.Demographics.Areas["Multi-Team"] != 2 || sum.Demographics.Areas["Children's Services"] != 1 {
		t.Fatalf("unexpected areas %v", sum.Demographics.Areas)
	}
	if len(sum.Warnings) != 1 {
		t.Fatalf("expected one warning for malformed areas, got %v", sum.Warnings)
	}
	if len(sum.StsioaByJobRole) != 2 || sum.StsioaByJobRole[0].JobRole != "Case Manager" {
		t.Fatalf("unexpected by-role %+v", sum.StsioaByJobRole)
	}
	cm, lead := sum.StsioaByJobRole[0], sum.StsioaByJobRole[1]
	// Case Manager totals 40 and 120; Leadership totals 200 and 120.
	if mean(t, cm.Stat) != 80 || *cm.SD != 40 || cm.N != 2 || mean(t, lead.Stat) != 160 || *lead.SD != 40 {
		t.Fatalf("unexpected by-role stats %+v %+v", cm, lead)
	}
	if len(sum.Reliability) != 4 || sum.Reliability[0].Scale != "stss" || sum.Reliability[0].N != 4 {
		t.Fatalf("unexpected reliability %+v", sum.Reliability)
	}
	if math.Abs(sum.Reliability[0].Alpha-1) > 1e-9 {
		t.Fatalf("uniform answers should give alpha 1, got %v", sum.Reliability[0].Alpha)
	}
}

func TestAnalyticsTeamFilter(t *testing.T) {
	store := newCohortStore()
	store.addRespondent("S1", "T1B", "F", "Case Manager", `[]`, 10, 1, 1, 1)
	store.addRespondent("S2", "T2B", "M", "Leadership", `[]`, 10, 5, 5, 5)
	svc := NewAnalyticsService(store)
	sum, err := svc.Summary(context.Background(), CohortSelector{CollaborativeID: "COL1", Timepoint: models.TimepointBaseline, TeamID: "T2"}, nil)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalResponses != 1 || mean(t, sum.Stss.Total) != 85 {
		t.Fatalf("expected only team T2, got %+v", sum.Stss)
	}
	if _, err := svc.Summary(context.Background(), CohortSelector{CollaborativeID: "COL1", Timepoint: models.TimepointBaseline, TeamID: "T9"}, nil); !HasCode(err, ErrorNotFound) {
		t.Fatalf("expected not found for foreign team, got %v", err)
	}
	if _, err := svc.Summary(context.Background(), CohortSelector{CollaborativeID: "COL1", Timepoint: "midline"}, nil); !HasCode(err, ErrorInvalid) {
		t.Fatalf("expected invalid timepoint, got %v", err)
	}
}

func TestAnalyticsPartialSessionsOnlyCountWhatExists(t *testing.T) {
	store := newCohortStore()
	store.addRespondent("S1", "T1B", "F", "Case Manager", `[]`, 10, 3, 3, 3)
	store.sessions = append(store.sessions, &models.AssessmentSession{ID: "S2", AccessCodeID: "T1B"})
	store.demographics = append(store.demographics, &models.DemographicsRecord{SessionID: "S2", Gender: "M", JobRole: "Leadership", ExposureLevel: 90})
	svc := NewAnalyticsService(store)
	sum, err := svc.Summary(context.Background(), CohortSelector{CollaborativeID: "COL1", Timepoint: models.TimepointBaseline}, nil)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalResponses != 2 || sum.Stss.Total.N != 1 || sum.CompletedSessions != 1 {
		t.Fatalf("unexpected partial handling %+v", sum)
	}
	if len(sum.StsioaByJobRole) != 1 {
		t.Fatalf("role without STSI-OA must not appear: %+v", sum.StsioaByJobRole)
	}
}

func TestAnalyticsDashboardDegrades(t *testing.T) {
	store := newCohortStore()
	store.addRespondent("S1", "T1B", "F", "Case Manager", `[]`, 10, 3, 3, 3)
	svc := NewAnalyticsService(store)
	ctx := context.Background()
	if _, err := svc.Summary(ctx, CohortSelector{CollaborativeID: "NOPE", Timepoint: models.TimepointBaseline}, nil); !HasCode(err, ErrorNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	store.failStss = errors.New("db timeout")
	dash, err := svc.Dashboard(ctx, "COL1", "")
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if len(dash) != 4 {
		t.Fatalf("expected one summary per timepoint, got %d", len(dash))
	}
	if dash[0].Error == "" || dash[0].Stss.Total.Mean != nil {
		t.Fatalf("baseline fetch failed and must degrade, got %+v", dash[0])
	}
	if strings.Contains(dash[0].Error, "db timeout") {
		t.Fatalf("driver error leaked into summary: %q", dash[0].Error)
	}
	if dash[2].Error != "" || dash[2].TotalResponses != 0 {
		t.Fatalf("timepoints without codes are simply empty, got %+v", dash[2])
	}
}

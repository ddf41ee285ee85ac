package services

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/soaringjerry/stsportal/internal/models"
)

type AnalyticsStore interface {
	GetCollaborative(ctx context.Context, id string) (*models.Collaborative, error)
	ListTeams(ctx context.Context, collaborativeID string) ([]*models.Team, error)
	ListSessionsByCodes(ctx context.Context, codeIDs []string) ([]*models.AssessmentSession, error)
	ListDemographics(ctx context.Context, sessionIDs []string) ([]*models.DemographicsRecord, error)
	ListStss(ctx context.Context, sessionIDs []string) ([]*models.StssRecord, error)
	ListProqol(ctx context.Context, sessionIDs []string) ([]*models.ProqolRecord, error)
	ListStsioa(ctx context.Context, sessionIDs []string) ([]*models.StsioaRecord, error)
}

// CohortSelector picks the sessions of one collaborative at one timepoint,
// optionally narrowed to a single team.
type CohortSelector struct {
	CollaborativeID string           `json:"collaborative_id"`
	Timepoint       models.Timepoint `json:"timepoint"`
	TeamID          string           `json:"team_id,omitempty"`
}

// Stat is a mean with its population SD. Mean and SD are null when N is 0.
type Stat struct {
	Mean *float64 `json:"mean"`
	SD   *float64 `json:"sd"`
	N    int      `json:"n"`
}

type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type DemographicsSummary struct {
	JobRoles          map[string]int `json:"job_roles"`
	Areas             map[string]int `json:"areas"`
	FemalePercent     *float64       `json:"female_percent"`
	Age               Stat           `json:"age"`
	YearsInService    Stat           `json:"years_in_service"`
	Exposure          Stat           `json:"exposure"`
	ExposureHistogram []Bucket       `json:"exposure_histogram"`
}

type StssSummary struct {
	Intrusion Stat `json:"intrusion"`
	Avoidance Stat `json:"avoidance"`
	Arousal   Stat `json:"arousal"`
	Total     Stat `json:"total"`
}

type ProqolSummary struct {
	CompassionSatisfaction Stat `json:"compassion_satisfaction"`
	Burnout                Stat `json:"burnout"`
	SecondaryTrauma        Stat `json:"secondary_trauma"`
}

type DomainStat struct {
	Domain string `json:"domain"`
	Name   string `json:"name"`
	Stat
}

type StsioaSummary struct {
	Total   Stat         `json:"total"`
	Domains []DomainStat `json:"domains"`
}

type RoleStat struct {
	JobRole string `json:"job_role"`
	Stat
}

type Reliability struct {
	Scale string  `json:"scale"`
	Alpha float64 `json:"alpha"`
	N     int     `json:"n"`
}

type CohortSummary struct {
	CohortSelector
	Seq               *int64              `json:"seq,omitempty"`
	ComputedAt        time.Time           `json:"computed_at"`
	TotalResponses    int                 `json:"total_responses"`
	Sessions          int                 `json:"sessions"`
	CompletedSessions int                 `json:"completed_sessions"`
	Demographics      DemographicsSummary `json:"demographics"`
	Stss              StssSummary         `json:"stss"`
	Proqol            ProqolSummary       `json:"proqol"`
	Stsioa            StsioaSummary       `json:"stsioa"`
	StsioaByJobRole   []RoleStat          `json:"stsioa_by_job_role"`
	Reliability       []Reliability       `json:"reliability"`
	Warnings          []string            `json:"warnings,omitempty"`
	Error             string              `json:"error,omitempty"`
}

type AnalyticsService struct {
	store AnalyticsStore
	now   func() time.Time
}

func NewAnalyticsService(store AnalyticsStore) *AnalyticsService {
	return &AnalyticsService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

type cohortRecords struct {
	teams        []*models.Team
	codes        []models.AccessCode
	sessions     []*models.AssessmentSession
	demographics []*models.DemographicsRecord
	stss         []*models.StssRecord
	proqol       []*models.ProqolRecord
	stsioa       []*models.StsioaRecord
}

// Summary computes the cohort aggregates in one pass over freshly fetched
// records. seq is echoed back so callers can discard stale responses.
func (s *AnalyticsService) Summary(ctx context.Context, sel CohortSelector, seq *int64) (*CohortSummary, error) {
	recs, err := loadCohort(ctx, s.store, sel)
	if err != nil {
		return nil, err
	}
	out := reduceCohort(recs)
	out.CohortSelector = sel
	out.Seq = seq
	out.ComputedAt = s.now()
	return out, nil
}

// Dashboard returns one summary per timepoint. A timepoint that fails is
// reported through its Error field and does not hide the others.
func (s *AnalyticsService) Dashboard(ctx context.Context, collaborativeID, teamID string) ([]*CohortSummary, error) {
	if _, err := findCollaborative(ctx, s.store, collaborativeID); err != nil {
		return nil, err
	}
	out := make([]*CohortSummary, 0, len(models.Timepoints))
	for _, tp := range models.Timepoints {
		sel := CohortSelector{CollaborativeID: collaborativeID, Timepoint: tp, TeamID: teamID}
		sum, err := s.Summary(ctx, sel, nil)
		if err != nil {
			sum = reduceCohort(&cohortRecords{})
			sum.CohortSelector = sel
			sum.ComputedAt = s.now()
			sum.Error = publicMessage(err)
			slog.WarnContext(ctx, "dashboard timepoint failed", "collaborative_id", collaborativeID, "timepoint", tp, "err", err)
		}
		out = append(out, sum)
	}
	return out, nil
}

// publicMessage keeps wrapped driver errors out of responses.
func publicMessage(err error) string {
	if se, ok := AsServiceError(err); ok && se.Message != "" {
		return se.Message
	}
	return "summary unavailable"
}

func findCollaborative(ctx context.Context, store CompletionStore, id string) (*models.Collaborative, error) {
	if id == "" {
		return nil, NewInvalidError("collaborative_id is required")
	}
	c, err := store.GetCollaborative(ctx, id)
	if err != nil {
		return nil, NewPersistenceError("could not load collaborative", err)
	}
	if c == nil {
		return nil, NewNotFoundError("collaborative not found")
	}
	return c, nil
}

// cohortCodes resolves the access codes of the selected teams at the
// selected timepoint.
func cohortCodes(teams []*models.Team, sel CohortSelector) ([]*models.Team, []models.AccessCode, error) {
	if sel.TeamID != "" {
		teams = lo.Filter(teams, func(t *models.Team, _ int) bool { return t.ID == sel.TeamID })
		if len(teams) == 0 {
			return nil, nil, NewNotFoundError("team not found in collaborative")
		}
	}
	codes := lo.FlatMap(teams, func(t *models.Team, _ int) []models.AccessCode {
		return lo.Filter(t.Codes, func(ac models.AccessCode, _ int) bool { return ac.Timepoint == sel.Timepoint })
	})
	return teams, codes, nil
}

// loadCohort resolves the selector to sessions and fetches the four record
// sets concurrently. The sets are joined by session id afterwards, so the
// order in which they arrive does not matter.
func loadCohort(ctx context.Context, store AnalyticsStore, sel CohortSelector) (*cohortRecords, error) {
	if !sel.Timepoint.Valid() {
		return nil, NewInvalidError("unknown timepoint")
	}
	if _, err := findCollaborative(ctx, store, sel.CollaborativeID); err != nil {
		return nil, err
	}
	teams, err := store.ListTeams(ctx, sel.CollaborativeID)
	if err != nil {
		return nil, NewPersistenceError("could not list teams", err)
	}
	teams, codes, err := cohortCodes(teams, sel)
	if err != nil {
		return nil, err
	}
	recs := &cohortRecords{teams: teams, codes: codes}
	if len(codes) == 0 {
		return recs, nil
	}
	codeIDs := lo.Map(codes, func(ac models.AccessCode, _ int) string { return ac.ID })
	recs.sessions, err = store.ListSessionsByCodes(ctx, codeIDs)
	if err != nil {
		return nil, NewPersistenceError("could not list sessions", err)
	}
	if len(recs.sessions) == 0 {
		return recs, nil
	}
	ids := lo.Map(recs.sessions, func(ss *models.AssessmentSession, _ int) string { return ss.ID })

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		recs.demographics, err = store.ListDemographics(gctx, ids)
		return err
	})
	g.Go(func() (err error) {
		recs.stss, err = store.ListStss(gctx, ids)
		return err
	})
	g.Go(func() (err error) {
		recs.proqol, err = store.ListProqol(gctx, ids)
		return err
	})
	g.Go(func() (err error) {
		recs.stsioa, err = store.ListStsioa(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, NewPersistenceError("could not load cohort responses", err)
	}
	return recs, nil
}

var exposureBuckets = []struct {
	label  string
	lo, hi int
}{
	{"0-25", 0, 25},
	{"25-50", 25, 50},
	{"50-75", 50, 75},
	{"75-100", 75, 101},
}

func reduceCohort(r *cohortRecords) *CohortSummary {
	out := &CohortSummary{
		Sessions:          len(r.sessions),
		CompletedSessions: lo.CountBy(r.sessions, func(s *models.AssessmentSession) bool { return s.IsComplete }),
		TotalResponses:    len(r.demographics),
		Reliability:       []Reliability{},
		StsioaByJobRole:   []RoleStat{},
	}

	d := &out.Demographics
	d.JobRoles = map[string]int{}
	d.Areas = map[string]int{}
	d.ExposureHistogram = make([]Bucket, len(exposureBuckets))
	for i, b := range exposureBuckets {
		d.ExposureHistogram[i].Label = b.label
	}
	var ages, years, exposure []float64
	female := 0
	for _, rec := range r.demographics {
		d.JobRoles[rec.JobRole]++
		if rec.Gender == "F" {
			female++
		}
		ages = append(ages, float64(rec.Age))
		years = append(years, float64(rec.YearsInService))
		exposure = append(exposure, float64(rec.ExposureLevel))
		for i, b := range exposureBuckets {
			if rec.ExposureLevel >= b.lo && rec.ExposureLevel < b.hi {
				d.ExposureHistogram[i].Count++
				break
			}
		}
		areas, err := ParseAreas(rec.AreasOfResponsibility)
		if err != nil {
			out.Warnings = append(out.Warnings,
				NewAggregationInputError("areas of responsibility unreadable for session "+rec.SessionID, err).Error())
			continue
		}
		for _, a := range lo.Uniq(areas) {
			d.Areas[a]++
		}
	}
	if n := len(r.demographics); n > 0 {
		pct := 100 * float64(female) / float64(n)
		d.FemalePercent = &pct
	}
	d.Age, d.YearsInService, d.Exposure = statOf(ages), statOf(years), statOf(exposure)

	out.Stss = StssSummary{
		Intrusion: statBy(r.stss, func(x *models.StssRecord) int { return x.IntrusionScore }),
		Avoidance: statBy(r.stss, func(x *models.StssRecord) int { return x.AvoidanceScore }),
		Arousal:   statBy(r.stss, func(x *models.StssRecord) int { return x.ArousalScore }),
		Total:     statBy(r.stss, func(x *models.StssRecord) int { return x.TotalScore }),
	}
	out.Proqol = ProqolSummary{
		CompassionSatisfaction: statBy(r.proqol, func(x *models.ProqolRecord) int { return x.CompassionSatisfactionScore }),
		Burnout:                statBy(r.proqol, func(x *models.ProqolRecord) int { return x.BurnoutScore }),
		SecondaryTrauma:        statBy(r.proqol, func(x *models.ProqolRecord) int { return x.SecondaryTraumaScore }),
	}
	out.Stsioa.Total = statBy(r.stsioa, func(x *models.StsioaRecord) int { return x.TotalScore })
	for i, g := range stsioaCatalog.Groups {
		out.Stsioa.Domains = append(out.Stsioa.Domains, DomainStat{
			Domain: g,
			Name:   stsioaCatalog.GroupNames[g],
			Stat:   statBy(r.stsioa, func(x *models.StsioaRecord) int { return x.DomainScores()[i] }),
		})
	}

	roleBySession := lo.SliceToMap(r.demographics, func(x *models.DemographicsRecord) (string, string) {
		return x.SessionID, x.JobRole
	})
	joined := lo.Filter(r.stsioa, func(x *models.StsioaRecord, _ int) bool {
		_, ok := roleBySession[x.SessionID]
		return ok
	})
	byRole := lo.GroupBy(joined, func(x *models.StsioaRecord) string { return roleBySession[x.SessionID] })
	roles := lo.Keys(byRole)
	sort.Strings(roles)
	for _, role := range roles {
		out.StsioaByJobRole = append(out.StsioaByJobRole, RoleStat{
			JobRole: role,
			Stat:    statBy(byRole[role], func(x *models.StsioaRecord) int { return x.TotalScore }),
		})
	}

	stssRows := lo.Map(r.stss, func(x *models.StssRecord, _ int) models.ItemResponses { return x.Responses.Data() })
	out.Reliability = appendAlpha(out.Reliability, "stss", stssCatalog, stssCatalog.ItemIDs(), stssRows)
	proqolRows := lo.Map(r.proqol, func(x *models.ProqolRecord, _ int) models.ItemResponses { return x.Responses.Data() })
	for _, g := range proqolCatalog.Groups {
		out.Reliability = appendAlpha(out.Reliability, "proqol."+g, proqolCatalog, proqolCatalog.GroupItems(g), proqolRows)
	}
	return out
}

// appendAlpha adds Cronbach's alpha for the given items when at least two
// respondents answered all of them.
func appendAlpha(dst []Reliability, scale string, c *Catalog, ids []string, rows []models.ItemResponses) []Reliability {
	alpha, n := scaleAlpha(c, ids, rows)
	if n < 2 {
		return dst
	}
	return append(dst, Reliability{Scale: scale, Alpha: alpha, N: n})
}

func statBy[T any](items []T, score func(T) int) Stat {
	return statOf(lo.Map(items, func(x T, _ int) float64 { return float64(score(x)) }))
}

func statOf(values []float64) Stat {
	n := len(values)
	if n == 0 {
		return Stat{}
	}
	mean := lo.Sum(values) / float64(n)
	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	sd := math.Sqrt(ss / float64(n))
	return Stat{Mean: &mean, SD: &sd, N: n}
}

package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/soaringjerry/stsportal/internal/models"
)

// ArchiveSink stores an export under key and returns where it landed.
type ArchiveSink interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

type ExportResult struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

type ArchiveResult struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	Rows     int    `json:"rows"`
}

type ExportService struct {
	store   AnalyticsStore
	archive ArchiveSink
	now     func() time.Time
}

// NewExportService accepts a nil sink; Archive then reports unavailable.
func NewExportService(store AnalyticsStore, archive ArchiveSink) *ExportService {
	return &ExportService{store: store, archive: archive, now: func() time.Time { return time.Now().UTC() }}
}

// CohortScoresCSV exports one row per session in the cohort, ordered by
// team name then start time.
func (s *ExportService) CohortScoresCSV(ctx context.Context, sel CohortSelector) (*ExportResult, error) {
	rows, err := s.scoreRows(ctx, sel)
	if err != nil {
		return nil, err
	}
	data, err := ExportScoreCSV(rows)
	if err != nil {
		return nil, err
	}
	return &ExportResult{Filename: s.filename(sel, "scores"), ContentType: "text/csv", Data: data}, nil
}

// CohortItemsCSV exports every stored item answer of the cohort in long
// format.
func (s *ExportService) CohortItemsCSV(ctx context.Context, sel CohortSelector) (*ExportResult, error) {
	recs, err := loadCohort(ctx, s.store, sel)
	if err != nil {
		return nil, err
	}
	var rows []LongRow
	add := func(sessionID string, c *Catalog, r models.ItemResponses, at time.Time) {
		for _, it := range c.Items {
			v, ok := r[it.ID]
			if !ok {
				continue
			}
			score := v
			if it.Reverse {
				score = ReverseScore(v, c.Max)
			}
			rows = append(rows, LongRow{
				SessionID:   sessionID,
				Instrument:  string(c.Key),
				ItemID:      it.ID,
				RawValue:    v,
				ScoreValue:  score,
				SubmittedAt: at.UTC().Format(time.RFC3339),
			})
		}
	}
	for _, x := range recs.stss {
		add(x.SessionID, stssCatalog, x.Responses.Data(), x.CreatedAt)
	}
	for _, x := range recs.proqol {
		add(x.SessionID, proqolCatalog, x.Responses.Data(), x.CreatedAt)
	}
	for _, x := range recs.stsioa {
		add(x.SessionID, stsioaCatalog, x.Responses.Data(), x.CreatedAt)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].SessionID < rows[j].SessionID })
	data, err := ExportLongCSV(rows)
	if err != nil {
		return nil, err
	}
	return &ExportResult{Filename: s.filename(sel, "items"), ContentType: "text/csv", Data: data}, nil
}

// Archive uploads the score export under
// exports/<collaborative>/<timepoint>/<timestamp>.csv.
func (s *ExportService) Archive(ctx context.Context, actor string, sel CohortSelector) (*ArchiveResult, error) {
	if s.archive == nil {
		return nil, NewUnavailableError("export archive is not configured")
	}
	rows, err := s.scoreRows(ctx, sel)
	if err != nil {
		return nil, err
	}
	data, err := ExportScoreCSV(rows)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("exports/%s/%s/%s.csv", sel.CollaborativeID, sel.Timepoint, s.now().Format("20060102T150405Z"))
	loc, err := s.archive.Put(ctx, key, data)
	if err != nil {
		return nil, NewUnavailableError("could not upload export: " + err.Error())
	}
	audit(ctx, actor, "export.archive", sel.CollaborativeID, key)
	return &ArchiveResult{Key: key, Location: loc, Rows: len(rows)}, nil
}

func (s *ExportService) filename(sel CohortSelector, kind string) string {
	name := fmt.Sprintf("%s_%s_%s", sel.CollaborativeID, sel.Timepoint, kind)
	if sel.TeamID != "" {
		name += "_" + sel.TeamID
	}
	return name + ".csv"
}

func (s *ExportService) scoreRows(ctx context.Context, sel CohortSelector) ([]ScoreRow, error) {
	recs, err := loadCohort(ctx, s.store, sel)
	if err != nil {
		return nil, err
	}
	teamByID := lo.SliceToMap(recs.teams, func(t *models.Team) (string, *models.Team) { return t.ID, t })
	codeByID := lo.SliceToMap(recs.codes, func(ac models.AccessCode) (string, models.AccessCode) { return ac.ID, ac })
	demo := lo.KeyBy(recs.demographics, func(x *models.DemographicsRecord) string { return x.SessionID })
	stss := lo.KeyBy(recs.stss, func(x *models.StssRecord) string { return x.SessionID })
	proqol := lo.KeyBy(recs.proqol, func(x *models.ProqolRecord) string { return x.SessionID })
	stsioa := lo.KeyBy(recs.stsioa, func(x *models.StsioaRecord) string { return x.SessionID })

	rows := make([]ScoreRow, 0, len(recs.sessions))
	for _, ss := range recs.sessions {
		row := ScoreRow{
			SessionID: ss.ID,
			Timepoint: string(sel.Timepoint),
			StartedAt: ss.StartedAt.UTC().Format(time.RFC3339),
			Complete:  ss.IsComplete,
			Abandoned: ss.AbandonedAt != nil,
		}
		if ac, ok := codeByID[ss.AccessCodeID]; ok {
			row.Code = ac.Code
			if t, ok := teamByID[ac.TeamID]; ok {
				row.TeamName, row.AgencyName = t.DisplayName(), t.AgencyName
			}
		}
		if ss.CompletedAt != nil {
			row.CompletedAt = ss.CompletedAt.UTC().Format(time.RFC3339)
		}
		if d, ok := demo[ss.ID]; ok {
			row.JobRole, row.Gender = d.JobRole, d.Gender
			row.Age, row.YearsInService, row.ExposureLevel = intp(d.Age), intp(d.YearsInService), intp(d.ExposureLevel)
		}
		if x, ok := stss[ss.ID]; ok {
			row.StssIntrusion, row.StssAvoidance = intp(x.IntrusionScore), intp(x.AvoidanceScore)
			row.StssArousal, row.StssTotal = intp(x.ArousalScore), intp(x.TotalScore)
		}
		if x, ok := proqol[ss.ID]; ok {
			row.ProqolCS, row.ProqolBurnout, row.ProqolSTS = intp(x.CompassionSatisfactionScore), intp(x.BurnoutScore), intp(x.SecondaryTraumaScore)
		}
		if x, ok := stsioa[ss.ID]; ok {
			row.StsioaDomains = x.DomainScores()
			row.StsioaTotal, row.StsioaNA = intp(x.TotalScore), intp(x.NotApplicableCount)
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TeamName != rows[j].TeamName {
			return rows[i].TeamName < rows[j].TeamName
		}
		return rows[i].StartedAt < rows[j].StartedAt
	})
	return rows, nil
}

package db

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/soaringjerry/stsportal/internal/models"
	"github.com/soaringjerry/stsportal/internal/services"
)

type fullStore interface {
	services.SessionStore
	services.CollaborativeStore
	services.TeamStore
	services.AnalyticsStore
	services.AuthStore
	GetAccessCodeByCode(ctx context.Context, code string) (*models.AccessCode, error)
}

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()
	gdb, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "sts.db"), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(gdb, ""); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st, err := NewGormStore(gdb)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func storesUnderTest(t *testing.T) map[string]fullStore {
	return map[string]fullStore{
		"memory": NewMemoryStore(),
		"sqlite": newSQLiteStore(t),
	}
}

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func seedTeam(t *testing.T, st fullStore) {
	t.Helper()
	ctx := context.Background()
	c := &models.Collaborative{ID: "COL1", Name: "Spring", StartDate: t0, EndDate: t0.AddDate(1, 0, 0), Status: models.CollaborativeActive, CreatedAt: t0, UpdatedAt: t0}
	if err := st.CreateCollaborative(ctx, c); err != nil {
		t.Fatalf("CreateCollaborative: %v", err)
	}
	team := &models.Team{ID: "T1", CollaborativeID: "COL1", AgencyName: "Alpha", CreatedAt: t0, UpdatedAt: t0, Codes: []models.AccessCode{
		{ID: "C1", TeamID: "T1", Code: "ALPHA-AAAA-BASELINE", Timepoint: models.TimepointBaseline, Active: true, CreatedAt: t0},
		{ID: "C2", TeamID: "T1", Code: "ALPHA-AAAA-ENDLINE", Timepoint: models.TimepointEndline, Active: false, CreatedAt: t0},
	}}
	if err := st.CreateTeam(ctx, team); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
}

func TestStoreTeamsAndCodes(t *testing.T) {
	for name, st := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedTeam(t, st)

			ac, err := st.GetAccessCodeByCode(ctx, "alpha-aaaa-baseline")
			if err != nil || ac == nil || ac.ID != "C1" {
				t.Fatalf("GetAccessCodeByCode = %+v, %v", ac, err)
			}
			if ac, err := st.GetAccessCodeByCode(ctx, "NOPE"); err != nil || ac != nil {
				t.Fatalf("expected nil, nil for unknown code, got %+v, %v", ac, err)
			}
			inactive, _ := st.GetAccessCode(ctx, "C2")
			if inactive == nil || inactive.Active {
				t.Fatalf("inactive code must stay inactive, got %+v", inactive)
			}

			teams, err := st.ListTeams(ctx, "COL1")
			if err != nil || len(teams) != 1 || len(teams[0].Codes) != 2 {
				t.Fatalf("ListTeams = %+v, %v", teams, err)
			}
			for _, c := range teams[0].Codes {
				if c.Active != (c.ID == "C1") {
					t.Fatalf("listed code %s has active=%v", c.ID, c.Active)
				}
			}

			dup := &models.Team{ID: "T2", CollaborativeID: "COL1", AgencyName: "Beta", CreatedAt: t0, Codes: []models.AccessCode{
				{ID: "C3", TeamID: "T2", Code: "ALPHA-AAAA-BASELINE", Timepoint: models.TimepointBaseline, Active: true, CreatedAt: t0},
			}}
			if err := st.CreateTeam(ctx, dup); !errors.Is(err, services.ErrDuplicate) {
				t.Fatalf("expected ErrDuplicate on code collision, got %v", err)
			}
			if got, _ := st.GetTeam(ctx, "T2"); got != nil {
				t.Fatalf("failed team insert must not leave a team behind")
			}

			ac.Active = false
			if err := st.UpdateAccessCode(ctx, ac); err != nil {
				t.Fatalf("UpdateAccessCode: %v", err)
			}
			if got, _ := st.GetAccessCode(ctx, "C1"); got.Active {
				t.Fatalf("expected deactivated code")
			}

			team, _ := st.GetTeam(ctx, "T1")
			team.TeamName = "Night shift"
			if err := st.UpdateTeam(ctx, team); err != nil {
				t.Fatalf("UpdateTeam: %v", err)
			}
			if got, _ := st.GetTeam(ctx, "T1"); got.TeamName != "Night shift" || len(got.Codes) != 2 {
				t.Fatalf("unexpected team after update %+v", got)
			}
		})
	}
}

func TestStoreCollaborativeListing(t *testing.T) {
	for name, st := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, status := range []models.CollaborativeStatus{models.CollaborativeActive, models.CollaborativeUpcoming, models.CollaborativeActive} {
				at := t0.Add(time.Duration(i) * time.Hour)
				c := &models.Collaborative{ID: string(rune('A' + i)), Name: "c", StartDate: t0, EndDate: t0.Add(time.Hour), Status: status, CreatedAt: at, UpdatedAt: at}
				if err := st.CreateCollaborative(ctx, c); err != nil {
					t.Fatalf("CreateCollaborative: %v", err)
				}
			}
			all, err := st.ListCollaboratives(ctx, "")
			if err != nil || len(all) != 3 || all[0].ID != "C" {
				t.Fatalf("expected newest first, got %+v, %v", all, err)
			}
			active, _ := st.ListCollaboratives(ctx, models.CollaborativeActive)
			if len(active) != 2 {
				t.Fatalf("expected 2 active, got %d", len(active))
			}
			c, _ := st.GetCollaborative(ctx, "B")
			c.Status = models.CollaborativeCompleted
			if err := st.UpdateCollaborative(ctx, c); err != nil {
				t.Fatalf("UpdateCollaborative: %v", err)
			}
			if got, _ := st.GetCollaborative(ctx, "B"); got.Status != models.CollaborativeCompleted {
				t.Fatalf("update lost: %+v", got)
			}
			if got, err := st.GetCollaborative(ctx, "Z"); got != nil || err != nil {
				t.Fatalf("expected nil, nil, got %+v, %v", got, err)
			}
		})
	}
}

func stepRecords() []models.StepRecord {
	return []models.StepRecord{
		&models.DemographicsRecord{ID: "D1", Gender: "F", Age: 30, JobRole: "Clinician", AreasOfResponsibility: datatypes.JSON(`["Direct services"]`), ExposureLevel: 40},
		&models.StssRecord{ID: "R1", Responses: datatypes.NewJSONType(models.ItemResponses{"1": 3}), TotalScore: 51},
		&models.ProqolRecord{ID: "R2", Responses: datatypes.NewJSONType(models.ItemResponses{"1": 4}), BurnoutScore: 26},
		&models.StsioaRecord{ID: "R3", Responses: datatypes.NewJSONType(models.ItemResponses{"1a": 5}), Domain1Score: 5, TotalScore: 5},
	}
}

func TestStoreCompleteStep(t *testing.T) {
	for name, st := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedTeam(t, st)
			sess := &models.AssessmentSession{ID: "S1", AccessCodeID: "C1", Timepoint: models.TimepointBaseline, StartedAt: t0, UpdatedAt: t0}
			if err := st.CreateSession(ctx, sess); err != nil {
				t.Fatalf("CreateSession: %v", err)
			}

			if _, err := st.CompleteStep(ctx, "S1", &models.StssRecord{ID: "X"}, t0); !errors.Is(err, models.ErrStepOutOfOrder) {
				t.Fatalf("expected out of order, got %v", err)
			}
			if _, err := st.CompleteStep(ctx, "NOPE", &models.StssRecord{ID: "X"}, t0); !errors.Is(err, services.ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}

			var last *models.AssessmentSession
			for i, rec := range stepRecords() {
				got, err := st.CompleteStep(ctx, "S1", rec, t0.Add(time.Duration(i+1)*time.Minute))
				if err != nil {
					t.Fatalf("step %d: %v", i, err)
				}
				last = got
			}
			if !last.IsComplete || last.CompletedAt == nil || !last.CompletedAt.Equal(t0.Add(4*time.Minute)) {
				t.Fatalf("expected completed session, got %+v", last)
			}
			if _, err := st.CompleteStep(ctx, "S1", &models.DemographicsRecord{ID: "D2"}, t0); !errors.Is(err, models.ErrStepAlreadySubmitted) {
				t.Fatalf("expected already submitted, got %v", err)
			}

			ids := []string{"S1"}
			demo, _ := st.ListDemographics(ctx, ids)
			stss, _ := st.ListStss(ctx, ids)
			proqol, _ := st.ListProqol(ctx, ids)
			oa, _ := st.ListStsioa(ctx, ids)
			if len(demo) != 1 || len(stss) != 1 || len(proqol) != 1 || len(oa) != 1 {
				t.Fatalf("expected one record per instrument, got %d/%d/%d/%d", len(demo), len(stss), len(proqol), len(oa))
			}
			if stss[0].SessionID != "S1" || stss[0].Responses.Data()["1"] != 3 || stss[0].TotalScore != 51 {
				t.Fatalf("stss record not round-tripped: %+v", stss[0])
			}
			if oa[0].Domain1Score != 5 {
				t.Fatalf("stsioa domain lost: %+v", oa[0])
			}
			sessions, _ := st.ListSessionsByCodes(ctx, []string{"C1"})
			if len(sessions) != 1 || !sessions[0].StsioaComplete {
				t.Fatalf("unexpected sessions %+v", sessions)
			}
		})
	}
}

func TestStoreConcurrentSubmitOneWins(t *testing.T) {
	for name, st := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedTeam(t, st)
			if err := st.CreateSession(ctx, &models.AssessmentSession{ID: "S1", AccessCodeID: "C1", Timepoint: models.TimepointBaseline, StartedAt: t0, UpdatedAt: t0}); err != nil {
				t.Fatalf("CreateSession: %v", err)
			}
			var wg sync.WaitGroup
			errs := make([]error, 4)
			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					rec := &models.DemographicsRecord{ID: string(rune('a' + i)), Gender: "M", JobRole: "Other", AreasOfResponsibility: datatypes.JSON(`[]`)}
					_, errs[i] = st.CompleteStep(ctx, "S1", rec, t0)
				}(i)
			}
			wg.Wait()
			ok := 0
			for _, err := range errs {
				if err == nil {
					ok++
				}
			}
			if ok != 1 {
				t.Fatalf("expected exactly one success, got %d (%v)", ok, errs)
			}
			demo, _ := st.ListDemographics(ctx, []string{"S1"})
			if len(demo) != 1 {
				t.Fatalf("expected one stored record, got %d", len(demo))
			}
		})
	}
}

func TestStoreMarkAbandoned(t *testing.T) {
	for name, st := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedTeam(t, st)
			done := t0.Add(time.Hour)
			rows := []*models.AssessmentSession{
				{ID: "OLD", AccessCodeID: "C1", Timepoint: models.TimepointBaseline, StartedAt: t0, UpdatedAt: t0},
				{ID: "DONE", AccessCodeID: "C1", Timepoint: models.TimepointBaseline, StartedAt: t0, UpdatedAt: t0, IsComplete: true, CompletedAt: &done},
				{ID: "NEW", AccessCodeID: "C1", Timepoint: models.TimepointBaseline, StartedAt: t0.AddDate(0, 0, 40), UpdatedAt: t0},
			}
			for _, r := range rows {
				if err := st.CreateSession(ctx, r); err != nil {
					t.Fatalf("CreateSession: %v", err)
				}
			}
			at := t0.AddDate(0, 0, 41)
			n, err := st.MarkAbandoned(ctx, t0.AddDate(0, 0, 11), at)
			if err != nil || n != 1 {
				t.Fatalf("MarkAbandoned = %d, %v", n, err)
			}
			old, _ := st.GetSession(ctx, "OLD")
			if old.AbandonedAt == nil || !old.AbandonedAt.Equal(at) {
				t.Fatalf("expected OLD abandoned, got %+v", old)
			}
			if n, _ := st.MarkAbandoned(ctx, t0.AddDate(0, 0, 11), at); n != 0 {
				t.Fatalf("second run must not touch rows again, got %d", n)
			}
			if _, err := st.CompleteStep(ctx, "OLD", &models.DemographicsRecord{ID: "D"}, at); !errors.Is(err, models.ErrSessionAbandoned) {
				t.Fatalf("expected abandoned session to refuse steps, got %v", err)
			}
		})
	}
}

func TestStoreUsersAndTokens(t *testing.T) {
	for name, st := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u := &models.User{ID: "U1", Email: "admin@example.com", PassHash: "x", Role: models.RoleSuperAdmin, CreatedAt: t0}
			if err := st.AddUser(ctx, u); err != nil {
				t.Fatalf("AddUser: %v", err)
			}
			if err := st.AddUser(ctx, &models.User{ID: "U2", Email: "admin@example.com", PassHash: "y", Role: models.RoleTeamLeader}); !errors.Is(err, services.ErrDuplicate) {
				t.Fatalf("expected duplicate email, got %v", err)
			}
			got, err := st.FindUserByEmail(ctx, "ADMIN@example.com")
			if err != nil || got == nil || got.ID != "U1" {
				t.Fatalf("FindUserByEmail = %+v, %v", got, err)
			}
			if got, _ := st.GetUser(ctx, "U1"); got == nil || got.Role != models.RoleSuperAdmin {
				t.Fatalf("GetUser = %+v", got)
			}

			for _, tok := range []*models.RevokedToken{
				{TokenHash: "old", ExpiresAt: t0, CreatedAt: t0},
				{TokenHash: "live", ExpiresAt: t0.Add(48 * time.Hour), CreatedAt: t0},
			} {
				if err := st.RevokeToken(ctx, tok); err != nil {
					t.Fatalf("RevokeToken: %v", err)
				}
			}
			if err := st.RevokeToken(ctx, &models.RevokedToken{TokenHash: "live", ExpiresAt: t0.Add(48 * time.Hour)}); err != nil {
				t.Fatalf("revoking twice must be harmless, got %v", err)
			}
			if ok, _ := st.IsTokenRevoked(ctx, "live"); !ok {
				t.Fatalf("expected live token revoked")
			}
			n, err := st.PurgeRevokedTokens(ctx, t0.Add(time.Hour))
			if err != nil || n != 1 {
				t.Fatalf("PurgeRevokedTokens = %d, %v", n, err)
			}
			if ok, _ := st.IsTokenRevoked(ctx, "old"); ok {
				t.Fatalf("expired entry should be purged")
			}
		})
	}
}

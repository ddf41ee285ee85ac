package services

import (
	"context"
	"testing"
	"time"

	"github.com/soaringjerry/stsportal/internal/models"
)

type stubCodeStore struct {
	codes map[string]*models.AccessCode
	teams map[string]*models.Team
}

func (s *stubCodeStore) GetAccessCodeByCode(_ context.Context, code string) (*models.AccessCode, error) {
	if ac, ok := s.codes[code]; ok {
		copy := *ac
		return &copy, nil
	}
	return nil, nil
}

func (s *stubCodeStore) GetTeam(_ context.Context, id string) (*models.Team, error) {
	if t, ok := s.teams[id]; ok {
		copy := *t
		return &copy, nil
	}
	return nil, nil
}

func newStubCodeStore() *stubCodeStore {
	return &stubCodeStore{
		codes: map[string]*models.AccessCode{
			"ABC123-BASELINE": {ID: "C1", TeamID: "T1", Code: "ABC123-BASELINE", Timepoint: models.TimepointBaseline, Active: true},
		},
		teams: map[string]*models.Team{"T1": {ID: "T1", CollaborativeID: "COL1", AgencyName: "ABC"}},
	}
}

func TestValidateCode(t *testing.T) {
	svc := NewCodeService(newStubCodeStore())
	v, err := svc.Validate(context.Background(), "  abc123-baseline ")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.AccessCodeID != "C1" || v.TeamID != "T1" || v.CollaborativeID != "COL1" || v.Timepoint != models.TimepointBaseline {
		t.Fatalf("unexpected validation %+v", v)
	}
}

func TestValidateCodeRejections(t *testing.T) {
	store := newStubCodeStore()
	svc := NewCodeService(store)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	if _, err := svc.Validate(context.Background(), "   "); !HasCode(err, ErrorInvalidCode) {
		t.Fatalf("expected invalid code for blank input, got %v", err)
	}
	if _, err := svc.Validate(context.Background(), "NOPE-BASELINE"); !HasCode(err, ErrorInvalidCode) {
		t.Fatalf("expected invalid code for unknown code, got %v", err)
	}

	past := now.Add(-time.Minute)
	store.codes["ABC123-BASELINE"].ExpiresAt = &past
	_, err := svc.Validate(context.Background(), "ABC123-BASELINE")
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorExpiredCode || se.Message != msgExpiredCode {
		t.Fatalf("expected expired code, got %v", err)
	}

	future := now.Add(time.Hour)
	store.codes["ABC123-BASELINE"].ExpiresAt = &future
	if _, err := svc.Validate(context.Background(), "ABC123-BASELINE"); err != nil {
		t.Fatalf("future expiry must validate, got %v", err)
	}

	store.codes["ABC123-BASELINE"].Active = false
	if _, err := svc.Validate(context.Background(), "ABC123-BASELINE"); !HasCode(err, ErrorInvalidCode) {
		t.Fatalf("expected invalid code for deactivated code, got %v", err)
	}
}

package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soaringjerry/stsportal/internal/models"
	"github.com/soaringjerry/stsportal/internal/services"
)

// MemoryStore keeps every table in maps guarded by one lock. It backs
// tests and the "memory" driver; data is lost on restart.
type MemoryStore struct {
	mu             sync.RWMutex
	collaboratives map[string]*models.Collaborative
	teams          map[string]*models.Team
	codes          map[string]*models.AccessCode
	codesByValue   map[string]string
	sessions       map[string]*models.AssessmentSession
	demographics   map[string]*models.DemographicsRecord
	stss           map[string]*models.StssRecord
	proqol         map[string]*models.ProqolRecord
	stsioa         map[string]*models.StsioaRecord
	users          map[string]*models.User
	revoked        map[string]*models.RevokedToken
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collaboratives: map[string]*models.Collaborative{},
		teams:          map[string]*models.Team{},
		codes:          map[string]*models.AccessCode{},
		codesByValue:   map[string]string{},
		sessions:       map[string]*models.AssessmentSession{},
		demographics:   map[string]*models.DemographicsRecord{},
		stss:           map[string]*models.StssRecord{},
		proqol:         map[string]*models.ProqolRecord{},
		stsioa:         map[string]*models.StsioaRecord{},
		users:          map[string]*models.User{},
		revoked:        map[string]*models.RevokedToken{},
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// ---- collaboratives ----

func (s *MemoryStore) CreateCollaborative(_ context.Context, c *models.Collaborative) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collaboratives[c.ID]; ok {
		return services.ErrDuplicate
	}
	cp := *c
	s.collaboratives[c.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateCollaborative(_ context.Context, c *models.Collaborative) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collaboratives[c.ID]; !ok {
		return services.ErrNotFound
	}
	cp := *c
	s.collaboratives[c.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCollaborative(_ context.Context, id string) (*models.Collaborative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collaboratives[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) ListCollaboratives(_ context.Context, status models.CollaborativeStatus) ([]*models.Collaborative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Collaborative{}
	for _, c := range s.collaboratives {
		if status != "" && c.Status != status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ---- teams and codes ----

func (s *MemoryStore) CreateTeam(_ context.Context, t *models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[t.ID]; ok {
		return services.ErrDuplicate
	}
	seen := map[string]bool{}
	for _, ac := range t.Codes {
		key := strings.ToUpper(ac.Code)
		if _, taken := s.codesByValue[key]; taken || seen[key] {
			return services.ErrDuplicate
		}
		seen[key] = true
	}
	cp := *t
	cp.Codes = nil
	s.teams[t.ID] = &cp
	for _, ac := range t.Codes {
		ac.TeamID = t.ID
		s.codes[ac.ID] = &ac
		s.codesByValue[strings.ToUpper(ac.Code)] = ac.ID
	}
	return nil
}

func (s *MemoryStore) UpdateTeam(_ context.Context, t *models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[t.ID]; !ok {
		return services.ErrNotFound
	}
	cp := *t
	cp.Codes = nil
	s.teams[t.ID] = &cp
	return nil
}

// teamWithCodes must be called with the lock held.
func (s *MemoryStore) teamWithCodes(t *models.Team) *models.Team {
	cp := *t
	cp.Codes = []models.AccessCode{}
	for _, ac := range s.codes {
		if ac.TeamID == t.ID {
			cp.Codes = append(cp.Codes, *ac)
		}
	}
	sort.Slice(cp.Codes, func(i, j int) bool {
		return timepointRank(cp.Codes[i].Timepoint) < timepointRank(cp.Codes[j].Timepoint)
	})
	return &cp
}

func timepointRank(tp models.Timepoint) int {
	for i, x := range models.Timepoints {
		if x == tp {
			return i
		}
	}
	return len(models.Timepoints)
}

func (s *MemoryStore) GetTeam(_ context.Context, id string) (*models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.teams[id]; ok {
		return s.teamWithCodes(t), nil
	}
	return nil, nil
}

func (s *MemoryStore) ListTeams(_ context.Context, collaborativeID string) ([]*models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Team{}
	for _, t := range s.teams {
		if t.CollaborativeID == collaborativeID {
			out = append(out, s.teamWithCodes(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) GetAccessCode(_ context.Context, id string) (*models.AccessCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ac, ok := s.codes[id]; ok {
		cp := *ac
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) GetAccessCodeByCode(_ context.Context, code string) (*models.AccessCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codesByValue[strings.ToUpper(code)]
	if !ok {
		return nil, nil
	}
	cp := *s.codes[id]
	return &cp, nil
}

func (s *MemoryStore) UpdateAccessCode(_ context.Context, ac *models.AccessCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.codes[ac.ID]
	if !ok {
		return services.ErrNotFound
	}
	if owner, taken := s.codesByValue[strings.ToUpper(ac.Code)]; taken && owner != ac.ID {
		return services.ErrDuplicate
	}
	delete(s.codesByValue, strings.ToUpper(old.Code))
	cp := *ac
	s.codes[ac.ID] = &cp
	s.codesByValue[strings.ToUpper(ac.Code)] = ac.ID
	return nil
}

// ---- sessions ----

func (s *MemoryStore) CreateSession(_ context.Context, sess *models.AssessmentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return services.ErrDuplicate
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*models.AssessmentSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[id]; ok {
		cp := *sess
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) CompleteStep(_ context.Context, sessionID string, rec models.StepRecord, at time.Time) (*models.AssessmentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, services.ErrNotFound
	}
	step := rec.StepInstrument()
	if err := sess.CheckStep(step); err != nil {
		return nil, err
	}
	rec.BindSession(sessionID, at)
	switch r := rec.(type) {
	case *models.DemographicsRecord:
		cp := *r
		s.demographics[sessionID] = &cp
	case *models.StssRecord:
		cp := *r
		s.stss[sessionID] = &cp
	case *models.ProqolRecord:
		cp := *r
		s.proqol[sessionID] = &cp
	case *models.StsioaRecord:
		cp := *r
		s.stsioa[sessionID] = &cp
	default:
		return nil, models.ErrUnknownInstrument
	}
	sess.MarkStep(step, at)
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) MarkAbandoned(_ context.Context, cutoff, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, sess := range s.sessions {
		if sess.IsComplete || sess.AbandonedAt != nil || !sess.StartedAt.Before(cutoff) {
			continue
		}
		stamp := at
		sess.AbandonedAt = &stamp
		sess.UpdatedAt = at
		n++
	}
	return n, nil
}

func (s *MemoryStore) ListSessionsByCodes(_ context.Context, codeIDs []string) ([]*models.AssessmentSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := map[string]bool{}
	for _, id := range codeIDs {
		want[id] = true
	}
	out := []*models.AssessmentSession{}
	for _, sess := range s.sessions {
		if want[sess.AccessCodeID] {
			cp := *sess
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// ---- instrument records ----

func pick[T any](mu *sync.RWMutex, m map[string]*T, sessionIDs []string) []*T {
	mu.RLock()
	defer mu.RUnlock()
	out := []*T{}
	for _, id := range sessionIDs {
		if r, ok := m[id]; ok {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

func (s *MemoryStore) ListDemographics(_ context.Context, sessionIDs []string) ([]*models.DemographicsRecord, error) {
	return pick(&s.mu, s.demographics, sessionIDs), nil
}

func (s *MemoryStore) ListStss(_ context.Context, sessionIDs []string) ([]*models.StssRecord, error) {
	return pick(&s.mu, s.stss, sessionIDs), nil
}

func (s *MemoryStore) ListProqol(_ context.Context, sessionIDs []string) ([]*models.ProqolRecord, error) {
	return pick(&s.mu, s.proqol, sessionIDs), nil
}

func (s *MemoryStore) ListStsioa(_ context.Context, sessionIDs []string) ([]*models.StsioaRecord, error) {
	return pick(&s.mu, s.stsioa, sessionIDs), nil
}

// ---- users and tokens ----

func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[strings.ToLower(strings.TrimSpace(email))]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) AddUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := s.users[key]; ok {
		return services.ErrDuplicate
	}
	cp := *u
	s.users[key] = &cp
	return nil
}

func (s *MemoryStore) RevokeToken(_ context.Context, t *models.RevokedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.revoked[t.TokenHash] = &cp
	return nil
}

func (s *MemoryStore) IsTokenRevoked(_ context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[hash]
	return ok, nil
}

func (s *MemoryStore) PurgeRevokedTokens(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for h, t := range s.revoked {
		if t.ExpiresAt.Before(before) {
			delete(s.revoked, h)
			n++
		}
	}
	return n, nil
}

var (
	_ services.CodeStore          = (*MemoryStore)(nil)
	_ services.SessionStore       = (*MemoryStore)(nil)
	_ services.CollaborativeStore = (*MemoryStore)(nil)
	_ services.TeamStore          = (*MemoryStore)(nil)
	_ services.AnalyticsStore     = (*MemoryStore)(nil)
	_ services.CompletionStore    = (*MemoryStore)(nil)
	_ services.AuthStore          = (*MemoryStore)(nil)
)

package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/soaringjerry/stsportal/internal/models"
	"github.com/soaringjerry/stsportal/internal/services"
)

// GormStore persists everything through one *gorm.DB (postgres or sqlite).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(gdb *gorm.DB) (*GormStore, error) {
	if gdb == nil {
		return nil, errors.New("nil db")
	}
	return &GormStore{db: gdb}, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// first loads one row into dst and reports whether it existed.
func first(q *gorm.DB, dst any, conds ...any) (bool, error) {
	err := q.First(dst, conds...).Error
	if err != nil {
		return false, notFoundAsNil(err)
	}
	return true, nil
}

// ---- collaboratives ----

func (s *GormStore) CreateCollaborative(ctx context.Context, c *models.Collaborative) error {
	return mapError(s.db.WithContext(ctx).Create(c).Error)
}

func (s *GormStore) UpdateCollaborative(ctx context.Context, c *models.Collaborative) error {
	return mapError(s.db.WithContext(ctx).Save(c).Error)
}

func (s *GormStore) GetCollaborative(ctx context.Context, id string) (*models.Collaborative, error) {
	var c models.Collaborative
	ok, err := first(s.db.WithContext(ctx), &c, "id = ?", id)
	if !ok {
		return nil, err
	}
	return &c, nil
}

func (s *GormStore) ListCollaboratives(ctx context.Context, status models.CollaborativeStatus) ([]*models.Collaborative, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []*models.Collaborative
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ---- teams and codes ----

func (s *GormStore) CreateTeam(ctx context.Context, t *models.Team) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Codes").Create(t).Error; err != nil {
			return mapError(err)
		}
		if len(t.Codes) == 0 {
			return nil
		}
		// Active has no column default, so false is written as given.
		return mapError(tx.Create(&t.Codes).Error)
	})
}

func (s *GormStore) UpdateTeam(ctx context.Context, t *models.Team) error {
	return mapError(s.db.WithContext(ctx).Omit(clause.Associations).Save(t).Error)
}

func (s *GormStore) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	var t models.Team
	ok, err := first(s.db.WithContext(ctx).Preload("Codes", orderCodes), &t, "id = ?", id)
	if !ok {
		return nil, err
	}
	return &t, nil
}

func (s *GormStore) ListTeams(ctx context.Context, collaborativeID string) ([]*models.Team, error) {
	var out []*models.Team
	err := s.db.WithContext(ctx).
		Preload("Codes", orderCodes).
		Where("collaborative_id = ?", collaborativeID).
		Order("created_at").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func orderCodes(db *gorm.DB) *gorm.DB { return db.Order("created_at") }

func (s *GormStore) GetAccessCode(ctx context.Context, id string) (*models.AccessCode, error) {
	var ac models.AccessCode
	ok, err := first(s.db.WithContext(ctx), &ac, "id = ?", id)
	if !ok {
		return nil, err
	}
	return &ac, nil
}

func (s *GormStore) GetAccessCodeByCode(ctx context.Context, code string) (*models.AccessCode, error) {
	var ac models.AccessCode
	ok, err := first(s.db.WithContext(ctx), &ac, "code = ?", strings.ToUpper(code))
	if !ok {
		return nil, err
	}
	return &ac, nil
}

func (s *GormStore) UpdateAccessCode(ctx context.Context, ac *models.AccessCode) error {
	return mapError(s.db.WithContext(ctx).Save(ac).Error)
}

// ---- sessions ----

func (s *GormStore) CreateSession(ctx context.Context, sess *models.AssessmentSession) error {
	return mapError(s.db.WithContext(ctx).Create(sess).Error)
}

func (s *GormStore) GetSession(ctx context.Context, id string) (*models.AssessmentSession, error) {
	var sess models.AssessmentSession
	ok, err := first(s.db.WithContext(ctx), &sess, "id = ?", id)
	if !ok {
		return nil, err
	}
	return &sess, nil
}

// CompleteStep locks the session row, re-checks the step order, inserts
// the record and flips the flag in one transaction. Concurrent submits of
// the same step serialize on the lock; the loser sees the step already
// done (or, on sqlite, hits the unique index).
func (s *GormStore) CompleteStep(ctx context.Context, sessionID string, rec models.StepRecord, at time.Time) (*models.AssessmentSession, error) {
	var out models.AssessmentSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&out, "id = ?", sessionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return services.ErrNotFound
		}
		if err != nil {
			return err
		}
		step := rec.StepInstrument()
		if err := out.CheckStep(step); err != nil {
			return err
		}
		rec.BindSession(sessionID, at)
		if err := tx.Create(rec).Error; err != nil {
			return mapError(err)
		}
		out.MarkStep(step, at)
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GormStore) MarkAbandoned(ctx context.Context, cutoff, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.AssessmentSession{}).
		Where("is_complete = ? AND abandoned_at IS NULL AND started_at < ?", false, cutoff).
		Updates(map[string]any{"abandoned_at": at, "updated_at": at})
	return res.RowsAffected, res.Error
}

func (s *GormStore) ListSessionsByCodes(ctx context.Context, codeIDs []string) ([]*models.AssessmentSession, error) {
	var out []*models.AssessmentSession
	if len(codeIDs) == 0 {
		return out, nil
	}
	err := s.db.WithContext(ctx).Where("team_code_id IN ?", codeIDs).Order("started_at").Find(&out).Error
	return out, err
}

// ---- instrument records ----

func listBySession[T any](ctx context.Context, db *gorm.DB, sessionIDs []string) ([]*T, error) {
	var out []*T
	if len(sessionIDs) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).Where("assessment_response_id IN ?", sessionIDs).Find(&out).Error
	return out, err
}

func (s *GormStore) ListDemographics(ctx context.Context, sessionIDs []string) ([]*models.DemographicsRecord, error) {
	return listBySession[models.DemographicsRecord](ctx, s.db, sessionIDs)
}

func (s *GormStore) ListStss(ctx context.Context, sessionIDs []string) ([]*models.StssRecord, error) {
	return listBySession[models.StssRecord](ctx, s.db, sessionIDs)
}

func (s *GormStore) ListProqol(ctx context.Context, sessionIDs []string) ([]*models.ProqolRecord, error) {
	return listBySession[models.ProqolRecord](ctx, s.db, sessionIDs)
}

func (s *GormStore) ListStsioa(ctx context.Context, sessionIDs []string) ([]*models.StsioaRecord, error) {
	return listBySession[models.StsioaRecord](ctx, s.db, sessionIDs)
}

// ---- users and tokens ----

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	ok, err := first(s.db.WithContext(ctx), &u, "LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)))
	if !ok {
		return nil, err
	}
	return &u, nil
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	ok, err := first(s.db.WithContext(ctx), &u, "id = ?", id)
	if !ok {
		return nil, err
	}
	return &u, nil
}

func (s *GormStore) AddUser(ctx context.Context, u *models.User) error {
	return mapError(s.db.WithContext(ctx).Create(u).Error)
}

func (s *GormStore) RevokeToken(ctx context.Context, t *models.RevokedToken) error {
	return mapError(s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(t).Error)
}

func (s *GormStore) IsTokenRevoked(ctx context.Context, hash string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.RevokedToken{}).Where("token_hash = ?", hash).Count(&n).Error
	return n > 0, err
}

func (s *GormStore) PurgeRevokedTokens(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&models.RevokedToken{})
	return res.RowsAffected, res.Error
}

var (
	_ services.CodeStore          = (*GormStore)(nil)
	_ services.SessionStore       = (*GormStore)(nil)
	_ services.CollaborativeStore = (*GormStore)(nil)
	_ services.TeamStore          = (*GormStore)(nil)
	_ services.AnalyticsStore     = (*GormStore)(nil)
	_ services.CompletionStore    = (*GormStore)(nil)
	_ services.AuthStore          = (*GormStore)(nil)
)

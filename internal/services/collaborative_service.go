package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soaringjerry/stsportal/internal/models"
)

type CollaborativeStore interface {
	CreateCollaborative(ctx context.Context, c *models.Collaborative) error
	UpdateCollaborative(ctx context.Context, c *models.Collaborative) error
	// GetCollaborative returns nil, nil when absent.
	GetCollaborative(ctx context.Context, id string) (*models.Collaborative, error)
	// ListCollaboratives returns newest first; an empty status lists all.
	ListCollaboratives(ctx context.Context, status models.CollaborativeStatus) ([]*models.Collaborative, error)
}

type DateWindow struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// CollaborativeInput is used for create and partial update. Nil fields keep
// the stored value; a window present in Windows replaces both of its dates.
type CollaborativeInput struct {
	Name        *string                         `json:"name,omitempty"`
	Description *string                         `json:"description,omitempty"`
	StartDate   *time.Time                      `json:"start_date,omitempty"`
	EndDate     *time.Time                      `json:"end_date,omitempty"`
	Windows     map[models.Timepoint]DateWindow `json:"windows,omitempty"`
	Status      *models.CollaborativeStatus     `json:"status,omitempty"`
}

type CollaborativeService struct {
	store CollaborativeStore
	now   func() time.Time
	idGen func() string
}

func NewCollaborativeService(store CollaborativeStore) *CollaborativeService {
	return &CollaborativeService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: uuid.NewString,
	}
}

func (s *CollaborativeService) Create(ctx context.Context, actor string, in CollaborativeInput) (*models.Collaborative, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, NewInvalidError("collaborative name is required")
	}
	if in.StartDate == nil || in.EndDate == nil {
		return nil, NewInvalidError("start and end dates are required")
	}
	now := s.now()
	c := &models.Collaborative{
		ID:        s.idGen(),
		Status:    models.CollaborativeActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyCollaborative(c, in); err != nil {
		return nil, err
	}
	if err := s.store.CreateCollaborative(ctx, c); err != nil {
		return nil, NewPersistenceError("could not create collaborative", err)
	}
	audit(ctx, actor, "collaborative.create", c.ID, c.Name)
	return c, nil
}

func (s *CollaborativeService) Update(ctx context.Context, actor, id string, in CollaborativeInput) (*models.Collaborative, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, NewInvalidError("collaborative name is required")
	}
	if err := applyCollaborative(c, in); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now()
	if err := s.store.UpdateCollaborative(ctx, c); err != nil {
		return nil, NewPersistenceError("could not update collaborative", err)
	}
	audit(ctx, actor, "collaborative.update", c.ID, c.Name)
	return c, nil
}

func (s *CollaborativeService) Get(ctx context.Context, id string) (*models.Collaborative, error) {
	c, err := s.store.GetCollaborative(ctx, id)
	if err != nil {
		return nil, NewPersistenceError("could not load collaborative", err)
	}
	if c == nil {
		return nil, NewNotFoundError("collaborative not found")
	}
	return c, nil
}

// List filters by status; "" and "all" mean no filter.
func (s *CollaborativeService) List(ctx context.Context, status string) ([]*models.Collaborative, error) {
	st := models.CollaborativeStatus(strings.ToLower(strings.TrimSpace(status)))
	if st == "all" {
		st = ""
	}
	if st != "" && !st.Valid() {
		return nil, NewInvalidError("unknown status filter")
	}
	list, err := s.store.ListCollaboratives(ctx, st)
	if err != nil {
		return nil, NewPersistenceError("could not list collaboratives", err)
	}
	return list, nil
}

func applyCollaborative(c *models.Collaborative, in CollaborativeInput) error {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		c.Description = strings.TrimSpace(*in.Description)
	}
	if in.StartDate != nil {
		c.StartDate = in.StartDate.UTC()
	}
	if in.EndDate != nil {
		c.EndDate = in.EndDate.UTC()
	}
	if !c.EndDate.After(c.StartDate) {
		return NewInvalidError("end date must be after start date")
	}
	for tp, w := range in.Windows {
		if !tp.Valid() {
			return NewInvalidError("unknown timepoint " + string(tp))
		}
		if w.Start != nil && w.End != nil && !w.End.After(*w.Start) {
			return NewInvalidError(string(tp) + " end date must be after start date")
		}
		c.SetWindow(tp, w.Start, w.End)
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return NewInvalidError("unknown status")
		}
		c.Status = *in.Status
	}
	return nil
}

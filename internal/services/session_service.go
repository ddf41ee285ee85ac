package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/soaringjerry/stsportal/internal/models"
	"github.com/soaringjerry/stsportal/internal/utils"
)

var msgSaveFailed = utils.T(utils.MsgSaveFailed)

type SessionStore interface {
	CreateSession(ctx context.Context, s *models.AssessmentSession) error
	// GetSession returns nil, nil when the session does not exist.
	GetSession(ctx context.Context, id string) (*models.AssessmentSession, error)
	// CompleteStep stores rec and flips the matching flag atomically. It
	// re-checks the step order against the locked row and returns the
	// models step errors or ErrNotFound when the precondition fails.
	CompleteStep(ctx context.Context, sessionID string, rec models.StepRecord, at time.Time) (*models.AssessmentSession, error)
	// MarkAbandoned stamps incomplete sessions started before cutoff.
	MarkAbandoned(ctx context.Context, cutoff, at time.Time) (int64, error)
}

// SessionProgress is everything a client needs to render the next step.
type SessionProgress struct {
	Session  *models.AssessmentSession `json:"session"`
	State    models.SessionState       `json:"state"`
	NextStep models.Instrument         `json:"next_step,omitempty"`
	Complete bool                      `json:"complete"`
}

func progressOf(s *models.AssessmentSession) *SessionProgress {
	next, _ := s.NextStep()
	return &SessionProgress{Session: s, State: s.State(), NextStep: next, Complete: s.IsComplete}
}

type SessionService struct {
	codes  *CodeService
	store  SessionStore
	events EventPublisher
	now    func() time.Time
	idGen  func() string
}

func NewSessionService(codes *CodeService, store SessionStore, events EventPublisher) *SessionService {
	if events == nil {
		events = NopPublisher{}
	}
	return &SessionService{
		codes:  codes,
		store:  store,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
		idGen:  uuid.NewString,
	}
}

// Start validates the access code and opens a new anonymous session.
func (s *SessionService) Start(ctx context.Context, rawCode string) (*SessionProgress, error) {
	v, err := s.codes.Validate(ctx, rawCode)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := &models.AssessmentSession{
		ID:           s.idGen(),
		AccessCodeID: v.AccessCodeID,
		Timepoint:    v.Timepoint,
		StartedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, NewPersistenceError("could not start the assessment", err)
	}
	return progressOf(sess), nil
}

// Progress reports where a session stands so a client can resume it.
func (s *SessionService) Progress(ctx context.Context, id string) (*SessionProgress, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.AbandonedAt != nil {
		return nil, stepError(models.ErrSessionAbandoned)
	}
	return progressOf(sess), nil
}

func (s *SessionService) SubmitDemographics(ctx context.Context, id string, in DemographicsInput) (*SessionProgress, error) {
	return s.submit(ctx, id, models.InstrumentDemographics, func() (models.StepRecord, error) {
		rec, err := BuildDemographics(in)
		if err != nil {
			return nil, err
		}
		rec.ID = s.idGen()
		return rec, nil
	})
}

func (s *SessionService) SubmitStss(ctx context.Context, id string, r models.ItemResponses) (*SessionProgress, error) {
	return s.submit(ctx, id, models.InstrumentStss, func() (models.StepRecord, error) {
		sc, err := ScoreStss(r)
		if err != nil {
			return nil, err
		}
		return &models.StssRecord{
			ID:             s.idGen(),
			Responses:      datatypes.NewJSONType(r),
			IntrusionScore: sc.Intrusion,
			AvoidanceScore: sc.Avoidance,
			ArousalScore:   sc.Arousal,
			TotalScore:     sc.Total,
		}, nil
	})
}

func (s *SessionService) SubmitProqol(ctx context.Context, id string, r models.ItemResponses) (*SessionProgress, error) {
	return s.submit(ctx, id, models.InstrumentProqol, func() (models.StepRecord, error) {
		sc, err := ScoreProqol(r)
		if err != nil {
			return nil, err
		}
		return &models.ProqolRecord{
			ID:                          s.idGen(),
			Responses:                   datatypes.NewJSONType(r),
			CompassionSatisfactionScore: sc.CompassionSatisfaction,
			BurnoutScore:                sc.Burnout,
			SecondaryTraumaScore:        sc.SecondaryTrauma,
		}, nil
	})
}

func (s *SessionService) SubmitStsioa(ctx context.Context, id string, r models.ItemResponses) (*SessionProgress, error) {
	return s.submit(ctx, id, models.InstrumentStsioa, func() (models.StepRecord, error) {
		sc, err := ScoreStsioa(r)
		if err != nil {
			return nil, err
		}
		rec := &models.StsioaRecord{
			ID:                 s.idGen(),
			Responses:          datatypes.NewJSONType(r),
			TotalScore:         sc.Total,
			NotApplicableCount: sc.NotApplicable,
		}
		rec.SetDomainScores(sc.Domains)
		return rec, nil
	})
}

// ReapAbandoned marks incomplete sessions started more than ttl ago as abandoned.
func (s *SessionService) ReapAbandoned(ctx context.Context, ttl time.Duration) (int64, error) {
	now := s.now()
	n, err := s.store.MarkAbandoned(ctx, now.Add(-ttl), now)
	if err != nil {
		return 0, NewPersistenceError("could not mark abandoned sessions", err)
	}
	return n, nil
}

func (s *SessionService) load(ctx context.Context, id string) (*models.AssessmentSession, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, NewPersistenceError("could not load the assessment", err)
	}
	if sess == nil {
		return nil, NewNotFoundError("assessment session not found")
	}
	return sess, nil
}

func (s *SessionService) submit(ctx context.Context, id string, step models.Instrument, build func() (models.StepRecord, error)) (*SessionProgress, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sess.CheckStep(step); err != nil {
		return nil, stepError(err)
	}
	rec, err := build()
	if err != nil {
		return nil, err
	}
	updated, err := s.store.CompleteStep(ctx, id, rec, s.now())
	if err != nil {
		return nil, stepError(err)
	}
	s.publish(ctx, updated, step)
	return progressOf(updated), nil
}

func (s *SessionService) publish(ctx context.Context, sess *models.AssessmentSession, step models.Instrument) {
	ev := Event{
		Type:         EventStepCompleted,
		SessionID:    sess.ID,
		AccessCodeID: sess.AccessCodeID,
		Timepoint:    sess.Timepoint,
		Step:         step,
		OccurredAt:   sess.UpdatedAt,
	}
	evs := []Event{ev}
	if sess.IsComplete {
		ev.Type = EventSessionCompleted
		evs = append(evs, ev)
	}
	for _, e := range evs {
		if err := s.events.Publish(ctx, e); err != nil {
			slog.Warn("publish session event", "type", e.Type, "session_id", e.SessionID, "err", err)
		}
	}
}

func stepError(err error) error {
	switch {
	case errors.Is(err, models.ErrStepAlreadySubmitted), errors.Is(err, ErrDuplicate):
		return NewConflictError("this questionnaire has already been submitted")
	case errors.Is(err, models.ErrStepOutOfOrder):
		return NewConflictError("questionnaires must be completed in order")
	case errors.Is(err, models.ErrSessionAbandoned):
		return NewConflictError("this assessment has expired; please start again with your team code")
	case errors.Is(err, models.ErrUnknownInstrument):
		return NewNotFoundError("unknown questionnaire")
	case errors.Is(err, ErrNotFound):
		return NewNotFoundError("assessment session not found")
	}
	return NewPersistenceError(msgSaveFailed, err)
}

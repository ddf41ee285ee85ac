package services

import (
	"context"
	"time"

	"github.com/soaringjerry/stsportal/internal/models"
)

const (
	EventStepCompleted    = "session.step_completed"
	EventSessionCompleted = "session.completed"
)

// Event is a session lifecycle notification. It carries no answers.
type Event struct {
	Type         string            `json:"type"`
	SessionID    string            `json:"session_id"`
	AccessCodeID string            `json:"team_code_id"`
	Timepoint    models.Timepoint  `json:"timepoint"`
	Step         models.Instrument `json:"step"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher drops events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

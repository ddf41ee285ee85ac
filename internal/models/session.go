package models

import (
	"errors"
	"time"
)

// Instrument identifies one questionnaire step of a session.
type Instrument string

const (
	InstrumentDemographics Instrument = "demographics"
	InstrumentStss         Instrument = "stss"
	InstrumentProqol       Instrument = "proqol"
	InstrumentStsioa       Instrument = "stsioa"
)

// InstrumentOrder is the only order in which steps may be submitted.
var InstrumentOrder = []Instrument{InstrumentDemographics, InstrumentStss, InstrumentProqol, InstrumentStsioa}

// SessionState names the last completed step.
type SessionState string

const (
	StateCreated          SessionState = "created"
	StateDemographicsDone SessionState = "demographics_done"
	StateStssDone         SessionState = "stss_done"
	StateProqolDone       SessionState = "proqol_done"
	StateComplete         SessionState = "stsioa_done"
)

var (
	ErrStepOutOfOrder       = errors.New("step submitted out of order")
	ErrStepAlreadySubmitted = errors.New("step already submitted")
	ErrSessionAbandoned     = errors.New("session abandoned")
	ErrUnknownInstrument    = errors.New("unknown instrument")
)

func (s *AssessmentSession) done(step Instrument) bool {
	switch step {
	case InstrumentDemographics:
		return s.DemographicsComplete
	case InstrumentStss:
		return s.StssComplete
	case InstrumentProqol:
		return s.ProqolComplete
	case InstrumentStsioa:
		return s.StsioaComplete
	}
	return false
}

// State derives the lifecycle state from the completion flags.
func (s *AssessmentSession) State() SessionState {
	switch {
	case s.StsioaComplete:
		return StateComplete
	case s.ProqolComplete:
		return StateProqolDone
	case s.StssComplete:
		return StateStssDone
	case s.DemographicsComplete:
		return StateDemographicsDone
	}
	return StateCreated
}

// NextStep reports the instrument expected next; ok is false once complete.
func (s *AssessmentSession) NextStep() (Instrument, bool) {
	for _, step := range InstrumentOrder {
		if !s.done(step) {
			return step, true
		}
	}
	return "", false
}

// CheckStep returns nil when step may be submitted now.
func (s *AssessmentSession) CheckStep(step Instrument) error {
	known := false
	for _, it := range InstrumentOrder {
		if it == step {
			known = true
		}
	}
	if !known {
		return ErrUnknownInstrument
	}
	if s.AbandonedAt != nil {
		return ErrSessionAbandoned
	}
	if s.done(step) {
		return ErrStepAlreadySubmitted
	}
	if next, ok := s.NextStep(); !ok || next != step {
		return ErrStepOutOfOrder
	}
	return nil
}

// MarkStep flips the flag for step. Completing the last step also marks the
// whole session complete.
func (s *AssessmentSession) MarkStep(step Instrument, at time.Time) {
	switch step {
	case InstrumentDemographics:
		s.DemographicsComplete = true
	case InstrumentStss:
		s.StssComplete = true
	case InstrumentProqol:
		s.ProqolComplete = true
	case InstrumentStsioa:
		s.StsioaComplete = true
		s.IsComplete = true
		done := at
		s.CompletedAt = &done
	}
	s.UpdatedAt = at
}

package services

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorCode string

const (
	ErrorInvalid          ErrorCode = "invalid"
	ErrorForbidden        ErrorCode = "forbidden"
	ErrorNotFound         ErrorCode = "not_found"
	ErrorConflict         ErrorCode = "conflict"
	ErrorUnauthorized     ErrorCode = "unauthorized"
	ErrorUnavailable      ErrorCode = "unavailable"
	ErrorInvalidCode      ErrorCode = "invalid_code"
	ErrorExpiredCode      ErrorCode = "expired_code"
	ErrorIncomplete       ErrorCode = "incomplete_response"
	ErrorPersistence      ErrorCode = "persistence"
	ErrorAggregationInput ErrorCode = "aggregation_input"
)

// ServiceError carries a stable code for the transport layer plus a message
// safe to show to the caller. Missing lists unanswered fields or items.
type ServiceError struct {
	Code    ErrorCode
	Message string
	Missing []string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.Err }

func NewInvalidError(msg string) error {
	return &ServiceError{Code: ErrorInvalid, Message: msg}
}

func NewForbiddenError(msg string) error {
	return &ServiceError{Code: ErrorForbidden, Message: msg}
}

func NewNotFoundError(msg string) error {
	return &ServiceError{Code: ErrorNotFound, Message: msg}
}

func NewConflictError(msg string) error {
	return &ServiceError{Code: ErrorConflict, Message: msg}
}

func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewUnavailableError(msg string) error {
	return &ServiceError{Code: ErrorUnavailable, Message: msg}
}

// NewInvalidCodeError covers unknown, empty and deactivated access codes.
func NewInvalidCodeError(msg string) error {
	return &ServiceError{Code: ErrorInvalidCode, Message: msg}
}

func NewExpiredCodeError(msg string) error {
	return &ServiceError{Code: ErrorExpiredCode, Message: msg}
}

func NewIncompleteResponseError(what string, missing []string) error {
	return &ServiceError{
		Code:    ErrorIncomplete,
		Message: fmt.Sprintf("%s is incomplete: missing %s", what, strings.Join(missing, ", ")),
		Missing: missing,
	}
}

// NewPersistenceError wraps a storage failure. The caller may retry the same
// submission.
func NewPersistenceError(msg string, err error) error {
	return &ServiceError{Code: ErrorPersistence, Message: msg, Err: err}
}

func NewAggregationInputError(msg string, err error) error {
	return &ServiceError{Code: ErrorAggregationInput, Message: msg, Err: err}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// HasCode reports whether err is a ServiceError with the given code.
func HasCode(err error, code ErrorCode) bool {
	se, ok := AsServiceError(err)
	return ok && se.Code == code
}

// Store sentinels. Stores return these so services can map them without
// knowing the backend.
var (
	ErrDuplicate = errors.New("duplicate key")
	ErrNotFound  = errors.New("record not found")
)

package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel categories. Every error produced by the lending engine matches
// exactly one of these through errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrState       = errors.New("invalid state")
	ErrNotFound    = errors.New("resource not found")
	ErrPersistence = errors.New("persistence failure")
)

// Specific state conflicts
var (
	ErrScheduleExists   = fmt.Errorf("%w: payment schedule already exists for loan", ErrState)
	ErrEntryAlreadyPaid = fmt.Errorf("%w: schedule entry is already paid", ErrState)
	ErrLoanNotActive    = fmt.Errorf("%w: loan is not disbursed", ErrState)
	ErrStaleState       = fmt.Errorf("%w: record was modified concurrently", ErrState)
)

// ValidationError describes rejected input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// StateError describes a rejected status transition
type StateError struct {
	Entity string
	From   string
	Event  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s cannot %s from status %q", e.Entity, e.Event, e.From)
}

func (e *StateError) Is(target error) bool {
	return target == ErrState
}

func NewStateError(entity, from, event string) error {
	return &StateError{Entity: entity, From: from, Event: event}
}

// NotFoundError names the missing record
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s #%d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NewNotFoundError(entity string, id uint) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// PersistenceError wraps a storage failure. Callers may retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

func WrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	// Domain errors raised inside a transaction keep their category.
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrState) || errors.Is(err, ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

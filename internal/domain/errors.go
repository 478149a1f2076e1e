package domain

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates a referenced movie, category, rating or user is absent.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the caller may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidScore indicates a rating score outside [MinScore, MaxScore].
	ErrInvalidScore = errors.New("score must be an integer between 1 and 5")
	// ErrDuplicateUsername indicates the username is already taken.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrWeakPassword indicates the password is shorter than MinPasswordLength.
	ErrWeakPassword = errors.New("password must be at least 6 characters")
	// ErrInvalidCredentials is returned for any failed login.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrPersistence is the generic store failure visible to callers.
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError lists missing or malformed input fields.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "missing required fields"
	}
	if len(e.Fields) == 0 {
		return msg
	}
	return msg + ": " + strings.Join(e.Fields, ", ")
}

// NewValidationError is shorthand for a ValidationError with a message.
func NewValidationError(message string, fields ...string) *ValidationError {
	return &ValidationError{Fields: fields, Message: message}
}

// PersistenceError carries the underlying store error for logging while
// presenting only ErrPersistence to callers.
type PersistenceError struct {
	Op  string
	Err error
}

// Persistence wraps a raw store error raised during op.
func Persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return ErrPersistence.Error()
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

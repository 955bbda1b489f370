package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidOptions = errors.New("invalid options")
	ErrEmptyImage     = errors.New("source image is empty")

	// Stage failure kinds. Every remote client reports its failures as a
	// *StageError carrying exactly one of these.
	ErrConfiguration = errors.New("configuration error")
	ErrSynthesis     = errors.New("synthesis error")
	ErrPersistence   = errors.New("persistence error")
	ErrTimeout       = errors.New("timeout error")
)

// ErrorKind names the failure category shown to the operator and the UI.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindSynthesis     ErrorKind = "synthesis"
	KindPersistence   ErrorKind = "persistence"
	KindTimeout       ErrorKind = "timeout"
	KindUnknown       ErrorKind = "unknown"
)

// StageError wraps a failure from a remote stage with its kind and the
// operation that produced it.
type StageError struct {
	Kind error
	Op   string
	Err  error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is matches the failure kind so callers can use errors.Is(err, ErrTimeout).
func (e *StageError) Is(target error) bool {
	return e.Kind == target
}

func ConfigurationError(op string, err error) error {
	return &StageError{Kind: ErrConfiguration, Op: op, Err: err}
}

func SynthesisError(op string, err error) error {
	return &StageError{Kind: ErrSynthesis, Op: op, Err: err}
}

func PersistenceError(op string, err error) error {
	return &StageError{Kind: ErrPersistence, Op: op, Err: err}
}

func TimeoutError(op string, err error) error {
	return &StageError{Kind: ErrTimeout, Op: op, Err: err}
}

// KindOf classifies err into one of the stage failure kinds.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrSynthesis):
		return KindSynthesis
	default:
		return KindUnknown
	}
}

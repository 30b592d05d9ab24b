package mutator

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSpecification is the single error kind raised when a spec cannot
// be parsed or one of its stages cannot be resolved. It is a programmer
// error: the spec itself is wrong, not the value being mutated.
var ErrInvalidSpecification = errors.New("invalid mutator specification")

// Reasons a stage fails to resolve. Every *SpecError matches
// ErrInvalidSpecification and exactly one of these.
var (
	ErrMalformedStage  = errors.New("malformed stage")
	ErrUnknownTarget   = errors.New("unknown function, macro or method")
	ErrUnknownClass    = errors.New("unknown class")
	ErrUnknownMethod   = errors.New("unknown class method")
	ErrNotInstantiable = errors.New("class cannot be instantiated without arguments")
	ErrNotPublic       = errors.New("method is not public")
)

// SpecError provides context about a stage that could not be parsed or
// resolved: which stage it was, what text it came from and when the
// failure happened.
type SpecError struct {
	Timestamp time.Time
	Err       error
	Mutator   Name
	Stage     string
	Target    string
	Index     int
}

// Error implements the error interface.
func (e *SpecError) Error() string {
	location := fmt.Sprintf("stage %d %q", e.Index+1, e.Stage)
	if e.Mutator != "" {
		location = e.Mutator + ": " + location
	}
	if e.Target != "" && e.Target != e.Stage {
		return fmt.Sprintf("%s: %v: %s: %v", location, ErrInvalidSpecification, e.Target, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", location, ErrInvalidSpecification, e.Err)
}

// Unwrap returns the underlying reason.
func (e *SpecError) Unwrap() error {
	return e.Err
}

// Is reports ErrInvalidSpecification as matching so callers can test for
// the error kind without knowing the specific reason.
func (e *SpecError) Is(target error) bool {
	return target == ErrInvalidSpecification
}

// IsInvalidSpecification reports whether err was caused by a bad spec.
func IsInvalidSpecification(err error) bool {
	return errors.Is(err, ErrInvalidSpecification)
}

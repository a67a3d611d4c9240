package arm

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEligibleQuestions is returned when selection is asked to pick from
	// an empty candidate set.
	ErrNoEligibleQuestions = errors.New("no eligible questions")

	// ErrArmNotFound is returned by direct lookups of an arm that does not exist.
	ErrArmNotFound = errors.New("arm not found")
)

// ErrInvalidOutcome indicates a structurally invalid answer observation.
// It is returned before any state is touched.
type ErrInvalidOutcome struct {
	Field  string
	Reason string
}

func (e *ErrInvalidOutcome) Error() string {
	return fmt.Sprintf("invalid outcome: %s %s", e.Field, e.Reason)
}

// ErrStoreUnavailable indicates the persistent store failed to complete an
// operation. Nothing retries it.
type ErrStoreUnavailable struct {
	Op  string
	Err error
}

func (e *ErrStoreUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store unavailable (%s): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store unavailable (%s)", e.Op)
}

func (e *ErrStoreUnavailable) Unwrap() error { return e.Err }

// IsStoreUnavailable reports whether err wraps an ErrStoreUnavailable.
func IsStoreUnavailable(err error) bool {
	var su *ErrStoreUnavailable
	return errors.As(err, &su)
}

package cell

import (
	"errors"
	"fmt"
)

// ErrPoisoned matches every error returned by a poisoned cell.
var ErrPoisoned = errors.New("cell: lock poisoned")

// PoisonedError reports that a previous exclusive holder of the cell's lock
// panicked before releasing it.
type PoisonedError struct {
	// Cell is the name the cell was created with.
	Cell string

	// Cause is the value recovered from the panic.
	Cause any
}

func (e *PoisonedError) Error() string {
	return fmt.Sprintf("cell %s: lock poisoned by panic: %v", e.Cell, e.Cause)
}

// Is lets errors.Is(err, ErrPoisoned) match.
func (e *PoisonedError) Is(target error) bool {
	return target == ErrPoisoned
}

// IsPoisoned returns true if err is, or wraps, a poisoned-lock error.
func IsPoisoned(err error) bool {
	return errors.Is(err, ErrPoisoned)
}

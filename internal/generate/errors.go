package generate

import (
	"errors"
	"fmt"
)

// GenerationErrorKind classifies generation failures.
type GenerationErrorKind int

const (
	RuntimeFault GenerationErrorKind = iota + 1
)

func (k GenerationErrorKind) String() string {
	if k == RuntimeFault {
		return "runtime fault"
	}
	return "unknown"
}

// GenerationError ends a stream that failed after it started.
type GenerationError struct {
	Kind GenerationErrorKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation: %s: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsGenerationError reports whether err is a GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

package command

import (
	"errors"
	"fmt"

	"github.com/dshills/dbgbridge/internal/integration/debug/dialect"
)

// ErrUnsupported is returned when the dialect cannot render an operation.
var ErrUnsupported = errors.New("operation not supported by dialect")

// UnsupportedError describes which operation a dialect cannot render.
type UnsupportedError struct {
	Backend    dialect.Backend
	Op         string
	Capability dialect.Capability
}

// Error implements the error interface.
func (e *UnsupportedError) Error() string {
	if e.Capability != "" {
		return fmt.Sprintf("%s: %s needs capability %q: %v", e.Backend, e.Op, e.Capability, ErrUnsupported)
	}
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Op, ErrUnsupported)
}

// Unwrap returns ErrUnsupported.
func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}

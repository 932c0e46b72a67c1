package debug

import (
	"errors"
	"fmt"
)

// Session errors.
var (
	// ErrProtocolBusy is returned when a request is issued while another
	// one is still waiting for its response.
	ErrProtocolBusy = errors.New("debugger busy: request already pending")

	// ErrDisconnected is returned once the backend transport is gone.
	ErrDisconnected = errors.New("debugger disconnected")
)

// BreakpointNumberMismatchError reports that the backend assigned a
// different number than the session predicted for a new breakpoint.
// Follow-up commands keyed to the predicted number hit the wrong
// breakpoint.
type BreakpointNumberMismatchError struct {
	Position  string
	Predicted int
	Actual    int
}

// Error implements the error interface.
func (e *BreakpointNumberMismatchError) Error() string {
	return fmt.Sprintf("breakpoint at %s: predicted number %d, backend assigned %d",
		e.Position, e.Predicted, e.Actual)
}

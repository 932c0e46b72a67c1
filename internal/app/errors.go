// Package app wires configuration, the debugger process and a debug
// session into a line-oriented console.
package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrQuit signals that the application should exit normally.
	ErrQuit = errors.New("quit requested")

	// ErrAlreadyRunning indicates the application is already running.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrNotRunning indicates no debugger session is active.
	ErrNotRunning = errors.New("debugger not running")

	// ErrUnknownCommand indicates a console command that does not exist.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrUsage indicates a console command with bad arguments.
	ErrUsage = errors.New("usage")

	// ErrRequestTimeout indicates the debugger did not answer in time.
	ErrRequestTimeout = errors.New("request timed out")
)

// ComponentError represents an error from a specific component.
type ComponentError struct {
	Component string // Component name (e.g., "config", "process", "session")
	Action    string // Action being performed
	Err       error  // Underlying error
}

// NewComponentError creates a new ComponentError.
func NewComponentError(component, action string, err error) *ComponentError {
	return &ComponentError{
		Component: component,
		Action:    action,
		Err:       err,
	}
}

func (e *ComponentError) Error() string {
	if e == nil {
		return ""
	}

	if e.Action != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Component, e.Action, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Component, e.Action)
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Component, e.Err)
	}

	return e.Component
}

func (e *ComponentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UsageError reports how a console command should be invoked.
type UsageError struct {
	Command string
	Usage   string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("usage: :%s %s", e.Command, e.Usage)
}

// Unwrap makes errors.Is(err, ErrUsage) hold.
func (e *UsageError) Unwrap() error {
	return ErrUsage
}

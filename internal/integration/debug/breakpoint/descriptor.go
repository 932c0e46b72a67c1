// Package breakpoint describes breakpoints independently of any debugger
// dialect and parses the dialect-specific listings debuggers print for them.
package breakpoint

import (
	"errors"
	"fmt"
	"strings"
)

// Kind represents the kind of breakpoint.
type Kind int

const (
	// KindBreakpoint stops execution at a location.
	KindBreakpoint Kind = iota
	// KindWatchpoint stops execution when an expression is read or written.
	KindWatchpoint
	// KindTracepoint collects data without stopping.
	KindTracepoint
	// KindActionpoint runs actions at a location.
	KindActionpoint
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindBreakpoint:
		return "breakpoint"
	case KindWatchpoint:
		return "watchpoint"
	case KindTracepoint:
		return "tracepoint"
	case KindActionpoint:
		return "actionpoint"
	default:
		return "unknown"
	}
}

// Disposition tells the debugger what to do with a breakpoint once hit.
type Disposition int

const (
	// DispositionKeep keeps the breakpoint.
	DispositionKeep Disposition = iota
	// DispositionDisable disables the breakpoint after the hit.
	DispositionDisable
	// DispositionDelete deletes the breakpoint after the hit (temporary breakpoint).
	DispositionDelete
)

// String returns a string representation of the disposition.
func (d Disposition) String() string {
	switch d {
	case DispositionKeep:
		return "keep"
	case DispositionDisable:
		return "dis"
	case DispositionDelete:
		return "del"
	default:
		return "unknown"
	}
}

// ParseDisposition parses the "Disp" column of a breakpoint listing.
func ParseDisposition(s string) Disposition {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dis", "disable":
		return DispositionDisable
	case "del", "delete":
		return DispositionDelete
	default:
		return DispositionKeep
	}
}

// WatchMode is a bit set describing when a watchpoint triggers.
type WatchMode uint8

const (
	// WatchRead triggers when the expression is read.
	WatchRead WatchMode = 1 << iota
	// WatchChange triggers when the expression is written.
	WatchChange
	// WatchAccess triggers on any access.
	WatchAccess
)

// WatchNone is the empty watch mode.
const WatchNone WatchMode = 0

// Has reports whether all bits of other are set in m.
func (m WatchMode) Has(other WatchMode) bool {
	return m&other == other
}

// SubsetOf reports whether m only contains bits that are set in other.
func (m WatchMode) SubsetOf(other WatchMode) bool {
	return m&other == m
}

// String returns a compact representation such as "read|change".
func (m WatchMode) String() string {
	if m == WatchNone {
		return "none"
	}
	var parts []string
	if m.Has(WatchRead) {
		parts = append(parts, "read")
	}
	if m.Has(WatchChange) {
		parts = append(parts, "change")
	}
	if m.Has(WatchAccess) {
		parts = append(parts, "access")
	}
	return strings.Join(parts, "|")
}

// ParseWatchMode parses a mode given as letters ("r", "w", "a", "rw")
// or words ("read", "write", "change", "access").
func ParseWatchMode(s string) (WatchMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "w", "write", "change":
		return WatchChange, nil
	case "r", "read":
		return WatchRead, nil
	case "a", "access":
		return WatchAccess, nil
	}

	var m WatchMode
	for _, c := range s {
		switch c {
		case 'r':
			m |= WatchRead
		case 'w', 'c':
			m |= WatchChange
		case 'a':
			m |= WatchAccess
		default:
			return WatchNone, fmt.Errorf("invalid watch mode %q", s)
		}
	}
	return m, nil
}

// Validation errors for descriptors.
var (
	// ErrNegativeIgnoreCount is returned when IgnoreCount is below zero.
	ErrNegativeIgnoreCount = errors.New("ignore count must not be negative")

	// ErrWatchModeMismatch is returned when WatchMode is set for a
	// non-watchpoint or missing for a watchpoint.
	ErrWatchModeMismatch = errors.New("watch mode must be set exactly for watchpoints")
)

// Descriptor is a snapshot of a breakpoint as the caller sees it.
//
// The adapter never keeps descriptors; every translation receives a fresh
// copy owned by the breakpoint registry.
type Descriptor struct {
	// Kind is the breakpoint kind.
	Kind Kind `json:"kind"`

	// Disposition is what happens after the breakpoint is hit.
	Disposition Disposition `json:"disposition"`

	// Position is a location or address in the backend's own syntax.
	Position string `json:"position"`

	// Expression is the watched expression. Falls back to Position.
	Expression string `json:"expression,omitempty"`

	// Condition is the optional stop condition.
	Condition string `json:"condition,omitempty"`

	// IgnoreCount is the number of hits to skip before stopping.
	IgnoreCount int `json:"ignoreCount"`

	// Enabled indicates if the breakpoint is enabled.
	Enabled bool `json:"enabled"`

	// WatchMode is only meaningful for watchpoints.
	WatchMode WatchMode `json:"watchMode,omitempty"`

	// Commands run automatically when the breakpoint is hit.
	Commands []string `json:"commands,omitempty"`
}

// Validate checks the descriptor invariants.
func (d *Descriptor) Validate() error {
	if d.IgnoreCount < 0 {
		return ErrNegativeIgnoreCount
	}
	if (d.Kind == KindWatchpoint) != (d.WatchMode != WatchNone) {
		return fmt.Errorf("%s with mode %s: %w", d.Kind, d.WatchMode, ErrWatchModeMismatch)
	}
	return nil
}

// WatchExpression returns the expression a watchpoint observes.
func (d *Descriptor) WatchExpression() string {
	if d.Expression != "" {
		return d.Expression
	}
	return d.Position
}

package dialect

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/dbgbridge/internal/integration/debug/breakpoint"
)

// ErrUnknownBackend is returned for a backend without a registered profile.
var ErrUnknownBackend = errors.New("unknown debugger backend")

// JDB prompt patterns: "THREAD[DEPTH] " or "> ".
const (
	jdbPromptLine     = `^(?:[a-zA-Z][a-zA-Z0-9 ]*[a-zA-Z0-9]\[[1-9][0-9]*\]|>) `
	jdbPromptReverse  = `^ (?:>|\][0-9]*[1-9]\[[a-zA-Z0-9][a-zA-Z0-9 ]*[a-zA-Z])`
	jdbPromptNoThread = `^(?:>|\[[1-9][0-9]*\]) $`
)

// GDB is the classic GDB dialect.
var GDB = MustProfile(ProfileSpec{
	Backend:  BackendGDB,
	Title:    "GDB",
	Language: LanguageC,
	Capabilities: []Capability{
		CapDisable, CapDelete, CapIgnore, CapCondition, CapCommands, CapAttach,
		CapRegisters, CapExamine, CapMake, CapJump, CapPwd, CapErrRedirection,
		CapFrame, CapDisplay, CapTrace,
	},
	Prompt:            LiteralPrompt("(gdb)"),
	PrintVerb:         "print",
	InternalPrintVerb: "output",
	AssignVerb:        "set variable",
	DebugVerb:         "file",
	ClearVerb:         "clear",
	BreakStyle:        BreakStyleBreak,
	AddressMarker:     "*",
	InfoLocals:        "info locals",
	Pwd:               "pwd",
	InfoBreakpoints:   "info breakpoints",
	WatchVerbs: map[breakpoint.WatchMode]string{
		breakpoint.WatchChange: "watch",
		breakpoint.WatchRead:   "rwatch",
		breakpoint.WatchAccess: "awatch",
	},
	Markers: []Marker{
		{Text: "A problem internal to GDB has been detected", Event: EventException},
	},
	BreakpointNumberPattern: `(?m)^(?:Temporary breakpoint|Breakpoint|Tracepoint) ([0-9]+)`,
})

// DBG is the DBG PHP debugger dialect.
var DBG = MustProfile(ProfileSpec{
	Backend:  BackendDBG,
	Title:    "DBG",
	Language: LanguagePHP,
	Capabilities: []Capability{
		CapDisable, CapDelete, CapIgnore, CapCondition, CapCommands, CapPwd,
		CapErrRedirection, CapFrame, CapDisplay,
	},
	Prompt:          LiteralPrompt("dbg>"),
	PrintVerb:       "print",
	PrintRawFlag:    "-r",
	AssignVerb:      "",
	DebugVerb:       "file",
	ClearVerb:       "clear",
	BreakStyle:      BreakStyleBreak,
	AddressMarker:   "*",
	Pwd:             "pwd",
	InfoBreakpoints: "info breakpoints",
	WatchVerbs: map[breakpoint.WatchMode]string{
		breakpoint.WatchChange: "watch",
	},
	BreakpointNumberPattern: `(?m)^Breakpoint ([0-9]+)`,
})

// JDB is the Java debugger dialect.
var JDB = MustProfile(ProfileSpec{
	Backend:            BackendJDB,
	Title:              "JDB",
	Language:           LanguageJava,
	Capabilities:       []Capability{CapUnwatch},
	Prompt:             PatternPrompt(jdbPromptLine, jdbPromptReverse, jdbPromptNoThread),
	PrintVerb:          "print",
	InternalPrintVerb:  "dump",
	AssignVerb:         "set",
	AssignNeedsNoDebug: true,
	DebugVerb:          "load",
	ClearVerb:          "clear",
	BreakStyle:         BreakStyleStop,
	AddressMarker:      "*",
	InfoLocals:         "locals",
	InfoBreakpoints:    "clear",
	WatchVerbs: map[breakpoint.WatchMode]string{
		breakpoint.WatchChange: "watch all",
		breakpoint.WatchRead:   "watch access",
		breakpoint.WatchAccess: "watch access",
	},
	Markers: []Marker{
		{Text: "com.sun.tools.example.debug", Event: EventException},
		{Text: "sun.tools.debug", Event: EventException},
		{Text: "Internal exception:", Event: EventException},
		{Text: "Breakpoint hit:", Event: EventThreadStop},
		{Text: "Step completed:", Event: EventThreadStop},
	},
})

// Registry maps backends to profiles.
type Registry struct {
	mu       sync.RWMutex
	profiles map[Backend]*Profile
}

// NewRegistry creates a registry holding the built-in profiles.
func NewRegistry() *Registry {
	r := &Registry{
		profiles: make(map[Backend]*Profile),
	}

	r.Register(GDB)
	r.Register(DBG)
	r.Register(JDB)

	return r
}

// Register adds or replaces the profile for p.Backend().
func (r *Registry) Register(p *Profile) {
	r.mu.Lock()
	r.profiles[p.Backend()] = p
	r.mu.Unlock()
}

// Lookup returns the profile for backend.
func (r *Registry) Lookup(backend Backend) (*Profile, error) {
	r.mu.RLock()
	p, ok := r.profiles[backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
	return p, nil
}

// Backends returns the sorted list of registered backends.
func (r *Registry) Backends() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Backend, 0, len(r.profiles))
	for b := range r.profiles {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// DetectBackend guesses the backend from a debugger executable name.
func DetectBackend(executable string) Backend {
	base := executable
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '/' || base[i] == '\\' {
			base = base[i+1:]
			break
		}
	}

	switch {
	case hasPrefix(base, "jdb"):
		return BackendJDB
	case hasPrefix(base, "dbg"):
		return BackendDBG
	default:
		return BackendGDB
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

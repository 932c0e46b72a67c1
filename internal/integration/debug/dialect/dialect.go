// Package dialect describes the command and prompt conventions of
// text-oriented debuggers.
//
// A Profile is a static table: capability flags, command tokens and the
// prompt grammar used to frame responses. Profiles are immutable once
// built and are shared read-only by every session of the same backend.
package dialect

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dshills/dbgbridge/internal/integration/debug/breakpoint"
)

// Backend identifies a debugger dialect.
type Backend string

const (
	// BackendGDB is the classic GDB command line.
	BackendGDB Backend = "gdb"
	// BackendDBG is the DBG PHP debugger.
	BackendDBG Backend = "dbg"
	// BackendJDB is the Java debugger.
	BackendJDB Backend = "jdb"
)

// Language identifies the language of the debugged program.
type Language int

const (
	LanguageC Language = iota
	LanguageJava
	LanguagePHP
	LanguagePerl
	LanguagePython
	LanguageBash
	LanguageFortran
	LanguageMake
	LanguageAda
	LanguagePascal
	LanguageChill
	LanguageOther
)

var languageNames = map[Language]string{
	LanguageC:       "c",
	LanguageJava:    "java",
	LanguagePHP:     "php",
	LanguagePerl:    "perl",
	LanguagePython:  "python",
	LanguageBash:    "bash",
	LanguageFortran: "fortran",
	LanguageMake:    "make",
	LanguageAda:     "ada",
	LanguagePascal:  "pascal",
	LanguageChill:   "chill",
	LanguageOther:   "other",
}

// String returns the lower-case language name.
func (l Language) String() string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseLanguage parses a language name.
func ParseLanguage(s string) (Language, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for l, name := range languageNames {
		if name == s {
			return l, nil
		}
	}
	return LanguageOther, fmt.Errorf("unknown language %q", s)
}

// AssignOperator returns ":=" for Algol-family languages and "=" otherwise.
//
// Variable names in C-family languages can collide with debugger command
// keywords; no quoting is attempted.
func (l Language) AssignOperator() string {
	switch l {
	case LanguageAda, LanguagePascal, LanguageChill:
		return ":="
	default:
		return "="
	}
}

// Capability is a named optional command.
type Capability string

// Known capabilities.
const (
	CapDisable        Capability = "disable"
	CapDelete         Capability = "delete"
	CapIgnore         Capability = "ignore"
	CapCondition      Capability = "condition"
	CapCommands       Capability = "commands"
	CapAttach         Capability = "attach"
	CapRegisters      Capability = "registers"
	CapExamine        Capability = "examine"
	CapMake           Capability = "make"
	CapJump           Capability = "jump"
	CapPwd            Capability = "pwd"
	CapErrRedirection Capability = "err-redirection"
	CapUnwatch        Capability = "unwatch"
	CapDebug          Capability = "debug"
	CapFrame          Capability = "frame"
	CapDisplay        Capability = "display"
	CapTrace          Capability = "trace"
)

// AllCapabilities lists every known capability.
var AllCapabilities = []Capability{
	CapDisable, CapDelete, CapIgnore, CapCondition, CapCommands, CapAttach,
	CapRegisters, CapExamine, CapMake, CapJump, CapPwd, CapErrRedirection,
	CapUnwatch, CapDebug, CapFrame, CapDisplay, CapTrace,
}

// ParseCapability validates a capability name.
func ParseCapability(s string) (Capability, error) {
	c := Capability(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllCapabilities {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown capability %q", s)
}

// CapabilitySet is a set of capabilities.
type CapabilitySet map[Capability]bool

// NewCapabilitySet builds a set from a list.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = true
	}
	return s
}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	return s[c]
}

// Clone returns a copy of the set.
func (s CapabilitySet) Clone() CapabilitySet {
	out := make(CapabilitySet, len(s))
	for c, ok := range s {
		if ok {
			out[c] = true
		}
	}
	return out
}

// List returns the sorted capabilities in the set.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c, ok := range s {
		if ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BreakStyle selects how breakpoints are created.
type BreakStyle int

const (
	// BreakStyleBreak uses "break POS" and "tbreak POS".
	BreakStyleBreak BreakStyle = iota
	// BreakStyleStop uses "stop at FILE:LINE" and "stop in METHOD".
	BreakStyleStop
)

// Marker is a fixed substring identifying unsolicited debugger output.
type Marker struct {
	Text  string
	Event EventKind
}

// EventKind classifies asynchronous debugger output.
type EventKind int

const (
	// EventException is a backend-internal exception or crash trace.
	EventException EventKind = iota
	// EventThreadStop is a thread stop or switch banner.
	EventThreadStop
	// EventUnsolicited is prompt-terminated output nobody asked for.
	EventUnsolicited
	// EventOverflow reports that buffered output was discarded.
	EventOverflow
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventException:
		return "exception"
	case EventThreadStop:
		return "thread-stop"
	case EventUnsolicited:
		return "unsolicited"
	case EventOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Profile is the static description of one debugger dialect.
//
// All fields are unexported; use the accessors. A Profile must not be
// modified after construction; Derive returns a new Profile.
type Profile struct {
	spec ProfileSpec

	caps           CapabilitySet
	numberPattern  *regexp.Regexp
	filePosPattern *regexp.Regexp
}

// ProfileSpec is the plain-data form of a Profile.
type ProfileSpec struct {
	Backend      Backend
	Title        string
	Language     Language
	Capabilities []Capability
	Prompt       PromptGrammar

	PrintVerb         string
	InternalPrintVerb string
	PrintRawFlag      string
	AssignVerb        string
	// AssignNeedsNoDebug makes assignment unavailable when CapDebug is present.
	AssignNeedsNoDebug bool
	DebugVerb          string
	ClearVerb          string
	BreakStyle         BreakStyle
	AddressMarker      string
	InfoLocals         string
	Pwd                string
	InfoBreakpoints    string

	// WatchVerbs maps a single watch bit to the command prefix.
	WatchVerbs map[breakpoint.WatchMode]string

	Markers []Marker

	// BreakpointNumberPattern captures the number the backend assigned to
	// a new breakpoint in its first submatch. Empty disables reconciliation.
	BreakpointNumberPattern string

	// LineTerminator ends every command sent to the backend.
	LineTerminator string
}

// NewProfile validates spec and builds an immutable Profile.
func NewProfile(spec ProfileSpec) (*Profile, error) {
	if spec.Backend == "" {
		return nil, fmt.Errorf("profile: backend is required")
	}
	if err := spec.Prompt.validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", spec.Backend, err)
	}
	if spec.PrintVerb == "" {
		spec.PrintVerb = "print"
	}
	if spec.ClearVerb == "" {
		spec.ClearVerb = "clear"
	}
	if spec.LineTerminator == "" {
		spec.LineTerminator = "\n"
	}
	if spec.Title == "" {
		spec.Title = strings.ToUpper(string(spec.Backend))
	}

	p := &Profile{
		caps:           NewCapabilitySet(spec.Capabilities...),
		filePosPattern: regexp.MustCompile(`^[^:\s]+:[0-9]+$`),
	}

	if spec.BreakpointNumberPattern != "" {
		rx, err := regexp.Compile(spec.BreakpointNumberPattern)
		if err != nil {
			return nil, fmt.Errorf("profile %s: breakpoint number pattern: %w", spec.Backend, err)
		}
		if rx.NumSubexp() < 1 {
			return nil, fmt.Errorf("profile %s: breakpoint number pattern needs a capture group", spec.Backend)
		}
		p.numberPattern = rx
	}

	spec.Capabilities = p.caps.List()
	spec.WatchVerbs = cloneWatchVerbs(spec.WatchVerbs)
	spec.Markers = append([]Marker(nil), spec.Markers...)
	p.spec = spec

	return p, nil
}

// MustProfile is NewProfile that panics on error. Used for built-ins.
func MustProfile(spec ProfileSpec) *Profile {
	p, err := NewProfile(spec)
	if err != nil {
		panic(err)
	}
	return p
}

// Spec returns a copy of the plain-data form of the profile.
func (p *Profile) Spec() ProfileSpec {
	s := p.spec
	s.Capabilities = append([]Capability(nil), p.spec.Capabilities...)
	s.WatchVerbs = cloneWatchVerbs(p.spec.WatchVerbs)
	s.Markers = append([]Marker(nil), p.spec.Markers...)
	return s
}

// Derive builds a new profile from p with fn applied to a copy of its spec.
func (p *Profile) Derive(fn func(*ProfileSpec)) (*Profile, error) {
	s := p.Spec()
	fn(&s)
	return NewProfile(s)
}

func cloneWatchVerbs(in map[breakpoint.WatchMode]string) map[breakpoint.WatchMode]string {
	out := make(map[breakpoint.WatchMode]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Backend returns the dialect identifier.
func (p *Profile) Backend() Backend { return p.spec.Backend }

// Title returns a display name for the dialect.
func (p *Profile) Title() string { return p.spec.Title }

// Language returns the program language convention.
func (p *Profile) Language() Language { return p.spec.Language }

// Has reports whether the dialect supports capability c.
func (p *Profile) Has(c Capability) bool { return p.caps.Has(c) }

// Capabilities returns a copy of the capability set.
func (p *Profile) Capabilities() CapabilitySet { return p.caps.Clone() }

// Prompt returns the prompt grammar.
func (p *Profile) Prompt() PromptGrammar { return p.spec.Prompt }

// Markers returns the async-event markers.
func (p *Profile) Markers() []Marker { return append([]Marker(nil), p.spec.Markers...) }

// LineTerminator returns the string appended to each outbound command.
func (p *Profile) LineTerminator() string { return p.spec.LineTerminator }

// SupportedWatchModes returns the union of watch bits the dialect can render.
func (p *Profile) SupportedWatchModes() breakpoint.WatchMode {
	var m breakpoint.WatchMode
	for bit, verb := range p.spec.WatchVerbs {
		if verb != "" {
			m |= bit
		}
	}
	return m
}

// WatchVerb returns the command prefix for a single watch bit.
func (p *Profile) WatchVerb(bit breakpoint.WatchMode) string {
	return p.spec.WatchVerbs[bit]
}

// IsFilePosition reports whether pos has the FILE:LINE form.
func (p *Profile) IsFilePosition(pos string) bool {
	return p.filePosPattern.MatchString(pos)
}

// BreakpointNumber extracts the backend-assigned breakpoint number from a
// response. ok is false if the dialect does not report numbers or the
// response contains none.
func (p *Profile) BreakpointNumber(response string) (n int, ok bool) {
	if p.numberPattern == nil {
		return 0, false
	}
	m := p.numberPattern.FindStringSubmatch(response)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// The remaining accessors expose command tokens.

func (p *Profile) PrintVerb() string { return p.spec.PrintVerb }
func (p *Profile) InternalPrintVerb() string { return p.spec.InternalPrintVerb }
func (p *Profile) PrintRawFlag() string { return p.spec.PrintRawFlag }
func (p *Profile) AssignVerb() string { return p.spec.AssignVerb }
func (p *Profile) AssignNeedsNoDebug() bool { return p.spec.AssignNeedsNoDebug }
func (p *Profile) DebugVerb() string { return p.spec.DebugVerb }
func (p *Profile) ClearVerb() string { return p.spec.ClearVerb }
func (p *Profile) BreakStyle() BreakStyle { return p.spec.BreakStyle }
func (p *Profile) AddressMarker() string { return p.spec.AddressMarker }
func (p *Profile) InfoLocalsCommand() string { return p.spec.InfoLocals }
func (p *Profile) PwdCommand() string { return p.spec.Pwd }
func (p *Profile) InfoBreakpointsCommand() string { return p.spec.InfoBreakpoints }

package breakpoint

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrNoParser is returned when no info parser is registered for a backend.
var ErrNoParser = errors.New("no breakpoint info parser for backend")

// Info is one breakpoint as reported by a debugger's listing command.
type Info struct {
	Number      int         `json:"number"`
	Kind        Kind        `json:"kind"`
	Disposition Disposition `json:"disposition"`
	Enabled     bool        `json:"enabled"`
	Address     string      `json:"address,omitempty"`
	Position    string      `json:"position,omitempty"`
	Condition   string      `json:"condition,omitempty"`
	IgnoreCount int         `json:"ignoreCount,omitempty"`
	HitCount    int         `json:"hitCount,omitempty"`
	WatchMode   WatchMode   `json:"watchMode,omitempty"`
	Commands    []string    `json:"commands,omitempty"`
}

// Parser turns the free text of a breakpoint listing into Info values.
type Parser interface {
	Parse(text string) ([]Info, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(text string) ([]Info, error)

// Parse calls f(text).
func (f ParserFunc) Parse(text string) ([]Info, error) {
	return f(text)
}

// Registry maps backend identifiers to info parsers.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry creates a registry with the built-in parsers.
func NewRegistry() *Registry {
	r := &Registry{
		parsers: make(map[string]Parser),
	}

	r.Register("gdb", GDBTableParser{})
	r.Register("dbg", GDBTableParser{})
	r.Register("jdb", JDBParser{})

	return r
}

// Register registers a parser for a backend, replacing any previous one.
func (r *Registry) Register(backend string, p Parser) {
	r.mu.Lock()
	r.parsers[backend] = p
	r.mu.Unlock()
}

// Lookup returns the parser registered for backend.
func (r *Registry) Lookup(backend string) (Parser, error) {
	r.mu.RLock()
	p, ok := r.parsers[backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoParser, backend)
	}
	return p, nil
}

// Backends returns the sorted list of backends with a parser.
func (r *Registry) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.parsers))
	for b := range r.parsers {
		result = append(result, b)
	}
	sort.Strings(result)
	return result
}

// GDBTableParser parses the "Num Type Disp Enb Address What" table printed
// by "info breakpoints" in GDB and DBG.
type GDBTableParser struct{}

// Parse implements Parser.
func (GDBTableParser) Parse(text string) ([]Info, error) {
	var (
		result  []Info
		current *Info
	)

	flush := func() {
		if current != nil {
			result = append(result, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "Num ") || trimmed == "No breakpoints or watchpoints." {
			continue
		}

		if line[0] >= '0' && line[0] <= '9' {
			if strings.Contains(strings.Fields(trimmed)[0], ".") {
				// location row of a multi-location breakpoint
				continue
			}
			flush()
			info, err := parseGDBHeader(trimmed)
			if err != nil {
				return nil, err
			}
			current = &info
			continue
		}

		if current == nil {
			continue
		}
		parseGDBDetail(current, trimmed)
	}
	flush()

	return result, nil
}

func parseGDBHeader(line string) (Info, error) {
	fields := strings.Fields(line)

	num, err := strconv.Atoi(fields[0])
	if err != nil {
		return Info{}, fmt.Errorf("invalid breakpoint number %q: %w", fields[0], err)
	}

	disp := -1
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "keep", "del", "dis":
			disp = i
		}
		if disp >= 0 {
			break
		}
	}
	if disp < 2 || disp+1 >= len(fields) {
		return Info{}, fmt.Errorf("malformed breakpoint line %q", line)
	}

	typ := strings.Join(fields[1:disp], " ")
	info := Info{
		Number:      num,
		Disposition: ParseDisposition(fields[disp]),
		Enabled:     fields[disp+1] == "y",
	}

	switch {
	case strings.Contains(typ, "watchpoint"):
		info.Kind = KindWatchpoint
		switch {
		case strings.HasPrefix(typ, "read"):
			info.WatchMode = WatchRead
		case strings.HasPrefix(typ, "acc"):
			info.WatchMode = WatchAccess
		default:
			info.WatchMode = WatchChange
		}
	case strings.Contains(typ, "tracepoint"):
		info.Kind = KindTracepoint
	default:
		info.Kind = KindBreakpoint
	}

	rest := fields[disp+2:]
	if len(rest) > 0 && (strings.HasPrefix(rest[0], "0x") || strings.HasPrefix(rest[0], "<")) {
		info.Address = rest[0]
		rest = rest[1:]
	}
	info.Position = strings.Join(rest, " ")

	return info, nil
}

func parseGDBDetail(info *Info, line string) {
	switch {
	case strings.HasPrefix(line, "stop only if "):
		info.Condition = strings.TrimPrefix(line, "stop only if ")
	case strings.HasPrefix(line, "breakpoint already hit "):
		info.HitCount = leadingInt(strings.TrimPrefix(line, "breakpoint already hit "))
	case strings.HasPrefix(line, "ignore next "):
		info.IgnoreCount = leadingInt(strings.TrimPrefix(line, "ignore next "))
	case line == "end":
	default:
		info.Commands = append(info.Commands, line)
	}
}

func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

// JDBParser parses the "Breakpoints set:" listing JDB prints for a bare
// "clear" command. JDB does not number breakpoints, so numbers are assigned
// in listing order starting at 1.
type JDBParser struct{}

// Parse implements Parser.
func (JDBParser) Parse(text string) ([]Info, error) {
	var result []Info

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "breakpoint ") {
			continue
		}
		result = append(result, Info{
			Number:   len(result) + 1,
			Kind:     KindBreakpoint,
			Enabled:  true,
			Position: strings.TrimSpace(strings.TrimPrefix(trimmed, "breakpoint ")),
		})
	}

	return result, nil
}

package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dshills/dbgbridge/internal/integration/debug/breakpoint"
	"github.com/dshills/dbgbridge/internal/integration/debug/dialect"
)

// DialectConfig derives a new dialect from a built-in or earlier one.
// Unset fields keep the base value.
type DialectConfig struct {
	// Name is the backend identifier of the new dialect.
	Name string `toml:"name" yaml:"name"`
	// Base is the backend the dialect starts from.
	Base string `toml:"base" yaml:"base"`

	Title    string        `toml:"title" yaml:"title"`
	Language string        `toml:"language" yaml:"language"`
	Prompt   *PromptConfig `toml:"prompt" yaml:"prompt"`

	AddCapabilities    []string `toml:"add_capabilities" yaml:"add_capabilities"`
	RemoveCapabilities []string `toml:"remove_capabilities" yaml:"remove_capabilities"`

	PrintVerb       string `toml:"print_verb" yaml:"print_verb"`
	AssignVerb      string `toml:"assign_verb" yaml:"assign_verb"`
	DebugVerb       string `toml:"debug_verb" yaml:"debug_verb"`
	ClearVerb       string `toml:"clear_verb" yaml:"clear_verb"`
	AddressMarker   string `toml:"address_marker" yaml:"address_marker"`
	InfoLocals      string `toml:"info_locals" yaml:"info_locals"`
	Pwd             string `toml:"pwd" yaml:"pwd"`
	InfoBreakpoints string `toml:"info_breakpoints" yaml:"info_breakpoints"`

	Markers []MarkerConfig `toml:"markers" yaml:"markers"`

	BreakpointNumberPattern string `toml:"breakpoint_number_pattern" yaml:"breakpoint_number_pattern"`

	// InfoParser is a Lua script that parses breakpoint listings. Relative
	// paths are resolved against the config file directory.
	InfoParser string `toml:"info_parser" yaml:"info_parser"`
}

// PromptConfig overrides the prompt grammar. Set Literal for a fixed
// prompt or Line, Reverse and NoThread for a pattern prompt.
type PromptConfig struct {
	Literal  string `toml:"literal" yaml:"literal"`
	Line     string `toml:"line" yaml:"line"`
	Reverse  string `toml:"reverse" yaml:"reverse"`
	NoThread string `toml:"no_thread" yaml:"no_thread"`
}

// Grammar converts the prompt settings to a grammar.
func (p PromptConfig) Grammar() dialect.PromptGrammar {
	if p.Literal != "" {
		return dialect.LiteralPrompt(p.Literal)
	}
	return dialect.PatternPrompt(p.Line, p.Reverse, p.NoThread)
}

// MarkerConfig adds an asynchronous output marker.
type MarkerConfig struct {
	Text string `toml:"text" yaml:"text"`
	// Event is exception or thread-stop.
	Event string `toml:"event" yaml:"event"`
}

func parseEventKind(s string) (dialect.EventKind, error) {
	switch s {
	case "", "exception":
		return dialect.EventException, nil
	case "thread-stop":
		return dialect.EventThreadStop, nil
	default:
		return 0, fmt.Errorf("unknown marker event %q", s)
	}
}

// Dialects holds the profile and parser registries built from a
// configuration.
type Dialects struct {
	Profiles *dialect.Registry
	Parsers  *breakpoint.Registry

	luaParsers []*breakpoint.LuaParser
}

// Close releases the Lua parsers.
func (d *Dialects) Close() error {
	var errs []error
	for _, p := range d.luaParsers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.luaParsers = nil
	return errors.Join(errs...)
}

// BuildDialects returns registries holding the built-in dialects plus
// every configured override, applied in order so that a dialect may use
// an earlier one as its base.
func (c *Config) BuildDialects(logger *slog.Logger) (*Dialects, error) {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dialects{
		Profiles: dialect.NewRegistry(),
		Parsers:  breakpoint.NewRegistry(),
	}

	for i, dc := range c.Dialects {
		profile, err := c.buildProfile(d.Profiles, dc)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("dialect[%d] %s: %w", i, dc.Name, err)
		}
		d.Profiles.Register(profile)

		parser, err := c.buildParser(d, dc)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("dialect[%d] %s: %w", i, dc.Name, err)
		}
		d.Parsers.Register(dc.Name, parser)

		logger.Debug("dialect configured", "name", dc.Name, "base", dc.Base)
	}

	return d, nil
}

func (c *Config) buildProfile(reg *dialect.Registry, dc DialectConfig) (*dialect.Profile, error) {
	base, err := reg.Lookup(dialect.Backend(dc.Base))
	if err != nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownBase, dc.Base)
	}

	var lang dialect.Language
	if dc.Language != "" {
		if lang, err = dialect.ParseLanguage(dc.Language); err != nil {
			return nil, err
		}
	}
	add, err := parseCapabilities(dc.AddCapabilities)
	if err != nil {
		return nil, err
	}
	remove, err := parseCapabilities(dc.RemoveCapabilities)
	if err != nil {
		return nil, err
	}
	markers := make([]dialect.Marker, 0, len(dc.Markers))
	for _, m := range dc.Markers {
		kind, err := parseEventKind(m.Event)
		if err != nil {
			return nil, err
		}
		markers = append(markers, dialect.Marker{Text: m.Text, Event: kind})
	}

	return base.Derive(func(s *dialect.ProfileSpec) {
		s.Backend = dialect.Backend(dc.Name)
		s.Title = dc.Title
		if dc.Language != "" {
			s.Language = lang
		}
		if dc.Prompt != nil {
			s.Prompt = dc.Prompt.Grammar()
		}

		caps := dialect.NewCapabilitySet(s.Capabilities...)
		for _, cp := range add {
			caps[cp] = true
		}
		for _, cp := range remove {
			delete(caps, cp)
		}
		s.Capabilities = caps.List()

		setIf(&s.PrintVerb, dc.PrintVerb)
		setIf(&s.AssignVerb, dc.AssignVerb)
		setIf(&s.DebugVerb, dc.DebugVerb)
		setIf(&s.ClearVerb, dc.ClearVerb)
		setIf(&s.AddressMarker, dc.AddressMarker)
		setIf(&s.InfoLocals, dc.InfoLocals)
		setIf(&s.Pwd, dc.Pwd)
		setIf(&s.InfoBreakpoints, dc.InfoBreakpoints)
		setIf(&s.BreakpointNumberPattern, dc.BreakpointNumberPattern)

		s.Markers = append(s.Markers, markers...)
	})
}

// buildParser returns the Lua parser for dc, or the base dialect's
// parser when no script is configured.
func (c *Config) buildParser(d *Dialects, dc DialectConfig) (breakpoint.Parser, error) {
	if dc.InfoParser == "" {
		p, err := d.Parsers.Lookup(dc.Base)
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	p, err := breakpoint.NewLuaParserFile(c.resolve(dc.InfoParser))
	if err != nil {
		return nil, err
	}
	d.luaParsers = append(d.luaParsers, p)
	return p, nil
}

func parseCapabilities(names []string) ([]dialect.Capability, error) {
	out := make([]dialect.Capability, 0, len(names))
	for _, n := range names {
		cp, err := dialect.ParseCapability(n)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

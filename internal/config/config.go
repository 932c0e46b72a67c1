package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is the complete bridge configuration.
type Config struct {
	Log      LogConfig       `toml:"log" yaml:"log"`
	Session  SessionConfig   `toml:"session" yaml:"session"`
	Dialects []DialectConfig `toml:"dialect" yaml:"dialects"`

	// dir is the directory of the loaded file; relative script paths
	// are resolved against it.
	dir string
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" yaml:"level"`
	// Format is text or json.
	Format string `toml:"format" yaml:"format"`
	// File is the log destination. Empty means stderr.
	File string `toml:"file" yaml:"file"`
}

// SessionConfig configures the debugger process and its session.
type SessionConfig struct {
	// Backend selects the dialect. Empty means detect from Command.
	Backend string `toml:"backend" yaml:"backend"`
	// Command is the debugger executable.
	Command string `toml:"command" yaml:"command"`
	// Args are passed to the debugger.
	Args []string `toml:"args" yaml:"args"`
	// Dir is the debugger's working directory.
	Dir string `toml:"dir" yaml:"dir"`
	// MaxBuffer bounds buffered response bytes. Zero means unbounded.
	MaxBuffer int `toml:"max_buffer" yaml:"max_buffer"`
	// MergeStderr reads the debugger's stderr with its stdout.
	MergeStderr bool `toml:"merge_stderr" yaml:"merge_stderr"`
	// RequestTimeout bounds the wait for one response, e.g. "30s".
	RequestTimeout string `toml:"request_timeout" yaml:"request_timeout"`
	// ShutdownGrace is how long the debugger gets to quit per step.
	ShutdownGrace string `toml:"shutdown_grace" yaml:"shutdown_grace"`
}

// Timeout returns RequestTimeout as a duration. Invalid or empty values
// yield the default of 30 seconds; Validate reports invalid ones.
func (s SessionConfig) Timeout() time.Duration {
	return parseDurationOr(s.RequestTimeout, 30*time.Second)
}

// Grace returns ShutdownGrace as a duration, defaulting to one second.
func (s SessionConfig) Grace() time.Duration {
	return parseDurationOr(s.ShutdownGrace, time.Second)
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Session: SessionConfig{
			Command:        "gdb",
			MergeStderr:    true,
			RequestTimeout: "30s",
			ShutdownGrace:  "1s",
		},
	}
}

// Format is a configuration file format.
type Format int

const (
	// FormatTOML is TOML.
	FormatTOML Format = iota
	// FormatYAML is YAML.
	FormatYAML
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatTOML:
		return "toml"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// FormatFor returns the format implied by path's extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Load reads the file at path over the defaults, applies environment
// overrides and validates the result. An empty path loads defaults and
// environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		format, err := FormatFor(path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := decode(cfg, path, format, data); err != nil {
			return nil, err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		cfg.dir = filepath.Dir(abs)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadReader decodes configuration from r over the defaults. Environment
// overrides are not applied.
func LoadReader(r io.Reader, format Format) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := decode(cfg, "<reader>", format, data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(cfg *Config, source string, format Format, data []byte) error {
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			perr := &ParseError{Path: source, Message: err.Error(), Err: err}
			var derr *toml.DecodeError
			if errors.As(err, &derr) {
				perr.Line, perr.Column = derr.Position()
			}
			return perr
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return &ParseError{Path: source, Message: err.Error(), Err: err}
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return nil
}

// Dir returns the directory of the loaded config file, or "" when the
// configuration did not come from a file.
func (c *Config) Dir() string {
	return c.dir
}

// resolve makes a relative path relative to the config file directory.
func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.dir == "" {
		return path
	}
	return filepath.Join(c.dir, path)
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"text", "json"}
)

// Validate checks every setting and returns ValidationErrors listing all
// problems.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(path, msg string, v any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: v})
	}

	if !oneOf(strings.ToLower(c.Log.Level), validLevels) {
		add("log.level", "must be one of "+strings.Join(validLevels, ", "), c.Log.Level)
	}
	if !oneOf(strings.ToLower(c.Log.Format), validFormats) {
		add("log.format", "must be one of "+strings.Join(validFormats, ", "), c.Log.Format)
	}
	if c.Session.Command == "" {
		add("session.command", "is required", c.Session.Command)
	}
	if c.Session.MaxBuffer < 0 {
		add("session.max_buffer", "must not be negative", c.Session.MaxBuffer)
	}
	for _, d := range []struct{ path, value string }{
		{"session.request_timeout", c.Session.RequestTimeout},
		{"session.shutdown_grace", c.Session.ShutdownGrace},
	} {
		if d.value == "" {
			continue
		}
		if v, err := time.ParseDuration(d.value); err != nil || v <= 0 {
			add(d.path, "must be a positive duration", d.value)
		}
	}

	seen := make(map[string]bool)
	for i, d := range c.Dialects {
		prefix := fmt.Sprintf("dialect[%d]", i)
		if d.Name == "" {
			add(prefix+".name", "is required", d.Name)
		} else if seen[d.Name] {
			add(prefix+".name", "is duplicated", d.Name)
		}
		seen[d.Name] = true
		if d.Base == "" {
			add(prefix+".base", "is required", d.Base)
		}
		for _, m := range d.Markers {
			if _, err := parseEventKind(m.Event); err != nil {
				add(prefix+".markers.event", err.Error(), m.Event)
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func oneOf(s string, options []string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}

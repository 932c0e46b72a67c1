package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func noEnv(string) (string, bool) { return "", false }

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Log.Level != "info" {
		t.Errorf("expected level info, got %q", cfg.Log.Level)
	}
	if cfg.Session.Command != "gdb" {
		t.Errorf("expected command gdb, got %q", cfg.Session.Command)
	}
	if !cfg.Session.MergeStderr {
		t.Error("expected MergeStderr by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if cfg.Session.Timeout() != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.Session.Timeout())
	}
	if cfg.Session.Grace() != time.Second {
		t.Errorf("expected 1s grace, got %v", cfg.Session.Grace())
	}
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bridge.toml", `
[log]
level = "debug"
format = "json"

[session]
backend = "jdb"
command = "jdb"
args = ["-classpath", "build"]
max_buffer = 4096
request_timeout = "5s"

[[dialect]]
name = "pydb"
base = "gdb"

[dialect.prompt]
literal = "(Pydb)"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
	if cfg.Session.Backend != "jdb" || cfg.Session.Command != "jdb" {
		t.Errorf("unexpected session %+v", cfg.Session)
	}
	if len(cfg.Session.Args) != 2 || cfg.Session.Args[1] != "build" {
		t.Errorf("unexpected args %v", cfg.Session.Args)
	}
	if cfg.Session.MaxBuffer != 4096 {
		t.Errorf("expected max_buffer 4096, got %d", cfg.Session.MaxBuffer)
	}
	if cfg.Session.Timeout() != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.Session.Timeout())
	}
	if !cfg.Session.MergeStderr {
		t.Error("unset merge_stderr should keep the default")
	}
	if len(cfg.Dialects) != 1 || cfg.Dialects[0].Prompt == nil || cfg.Dialects[0].Prompt.Literal != "(Pydb)" {
		t.Errorf("unexpected dialects %+v", cfg.Dialects)
	}
	if cfg.Dir() != dir {
		t.Errorf("expected dir %q, got %q", dir, cfg.Dir())
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bridge.yaml", `
log:
  level: warn
session:
  command: dbg
  merge_stderr: false
dialects:
  - name: mydbg
    base: dbg
    add_capabilities: [jump]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected level warn, got %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("unset format should keep the default, got %q", cfg.Log.Format)
	}
	if cfg.Session.Command != "dbg" || cfg.Session.MergeStderr {
		t.Errorf("unexpected session %+v", cfg.Session)
	}
	if len(cfg.Dialects) != 1 || cfg.Dialects[0].AddCapabilities[0] != "jump" {
		t.Errorf("unexpected dialects %+v", cfg.Dialects)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	t.Setenv("DBGBRIDGE_BACKEND", "dbg")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.Backend != "dbg" {
		t.Errorf("expected env backend dbg, got %q", cfg.Session.Backend)
	}
	if cfg.Dir() != "" {
		t.Errorf("expected no dir, got %q", cfg.Dir())
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		check   func(t *testing.T, err error)
	}{
		{
			name: "unsupported format",
			file: "bridge.ini",
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("expected ErrUnsupportedFormat, got %v", err)
				}
			},
		},
		{
			name:    "toml syntax",
			file:    "bad.toml",
			content: "[log]\nlevel = \n",
			check: func(t *testing.T, err error) {
				var perr *ParseError
				if !errors.As(err, &perr) {
					t.Fatalf("expected ParseError, got %v", err)
				}
				if perr.Line != 2 {
					t.Errorf("expected line 2, got %d", perr.Line)
				}
			},
		},
		{
			name:    "toml unknown field",
			file:    "unknown.toml",
			content: "[session]\ncomand = \"gdb\"\n",
			check: func(t *testing.T, err error) {
				var perr *ParseError
				if !errors.As(err, &perr) {
					t.Errorf("expected ParseError, got %v", err)
				}
			},
		},
		{
			name:    "yaml unknown field",
			file:    "unknown.yaml",
			content: "session:\n  comand: gdb\n",
			check: func(t *testing.T, err error) {
				var perr *ParseError
				if !errors.As(err, &perr) {
					t.Errorf("expected ParseError, got %v", err)
				}
			},
		},
		{
			name:    "invalid values",
			file:    "invalid.toml",
			content: "[log]\nlevel = \"loud\"\n[session]\nmax_buffer = -1\n",
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrValidationFailed) {
					t.Fatalf("expected ErrValidationFailed, got %v", err)
				}
				var verrs ValidationErrors
				if !errors.As(err, &verrs) || len(verrs) != 2 {
					t.Errorf("expected 2 validation errors, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if tt.content != "" {
				writeFile(t, dir, tt.file, tt.content)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLoadReader(t *testing.T) {
	cfg, err := LoadReader(strings.NewReader("[session]\ncommand = \"jdb\"\n"), FormatTOML)
	if err != nil {
		t.Fatalf("LoadReader: %v", err)
	}
	if cfg.Session.Command != "jdb" {
		t.Errorf("expected jdb, got %q", cfg.Session.Command)
	}

	if _, err := LoadReader(strings.NewReader(""), FormatYAML); err != nil {
		t.Errorf("empty YAML should load defaults: %v", err)
	}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"a.toml", FormatTOML, false},
		{"a.TOML", FormatTOML, false},
		{"a.yaml", FormatYAML, false},
		{"a.yml", FormatYAML, false},
		{"a.json", 0, true},
		{"noext", 0, true},
	}

	for _, tt := range tests {
		got, err := FormatFor(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("FormatFor(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("FormatFor(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DBGBRIDGE_LOG_LEVEL":  "DEBUG",
		"DBGBRIDGE_BACKEND":    "jdb",
		"DBGBRIDGE_COMMAND":    "jdb -sourcepath src",
		"DBGBRIDGE_MAX_BUFFER": "2048",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cfg.Session.Args = []string{"-q"}
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("expected level debug, got %q", cfg.Log.Level)
	}
	if cfg.Session.Backend != "jdb" {
		t.Errorf("expected backend jdb, got %q", cfg.Session.Backend)
	}
	if cfg.Session.Command != "jdb" {
		t.Errorf("expected command jdb, got %q", cfg.Session.Command)
	}
	if strings.Join(cfg.Session.Args, " ") != "-sourcepath src" {
		t.Errorf("expected args from env, got %v", cfg.Session.Args)
	}
	if cfg.Session.MaxBuffer != 2048 {
		t.Errorf("expected max buffer 2048, got %d", cfg.Session.MaxBuffer)
	}
}

func TestApplyEnv_Invalid(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "DBGBRIDGE_MAX_BUFFER" {
			return "lots", true
		}
		return "", false
	}

	if err := Default().ApplyEnv(lookup); err == nil {
		t.Error("expected error for non-numeric max buffer")
	}
}

func TestApplyEnv_NoVariables(t *testing.T) {
	cfg := Default()
	if err := cfg.ApplyEnv(noEnv); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Session.Command != "gdb" {
		t.Errorf("expected defaults untouched, got %q", cfg.Session.Command)
	}
	if len(EnvVars()) != len(envMapping) {
		t.Errorf("EnvVars returned %d names, want %d", len(EnvVars()), len(envMapping))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		paths  []string
	}{
		{"valid", func(c *Config) {}, nil},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, []string{"log.format"}},
		{"no command", func(c *Config) { c.Session.Command = "" }, []string{"session.command"}},
		{"bad timeout", func(c *Config) { c.Session.RequestTimeout = "soon" }, []string{"session.request_timeout"}},
		{"negative grace", func(c *Config) { c.Session.ShutdownGrace = "-1s" }, []string{"session.shutdown_grace"}},
		{"dialect without name", func(c *Config) {
			c.Dialects = []DialectConfig{{Base: "gdb"}}
		}, []string{"dialect[0].name"}},
		{"duplicate dialect", func(c *Config) {
			c.Dialects = []DialectConfig{{Name: "x", Base: "gdb"}, {Name: "x", Base: "gdb"}}
		}, []string{"dialect[1].name"}},
		{"bad marker event", func(c *Config) {
			c.Dialects = []DialectConfig{{Name: "x", Base: "gdb", Markers: []MarkerConfig{{Text: "!", Event: "boom"}}}}
		}, []string{"dialect[0].markers.event"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()

			if len(tt.paths) == 0 {
				if err != nil {
					t.Errorf("expected valid, got %v", err)
				}
				return
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			if len(verrs) != len(tt.paths) {
				t.Fatalf("expected %d errors, got %v", len(tt.paths), verrs)
			}
			for i, p := range tt.paths {
				if verrs[i].Path != p {
					t.Errorf("error %d: expected path %q, got %q", i, p, verrs[i].Path)
				}
			}
		})
	}
}

func TestParseError_Error(t *testing.T) {
	tests := []struct {
		err  *ParseError
		want string
	}{
		{&ParseError{Path: "a.toml", Line: 3, Column: 7, Message: "bad"}, "parse error in a.toml at line 3, column 7: bad"},
		{&ParseError{Path: "a.toml", Line: 3, Message: "bad"}, "parse error in a.toml at line 3: bad"},
		{&ParseError{Path: "a.toml", Message: "bad"}, "parse error in a.toml: bad"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

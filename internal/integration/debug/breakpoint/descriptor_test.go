package breakpoint

import (
	"errors"
	"testing"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindBreakpoint, "breakpoint"},
		{KindWatchpoint, "watchpoint"},
		{KindTracepoint, "tracepoint"},
		{KindActionpoint, "actionpoint"},
		{Kind(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.expected {
			t.Errorf("Kind(%d).String() = %q, expected %q", tt.kind, got, tt.expected)
		}
	}
}

func TestWatchMode_SubsetOf(t *testing.T) {
	supported := WatchChange | WatchAccess

	tests := []struct {
		mode     WatchMode
		expected bool
	}{
		{WatchChange, true},
		{WatchAccess, true},
		{WatchChange | WatchAccess, true},
		{WatchRead, false},
		{WatchRead | WatchChange, false},
		{WatchNone, true},
	}

	for _, tt := range tests {
		if got := tt.mode.SubsetOf(supported); got != tt.expected {
			t.Errorf("%s.SubsetOf(%s) = %v, expected %v", tt.mode, supported, got, tt.expected)
		}
	}
}

func TestParseWatchMode(t *testing.T) {
	tests := []struct {
		input    string
		expected WatchMode
		wantErr  bool
	}{
		{"", WatchChange, false},
		{"w", WatchChange, false},
		{"write", WatchChange, false},
		{"r", WatchRead, false},
		{"read", WatchRead, false},
		{"a", WatchAccess, false},
		{"rw", WatchRead | WatchChange, false},
		{"rwa", WatchRead | WatchChange | WatchAccess, false},
		{"x", WatchNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseWatchMode(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseWatchMode(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWatchMode(%q) failed: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseWatchMode(%q) = %s, expected %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		wantErr error
	}{
		{"plain breakpoint", Descriptor{Kind: KindBreakpoint, Position: "main.c:10"}, nil},
		{"watchpoint", Descriptor{Kind: KindWatchpoint, Position: "x", WatchMode: WatchChange}, nil},
		{"negative ignore", Descriptor{Kind: KindBreakpoint, IgnoreCount: -1}, ErrNegativeIgnoreCount},
		{"watchpoint without mode", Descriptor{Kind: KindWatchpoint, Position: "x"}, ErrWatchModeMismatch},
		{"breakpoint with mode", Descriptor{Kind: KindBreakpoint, WatchMode: WatchRead}, ErrWatchModeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDescriptor_WatchExpression(t *testing.T) {
	d := Descriptor{Position: "counter"}
	if got := d.WatchExpression(); got != "counter" {
		t.Errorf("expected fallback to position, got %q", got)
	}

	d.Expression = "buf[0]"
	if got := d.WatchExpression(); got != "buf[0]" {
		t.Errorf("expected expression, got %q", got)
	}
}

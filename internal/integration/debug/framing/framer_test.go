package framing

import (
	"testing"

	"github.com/dshills/dbgbridge/internal/integration/debug/dialect"
)

func newFramer(t *testing.T, p *dialect.Profile, opts ...Option) *Framer {
	t.Helper()
	f, err := New(p, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return f
}

func TestFramer_LiteralScenario(t *testing.T) {
	f := newFramer(t, dialect.DBG)
	f.Begin()

	r := f.FeedString("value = 5\n")
	if r.Kind != Incomplete {
		t.Fatalf("first chunk: expected Incomplete, got %s", r.Kind)
	}
	if !f.Recording() {
		t.Error("expected recording while waiting for prompt")
	}

	r = f.FeedString("dbg> ")
	if r.Kind != Complete {
		t.Fatalf("second chunk: expected Complete, got %s", r.Kind)
	}
	if r.Body != "value = 5" || r.Prompt != "dbg>" {
		t.Errorf("got Complete(%q, %q), want Complete(%q, %q)", r.Body, r.Prompt, "value = 5", "dbg>")
	}
	if f.Recording() {
		t.Error("recording should stop at the prompt")
	}
	if f.Buffered() != 0 {
		t.Errorf("buffer not consumed: %d bytes", f.Buffered())
	}
	if f.LastPrompt() != "dbg>" {
		t.Errorf("LastPrompt() = %q", f.LastPrompt())
	}
}

func TestFramer_PatternScenario(t *testing.T) {
	f := newFramer(t, dialect.JDB)
	f.Begin()

	r := f.FeedString("Breakpoint hit.\nmain[1] ")
	if r.Kind != Complete {
		t.Fatalf("expected Complete, got %s", r.Kind)
	}
	if r.Body != "Breakpoint hit." || r.Prompt != "main[1] " {
		t.Errorf("got Complete(%q, %q)", r.Body, r.Prompt)
	}
	if f.LastPrompt() != "main[1] " {
		t.Errorf("LastPrompt() = %q, want %q", f.LastPrompt(), "main[1] ")
	}
}

func TestFramer_PatternPasses(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		kind   ResultKind
		body   string
		prompt string
	}{
		{"no thread", "Initializing jdb ...\n> ", Complete, "Initializing jdb ...", "> "},
		{"deep frame", "x = 1\nThread 2[12] ", Complete, "x = 1", "Thread 2[12] "},
		{"bracket only", "done\n[1] ", Complete, "done", "[1] "},
		{"false positive", "dates[1] = 33\n", Incomplete, "", ""},
		{"false positive no space", "dates[1] =33\n", Incomplete, "", ""},
		{"mid buffer prompt", "main[1] \nthread output\n", Complete, "main[1] \nthread output\n", "main[1] "},
		{"mid buffer after assignment", "main[1] \ndates[1] = 33\n", Complete, "main[1] \ndates[1] = 33\n", "main[1] "},
		{"zero depth rejected", "x\nmain[0] ", Incomplete, "", ""},
		{"partial", "Breakpoint hit", Incomplete, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFramer(t, dialect.JDB)
			f.Begin()

			r := f.FeedString(tt.input)
			if r.Kind != tt.kind {
				t.Fatalf("expected %s, got %s", tt.kind, r.Kind)
			}
			if r.Body != tt.body || r.Prompt != tt.prompt {
				t.Errorf("got (%q, %q), want (%q, %q)", r.Body, r.Prompt, tt.body, tt.prompt)
			}
		})
	}
}

func TestFramer_FalsePositiveCounted(t *testing.T) {
	f := newFramer(t, dialect.JDB)
	f.Begin()

	if r := f.FeedString("dates[1] = 33\n"); r.Kind != Incomplete {
		t.Fatalf("expected Incomplete, got %s", r.Kind)
	}
	if f.Ambiguous() == 0 {
		t.Error("expected the rejected candidate to be counted")
	}

	r := f.FeedString("main[1] ")
	if r.Kind != Complete || r.Body != "dates[1] = 33" {
		t.Errorf("got %s %q", r.Kind, r.Body)
	}
}

func TestFramer_Idempotent(t *testing.T) {
	inputs := []struct {
		profile *dialect.Profile
		text    string
	}{
		{dialect.GDB, "$1 = 42\n(gdb) "},
		{dialect.DBG, "value = 5\ndbg> "},
		{dialect.JDB, "Breakpoint hit.\nmain[1] "},
	}

	for _, in := range inputs {
		first := newFramer(t, in.profile).FeedString(in.text)
		second := newFramer(t, in.profile).FeedString(in.text)
		if first.Kind != Complete {
			t.Fatalf("%s: expected Complete, got %s", in.profile.Title(), first.Kind)
		}
		if first.Body != second.Body || first.Prompt != second.Prompt || first.Kind != second.Kind {
			t.Errorf("%s: results differ: %+v vs %+v", in.profile.Title(), first, second)
		}
	}
}

func TestFramer_SplitChunks(t *testing.T) {
	f := newFramer(t, dialect.GDB)
	f.Begin()

	text := "Breakpoint 1 at 0x1139: file test.c, line 5.\n(gdb)"
	var r Result
	for i := 0; i < len(text); i++ {
		r = f.Feed([]byte{text[i]})
		if i < len(text)-1 && r.Kind != Incomplete {
			t.Fatalf("byte %d: premature %s", i, r.Kind)
		}
	}
	if r.Kind != Complete || r.Body != "Breakpoint 1 at 0x1139: file test.c, line 5." {
		t.Errorf("got %s %q", r.Kind, r.Body)
	}
}

func TestFramer_ControlSequences(t *testing.T) {
	f := newFramer(t, dialect.GDB)
	f.Begin()

	r := f.FeedString("\x1b[1m$1\x1b[0m = 42\r\n\x1b[32m(gdb)\x1b[0m ")
	if r.Kind != Complete {
		t.Fatalf("expected Complete, got %s", r.Kind)
	}
	if r.Prompt != "(gdb)" {
		t.Errorf("Prompt = %q", r.Prompt)
	}
	if r.Body != "\x1b[1m$1\x1b[0m = 42" {
		t.Errorf("Body = %q", r.Body)
	}

	r = f.FeedString("\x1b[1mx\x1b[0m\n(gdb) \x1b[0m")
	if r.Kind != Complete || r.Body != "\x1b[1mx\x1b[0m" {
		t.Errorf("expected raw body with control bytes, got %s %q", r.Kind, r.Body)
	}

	// The prompt is split by a control sequence, so the body comes from
	// the stripped text.
	r = f.FeedString("y\n(g\x1b[0mdb) ")
	if r.Kind != Complete || r.Body != "y" {
		t.Errorf("expected stripped body, got %s %q", r.Kind, r.Body)
	}
}

func TestFramer_Markers(t *testing.T) {
	f := newFramer(t, dialect.JDB)
	f.Begin()

	r := f.FeedString("Internal exception: java.lang.NullPointerException\n")
	if r.Kind != AsyncEvent {
		t.Fatalf("expected AsyncEvent, got %s", r.Kind)
	}
	if len(r.Events) != 1 || r.Events[0].Kind != dialect.EventException {
		t.Fatalf("unexpected events: %+v", r.Events)
	}
	if r.Events[0].Text != "Internal exception: java.lang.NullPointerException" {
		t.Errorf("event text = %q", r.Events[0].Text)
	}

	r = f.FeedString("\tat Foo.bar(Foo.java:3)\n")
	if r.Kind != Incomplete {
		t.Errorf("marker reported twice in one cycle: %s", r.Kind)
	}

	r = f.FeedString("main[1] ")
	if r.Kind != Complete || len(r.Events) != 0 {
		t.Errorf("expected plain Complete, got %s %+v", r.Kind, r.Events)
	}
}

func TestFramer_MarkerWithPrompt(t *testing.T) {
	f := newFramer(t, dialect.JDB)
	f.Begin()

	r := f.FeedString("Breakpoint hit: \"thread=main\", Hello.main(), line=5 bci=0\n5        int x = 1;\n\nmain[1] ")
	if r.Kind != Complete {
		t.Fatalf("expected Complete, got %s", r.Kind)
	}
	if len(r.Events) != 1 || r.Events[0].Kind != dialect.EventThreadStop {
		t.Errorf("expected thread-stop event with the response, got %+v", r.Events)
	}
}

func TestFramer_MaxBuffer(t *testing.T) {
	f := newFramer(t, dialect.GDB, WithMaxBuffer(8))
	f.Begin()

	r := f.FeedString("0123456789abcdef")
	if r.Kind != AsyncEvent || len(r.Events) != 1 || r.Events[0].Kind != dialect.EventOverflow {
		t.Fatalf("expected overflow event, got %s %+v", r.Kind, r.Events)
	}
	if f.Buffered() != 8 {
		t.Errorf("Buffered() = %d, want 8", f.Buffered())
	}

	r = f.FeedString("xyz")
	if r.Kind != Incomplete {
		t.Errorf("overflow should be reported once per cycle, got %s", r.Kind)
	}

	r = f.FeedString("\n(gdb) ")
	if r.Kind != Complete {
		t.Errorf("expected Complete after overflow, got %s", r.Kind)
	}
}

func TestFramer_Reset(t *testing.T) {
	f := newFramer(t, dialect.JDB)
	f.Begin()
	f.FeedString("dates[1] = 33\n")
	f.Reset()

	if f.Buffered() != 0 || f.Ambiguous() != 0 || f.LastPrompt() != "" || f.Recording() {
		t.Error("Reset did not clear state")
	}
}

func TestCutOffPrompt(t *testing.T) {
	literal := dialect.LiteralPrompt("(gdb)")
	pattern := dialect.JDB.Prompt()

	tests := []struct {
		name    string
		grammar dialect.PromptGrammar
		answer  string
		prompt  string
		want    string
	}{
		{"literal", literal, "x\n(gdb) ", "(gdb)", "x"},
		{"literal spaces", literal, "x  (gdb)", "(gdb)", "x"},
		{"literal last occurrence", literal, "(gdb) y\n(gdb) ", "(gdb)", "(gdb) y"},
		{"literal missing", literal, "x\n", "(gdb)", "x\n"},
		{"pattern suffix", pattern, "x\nmain[1] ", "main[1] ", "x"},
		{"pattern not suffix", pattern, "main[1] \nx", "main[1] ", "main[1] \nx"},
		{"crlf", pattern, "x\r\n> ", "> ", "x"},
		{"empty prompt", pattern, "x\n", "", "x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CutOffPrompt(tt.grammar, tt.answer, tt.prompt); got != tt.want {
				t.Errorf("CutOffPrompt(%q, %q) = %q, want %q", tt.answer, tt.prompt, got, tt.want)
			}
		})
	}
}

func TestCutOffPrompt_RoundTrip(t *testing.T) {
	bodies := []string{"", "x", "value = 5", "a\nb", "Breakpoint hit.", "  indented"}
	cases := []struct {
		profile *dialect.Profile
		prompt  string
	}{
		{dialect.GDB, "(gdb)"},
		{dialect.DBG, "dbg>"},
		{dialect.JDB, "main[1] "},
		{dialect.JDB, "> "},
	}

	for _, c := range cases {
		f := newFramer(t, c.profile)
		for _, body := range bodies {
			if got := f.CutOffPrompt(body+c.prompt, c.prompt); got != body {
				t.Errorf("%s: CutOffPrompt(%q) = %q, want %q", c.profile.Title(), body+c.prompt, got, body)
			}
			if got := f.CutOffPrompt(body+"\n"+c.prompt, c.prompt); got != body {
				t.Errorf("%s: CutOffPrompt(%q) = %q, want %q", c.profile.Title(), body+"\n"+c.prompt, got, body)
			}
		}
	}
}

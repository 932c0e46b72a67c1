// Package framing splits the unstructured output of a text debugger into
// responses.
//
// A Framer accumulates raw output until the dialect's prompt appears,
// then returns the response body with the prompt removed. Output that
// contains one of the dialect's marker strings is reported as an
// asynchronous event, even before the prompt arrives.
package framing

import (
	"log/slog"
	"strings"

	"github.com/dshills/dbgbridge/internal/integration/debug/dialect"
)

// ResultKind classifies the outcome of a Feed call.
type ResultKind int

const (
	// Incomplete means more output is needed.
	Incomplete ResultKind = iota
	// Complete means a prompt was found and the response is ready.
	Complete
	// AsyncEvent means marker output was seen but no prompt yet.
	AsyncEvent
)

// String returns the kind name.
func (k ResultKind) String() string {
	switch k {
	case Incomplete:
		return "incomplete"
	case Complete:
		return "complete"
	case AsyncEvent:
		return "async-event"
	default:
		return "unknown"
	}
}

// Event is unsolicited output recognized by a marker.
type Event struct {
	Kind dialect.EventKind
	// Text is the line holding the marker.
	Text string
}

// Result is the outcome of Feed.
type Result struct {
	Kind ResultKind

	// Body is the response without the prompt. Set for Complete.
	Body string
	// Prompt is the exact prompt text matched. Set for Complete.
	Prompt string

	// Events lists markers seen for the first time in this cycle. Always
	// set for AsyncEvent; a Complete result may carry events too.
	Events []Event
}

// Framer is an incremental response matcher for one session.
// It is not safe for concurrent use.
type Framer struct {
	grammar   dialect.PromptGrammar
	markers   []dialect.Marker
	matcher   promptMatcher
	maxBuffer int
	logger    *slog.Logger

	buf        strings.Builder
	recording  bool
	lastPrompt string
	ambiguous  int
	reported   map[string]bool
	overflowed bool
}

// Option configures a Framer.
type Option func(*Framer)

// WithMaxBuffer bounds the buffered output. When exceeded, the oldest
// bytes are dropped and an overflow event is reported. Zero means no bound.
func WithMaxBuffer(n int) Option {
	return func(f *Framer) {
		f.maxBuffer = n
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Framer) {
		f.logger = logger
	}
}

// New creates a framer for profile.
func New(profile *dialect.Profile, opts ...Option) (*Framer, error) {
	f := &Framer{
		grammar:  profile.Prompt(),
		markers:  profile.Markers(),
		reported: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}

	m, err := newMatcher(f.grammar, f.noteAmbiguous)
	if err != nil {
		return nil, err
	}
	f.matcher = m
	return f, nil
}

func (f *Framer) noteAmbiguous(line string) {
	f.ambiguous++
	f.logger.Debug("ambiguous prompt candidate", "line", line)
}

// Begin marks the start of a command: output is captured until the next
// prompt and markers may be reported again.
func (f *Framer) Begin() {
	f.recording = true
	f.clearCycle()
}

// Recording reports whether a command's output is being captured.
func (f *Framer) Recording() bool {
	return f.recording
}

// LastPrompt returns the prompt text matched most recently.
func (f *Framer) LastPrompt() string {
	return f.lastPrompt
}

// Ambiguous returns how many prompt-like lines were rejected so far.
func (f *Framer) Ambiguous() int {
	return f.ambiguous
}

// Buffered returns the number of buffered bytes.
func (f *Framer) Buffered() int {
	return f.buf.Len()
}

// Reset discards all state.
func (f *Framer) Reset() {
	f.buf.Reset()
	f.recording = false
	f.lastPrompt = ""
	f.ambiguous = 0
	f.clearCycle()
}

func (f *Framer) clearCycle() {
	clear(f.reported)
	f.overflowed = false
}

// CutOffPrompt removes prompt from the end of answer using the framer's
// prompt grammar.
func (f *Framer) CutOffPrompt(answer, prompt string) string {
	return CutOffPrompt(f.grammar, answer, prompt)
}

// Feed appends chunk to the buffer and reports whether a response is
// complete. On Complete the whole buffer is consumed.
func (f *Framer) Feed(chunk []byte) Result {
	f.buf.Write(chunk)

	var events []Event
	if f.maxBuffer > 0 && f.buf.Len() > f.maxBuffer {
		kept := f.buf.String()
		kept = kept[len(kept)-f.maxBuffer:]
		f.buf.Reset()
		f.buf.WriteString(kept)
		if !f.overflowed {
			f.overflowed = true
			events = append(events, Event{Kind: dialect.EventOverflow})
		}
		f.logger.Warn("output buffer overflow", "max", f.maxBuffer)
	}

	raw := f.buf.String()
	text := StripControl(raw)

	events = append(events, f.scanMarkers(text)...)

	prompt, ok := f.matcher.match(text)
	if !ok {
		if len(events) > 0 {
			return Result{Kind: AsyncEvent, Events: events}
		}
		return Result{Kind: Incomplete}
	}

	body := f.cut(raw, text, prompt)

	f.lastPrompt = prompt
	f.recording = false
	f.buf.Reset()
	f.clearCycle()

	return Result{Kind: Complete, Body: body, Prompt: prompt, Events: events}
}

// FeedString is Feed for string input.
func (f *Framer) FeedString(chunk string) Result {
	return f.Feed([]byte(chunk))
}

func (f *Framer) scanMarkers(text string) []Event {
	var events []Event
	for _, m := range f.markers {
		if f.reported[m.Text] {
			continue
		}
		idx := strings.Index(text, m.Text)
		if idx < 0 {
			continue
		}
		f.reported[m.Text] = true

		start := strings.LastIndexByte(text[:idx], '\n') + 1
		end := strings.IndexByte(text[idx:], '\n')
		if end < 0 {
			end = len(text)
		} else {
			end += idx
		}
		events = append(events, Event{Kind: m.Event, Text: text[start:end]})
	}
	return events
}

// cut removes the prompt from the raw buffer so that control bytes in
// the body survive. The stripped text is used when the raw buffer does
// not contain the prompt verbatim.
func (f *Framer) cut(raw, text, prompt string) string {
	idx := strings.LastIndex(raw, prompt)
	if idx < 0 {
		return CutOffPrompt(f.grammar, text, prompt)
	}
	if strings.TrimSpace(StripControl(raw[idx+len(prompt):])) != "" {
		return CutOffPrompt(f.grammar, raw, prompt)
	}

	// Control output sharing the prompt's line, such as a color code,
	// belongs to the prompt.
	body := raw[:idx]
	nl := strings.LastIndexByte(body, '\n')
	if strings.TrimSpace(StripControl(body[nl+1:])) == "" {
		body = body[:nl+1]
	}
	return CutOffPrompt(f.grammar, body+prompt, prompt)
}

package debug

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/eapache/queue"
	"github.com/google/uuid"

	"github.com/dshills/dbgbridge/internal/integration/debug/breakpoint"
	"github.com/dshills/dbgbridge/internal/integration/debug/command"
	"github.com/dshills/dbgbridge/internal/integration/debug/dialect"
	"github.com/dshills/dbgbridge/internal/integration/debug/framing"
)

// Event is backend output that does not answer a request.
type Event struct {
	Kind dialect.EventKind
	Text string
}

// Handlers contains callbacks for session events. Handlers run on the
// goroutine that delivered the triggering call, after the session lock
// has been released.
type Handlers struct {
	// OnEvent is called for exceptions, thread stops, overflow and
	// unsolicited prompt-terminated output.
	OnEvent func(Event)

	// OnMismatch is called when a breakpoint number prediction was wrong.
	OnMismatch func(*BreakpointNumberMismatchError)

	// OnSend is called for every command line written to the backend.
	OnSend func(line string)
}

// Session drives one text debugger over a half-duplex transport: at most
// one request is in flight, and it is resolved when the backend prints
// its prompt.
type Session struct {
	id         uuid.UUID
	profile    *dialect.Profile
	translator *command.Translator
	framer     *framing.Framer
	transport  Transport
	parsers    *breakpoint.Registry
	logger     *slog.Logger
	maxBuffer  int

	handlers   Handlers
	handlersMu sync.RWMutex

	mu             sync.Mutex
	pending        *Pending
	outbound       *queue.Queue
	nextBreakpoint int
	disconnected   bool
	closeErr       error
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithMaxBuffer bounds the framer buffer. Zero means no bound.
func WithMaxBuffer(n int) SessionOption {
	return func(s *Session) {
		s.maxBuffer = n
	}
}

// WithParsers sets the breakpoint-info parser registry.
func WithParsers(r *breakpoint.Registry) SessionOption {
	return func(s *Session) {
		s.parsers = r
	}
}

// WithHandlers sets the initial event handlers.
func WithHandlers(h Handlers) SessionOption {
	return func(s *Session) {
		s.handlers = h
	}
}

// WithID sets the session ID instead of generating one.
func WithID(id uuid.UUID) SessionOption {
	return func(s *Session) {
		s.id = id
	}
}

// NewSession creates a session for profile that writes commands to t.
func NewSession(profile *dialect.Profile, t Transport, opts ...SessionOption) (*Session, error) {
	s := &Session{
		id:         uuid.New(),
		profile:    profile,
		translator: command.New(profile),
		transport:  t,
		outbound:   queue.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.parsers == nil {
		s.parsers = breakpoint.NewRegistry()
	}
	s.logger = s.logger.With("session", s.id.String(), "backend", string(profile.Backend()))

	f, err := framing.New(profile,
		framing.WithMaxBuffer(s.maxBuffer),
		framing.WithLogger(s.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create framer: %w", err)
	}
	s.framer = f

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Profile returns the dialect in effect.
func (s *Session) Profile() *dialect.Profile {
	return s.profile
}

// Translator returns the command translator for the session's dialect.
func (s *Session) Translator() *command.Translator {
	return s.translator
}

// SetHandlers replaces the event handlers.
func (s *Session) SetHandlers(h Handlers) {
	s.handlersMu.Lock()
	s.handlers = h
	s.handlersMu.Unlock()
}

func (s *Session) getHandlers() Handlers {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	return s.handlers
}

// Busy reports whether a request is waiting for its response.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Disconnected reports whether the transport is gone.
func (s *Session) Disconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}

// LastPrompt returns the prompt text recognized most recently.
func (s *Session) LastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.framer.LastPrompt()
}

// NextBreakpointNumber returns the number of the most recently created
// breakpoint. It starts at zero and never decreases.
func (s *Session) NextBreakpointNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextBreakpoint
}

// notifier collects callbacks to run after the session lock is released.
type notifier []func()

func (n *notifier) add(fn func()) {
	*n = append(*n, fn)
}

func (n notifier) run() {
	for _, fn := range n {
		fn()
	}
}

// Execute renders op, sends its first command line and returns a handle
// resolved when the backend answers every line of it.
func (s *Session) Execute(op command.Operation) (*Pending, error) {
	var after notifier
	defer func() { after.run() }()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.executeLocked(op, 0, &after)
}

func (s *Session) executeLocked(op command.Operation, predicted int, after *notifier) (*Pending, error) {
	if s.disconnected {
		return nil, s.disconnectedErr()
	}
	if s.pending != nil {
		return nil, ErrProtocolBusy
	}

	lines, err := s.translator.Render(op)
	if err != nil {
		return nil, err
	}

	p := newPending(op, lines)
	p.predicted = predicted
	for _, line := range lines[1:] {
		s.outbound.Add(line)
	}

	s.pending = p
	if err := s.sendLocked(lines[0], after); err != nil {
		s.pending = nil
		s.drainOutbound()
		return nil, err
	}

	s.logger.Debug("request sent", "op", op.String(), "lines", len(lines))
	return p, nil
}

func (s *Session) sendLocked(line string, after *notifier) error {
	s.framer.Begin()
	if err := s.transport.Send(line + s.profile.LineTerminator()); err != nil {
		return fmt.Errorf("send %q: %w", line, err)
	}
	if h := s.getHandlers(); h.OnSend != nil {
		after.add(func() { h.OnSend(line) })
	}
	return nil
}

func (s *Session) drainOutbound() {
	for s.outbound.Length() > 0 {
		s.outbound.Remove()
	}
}

// SetBreakpoint creates (set) or clears a breakpoint at position. On set,
// the breakpoint counter is incremented and the predicted number of the
// new breakpoint is returned; a condition is attached to that number. The
// prediction is checked against the backend's answer when the request
// completes.
func (s *Session) SetBreakpoint(position string, set, temporary bool, cond string) (*Pending, int, error) {
	var after notifier
	defer func() { after.run() }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !set {
		p, err := s.executeLocked(command.Clear(position), 0, &after)
		return p, 0, err
	}

	predicted := s.nextBreakpoint + 1
	op := command.Break(position, temporary, cond)
	op.Number = predicted

	p, err := s.executeLocked(op, predicted, &after)
	if err != nil {
		return nil, 0, err
	}
	s.nextBreakpoint = predicted
	return p, predicted, nil
}

// RestoreBreakpoint renders the commands recreating desc as breakpoint
// number. See command.Translator.RestoreBreakpoint.
func (s *Session) RestoreBreakpoint(desc breakpoint.Descriptor, position string, number int, cond string, asDummy bool) (string, error) {
	return s.translator.RestoreBreakpoint(desc, position, number, cond, asDummy)
}

// ParseBreakpointInfo parses breakpoint listing text with the parser
// registered for the session's backend.
func (s *Session) ParseBreakpointInfo(text string) ([]breakpoint.Info, error) {
	p, err := s.parsers.Lookup(string(s.profile.Backend()))
	if err != nil {
		return nil, err
	}
	return p.Parse(text)
}

// OnBytes feeds raw backend output to the session. Calls must be
// serialized; Pump does this for a reader.
func (s *Session) OnBytes(chunk []byte) {
	var after notifier
	defer func() { after.run() }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disconnected {
		return
	}

	r := s.framer.Feed(chunk)
	h := s.getHandlers()
	for _, ev := range r.Events {
		s.dispatchLocked(Event{Kind: ev.Kind, Text: ev.Text}, h, &after)
	}

	if r.Kind != framing.Complete {
		return
	}

	p := s.pending
	if p == nil {
		s.dispatchLocked(Event{Kind: dialect.EventUnsolicited, Text: r.Body}, h, &after)
		return
	}

	p.bodies = append(p.bodies, r.Body)
	p.prompt = r.Prompt

	if s.outbound.Length() > 0 {
		line := s.outbound.Remove().(string)
		if err := s.sendLocked(line, &after); err != nil {
			s.pending = nil
			s.drainOutbound()
			p.resolve(nil, err)
		}
		return
	}

	s.pending = nil
	resp := p.buildResponse()
	if mismatch := s.reconcileLocked(p); mismatch != nil {
		resp.Warnings = append(resp.Warnings, mismatch)
		if h.OnMismatch != nil {
			after.add(func() { h.OnMismatch(mismatch) })
		}
	}
	p.resolve(resp, nil)
}

func (s *Session) dispatchLocked(ev Event, h Handlers, after *notifier) {
	s.logger.Debug("async event", "kind", ev.Kind.String())
	if h.OnEvent != nil {
		after.add(func() { h.OnEvent(ev) })
	}
}

// reconcileLocked compares the predicted breakpoint number of p with the
// one the backend reported and advances the counter if the backend is
// ahead.
func (s *Session) reconcileLocked(p *Pending) *BreakpointNumberMismatchError {
	if p.predicted == 0 || len(p.bodies) == 0 {
		return nil
	}
	actual, ok := s.profile.BreakpointNumber(p.bodies[0])
	if !ok || actual == p.predicted {
		return nil
	}

	if actual > s.nextBreakpoint {
		s.nextBreakpoint = actual
	}
	s.logger.Warn("breakpoint number mismatch",
		"position", p.op.Position, "predicted", p.predicted, "actual", actual)

	return &BreakpointNumberMismatchError{
		Position:  p.op.Position,
		Predicted: p.predicted,
		Actual:    actual,
	}
}

// Disconnect marks the transport as gone. A pending request fails with
// ErrDisconnected, as does every later call. cause may be nil.
func (s *Session) Disconnect(cause error) {
	s.mu.Lock()
	if s.disconnected {
		s.mu.Unlock()
		return
	}
	s.disconnected = true
	s.closeErr = cause
	p := s.pending
	s.pending = nil
	s.drainOutbound()
	err := s.disconnectedErr()
	s.mu.Unlock()

	if cause != nil {
		s.logger.Info("session disconnected", "cause", cause)
	} else {
		s.logger.Info("session disconnected")
	}
	if p != nil {
		p.resolve(nil, err)
	}
}

func (s *Session) disconnectedErr() error {
	if s.closeErr != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, s.closeErr)
	}
	return ErrDisconnected
}

// Close disconnects the session and closes the transport.
func (s *Session) Close() error {
	s.Disconnect(nil)
	return s.transport.Close()
}

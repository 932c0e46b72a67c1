// Package debug drives text-oriented command-line debuggers such as GDB,
// DBG and JDB behind one request/response interface.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                           Session                               │
//	│  - One backend process, one request in flight                   │
//	│  - Breakpoint number prediction and reconciliation              │
//	│  - Async event dispatch (exceptions, thread stops)              │
//	└─────────────────────────────────────────────────────────────────┘
//	          │ command.Operation                 ▲ raw bytes
//	          ▼                                   │
//	┌──────────────────────────┐      ┌──────────────────────────────┐
//	│   command.Translator     │      │      framing.Framer          │
//	│   operation -> text      │      │   bytes -> response | event  │
//	└──────────────────────────┘      └──────────────────────────────┘
//	          │                                   ▲
//	          └──────────── dialect.Profile ──────┘
//
// A dialect.Profile is a static table describing one backend: its
// capabilities, command tokens and prompt grammar. Profiles are shared
// read-only by all sessions of the same backend.
//
// # Requests
//
// Execute renders an operation and sends its first command line. The
// returned Pending is resolved when the backend prints its prompt after
// the last line. Issuing a second request before that fails with
// ErrProtocolBusy. When the transport goes away the pending request and
// every later call fail with ErrDisconnected.
//
// # Breakpoints
//
// SetBreakpoint predicts the number the backend will assign to a new
// breakpoint so that a condition can be attached in the same request.
// When the backend reports a different number, the response carries a
// *BreakpointNumberMismatchError warning and Handlers.OnMismatch is called.
//
// # Usage
//
//	profile, _ := dialect.NewRegistry().Lookup(dialect.BackendGDB)
//	transport := debug.NewStdioTransport(proc, proc)
//	session, _ := debug.NewSession(profile, transport)
//	go debug.Pump(ctx, proc, session)
//
//	p, num, _ := session.SetBreakpoint("main.c:12", true, false, "argc > 1")
//	resp, err := p.Wait(ctx)
//
// # Subpackages
//
//   - breakpoint: breakpoint descriptors and listing parsers
//   - dialect: backend profiles and prompt grammars
//   - command: operation to command text translation
//   - framing: response framing over raw output
package debug

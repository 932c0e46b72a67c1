package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/dbgbridge/internal/config"
	"github.com/dshills/dbgbridge/internal/integration/debug"
	"github.com/dshills/dbgbridge/internal/integration/debug/breakpoint"
	"github.com/dshills/dbgbridge/internal/integration/debug/command"
	"github.com/dshills/dbgbridge/internal/integration/debug/dialect"
	"github.com/dshills/dbgbridge/internal/integration/process"
)

// Options configures the application.
type Options struct {
	// ConfigPath is the TOML or YAML configuration file. Empty means
	// defaults and environment only.
	ConfigPath string

	// Backend overrides session.backend.
	Backend string

	// LogLevel overrides log.level.
	LogLevel string

	// Command overrides the debugger command line. The first element is
	// the executable.
	Command []string

	// Input supplies console lines. Defaults to os.Stdin.
	Input io.Reader

	// Output receives debugger output. Defaults to os.Stdout.
	Output io.Writer

	// ErrOutput receives logs when no log file is configured. Defaults
	// to os.Stderr.
	ErrOutput io.Writer

	// Watch reloads the configuration file when it changes.
	Watch bool
}

// Application runs one debugger behind a console.
type Application struct {
	opts     Options
	logger   *slog.Logger
	levelVar *slog.LevelVar
	logFile  *os.File

	supervisor *process.Supervisor

	mu       sync.Mutex
	cfg      *config.Config
	dialects *config.Dialects
	retired  []*config.Dialects
	session  *debug.Session
	proc     *process.Process
	pumpDone chan error

	outMu sync.Mutex
	out   io.Writer

	running      atomic.Bool
	done         chan struct{}
	shutdownOnce sync.Once
	shutdownErr  error

	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

// New loads the configuration and prepares the application. No debugger
// is started until Start or Run.
func New(opts Options) (*Application, error) {
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.ErrOutput == nil {
		opts.ErrOutput = os.Stderr
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, NewComponentError("config", "load", err)
	}
	if err := applyOverrides(cfg, opts); err != nil {
		return nil, NewComponentError("config", "apply flags", err)
	}

	a := &Application{
		opts:     opts,
		cfg:      cfg,
		levelVar: new(slog.LevelVar),
		out:      opts.Output,
		done:     make(chan struct{}),
	}

	logOut := opts.ErrOutput
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, NewComponentError("log", "open file", err)
		}
		a.logFile = f
		logOut = f
	}
	a.logger = NewLogger(LoggerConfig{
		Level:    ParseLogLevel(cfg.Log.Level),
		Output:   logOut,
		Format:   cfg.Log.Format,
		LevelVar: a.levelVar,
	})

	a.dialects, err = cfg.BuildDialects(WithComponent(a.logger, "config"))
	if err != nil {
		a.closeLog()
		return nil, NewComponentError("config", "build dialects", err)
	}

	a.supervisor = process.NewSupervisor(
		process.WithGracePeriod(cfg.Session.Grace()),
		process.WithLogger(WithComponent(a.logger, "process")),
		process.WithExitCallback(func(p *process.Process) {
			a.logger.Info("debugger exited", "process", p.ID, "state", p.State().String(), "code", p.ExitCode())
		}),
	)

	return a, nil
}

// applyOverrides applies command-line settings over cfg and validates
// the result.
func applyOverrides(cfg *config.Config, opts Options) error {
	if opts.Backend != "" {
		cfg.Session.Backend = opts.Backend
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if len(opts.Command) > 0 {
		cfg.Session.Command = opts.Command[0]
		cfg.Session.Args = append([]string(nil), opts.Command[1:]...)
	}
	return cfg.Validate()
}

// Logger returns the application logger.
func (a *Application) Logger() *slog.Logger {
	return a.logger
}

// Config returns the configuration in effect.
func (a *Application) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Session returns the active debug session, or nil.
func (a *Application) Session() *debug.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// Busy reports whether a request is waiting for the debugger.
func (a *Application) Busy() bool {
	s := a.Session()
	return s != nil && s.Busy()
}

// Start launches the debugger and waits for its first prompt.
func (a *Application) Start(ctx context.Context) error {
	if a.Session() != nil {
		return ErrAlreadyRunning
	}
	return a.launch(ctx)
}

// profile resolves the dialect for the current configuration.
func (a *Application) profile() (*dialect.Profile, error) {
	a.mu.Lock()
	cfg, dialects := a.cfg, a.dialects
	a.mu.Unlock()

	backend := dialect.Backend(cfg.Session.Backend)
	if backend == "" {
		backend = dialect.DetectBackend(cfg.Session.Command)
	}
	return dialects.Profiles.Lookup(backend)
}

func (a *Application) launch(ctx context.Context) error {
	profile, err := a.profile()
	if err != nil {
		return NewComponentError("session", "select dialect", err)
	}

	a.mu.Lock()
	cfg, parsers := a.cfg, a.dialects.Parsers
	a.mu.Unlock()

	proc, err := a.supervisor.Launch(process.Spec{
		Name:        string(profile.Backend()),
		Path:        cfg.Session.Command,
		Args:        cfg.Session.Args,
		Dir:         cfg.Session.Dir,
		MergeStderr: cfg.Session.MergeStderr,
	})
	if err != nil {
		return NewComponentError("process", "launch", err)
	}

	ready := make(chan struct{})
	var readyOnce sync.Once
	session, err := debug.NewSession(profile, debug.NewStdioTransport(proc, proc),
		debug.WithLogger(WithComponent(a.logger, "session")),
		debug.WithMaxBuffer(cfg.Session.MaxBuffer),
		debug.WithParsers(parsers),
		debug.WithHandlers(debug.Handlers{
			OnEvent: func(ev debug.Event) {
				a.printEvent(ev)
				if ev.Kind == dialect.EventUnsolicited {
					readyOnce.Do(func() { close(ready) })
				}
			},
			OnMismatch: func(e *debug.BreakpointNumberMismatchError) {
				a.logger.Warn("breakpoint renumbered", "position", e.Position,
					"predicted", e.Predicted, "actual", e.Actual)
			},
			OnSend: func(line string) {
				a.logger.Debug("command sent", "line", line)
			},
		}),
	)
	if err != nil {
		a.abandon(proc)
		return NewComponentError("session", "create", err)
	}

	pumpDone := make(chan error, 1)
	go func() {
		pumpDone <- debug.Pump(context.Background(), proc, session)
	}()

	timer := time.NewTimer(cfg.Session.Timeout())
	defer timer.Stop()

	select {
	case <-ready:
	case err := <-pumpDone:
		a.abandon(proc)
		if err == nil {
			err = fmt.Errorf("exited with code %d before its first prompt", proc.ExitCode())
		}
		return NewComponentError("session", "start", err)
	case <-timer.C:
		_ = session.Close()
		a.abandon(proc)
		return NewComponentError("session", "start", fmt.Errorf("%w: no prompt from %s", ErrRequestTimeout, profile.Title()))
	case <-ctx.Done():
		_ = session.Close()
		a.abandon(proc)
		return ctx.Err()
	}

	a.mu.Lock()
	a.session, a.proc, a.pumpDone = session, proc, pumpDone
	a.mu.Unlock()

	a.logger.Info("debugger ready", "backend", string(profile.Backend()),
		"pid", proc.PID(), "session", session.ID().String())
	return nil
}

// abandon stops a debugger that never became a session.
func (a *Application) abandon(proc *process.Process) {
	ctx, cancel := context.WithTimeout(context.Background(), a.stopTimeout())
	defer cancel()
	if err := a.supervisor.Stop(ctx, proc.ID); err != nil && !errors.Is(err, process.ErrProcessNotFound) {
		a.logger.Warn("stop debugger", "error", err)
	}
	proc.Release()
}

// stopTimeout covers every escalation step of a stop.
func (a *Application) stopTimeout() time.Duration {
	return 4 * a.Config().Session.Grace()
}

// Run starts the debugger if needed and serves console lines until the
// input ends, :quit is entered, the debugger exits or ctx is done.
func (a *Application) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer a.running.Store(false)

	select {
	case <-a.done:
		return ErrNotRunning
	default:
	}

	if a.Session() == nil {
		if err := a.Start(ctx); err != nil {
			return err
		}
	}
	if a.opts.Watch && a.opts.ConfigPath != "" {
		if err := a.watch(ctx); err != nil {
			a.logger.Warn("config watch disabled", "error", err)
		}
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	go a.readInput(lines, readErr)

	a.showPrompt()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.done:
			return nil
		case err := <-a.currentPumpDone():
			a.printf("debugger exited\n")
			return err
		case err := <-readErr:
			return err
		case line := <-lines:
			if err := a.handleLine(ctx, line); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				a.printf("error: %v\n", err)
			}
			a.showPrompt()
		}
	}
}

func (a *Application) currentPumpDone() <-chan error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pumpDone
}

func (a *Application) readInput(lines chan<- string, readErr chan<- error) {
	scanner := bufio.NewScanner(a.opts.Input)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-a.done:
			return
		}
	}
	readErr <- scanner.Err()
}

// handleLine runs one console line and prints the result.
func (a *Application) handleLine(ctx context.Context, line string) error {
	cmd, err := ParseLine(line)
	if err != nil {
		return err
	}

	switch cmd.Action {
	case ActionQuit:
		return ErrQuit
	case ActionHelp:
		a.printf("%s", Help())
		return nil
	case ActionInterrupt:
		return a.Interrupt()
	case ActionRestart:
		return a.Restart(ctx)
	}

	s := a.Session()
	if s == nil {
		return ErrNotRunning
	}

	var p *debug.Pending
	switch cmd.Action {
	case ActionBreakpoint:
		var number int
		p, number, err = s.SetBreakpoint(cmd.Position, cmd.Set, cmd.Temporary, cmd.Condition)
		if err == nil && number > 0 {
			a.logger.Debug("breakpoint requested", "position", cmd.Position, "number", number)
		}
	case ActionInfo:
		p, err = s.Execute(command.InfoBreakpoints())
	default:
		p, err = s.Execute(cmd.Op)
	}
	if err != nil {
		return err
	}

	resp, err := a.await(ctx, p)
	if err != nil {
		return err
	}

	if cmd.Action == ActionInfo {
		a.printBreakpoints(s, resp.Output)
	} else {
		a.printOutput(resp.Output)
	}
	for _, w := range resp.Warnings {
		a.printf("warning: %v\n", w)
	}
	return nil
}

// await waits for p within the configured request timeout.
func (a *Application) await(ctx context.Context, p *debug.Pending) (*debug.Response, error) {
	wctx, cancel := context.WithTimeout(ctx, a.Config().Session.Timeout())
	defer cancel()

	resp, err := p.Wait(wctx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, fmt.Errorf("%w: %s", ErrRequestTimeout, p.Op())
	}
	return resp, err
}

// Interrupt sends SIGINT to the debugger, stopping the debugged program.
func (a *Application) Interrupt() error {
	a.mu.Lock()
	proc := a.proc
	a.mu.Unlock()

	if proc == nil {
		return ErrNotRunning
	}
	a.logger.Debug("interrupting debugger", "process", proc.ID)
	return a.supervisor.Interrupt(proc.ID)
}

// Restart stops the debugger and launches a new one with the current
// configuration, including dialects reloaded since the last start.
func (a *Application) Restart(ctx context.Context) error {
	a.mu.Lock()
	session, proc, pumpDone := a.session, a.proc, a.pumpDone
	a.session, a.proc, a.pumpDone = nil, nil, nil
	a.mu.Unlock()

	if session != nil {
		_ = session.Close()
		a.stopProcess(ctx, proc, pumpDone)
	}
	a.logger.Info("restarting debugger")
	return a.launch(ctx)
}

// stopProcess stops proc, waits for its output to drain and releases it.
func (a *Application) stopProcess(ctx context.Context, proc *process.Process, pumpDone <-chan error) {
	sctx, cancel := context.WithTimeout(ctx, a.stopTimeout())
	defer cancel()

	if err := a.supervisor.Stop(sctx, proc.ID); err != nil && !errors.Is(err, process.ErrProcessNotFound) {
		a.logger.Warn("stop debugger", "error", err)
	}
	select {
	case <-pumpDone:
	case <-sctx.Done():
	}
	proc.Release()
}

func (a *Application) watch(ctx context.Context) error {
	w, err := config.NewWatcher(a.opts.ConfigPath, config.WithWatchLogger(WithComponent(a.logger, "config")))
	if err != nil {
		return err
	}

	wctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	a.mu.Lock()
	a.watchCancel, a.watchDone = cancel, done
	a.mu.Unlock()

	go func() {
		defer close(done)
		_ = w.Run(wctx, a.reload)
	}()
	return nil
}

// reload applies a changed configuration. The log level changes at
// once; dialects and session settings apply from the next restart.
func (a *Application) reload(cfg *config.Config, err error) {
	if err != nil {
		a.logger.Error("config reload failed", "error", err)
		return
	}
	if err := applyOverrides(cfg, a.opts); err != nil {
		a.logger.Error("config reload failed", "error", err)
		return
	}
	dialects, err := cfg.BuildDialects(WithComponent(a.logger, "config"))
	if err != nil {
		a.logger.Error("config reload failed", "error", err)
		return
	}

	a.mu.Lock()
	// Parsers of the running session may still be in use.
	a.retired = append(a.retired, a.dialects)
	a.dialects = dialects
	a.cfg = cfg
	a.mu.Unlock()

	a.levelVar.Set(ParseLogLevel(cfg.Log.Level).Slog())

	a.logger.Info("configuration applied", "level", cfg.Log.Level, "dialects", len(cfg.Dialects))
}

// Shutdown stops the debugger and releases every resource. Later calls
// return the first result.
func (a *Application) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		close(a.done)

		a.mu.Lock()
		session, pumpDone := a.session, a.pumpDone
		watchCancel, watchDone := a.watchCancel, a.watchDone
		a.mu.Unlock()

		if watchCancel != nil {
			watchCancel()
			<-watchDone
		}

		var errs []error
		if session != nil {
			_ = session.Close()
		}
		if err := a.supervisor.Shutdown(ctx); err != nil {
			errs = append(errs, NewComponentError("process", "shutdown", err))
		}
		if pumpDone != nil {
			select {
			case <-pumpDone:
			case <-ctx.Done():
			}
		}

		a.mu.Lock()
		all := append(a.retired, a.dialects)
		a.retired, a.dialects = nil, nil
		a.mu.Unlock()
		for _, d := range all {
			if d == nil {
				continue
			}
			if err := d.Close(); err != nil {
				errs = append(errs, NewComponentError("config", "close dialects", err))
			}
		}

		a.logger.Info("shutdown complete")
		a.closeLog()
		a.shutdownErr = errors.Join(errs...)
	})
	return a.shutdownErr
}

func (a *Application) closeLog() {
	if a.logFile != nil {
		_ = a.logFile.Close()
		a.logFile = nil
	}
}

func (a *Application) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

func (a *Application) printOutput(text string) {
	if text == "" {
		return
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	a.printf("%s", text)
}

func (a *Application) showPrompt() {
	if s := a.Session(); s != nil {
		a.printf("%s ", strings.TrimSpace(s.LastPrompt()))
	}
}

func (a *Application) printEvent(ev debug.Event) {
	switch ev.Kind {
	case dialect.EventUnsolicited:
		a.printOutput(ev.Text)
	case dialect.EventOverflow:
		a.printf("[overflow] debugger output truncated\n")
	default:
		a.printf("[%s] %s\n", ev.Kind, ev.Text)
	}
}

func (a *Application) printBreakpoints(s *debug.Session, listing string) {
	infos, err := s.ParseBreakpointInfo(listing)
	if err != nil {
		a.logger.Warn("breakpoint listing not parsed", "error", err)
		a.printOutput(listing)
		return
	}
	if len(infos) == 0 {
		a.printf("no breakpoints\n")
		return
	}
	for _, info := range infos {
		a.printf("%s\n", formatBreakpoint(info))
	}
}

func formatBreakpoint(info breakpoint.Info) string {
	state := "enabled"
	if !info.Enabled {
		state = "disabled"
	}
	where := info.Position
	if where == "" {
		where = info.Address
	}

	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s %s %s at %s", info.Number, info.Kind, info.Disposition, state, where)
	if info.Condition != "" {
		fmt.Fprintf(&b, " if %s", info.Condition)
	}
	if info.IgnoreCount > 0 {
		fmt.Fprintf(&b, " (ignore %d)", info.IgnoreCount)
	}
	if info.HitCount > 0 {
		fmt.Fprintf(&b, " (hit %d)", info.HitCount)
	}
	return b.String()
}

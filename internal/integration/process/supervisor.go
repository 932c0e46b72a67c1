package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Supervisor launches debugger processes and tears them down.
//
// Shutdown first closes each debugger's input, which makes GDB, DBG and
// JDB quit on their own, then escalates to SIGTERM and finally SIGKILL.
//
// Supervisor is safe for concurrent use.
type Supervisor struct {
	mu        sync.RWMutex
	processes map[string]*Process

	closed atomic.Bool

	// maxProcesses limits concurrent debuggers (0 = unlimited)
	maxProcesses int

	// grace is how long Shutdown waits after each escalation step
	grace time.Duration

	onExit func(p *Process)
	logger *slog.Logger
	wg     sync.WaitGroup
}

// SupervisorOption configures a Supervisor instance.
type SupervisorOption func(*Supervisor)

// WithMaxProcesses sets the maximum number of concurrent debuggers.
// A value of 0 (default) means unlimited.
func WithMaxProcesses(max int) SupervisorOption {
	return func(s *Supervisor) {
		s.maxProcesses = max
	}
}

// WithExitCallback sets a callback run when a debugger exits.
func WithExitCallback(fn func(p *Process)) SupervisorOption {
	return func(s *Supervisor) {
		s.onExit = fn
	}
}

// WithGracePeriod sets how long Shutdown waits for debuggers to quit
// before escalating to the next signal. The default is one second.
func WithGracePeriod(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.grace = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// NewSupervisor creates a new debugger supervisor.
func NewSupervisor(opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		processes: make(map[string]*Process),
		grace:     time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Launch starts the debugger described by spec and tracks it until it
// exits.
//
// Returns ErrSupervisorShutdown if the supervisor is shutting down.
func (s *Supervisor) Launch(spec Spec) (*Process, error) {
	return s.LaunchWithID(uuid.New().String(), spec)
}

// LaunchWithID is Launch with a caller-chosen ID.
func (s *Supervisor) LaunchWithID(id string, spec Spec) (*Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, ErrSupervisorShutdown
	}
	if s.maxProcesses > 0 && len(s.processes) >= s.maxProcesses {
		return nil, fmt.Errorf("%w: %d", ErrProcessLimit, s.maxProcesses)
	}
	if _, exists := s.processes[id]; exists {
		return nil, fmt.Errorf("process ID already exists: %s", id)
	}

	proc, err := newProcess(id, spec, s.logger)
	if err != nil {
		return nil, err
	}
	if err := proc.start(); err != nil {
		proc.Release()
		return nil, err
	}

	s.processes[id] = proc
	s.wg.Add(1)
	go s.monitor(proc)

	return proc, nil
}

func (s *Supervisor) monitor(proc *Process) {
	defer s.wg.Done()
	<-proc.Done()

	if s.onExit != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("exit callback panicked", "process", proc.ID, "panic", r)
				}
			}()
			s.onExit(proc)
		}()
	}

	s.mu.Lock()
	delete(s.processes, proc.ID)
	s.mu.Unlock()
}

// Get returns a process by ID, or nil if it is not tracked.
func (s *Supervisor) Get(id string) *Process {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processes[id]
}

// List returns all tracked processes.
func (s *Supervisor) List() []*Process {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Process, 0, len(s.processes))
	for _, p := range s.processes {
		result = append(result, p)
	}
	return result
}

// Count returns the number of tracked processes.
func (s *Supervisor) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.processes)
}

// Interrupt sends SIGINT to the debugger with the given ID.
func (s *Supervisor) Interrupt(id string) error {
	proc := s.Get(id)
	if proc == nil {
		return ErrProcessNotFound
	}
	return proc.Interrupt()
}

// IsShuttingDown returns true once Shutdown has been called.
func (s *Supervisor) IsShuttingDown() bool {
	return s.closed.Load()
}

// Stop ends the debugger with the given ID the way Shutdown does and
// waits for it to exit. Its pipes stay open until Release.
func (s *Supervisor) Stop(ctx context.Context, id string) error {
	proc := s.Get(id)
	if proc == nil {
		return ErrProcessNotFound
	}
	return s.stop(ctx, []*Process{proc})
}

// Shutdown stops every tracked debugger: input is closed, then SIGTERM
// and SIGKILL follow, each after the grace period. It returns ctx.Err()
// if ctx ends before all processes are gone. Later calls are no-ops.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}

	procs := s.List()
	if err := s.stop(ctx, procs); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	for _, p := range procs {
		p.Release()
	}
	return nil
}

var stopSteps = []struct {
	name string
	fn   func(*Process) error
}{
	{"close input", (*Process).Close},
	{"terminate", (*Process).Terminate},
	{"kill", (*Process).Kill},
}

func (s *Supervisor) stop(ctx context.Context, procs []*Process) error {
	for _, step := range stopSteps {
		remaining := running(procs)
		if len(remaining) == 0 {
			return nil
		}
		s.logger.Debug("stop step", "step", step.name, "processes", len(remaining))
		for _, p := range remaining {
			if err := step.fn(p); err != nil && !errors.Is(err, ErrProcessNotStarted) {
				s.logger.Warn("stop step failed", "step", step.name, "process", p.ID, "error", err)
			}
		}
		if err := waitAll(ctx, remaining, s.grace); err != nil {
			return err
		}
	}
	for _, p := range running(procs) {
		select {
		case <-p.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func running(procs []*Process) []*Process {
	var out []*Process
	for _, p := range procs {
		if !p.HasExited() {
			out = append(out, p)
		}
	}
	return out
}

// waitAll waits until every process exits, grace elapses or ctx ends.
// Only ctx ending is an error.
func waitAll(ctx context.Context, procs []*Process, grace time.Duration) error {
	timer := time.NewTimer(grace)
	defer timer.Stop()

	for _, p := range procs {
		select {
		case <-p.Done():
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Sentinel errors.
var (
	// ErrProcessNotFound is returned when a process ID is not tracked.
	ErrProcessNotFound = errors.New("process not found")

	// ErrSupervisorShutdown is returned when the supervisor is shutting down.
	ErrSupervisorShutdown = errors.New("supervisor is shutting down")

	// ErrProcessLimit is returned when the process limit is reached.
	ErrProcessLimit = errors.New("process limit reached")
)

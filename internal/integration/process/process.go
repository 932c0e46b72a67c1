package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// State represents the lifecycle state of a debugger process.
type State int

const (
	// StateCreated indicates the process has been prepared but not started.
	StateCreated State = iota
	// StateRunning indicates the debugger is alive.
	StateRunning
	// StateExited indicates the debugger exited on its own.
	StateExited
	// StateKilled indicates the debugger was terminated by a signal.
	StateKilled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Spec describes a debugger to launch.
type Spec struct {
	// Name labels the process in logs, e.g. "gdb".
	Name string

	// Path is the debugger executable.
	Path string

	// Args are the arguments after the executable.
	Args []string

	// Dir is the working directory. Empty means the current one.
	Dir string

	// Env is appended to the inherited environment.
	Env []string

	// MergeStderr sends stderr into the output stream. Debuggers print
	// error messages on stderr and the prompt on stdout; merging keeps
	// both inside the same framed response.
	MergeStderr bool
}

// Validate checks the spec for missing fields.
func (s Spec) Validate() error {
	if s.Path == "" {
		return ErrNoExecutable
	}
	return nil
}

func (s Spec) label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Path
}

// Process is a running debugger with its standard streams.
//
// Process implements io.Reader over the debugger output and io.Writer
// over its input, so it can be handed directly to debug.Pump and
// debug.NewStdioTransport. Close closes the input stream, which makes
// most debuggers exit.
type Process struct {
	// ID is the unique identifier assigned by the Supervisor.
	ID string

	// Name is the label from the Spec.
	Name string

	// Cmd is the underlying exec.Cmd.
	Cmd *exec.Cmd

	// Started is the time the process was started.
	Started time.Time

	stdin  io.WriteCloser
	output *os.File
	stderr *os.File

	// parent-side write ends, closed after start
	childOut *os.File
	childErr *os.File

	logger *slog.Logger

	done     chan struct{}
	state    atomic.Int32
	exitCode atomic.Int32

	mu      sync.RWMutex
	exitErr error

	inOnce  sync.Once
	inErr   error
	outOnce sync.Once
}

// newProcess prepares a Process for spec. Pipes are created but the
// command is not started.
func newProcess(id string, spec Spec, logger *slog.Logger) (*Process, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	p := &Process{
		ID:     id,
		Name:   spec.label(),
		Cmd:    cmd,
		logger: logger.With("process", id, "name", spec.label()),
		done:   make(chan struct{}),
	}
	p.state.Store(int32(StateCreated))
	p.exitCode.Store(-1)

	if err := p.setupPipes(spec.MergeStderr); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

// setupPipes wires the child's streams. Output uses os.Pipe rather than
// cmd.StdoutPipe so that Wait does not close the read end while the
// remaining output is still being consumed.
func (p *Process) setupPipes(merge bool) error {
	stdin, err := p.Cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	p.stdin = stdin

	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create output pipe: %w", err)
	}
	p.output, p.childOut = r, w
	p.Cmd.Stdout = w

	if merge {
		p.Cmd.Stderr = w
		return nil
	}

	er, ew, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create stderr pipe: %w", err)
	}
	p.stderr, p.childErr = er, ew
	p.Cmd.Stderr = ew
	return nil
}

// State returns the current process state.
func (p *Process) State() State {
	return State(p.state.Load())
}

// ExitCode returns the exit code, or -1 if the process has not exited.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// ExitError returns the error from waiting on the process, if any.
func (p *Process) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// Done returns a channel that is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// IsRunning returns true if the debugger is alive.
func (p *Process) IsRunning() bool {
	return p.State() == StateRunning
}

// HasExited returns true if the process has exited or was killed.
func (p *Process) HasExited() bool {
	state := p.State()
	return state == StateExited || state == StateKilled
}

// PID returns the operating system process ID, or -1 if not started.
func (p *Process) PID() int {
	if p.Cmd.Process == nil {
		return -1
	}
	return p.Cmd.Process.Pid
}

// Runtime returns how long the process has been running.
func (p *Process) Runtime() time.Duration {
	if p.Started.IsZero() {
		return 0
	}
	return time.Since(p.Started)
}

// Read reads debugger output. It returns io.EOF once the debugger has
// exited and all output has been consumed.
func (p *Process) Read(b []byte) (int, error) {
	return p.output.Read(b)
}

// Write writes command text to the debugger input.
func (p *Process) Write(b []byte) (int, error) {
	if p.State() == StateCreated {
		return 0, ErrProcessNotStarted
	}
	return p.stdin.Write(b)
}

// Close closes the debugger input. This does not kill the process.
// Later calls return the result of the first.
func (p *Process) Close() error {
	p.inOnce.Do(func() {
		if err := p.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			p.inErr = fmt.Errorf("close stdin: %w", err)
		}
	})
	return p.inErr
}

// Signal sends sig to the debugger.
func (p *Process) Signal(sig os.Signal) error {
	if !p.IsRunning() || p.Cmd.Process == nil {
		return ErrProcessNotStarted
	}
	return p.Cmd.Process.Signal(sig)
}

// Interrupt sends SIGINT, which makes a debugger stop the running
// program and print its prompt.
func (p *Process) Interrupt() error {
	return p.Signal(syscall.SIGINT)
}

// Terminate sends SIGTERM.
func (p *Process) Terminate() error {
	return p.Signal(syscall.SIGTERM)
}

// Kill sends SIGKILL.
func (p *Process) Kill() error {
	return p.Signal(syscall.SIGKILL)
}

// Wait blocks until the process exits or ctx is done and returns the
// exit code.
func (p *Process) Wait(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return -1, ctx.Err()
	case <-p.done:
		return p.ExitCode(), p.ExitError()
	}
}

// start launches the command and begins tracking it.
func (p *Process) start() error {
	if p.State() != StateCreated {
		return ErrProcessAlreadyStarted
	}

	if err := p.Cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.Name, err)
	}

	// The child holds its own copies of the write ends; the parent's
	// must go so that Read sees EOF when the child exits.
	_ = p.childOut.Close()
	if p.childErr != nil {
		_ = p.childErr.Close()
		go p.drainStderr()
	}

	p.Started = time.Now()
	p.state.Store(int32(StateRunning))
	p.logger.Info("debugger started", "pid", p.PID(), "path", p.Cmd.Path)

	go p.waitLoop()
	return nil
}

// drainStderr logs stderr lines when they are not merged into the output.
func (p *Process) drainStderr() {
	sc := bufio.NewScanner(p.stderr)
	for sc.Scan() {
		p.logger.Warn("debugger stderr", "line", sc.Text())
	}
	_ = p.stderr.Close()
}

func (p *Process) waitLoop() {
	err := p.Cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()

	exitCode := 0
	state := StateExited

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				state = StateKilled
			}
		} else {
			exitCode = -1
		}
	}

	p.exitCode.Store(int32(exitCode))
	p.state.Store(int32(state))
	p.logger.Info("debugger exited", "code", exitCode, "state", state.String(), "runtime", p.Runtime())
	close(p.done)
}

// Release closes every pipe of the process. Pending reads fail. Call it
// after the output has been consumed or is no longer wanted.
func (p *Process) Release() {
	p.outOnce.Do(func() {
		for _, c := range []io.Closer{p.stdin, p.output, p.childOut, p.stderr, p.childErr} {
			if c != nil {
				_ = c.Close()
			}
		}
	})
}

// Sentinel errors for the process package.
var (
	// ErrProcessNotStarted is returned when an operation needs a running process.
	ErrProcessNotStarted = errors.New("process not started")

	// ErrProcessAlreadyStarted is returned when starting a process twice.
	ErrProcessAlreadyStarted = errors.New("process already started")

	// ErrNoExecutable is returned for a Spec without a Path.
	ErrNoExecutable = errors.New("no debugger executable")
)

package process

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func shutdown(t *testing.T, s *Supervisor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestNewSupervisor(t *testing.T) {
	s := NewSupervisor()
	defer shutdown(t, s)

	if s.Count() != 0 {
		t.Errorf("expected 0 processes, got %d", s.Count())
	}
	if s.IsShuttingDown() {
		t.Error("expected IsShuttingDown() to be false")
	}
	if s.grace != time.Second {
		t.Errorf("expected default grace 1s, got %v", s.grace)
	}
}

func TestSupervisor_Launch(t *testing.T) {
	s := NewSupervisor()
	defer shutdown(t, s)

	proc, err := s.Launch(Spec{Name: "gdb", Path: "cat"})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if proc.ID == "" {
		t.Error("expected generated ID")
	}
	if s.Get(proc.ID) != proc {
		t.Error("expected Get to return launched process")
	}
	if s.Count() != 1 {
		t.Errorf("expected 1 process, got %d", s.Count())
	}
	if len(s.List()) != 1 {
		t.Errorf("expected List of 1, got %d", len(s.List()))
	}
}

func TestSupervisor_LaunchWithID_Duplicate(t *testing.T) {
	s := NewSupervisor()
	defer shutdown(t, s)

	if _, err := s.LaunchWithID("dbg-1", Spec{Path: "cat"}); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if _, err := s.LaunchWithID("dbg-1", Spec{Path: "cat"}); err == nil {
		t.Error("expected duplicate ID error")
	}
}

func TestSupervisor_LaunchInvalidSpec(t *testing.T) {
	s := NewSupervisor()
	defer shutdown(t, s)

	if _, err := s.Launch(Spec{}); !errors.Is(err, ErrNoExecutable) {
		t.Errorf("expected ErrNoExecutable, got %v", err)
	}
	if _, err := s.Launch(Spec{Path: "/nonexistent/debugger"}); err == nil {
		t.Error("expected start error")
	}
	if s.Count() != 0 {
		t.Errorf("failed launches must not be tracked, got %d", s.Count())
	}
}

func TestSupervisor_WithMaxProcesses(t *testing.T) {
	s := NewSupervisor(WithMaxProcesses(1))
	defer shutdown(t, s)

	if _, err := s.Launch(Spec{Path: "cat"}); err != nil {
		t.Fatalf("first launch: %v", err)
	}
	if _, err := s.Launch(Spec{Path: "cat"}); !errors.Is(err, ErrProcessLimit) {
		t.Errorf("expected ErrProcessLimit, got %v", err)
	}
}

func TestSupervisor_ExitCallback(t *testing.T) {
	var mu sync.Mutex
	var exited []string
	called := make(chan struct{})

	s := NewSupervisor(WithExitCallback(func(p *Process) {
		mu.Lock()
		exited = append(exited, p.Name)
		mu.Unlock()
		close(called)
	}))
	defer shutdown(t, s)

	if _, err := s.Launch(Spec{Name: "jdb", Path: "sh", Args: []string{"-c", "exit 0"}}); err != nil {
		t.Fatalf("launch: %v", err)
	}

	select {
	case <-called:
	case <-time.After(5 * time.Second):
		t.Fatal("exit callback not called")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(exited) != 1 || exited[0] != "jdb" {
		t.Errorf("expected [jdb], got %v", exited)
	}
}

func TestSupervisor_ExitCallbackPanic(t *testing.T) {
	s := NewSupervisor(WithExitCallback(func(p *Process) {
		panic("boom")
	}))

	proc, err := s.Launch(Spec{Path: "sh", Args: []string{"-c", "exit 0"}})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	<-proc.Done()

	// the monitor must survive and untrack the process
	shutdown(t, s)
	if s.Count() != 0 {
		t.Errorf("expected 0 processes, got %d", s.Count())
	}
}

func TestSupervisor_ProcessRemovedOnExit(t *testing.T) {
	s := NewSupervisor()
	defer shutdown(t, s)

	proc, err := s.Launch(Spec{Path: "sh", Args: []string{"-c", "exit 0"}})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	<-proc.Done()

	deadline := time.Now().Add(5 * time.Second)
	for s.Get(proc.ID) != nil {
		if time.Now().After(deadline) {
			t.Fatal("process still tracked after exit")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSupervisor_Interrupt(t *testing.T) {
	s := NewSupervisor()
	defer shutdown(t, s)

	proc, err := s.Launch(Spec{Path: "sleep", Args: []string{"10"}})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if err := s.Interrupt(proc.ID); err != nil {
		t.Fatalf("interrupt: %v", err)
	}

	select {
	case <-proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after interrupt")
	}

	if err := s.Interrupt("missing"); !errors.Is(err, ErrProcessNotFound) {
		t.Errorf("expected ErrProcessNotFound, got %v", err)
	}
}

func TestSupervisor_ShutdownClosesInput(t *testing.T) {
	s := NewSupervisor(WithGracePeriod(5 * time.Second))

	proc, err := s.Launch(Spec{Path: "cat"})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}

	start := time.Now()
	shutdown(t, s)

	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("closing input should end cat quickly, took %v", elapsed)
	}
	if proc.State() != StateExited {
		t.Errorf("expected StateExited, got %v", proc.State())
	}
	if s.Count() != 0 {
		t.Errorf("expected 0 processes, got %d", s.Count())
	}
}

func TestSupervisor_ShutdownEscalates(t *testing.T) {
	s := NewSupervisor(WithGracePeriod(100 * time.Millisecond))

	proc, err := s.Launch(Spec{Name: "stubborn", Path: "sh", Args: []string{"-c", "trap '' TERM; sleep 60"}})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	shutdown(t, s)
	elapsed := time.Since(start)

	if elapsed < 150*time.Millisecond {
		t.Errorf("shutdown was too fast: %v", elapsed)
	}
	if elapsed > 5*time.Second {
		t.Errorf("shutdown took too long: %v", elapsed)
	}
	if proc.State() != StateKilled {
		t.Errorf("expected StateKilled, got %v", proc.State())
	}
}

func TestSupervisor_Stop(t *testing.T) {
	s := NewSupervisor(WithGracePeriod(100 * time.Millisecond))
	defer shutdown(t, s)

	keep, err := s.Launch(Spec{Path: "cat"})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	proc, err := s.Launch(Spec{Path: "sleep", Args: []string{"10"}})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx, proc.ID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !proc.HasExited() {
		t.Error("expected stopped process to have exited")
	}
	if !keep.IsRunning() {
		t.Error("other processes must keep running")
	}
	if err := s.Stop(ctx, "missing"); !errors.Is(err, ErrProcessNotFound) {
		t.Errorf("expected ErrProcessNotFound, got %v", err)
	}
}

func TestSupervisor_ShutdownContext(t *testing.T) {
	s := NewSupervisor(WithGracePeriod(time.Hour))

	proc, err := s.Launch(Spec{Path: "sleep", Args: []string{"10"}})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	defer func() {
		_ = proc.Kill()
		<-proc.Done()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestSupervisor_ShutdownIdempotent(t *testing.T) {
	s := NewSupervisor()
	shutdown(t, s)
	shutdown(t, s)

	if !s.IsShuttingDown() {
		t.Error("expected IsShuttingDown() to be true")
	}
	if _, err := s.Launch(Spec{Path: "cat"}); !errors.Is(err, ErrSupervisorShutdown) {
		t.Errorf("expected ErrSupervisorShutdown, got %v", err)
	}
}

func TestSupervisor_Concurrent(t *testing.T) {
	s := NewSupervisor()
	defer shutdown(t, s)

	var wg sync.WaitGroup
	var launched atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Launch(Spec{Path: "cat"}); err == nil {
				launched.Add(1)
			}
			_ = s.List()
			_ = s.Count()
		}()
	}
	wg.Wait()

	if launched.Load() != 8 {
		t.Errorf("expected 8 launches, got %d", launched.Load())
	}
}

func TestSupervisor_ProcessIO(t *testing.T) {
	s := NewSupervisor()
	defer shutdown(t, s)

	proc, err := s.Launch(Spec{Path: "sh", Args: []string{"-c", "read line; echo \"got $line\""}})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if _, err := io.WriteString(proc, "info locals\n"); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := io.ReadAll(proc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(out); got != "got info locals\n" {
		t.Errorf("expected %q, got %q", "got info locals\n", got)
	}
}

// Package process launches and supervises debugger child processes.
//
// A Process exposes the debugger's output as an io.Reader and its input
// as an io.WriteCloser, which is what the debug session layer consumes:
//
//	sup := process.NewSupervisor(process.WithLogger(logger))
//	defer sup.Shutdown(context.Background())
//
//	proc, err := sup.Launch(process.Spec{
//	    Name:        "gdb",
//	    Path:        "gdb",
//	    Args:        []string{"-q", "-nx"},
//	    MergeStderr: true,
//	})
//	if err != nil {
//	    return err
//	}
//
//	transport := debug.NewStdioTransport(proc, proc)
//	session, _ := debug.NewSession(profile, transport)
//	go debug.Pump(ctx, proc, session)
//
// Interrupt sends SIGINT, which stops the debuggee and returns control to
// the debugger prompt. Shutdown closes input first and escalates to
// SIGTERM and SIGKILL after a grace period.
package process

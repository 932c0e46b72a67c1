package debug

import (
	"context"
	"strings"
	"sync"

	"github.com/dshills/dbgbridge/internal/integration/debug/command"
)

// Response is the framed answer to one operation.
type Response struct {
	// Op is the operation that was executed.
	Op command.Operation

	// Commands are the command lines sent to the backend.
	Commands []string

	// Responses holds one body per command line.
	Responses []string

	// Output is Responses joined by newlines.
	Output string

	// Prompt is the prompt that ended the last response.
	Prompt string

	// Breakpoint is the breakpoint number predicted for a set operation.
	Breakpoint int

	// Warnings are non-fatal problems such as breakpoint number mismatches.
	Warnings []error
}

// Pending is the handle of an in-flight request.
type Pending struct {
	op        command.Operation
	commands  []string
	predicted int

	bodies []string
	prompt string

	done      chan struct{}
	closeOnce sync.Once
	response  *Response
	err       error
}

func newPending(op command.Operation, commands []string) *Pending {
	return &Pending{
		op:       op,
		commands: commands,
		done:     make(chan struct{}),
	}
}

// Op returns the operation the request was created for.
func (p *Pending) Op() command.Operation {
	return p.op
}

// Done returns a channel closed when the request is resolved.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the request is resolved or ctx is done.
func (p *Pending) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return p.response, p.err
	}
}

func (p *Pending) buildResponse() *Response {
	return &Response{
		Op:         p.op,
		Commands:   p.commands,
		Responses:  p.bodies,
		Output:     strings.Join(p.bodies, "\n"),
		Prompt:     p.prompt,
		Breakpoint: p.predicted,
	}
}

// resolve completes the request. Only the first call has an effect.
func (p *Pending) resolve(resp *Response, err error) {
	p.closeOnce.Do(func() {
		p.response = resp
		p.err = err
		close(p.done)
	})
}

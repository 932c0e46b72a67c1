package debug

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Transport carries command text to the debugger process.
type Transport interface {
	// Send writes text verbatim. text already carries the line terminator.
	Send(text string) error

	// Close closes the transport.
	Close() error
}

// StdioTransport implements Transport over the stdin of a debugger process.
type StdioTransport struct {
	w      io.Writer
	closer io.Closer

	mu     sync.Mutex
	closed bool
}

// NewStdioTransport creates a transport writing to w. closer is called on
// Close and may be nil.
func NewStdioTransport(w io.Writer, closer io.Closer) *StdioTransport {
	return &StdioTransport{w: w, closer: closer}
}

// Send writes text to the debugger.
func (t *StdioTransport) Send(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return io.ErrClosedPipe
	}
	_, err := io.WriteString(t.w, text)
	return err
}

// Close closes the transport. Later calls are no-ops.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// pumpBufferSize is the read size used by Pump.
const pumpBufferSize = 4096

// Pump reads debugger output from r and feeds it to s until r fails or
// ctx is done. When r reaches EOF or fails, s is disconnected. A clean
// EOF returns nil.
func Pump(ctx context.Context, r io.Reader, s *Session) error {
	buf := make([]byte, pumpBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			s.Disconnect(err)
			return err
		}

		n, err := r.Read(buf)
		if n > 0 {
			s.OnBytes(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.Disconnect(io.EOF)
				return nil
			}
			s.Disconnect(err)
			return fmt.Errorf("read debugger output: %w", err)
		}
	}
}

package pondtest

import (
	"sync"

	"github.com/sessamekesh/duckpond-client/pkg/errors"
)

// FakeConn is a scripted, in-memory connection. Frames pushed with Inject are
// returned by TryRead in order; frames accepted by TryWrite are recorded.
type FakeConn struct {
	mut sync.Mutex

	inbound [][]byte
	written [][]byte

	readErr      error
	writeErr     error
	writeCap     int
	closed       bool
	tryReadCalls int
}

// CreateFakeConn returns a connection whose write buffer holds writeCap frames
// before reporting ErrWouldBlock. writeCap <= 0 means unbounded.
func CreateFakeConn(writeCap int) *FakeConn {
	return &FakeConn{writeCap: writeCap}
}

func (c *FakeConn) Inject(frames ...string) {
	c.mut.Lock()
	defer c.mut.Unlock()
	for _, f := range frames {
		c.inbound = append(c.inbound, []byte(f))
	}
}

// FailReads makes every subsequent TryRead (after buffered frames) return err.
func (c *FakeConn) FailReads(err error) {
	c.mut.Lock()
	defer c.mut.Unlock()
	c.readErr = err
}

func (c *FakeConn) FailWrites(err error) {
	c.mut.Lock()
	defer c.mut.Unlock()
	c.writeErr = err
}

func (c *FakeConn) TryRead() ([]byte, error) {
	c.mut.Lock()
	defer c.mut.Unlock()

	c.tryReadCalls++
	if c.closed {
		return nil, errors.ErrConnectionClosed
	}
	if len(c.inbound) > 0 {
		frame := c.inbound[0]
		c.inbound = c.inbound[1:]
		return frame, nil
	}
	if c.readErr != nil {
		return nil, c.readErr
	}
	return nil, errors.ErrWouldBlock
}

func (c *FakeConn) TryWrite(frame []byte) error {
	c.mut.Lock()
	defer c.mut.Unlock()

	if c.closed {
		return errors.ErrConnectionClosed
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	if c.writeCap > 0 && len(c.written) >= c.writeCap {
		return errors.ErrWouldBlock
	}
	c.written = append(c.written, append([]byte(nil), frame...))
	return nil
}

func (c *FakeConn) Close() error {
	c.mut.Lock()
	defer c.mut.Unlock()
	c.closed = true
	return nil
}

// Written returns a copy of every frame accepted so far, as strings.
func (c *FakeConn) Written() []string {
	c.mut.Lock()
	defer c.mut.Unlock()

	out := make([]string, len(c.written))
	for i, f := range c.written {
		out[i] = string(f)
	}
	return out
}

// Pending is the number of injected frames not yet read.
func (c *FakeConn) Pending() int {
	c.mut.Lock()
	defer c.mut.Unlock()
	return len(c.inbound)
}

func (c *FakeConn) TryReadCalls() int {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.tryReadCalls
}

func (c *FakeConn) IsClosed() bool {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.closed
}

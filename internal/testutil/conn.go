package testutil

import (
	"errors"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

var errConnClosed = errors.New("connection is closed")

// FakeConn implements the realtime connection interface for tests. Frames
// pushed with Push are returned from ReadMessage; written frames are
// recorded and readable with Written.
type FakeConn struct {
	mu      sync.Mutex
	inbox   chan []byte
	written [][]byte
	closed  bool
}

func NewFakeConn() *FakeConn {
	return &FakeConn{
		inbox: make(chan []byte, 16),
	}
}

// Push enqueues an inbound frame.
func (c *FakeConn) Push(data []byte) {
	c.inbox <- data
}

// Disconnect makes the next ReadMessage fail, like a dropped socket.
func (c *FakeConn) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.inbox)
	}
}

func (c *FakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.inbox
	if !ok {
		return 0, nil, errConnClosed
	}
	return websocket.TextMessage, data, nil
}

func (c *FakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *FakeConn) Close() error {
	c.Disconnect()
	return nil
}

// Written returns a snapshot of every frame written so far.
func (c *FakeConn) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.written))
	copy(out, c.written)
	return out
}

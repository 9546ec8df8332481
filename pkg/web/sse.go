package web

import (
	"errors"
	"sync"
)

// sseConnectionBuffer bounds how many undelivered events one subscriber may
// lag behind before it is treated as dead.
const sseConnectionBuffer = 64

// sseConnection adapts a server-sent-events stream to the live state
// channel's connection contract. Hub writes land on a buffered channel that
// the stream writer goroutine drains; a full buffer or a closed stream is a
// write failure and gets the connection pruned.
type sseConnection struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

func newSSEConnection() *sseConnection {
	return &sseConnection{ch: make(chan []byte, sseConnectionBuffer)}
}

func (c *sseConnection) Write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("stream closed")
	}

	select {
	case c.ch <- payload:
		return nil
	default:
		return errors.New("subscriber not keeping up")
	}
}

func (c *sseConnection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

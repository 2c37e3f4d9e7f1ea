package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/layer-3/tapnotify/core"
	"github.com/layer-3/tapnotify/internal/config"
	"github.com/layer-3/tapnotify/internal/metrics"
	"github.com/rs/zerolog"
)

var errSendFailed = errors.New("broken pipe")

// fakeConn is an in-memory ports.Conn
type fakeConn struct {
	mu       sync.Mutex
	accepts  int
	closed   bool
	failSend bool
	hang     bool
	received []string
	closedCh chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{closedCh: make(chan struct{})}
}

func (c *fakeConn) Accept(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	if c.accepts == 0 {
		c.accepts++
	}
	return nil
}

func (c *fakeConn) Send(ctx context.Context, message string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return core.ErrConnectionClosed
	}
	if c.failSend {
		c.mu.Unlock()
		return errSendFailed
	}
	hang := c.hang
	c.mu.Unlock()

	if hang {
		// ignores ctx on purpose, only Close releases it
		<-c.closedCh
		return core.ErrConnectionClosed
	}

	c.mu.Lock()
	c.received = append(c.received, message)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Receive(ctx context.Context) (string, error) {
	select {
	case <-c.closedCh:
		return "", core.ErrConnectionClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closedCh)
	}
	return nil
}

func (c *fakeConn) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.received...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) acceptCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accepts
}

func newTestRegistry(sendTimeout time.Duration) *ChannelRegistry {
	return NewChannelRegistry(config.RegistryConfig{
		SendTimeout:          sendTimeout,
		BroadcastConcurrency: 16,
	}, zerolog.Nop(), metrics.Nop())
}

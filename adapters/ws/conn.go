package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/layer-3/tapnotify/core"
	"github.com/layer-3/tapnotify/ports"
)

const (
	defaultWriteWait = 10 * time.Second
	closeWait        = time.Second
)

type state int

const (
	statePending state = iota
	stateActive
	stateClosed
)

// Conn is a websocket connection that is upgraded lazily on Accept
type Conn struct {
	upgrader *websocket.Upgrader
	w        http.ResponseWriter
	r        *http.Request

	mu      sync.Mutex // guards state and ws
	state   state
	ws      *websocket.Conn
	writeMu sync.Mutex // gorilla allows one concurrent writer
}

var _ ports.Conn = (*Conn)(nil)

// NewConn wraps an incoming HTTP request that has not been upgraded yet
func NewConn(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request) *Conn {
	return &Conn{
		upgrader: upgrader,
		w:        w,
		r:        r,
	}
}

// Accept upgrades the request. The upgrade happens on the first call only.
func (c *Conn) Accept(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateActive:
		return nil
	case stateClosed:
		return core.ErrConnectionClosed
	}

	if err := ctx.Err(); err != nil {
		c.state = stateClosed
		return err
	}

	ws, err := c.upgrader.Upgrade(c.w, c.r, nil)
	if err != nil {
		// the upgrader already wrote an HTTP error
		c.state = stateClosed
		return fmt.Errorf("websocket upgrade: %w", err)
	}
	c.ws = ws
	c.state = stateActive
	return nil
}

// Send writes message as a text frame, bounded by the ctx deadline
func (c *Conn) Send(ctx context.Context, message string) error {
	ws, err := c.active()
	if err != nil {
		return err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteWait)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, []byte(message))
}

// Receive blocks until the next text or binary message. A peer close
// yields core.ErrConnectionClosed.
func (c *Conn) Receive(ctx context.Context) (string, error) {
	ws, err := c.active()
	if err != nil {
		return "", err
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := ws.SetReadDeadline(deadline); err != nil {
			return "", err
		}
	}

	_, data, err := ws.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return "", fmt.Errorf("%w: %w", core.ErrConnectionClosed, err)
		}
		return "", err
	}
	return string(data), nil
}

// Close sends a close frame when possible and closes the socket
func (c *Conn) Close() error {
	c.mu.Lock()
	prev := c.state
	c.state = stateClosed
	ws := c.ws
	c.mu.Unlock()

	if prev != stateActive || ws == nil {
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
	return ws.Close()
}

func (c *Conn) active() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateActive:
		return c.ws, nil
	case stateClosed:
		return nil, core.ErrConnectionClosed
	default:
		return nil, errors.New("connection not accepted")
	}
}

package ports

import "context"

// Conn is a live bidirectional client connection. Implementations are
// compared by identity, so they must be pointer types.
type Conn interface {
	// Accept completes the handshake. It runs the handshake only once;
	// later calls return nil while the connection is open and
	// core.ErrConnectionClosed after Close.
	Accept(ctx context.Context) error

	// Send writes one text message
	Send(ctx context.Context, message string) error

	// Receive blocks until the next inbound message or an error
	Receive(ctx context.Context) (string, error)

	// Close closes the connection. It is safe to call more than once.
	Close() error
}

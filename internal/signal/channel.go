package signal

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrClosed is returned for operations on a closed channel; pending
	// requests are failed with it when the socket goes away.
	ErrClosed = errors.New("signal: channel closed")
)

// Handler receives the raw params of a server-pushed notification.
type Handler func(params json.RawMessage)

// Channel is the signaling transport the session and host controls are
// built on. Implementations must be safe for concurrent use. The concrete
// websocket channel lives in this package; tests substitute doubles.
type Channel interface {
	// Request sends method with params and suspends until the server's
	// acknowledgment, decoded into result (which may be nil for callers
	// that only need the ack). The context bounds the wait; a hung remote
	// rejects with the context's error.
	Request(ctx context.Context, method string, params, result any) error

	// Notify sends a fire-and-forget message carrying no acknowledgment.
	Notify(method string, params any) error

	// On registers the handler for a server-pushed notification method,
	// replacing any previous handler. Off removes it.
	On(method string, h Handler)
	Off(method string)

	Connected() bool
	Close() error
}

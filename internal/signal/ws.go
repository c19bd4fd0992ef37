package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"
	"go.uber.org/zap"
)

// Options tunes the websocket channel.
type Options struct {
	// RequestTimeout bounds every Request round-trip when the caller's
	// context carries no deadline of its own. Zero disables the bound.
	RequestTimeout time.Duration
	// DialTimeout caps the total time spent retrying the initial dial.
	DialTimeout time.Duration
	Logger      *zap.Logger
}

// WSChannel is the production Channel: a persistent gorilla websocket
// carrying jsonrpc2-framed requests, acks and notifications. Requests get
// a fresh numeric id and are correlated with their response by a pending
// map; notifications carry no id.
type WSChannel struct {
	conn *websocket.Conn
	log  *zap.Logger

	requestTimeout time.Duration

	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[uint64]chan inbound
	handlers map[string]Handler
	closed   bool
}

// inbound is the wire envelope of a server frame: a response (id plus
// result or error) or a pushed notification (method plus params).
type inbound struct {
	ID     uint64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *jsonrpc2.Error `json:"error,omitempty"`
}

// Dial connects to the signaling server, retrying with exponential
// backoff until the context is done or DialTimeout elapses.
func Dial(ctx context.Context, rawURL string, opts Options) (*WSChannel, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	var conn *websocket.Conn
	operation := func() error {
		c, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
		if err != nil {
			opts.Logger.Warn("signaling dial failed, retrying", zap.String("url", rawURL), zap.Error(err))
			return err
		}
		conn = c
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = opts.DialTimeout
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("signal: dial %s: %w", rawURL, err)
	}

	ch := &WSChannel{
		conn:           conn,
		log:            opts.Logger.Named("signal"),
		requestTimeout: opts.RequestTimeout,
		pending:        make(map[uint64]chan inbound),
		handlers:       make(map[string]Handler),
	}
	go ch.readLoop()
	return ch, nil
}

func (c *WSChannel) Request(ctx context.Context, method string, params, result any) error {
	if c.requestTimeout > 0 {
		if _, has := ctx.Deadline(); !has {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
			defer cancel()
		}
	}

	id := uint64(uuid.New().ID())
	reply := make(chan inbound, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = reply
	c.mu.Unlock()

	if err := c.send(method, params, &jsonrpc2.ID{Num: id}); err != nil {
		c.dropPending(id)
		return err
	}

	select {
	case resp, ok := <-reply:
		if !ok {
			return ErrClosed
		}
		if resp.Error != nil {
			return fmt.Errorf("signal: %s rejected: %w", method, resp.Error)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("signal: %s: malformed response: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.dropPending(id)
		return fmt.Errorf("signal: %s: %w", method, ctx.Err())
	}
}

func (c *WSChannel) Notify(method string, params any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()
	return c.send(method, params, nil)
}

func (c *WSChannel) On(method string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[method] = h
}

func (c *WSChannel) Off(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, method)
}

func (c *WSChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *WSChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pending := c.pending
	c.pending = make(map[uint64]chan inbound)
	c.mu.Unlock()

	for _, reply := range pending {
		close(reply)
	}
	return c.conn.Close()
}

// send frames one message. id nil marks a notification.
func (c *WSChannel) send(method string, params any, id *jsonrpc2.ID) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("signal: marshal %s params: %w", method, err)
	}

	req := &jsonrpc2.Request{
		Method: method,
		Params: (*json.RawMessage)(&raw),
	}
	if id != nil {
		req.ID = *id
	} else {
		req.Notif = true
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("signal: marshal %s: %w", method, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("signal: write %s: %w", method, err)
	}
	return nil
}

func (c *WSChannel) dropPending(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// readLoop dispatches server frames until the socket closes. Responses
// resolve their pending request; notifications run their handler on a
// fresh goroutine so a handler doing its own round-trips never starves
// the loop.
func (c *WSChannel) readLoop() {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.log.Warn("signaling socket closed", zap.Error(err))
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("dropping malformed frame", zap.Error(err))
			continue
		}

		if msg.Method != "" {
			c.mu.Lock()
			h := c.handlers[msg.Method]
			c.mu.Unlock()
			if h == nil {
				c.log.Debug("no handler for notification", zap.String("method", msg.Method))
				continue
			}
			go h(msg.Params)
			continue
		}

		c.mu.Lock()
		reply, ok := c.pending[msg.ID]
		if ok {
			delete(c.pending, msg.ID)
		}
		c.mu.Unlock()
		if !ok {
			c.log.Debug("dropping unmatched response", zap.Uint64("id", msg.ID))
			continue
		}
		reply <- msg
	}
}

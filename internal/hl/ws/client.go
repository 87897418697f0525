package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

var ErrNotConnected = errors.New("ws not connected")

// Subscription is the body of a subscribe frame, e.g. {"type":"userEvents","user":"0x..."}.
type Subscription struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
	Coin string `json:"coin,omitempty"`
}

type subscribeMessage struct {
	Method       string       `json:"method"`
	Subscription Subscription `json:"subscription"`
}

// PostRequest is the body of a websocket post frame.
type PostRequest struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type PostMessage struct {
	Method  string      `json:"method"`
	ID      uint64      `json:"id"`
	Request PostRequest `json:"request"`
}

// PostResponse is the reply to a post frame. Type is "info", "action" or
// "error".
type PostResponse struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type inbound struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type postReply struct {
	ID       uint64       `json:"id"`
	Response PostResponse `json:"response"`
}

// NewPostMessage frames payload for the websocket post endpoint. kind is
// "info" or "action".
func NewPostMessage(id uint64, kind string, payload any) PostMessage {
	return PostMessage{
		Method:  "post",
		ID:      id,
		Request: PostRequest{Type: kind, Payload: payload},
	}
}

// Client keeps one connection to the exchange websocket. Run owns the read
// side: post replies are routed to the waiting Request by id, pongs are
// dropped and everything else goes to the handler.
type Client struct {
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	subs    []Subscription
	pending map[uint64]chan PostResponse
	nextID  atomic.Uint64
}

func New(url string, reconnectDelay, pingInterval time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		url:            url,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
		pending:        make(map[uint64]chan PostResponse),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	_, err := c.dial(ctx)
	return err
}

// dial reports whether a new connection was opened.
func (c *Client) dial(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return false, nil
	}
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return false, err
	}
	c.conn = conn
	return true, nil
}

// Subscribe registers sub for the life of the client. It is sent now when
// connected and again after every reconnect.
func (c *Client) Subscribe(ctx context.Context, sub Subscription) error {
	if sub.Type == "" {
		return errors.New("subscription type is required")
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return writeJSON(ctx, conn, subscribeMessage{Method: "subscribe", Subscription: sub})
}

// Post writes a post frame on the current connection. Most callers want
// Request, which also waits for the reply.
func (c *Client) Post(ctx context.Context, id uint64, kind string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return writeJSON(ctx, conn, NewPostMessage(id, kind, payload))
}

// Request posts payload and blocks until Run delivers the reply with the
// same id. Run must be active on another goroutine.
func (c *Client) Request(ctx context.Context, kind string, payload any) (PostResponse, error) {
	id := c.nextID.Add(1)
	reply := make(chan PostResponse, 1)
	c.mu.Lock()
	c.pending[id] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.Post(ctx, id, kind, payload); err != nil {
		return PostResponse{}, err
	}
	select {
	case <-ctx.Done():
		return PostResponse{}, ctx.Err()
	case resp := <-reply:
		return resp, nil
	}
}

// Run reads until ctx is done, reconnecting after read errors. The
// connection is closed on return so a later Connect dials a fresh one.
func (c *Client) Run(ctx context.Context, handler func(json.RawMessage)) error {
	defer c.resetConn()
	for {
		if err := c.ensureConnected(ctx); err != nil {
			return err
		}
		pingCtx, cancel := context.WithCancel(ctx)
		pingDone := make(chan struct{})
		go func() {
			defer close(pingDone)
			c.pingLoop(pingCtx)
		}()
		err := c.readLoop(ctx, handler)
		cancel()
		<-pingDone
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logReadLoopError(err)
		c.resetConn()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

// Close drops the current connection. Registered subscriptions are kept.
func (c *Client) Close() {
	c.resetConn()
}

func (c *Client) ensureConnected(ctx context.Context) error {
	fresh, err := c.dial(ctx)
	if err != nil {
		return err
	}
	if !fresh {
		return nil
	}
	c.mu.Lock()
	conn := c.conn
	subs := append([]Subscription(nil), c.subs...)
	c.mu.Unlock()
	for _, sub := range subs {
		if err := writeJSON(ctx, conn, subscribeMessage{Method: "subscribe", Subscription: sub}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context, handler func(json.RawMessage)) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if c.route(data) {
			continue
		}
		if handler != nil {
			handler(json.RawMessage(data))
		}
	}
}

// route consumes pongs and post replies. It returns false for messages the
// handler should see.
func (c *Client) route(data []byte) bool {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return false
	}
	switch msg.Channel {
	case "pong":
		return true
	case "post":
		var reply postReply
		if err := json.Unmarshal(msg.Data, &reply); err != nil {
			c.log.Debug("ws post reply decode failed", zap.Error(err))
			return true
		}
		c.mu.Lock()
		waiter, ok := c.pending[reply.ID]
		c.mu.Unlock()
		if !ok {
			c.log.Debug("ws post reply without waiter", zap.Uint64("id", reply.ID))
			return true
		}
		select {
		case waiter <- reply.Response:
		default:
		}
		return true
	}
	return false
}

func (c *Client) pingLoop(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	interval := c.pingInterval
	c.mu.Unlock()
	if conn == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writeJSON(ctx, conn, pingMessage); err != nil {
				return
			}
		}
	}
}

func (c *Client) logReadLoopError(err error) {
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		c.log.Info("ws connection closed by server", zap.Error(err))
		return
	}
	c.log.Warn("ws read failed, reconnecting", zap.Duration("delay", c.reconnectDelay), zap.Error(err))
}

func (c *Client) resetConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "reset")
		c.conn = nil
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

var pingMessage = map[string]any{"method": "ping"}

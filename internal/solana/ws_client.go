package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClientClosed is returned by calls made after Close.
var ErrClientClosed = errors.New("websocket client closed")

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	SubscribeTimeout  time.Duration
	// BufferSize is the per-subscription channel capacity. Delivery blocks
	// when full; notifications are never dropped.
	BufferSize int
	Logger     *log.Logger
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
		BufferSize:        1024,
	}
}

type logSubscription struct {
	filter LogsFilter
	ch     chan LogNotification
}

// WSClientImpl implements WSClient using gorilla/websocket. It reconnects
// with exponential backoff and replays active subscriptions.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	logger   *log.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	closed    atomic.Bool
	requestID atomic.Uint64

	subsMu sync.RWMutex
	subs   map[int64]*logSubscription

	pendingMu sync.Mutex
	pending   map[uint64]chan int64

	done chan struct{}
	wg   sync.WaitGroup
}

var _ WSClient = (*WSClientImpl)(nil)

// NewWSClient connects to endpoint and starts the read and ping loops.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	c := &WSClientImpl{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		subs:     make(map[int64]*logSubscription),
		pending:  make(map[uint64]chan int64),
		done:     make(chan struct{}),
	}
	if err := c.dial(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()
	return c, nil
}

func (c *WSClientImpl) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

// SubscribeLogs subscribes to program logs matching the filter.
func (c *WSClientImpl) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	subID, err := c.subscribe(ctx, filter)
	if err != nil {
		return nil, err
	}

	size := c.config.BufferSize
	if size <= 0 {
		size = 1
	}
	sub := &logSubscription{filter: filter, ch: make(chan LogNotification, size)}

	c.subsMu.Lock()
	c.subs[subID] = sub
	c.subsMu.Unlock()
	return sub.ch, nil
}

// subscribe sends logsSubscribe and waits for the subscription id.
func (c *WSClientImpl) subscribe(ctx context.Context, filter LogsFilter) (int64, error) {
	if c.closed.Load() {
		return 0, ErrClientClosed
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params:  filter.params(),
	}

	confirm := make(chan int64, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = confirm
	c.pendingMu.Unlock()
	forget := func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}

	if err := c.writeJSON(req); err != nil {
		forget()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	timer := time.NewTimer(c.config.SubscribeTimeout)
	defer timer.Stop()
	select {
	case id, ok := <-confirm:
		if !ok {
			return 0, ErrClientClosed
		}
		return id, nil
	case <-timer.C:
		forget()
		return 0, fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-ctx.Done():
		forget()
		return 0, ctx.Err()
	case <-c.done:
		return 0, ErrClientClosed
	}
}

func (c *WSClientImpl) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return errors.New("not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(v)
}

// Close closes the connection and every subscription channel.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()

	c.subsMu.Lock()
	for id, sub := range c.subs {
		close(sub.ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
	return nil
}

func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	delay := c.config.ReconnectDelay
	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn != nil {
			_ = conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
			_, message, err := conn.ReadMessage()
			if err == nil {
				delay = c.config.ReconnectDelay
				c.handleMessage(message)
				continue
			}
			if c.closed.Load() {
				return
			}
			c.logger.Printf("read failed, reconnecting in %s: %v", delay, err)
		}

		if !c.reconnect(delay) {
			return
		}
		delay *= 2
		if delay > c.config.MaxReconnectDelay {
			delay = c.config.MaxReconnectDelay
		}
	}
}

// reconnect replaces the connection and replays subscriptions in the
// background, since confirmations arrive through readLoop. Returns false
// once the client is closed.
func (c *WSClientImpl) reconnect(delay time.Duration) bool {
	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	select {
	case <-c.done:
		return false
	case <-time.After(delay):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.dial(ctx); err != nil {
		c.logger.Printf("reconnect failed: %v", err)
		return true
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.resubscribeAll()
	}()
	return true
}

func (c *WSClientImpl) resubscribeAll() {
	c.subsMu.RLock()
	old := make(map[int64]*logSubscription, len(c.subs))
	for id, sub := range c.subs {
		old[id] = sub
	}
	c.subsMu.RUnlock()

	for oldID, sub := range old {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.SubscribeTimeout)
		newID, err := c.subscribe(ctx, sub.filter)
		cancel()
		if err != nil {
			c.logger.Printf("resubscribe %d failed: %v", oldID, err)
			continue
		}
		c.subsMu.Lock()
		delete(c.subs, oldID)
		c.subs[newID] = sub
		c.subsMu.Unlock()
	}
}

func (c *WSClientImpl) handleMessage(message []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.logger.Printf("malformed message: %v", err)
		return
	}

	switch {
	case env.Error != nil:
		c.logger.Printf("error response: code=%d msg=%s", env.Error.Code, env.Error.Message)
	case env.Method == "logsNotification" && env.Params != nil:
		c.dispatch(env.Params)
	case env.ID != 0 && len(env.Result) > 0:
		var subID int64
		if err := json.Unmarshal(env.Result, &subID); err != nil {
			return
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[env.ID]
		delete(c.pending, env.ID)
		c.pendingMu.Unlock()
		if ok {
			ch <- subID
		}
	}
}

func (c *WSClientImpl) dispatch(p *wsNotificationParams) {
	n := LogNotification{
		Signature: p.Result.Value.Signature,
		Logs:      p.Result.Value.Logs,
		Err:       p.Result.Value.Err,
	}
	if p.Result.Context != nil {
		n.Slot = p.Result.Context.Slot
	}

	c.subsMu.RLock()
	sub, ok := c.subs[p.Subscription]
	c.subsMu.RUnlock()
	if !ok {
		return
	}
	select {
	case sub.ch <- n:
	case <-c.done:
	}
}

func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout))
			}
			c.connMu.Unlock()
		}
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsEnvelope struct {
	ID     uint64                `json:"id"`
	Method string                `json:"method"`
	Result json.RawMessage       `json:"result"`
	Params *wsNotificationParams `json:"params"`
	Error  *RPCError             `json:"error"`
}

type wsNotificationParams struct {
	Subscription int64 `json:"subscription"`
	Result       struct {
		Context *struct {
			Slot int64 `json:"slot"`
		} `json:"context"`
		Value struct {
			Signature string      `json:"signature"`
			Logs      []string    `json:"logs"`
			Err       interface{} `json:"err"`
		} `json:"value"`
	} `json:"result"`
}

package service

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"udf_feed/internal/helper"
	"udf_feed/internal/models"
	"udf_feed/pkg/logger"
)

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Client is one websocket connection. Each of its subscriptions is a feed
// listener that lives as long as the connection.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	subs   map[string]string // series key -> listener id
}

// enqueue drops the client when its buffer is full instead of blocking the
// caller, which may be a feed poll loop.
func (c *Client) enqueue(f ServerFrame) {
	msg, err := sonic.Marshal(f)
	if err != nil {
		logger.Error("bridge %s: encode %s frame: %v", c.id, f.Type, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		logger.Warn("bridge %s: send buffer full, dropping client", c.id)
		c.closeLocked()
	}
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.cancel()
}

// release detaches every feed listener and closes the send queue.
func (c *Client) release() {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]string)
	c.closeLocked()
	c.mu.Unlock()

	for key, id := range subs {
		c.hub.feed.UnsubscribeListener(id)
		logger.Debug("bridge %s: released %s", c.id, key)
	}
}

func (c *Client) handle(message []byte) {
	var f ClientFrame
	if err := sonic.Unmarshal(message, &f); err != nil {
		c.enqueue(errorFrame("", "bad_request"))
		return
	}

	switch f.Op {
	case OpSubscribe:
		c.subscribe(f.Symbol, f.Resolution)
	case OpUnsubscribe:
		c.unsubscribe(f.Symbol, f.Resolution)
	case OpHistory:
		go c.history(f)
	default:
		c.enqueue(errorFrame(f.ID, "bad_request"))
	}
}

func (c *Client) subscribe(symbol, resolution string) {
	if symbol == "" || resolution == "" {
		c.enqueue(errorFrame("", "bad_request"))
		return
	}
	key := helper.SeriesKey(symbol, resolution)

	c.mu.Lock()
	if _, ok := c.subs[key]; ok || c.closed {
		c.mu.Unlock()
		return
	}
	// Registered under the lock so release cannot miss it.
	id := c.hub.feed.SubscribeBars(symbol, resolution, func(b models.Bar) {
		c.enqueue(ServerFrame{Type: FrameBar, Symbol: symbol, Resolution: resolution, Bar: &b})
	})
	c.subs[key] = id
	c.mu.Unlock()
}

func (c *Client) unsubscribe(symbol, resolution string) {
	key := helper.SeriesKey(symbol, resolution)

	c.mu.Lock()
	id, ok := c.subs[key]
	delete(c.subs, key)
	c.mu.Unlock()

	if ok {
		c.hub.feed.UnsubscribeListener(id)
	}
}

func (c *Client) history(f ClientFrame) {
	bars, meta, err := c.hub.feed.GetHistoricalBars(c.ctx, f.query())
	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.enqueue(errorFrame(f.ID, models.ErrorKind(err)))
		return
	}
	if bars == nil {
		bars = []models.Bar{}
	}
	c.enqueue(ServerFrame{
		Type:       FrameHistory,
		ID:         f.ID,
		Symbol:     f.Symbol,
		Resolution: f.Resolution,
		Bars:       bars,
		Meta:       &meta,
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Info("bridge %s: read: %v", c.id, err)
			}
			return
		}
		c.handle(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Info("bridge %s: write: %v", c.id, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

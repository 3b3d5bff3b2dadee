package service

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"udf_feed/internal/models"
	feed "udf_feed/internal/modules/feed/service"
	"udf_feed/pkg/logger"
)

// Feed is the datafeed surface exposed over websocket.
type Feed interface {
	GetHistoricalBars(ctx context.Context, q models.HistoryQuery) ([]models.Bar, models.HistoryMeta, error)
	SubscribeBars(symbol, resolution string, fn feed.Listener) string
	UnsubscribeListener(id string) bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub tracks connected clients. Bars reach clients straight from feed
// listeners; the hub loop only owns the client set.
type Hub struct {
	feed       Feed
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	clients    map[*Client]struct{}

	// mirrors len(clients) for readers outside Run
	connected atomic.Int64
}

func NewHub(f Feed) *Hub {
	return &Hub{
		feed:       f,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
	}
}

// Run owns the client set until ctx is done, then releases every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.connected.Store(int64(len(h.clients)))
			logger.Info("bridge %s: connected (%d clients)", c.id, len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				h.connected.Store(int64(len(h.clients)))
				c.release()
				logger.Info("bridge %s: disconnected (%d clients)", c.id, len(h.clients))
			}

		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				c.release()
			}
			h.connected.Store(0)
			return
		}
	}
}

// Clients is the number of connected clients. It never blocks, also before
// Run has started.
func (h *Hub) Clients() int { return int(h.connected.Load()) }

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.release()
	}
}

func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("bridge: upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		id:     uuid.NewString(),
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string]string),
	}
	select {
	case h.register <- client:
	case <-h.done:
		cancel()
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func NewRouter(h *Hub, path string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET(path, h.ServeWS)
	return r
}

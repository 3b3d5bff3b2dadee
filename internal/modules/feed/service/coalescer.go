package service

import (
	"context"
	"sync"

	"udf_feed/internal/models"
	"udf_feed/pkg/logger"
)

// HistorySource performs one /history request.
type HistorySource interface {
	History(ctx context.Context, q models.HistoryQuery) ([]models.Bar, models.HistoryMeta, error)
}

// HistoryCallback receives the outcome of a history fetch. bars is nil on error.
type HistoryCallback func(bars []models.Bar, meta models.HistoryMeta, err error)

type pendingRequest struct {
	query   models.HistoryQuery
	waiters []HistoryCallback
}

// Coalescer keeps at most one in-flight request per HistoryQuery key. Callers
// asking for a key that is already in flight join its waiter list instead of
// issuing another transport call.
type Coalescer struct {
	src   HistorySource
	cache *LastBarCache

	mu      sync.Mutex
	pending map[string]*pendingRequest
}

func NewCoalescer(src HistorySource, cache *LastBarCache) *Coalescer {
	return &Coalescer{
		src:     src,
		cache:   cache,
		pending: make(map[string]*pendingRequest),
	}
}

// Fetch registers cb for q and starts the transport call when no identical
// request is in flight. It returns immediately; joined reports whether cb was
// attached to an existing request.
//
// The transport call outlives ctx cancellation: other waiters may still need
// the answer. Only ctx values (trace spans) are carried over.
func (c *Coalescer) Fetch(ctx context.Context, q models.HistoryQuery, cb HistoryCallback) (joined bool) {
	key := q.Key()

	c.mu.Lock()
	if p, ok := c.pending[key]; ok {
		p.waiters = append(p.waiters, cb)
		c.mu.Unlock()
		logger.Debug("history %s: joined in-flight request (%d waiters)", key, len(p.waiters))
		return true
	}
	p := &pendingRequest{query: q, waiters: []HistoryCallback{cb}}
	c.pending[key] = p
	c.mu.Unlock()

	go c.run(context.WithoutCancel(ctx), key, p)
	return false
}

// Do is the blocking form of Fetch. Cancelling ctx abandons the wait but not
// the shared request.
func (c *Coalescer) Do(ctx context.Context, q models.HistoryQuery) ([]models.Bar, models.HistoryMeta, error) {
	type result struct {
		bars []models.Bar
		meta models.HistoryMeta
		err  error
	}
	ch := make(chan result, 1)
	c.Fetch(ctx, q, func(bars []models.Bar, meta models.HistoryMeta, err error) {
		ch <- result{bars: bars, meta: meta, err: err}
	})

	select {
	case r := <-ch:
		return r.bars, r.meta, r.err
	case <-ctx.Done():
		return nil, models.HistoryMeta{}, ctx.Err()
	}
}

// InFlight is the number of distinct requests awaiting a response.
func (c *Coalescer) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Coalescer) run(ctx context.Context, key string, p *pendingRequest) {
	bars, meta, err := c.src.History(ctx, p.query)

	// Removed before dispatch: a request issued from inside a callback starts
	// fresh instead of joining this closing group.
	c.mu.Lock()
	delete(c.pending, key)
	waiters := p.waiters
	p.waiters = nil
	c.mu.Unlock()

	if err != nil {
		logger.Debug("history %s failed for %d waiters: %v", key, len(waiters), err)
		for _, cb := range waiters {
			cb(nil, models.HistoryMeta{}, err)
		}
		return
	}

	if len(bars) > 0 {
		c.cache.Set(p.query.Symbol, p.query.Resolution, bars[len(bars)-1])
	}
	for _, cb := range waiters {
		cb(bars, meta, nil)
	}
}

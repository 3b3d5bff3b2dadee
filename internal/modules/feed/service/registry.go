package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"udf_feed/internal/helper"
	"udf_feed/internal/models"
	"udf_feed/pkg/logger"
)

// Listener receives live bars for one subscription.
type Listener func(bar models.Bar)

// PollObserver is told about every completed poll.
type PollObserver interface {
	OnPoll(symbol, resolution string, emitted int, err error)
}

// TickerFunc returns a tick channel and its stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

type listenerEntry struct {
	id string
	fn Listener
}

type subscription struct {
	symbol     string
	resolution string
	frequency  time.Duration
	cancel     context.CancelFunc
	done       chan struct{}

	mu          sync.Mutex
	listeners   []listenerEntry
	hasEmitted  bool
	lastEmitted int64
	terminated  bool
}

func (s *subscription) key() string { return helper.SeriesKey(s.symbol, s.resolution) }

func (s *subscription) terminate() {
	s.mu.Lock()
	s.terminated = true
	s.mu.Unlock()
	s.cancel()
}

func (s *subscription) active(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return false
	}
	for _, l := range s.listeners {
		if l.id == id {
			return true
		}
	}
	return false
}

func (s *subscription) removeListener(id string) (left int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			break
		}
	}
	return len(s.listeners)
}

// Registry owns one poll loop per (symbol, resolution). Several listeners may
// share a loop; the loop stops when the key is unsubscribed or its last
// listener leaves.
type Registry struct {
	coalescer *Coalescer
	cache     *LastBarCache
	countback int
	observer  PollObserver
	now       func() time.Time
	newTicker TickerFunc

	root   context.Context
	stop   context.CancelFunc
	mu     sync.Mutex
	subs   map[string]*subscription
	owners map[string]string // listener id -> series key
}

func NewRegistry(coalescer *Coalescer, cache *LastBarCache, countback int, observer PollObserver) *Registry {
	root, stop := context.WithCancel(context.Background())
	return &Registry{
		coalescer: coalescer,
		cache:     cache,
		countback: countback,
		observer:  observer,
		now:       time.Now,
		newTicker: realTicker,
		root:      root,
		stop:      stop,
		subs:      make(map[string]*subscription),
		owners:    make(map[string]string),
	}
}

// Subscribe attaches fn to the series and starts polling it if needed.
// The returned id identifies the listener for UnsubscribeListener.
func (r *Registry) Subscribe(symbol, resolution string, frequency time.Duration, fn Listener) string {
	id := uuid.NewString()
	key := helper.SeriesKey(symbol, resolution)

	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, ok := r.subs[key]; ok {
		sub.mu.Lock()
		sub.listeners = append(sub.listeners, listenerEntry{id: id, fn: fn})
		sub.mu.Unlock()
		r.owners[id] = key
		logger.Debug("subscription %s: listener %s joined", key, id)
		return id
	}

	ctx, cancel := context.WithCancel(r.root)
	sub := &subscription{
		symbol:     symbol,
		resolution: resolution,
		frequency:  frequency,
		cancel:     cancel,
		done:       make(chan struct{}),
		listeners:  []listenerEntry{{id: id, fn: fn}},
	}
	r.subs[key] = sub
	r.owners[id] = key

	logger.Info("subscription %s: polling every %s", key, frequency)
	go r.loop(ctx, sub)
	return id
}

// Unsubscribe stops the series loop and drops all of its listeners.
func (r *Registry) Unsubscribe(symbol, resolution string) bool {
	key := helper.SeriesKey(symbol, resolution)

	r.mu.Lock()
	sub, ok := r.subs[key]
	if ok {
		delete(r.subs, key)
		for id, k := range r.owners {
			if k == key {
				delete(r.owners, id)
			}
		}
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	sub.terminate()
	logger.Info("subscription %s: stopped", key)
	return true
}

// UnsubscribeListener removes one listener. The loop stops with the last one.
func (r *Registry) UnsubscribeListener(id string) bool {
	r.mu.Lock()
	key, ok := r.owners[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.owners, id)
	sub := r.subs[key]
	last := sub.removeListener(id) == 0
	if last {
		delete(r.subs, key)
	}
	r.mu.Unlock()

	if last {
		sub.terminate()
		logger.Info("subscription %s: last listener left, stopped", key)
	}
	return true
}

// Len is the number of series being polled.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Close stops every loop and waits for them to exit.
func (r *Registry) Close() {
	r.mu.Lock()
	subs := make([]*subscription, 0, len(r.subs))
	for k, sub := range r.subs {
		subs = append(subs, sub)
		delete(r.subs, k)
	}
	clear(r.owners)
	r.mu.Unlock()

	for _, sub := range subs {
		sub.terminate()
	}
	r.stop()
	for _, sub := range subs {
		<-sub.done
	}
}

func (r *Registry) loop(ctx context.Context, sub *subscription) {
	defer close(sub.done)

	tick, stop := r.newTicker(sub.frequency)
	defer stop()

	r.poll(ctx, sub)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			r.poll(ctx, sub)
		}
	}
}

// poll issues one incremental request and waits for its outcome, so ticks of
// the same series never overlap.
func (r *Registry) poll(ctx context.Context, sub *subscription) {
	q := r.window(sub.symbol, sub.resolution)
	done := make(chan struct{})

	r.coalescer.Fetch(ctx, q, func(bars []models.Bar, _ models.HistoryMeta, err error) {
		defer close(done)
		r.complete(sub, bars, err)
	})

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// window builds the incremental query for the next poll. With a cached bar it
// asks for everything after that bar up to the current period boundary,
// otherwise for the last countback periods.
func (r *Registry) window(symbol, resolution string) models.HistoryQuery {
	now := r.now().Unix()
	step := helper.ResolutionSeconds(resolution)

	q := models.HistoryQuery{
		Symbol:     symbol,
		Resolution: resolution,
		To:         now,
		Countback:  r.countback,
	}
	if last, ok := r.cache.Get(symbol, resolution); ok {
		q.From = last.Unix() + 1
		q.To = helper.AlignDown(now, step)
	} else {
		q.From = max(0, now-step*int64(r.countback))
	}
	return q
}

func (r *Registry) complete(sub *subscription, bars []models.Bar, err error) {
	sub.mu.Lock()
	if sub.terminated {
		sub.mu.Unlock()
		return
	}
	if err != nil || len(bars) == 0 {
		sub.mu.Unlock()
		if err != nil {
			logger.Warn("subscription %s: poll failed: %v", sub.key(), err)
		}
		r.observe(sub, 0, err)
		return
	}

	ordered := make([]models.Bar, len(bars))
	copy(ordered, bars)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Time < ordered[j].Time })

	// The first successful poll only sets the baseline.
	var fresh []models.Bar
	if sub.hasEmitted {
		cursor := sub.lastEmitted
		for _, b := range ordered {
			if b.Time > cursor {
				fresh = append(fresh, b)
				cursor = b.Time
			}
		}
	}
	if newest := ordered[len(ordered)-1].Time; !sub.hasEmitted || newest > sub.lastEmitted {
		sub.lastEmitted = newest
		sub.hasEmitted = true
	}
	listeners := append([]listenerEntry(nil), sub.listeners...)
	sub.mu.Unlock()

	r.cache.Set(sub.symbol, sub.resolution, ordered[len(ordered)-1])

	for _, b := range fresh {
		for _, l := range listeners {
			if !sub.active(l.id) {
				continue
			}
			l.fn(b)
		}
	}
	r.observe(sub, len(fresh), nil)
}

func (r *Registry) observe(sub *subscription, emitted int, err error) {
	if r.observer != nil {
		r.observer.OnPoll(sub.symbol, sub.resolution, emitted, err)
	}
}

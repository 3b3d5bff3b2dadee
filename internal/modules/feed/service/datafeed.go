package service

import (
	"context"
	"time"

	"udf_feed/internal/models"
	"udf_feed/internal/modules/config"
	"udf_feed/pkg/logger"
)

const (
	defaultUpdateFrequency = 10 * time.Second
	defaultCountback       = 1000
)

// Transport is the UDF endpoint surface the datafeed depends on.
type Transport interface {
	HistorySource
	Configuration(ctx context.Context) models.FeedConfiguration
	SearchSymbols(ctx context.Context, query, symbolType, exchange string, limit int) []models.SymbolSummary
	ResolveSymbol(ctx context.Context, name string) (models.SymbolInfo, error)
	ServerTime(ctx context.Context) (int64, error)
}

type Options struct {
	UpdateFrequency time.Duration
	Countback       int
	Observer        PollObserver
	Now             func() time.Time
	Ticker          TickerFunc
}

// Datafeed is the charting-facing surface: metadata passthrough, coalesced
// history and polled live bars.
type Datafeed struct {
	transport Transport
	cache     *LastBarCache
	coalescer *Coalescer
	registry  *Registry
	frequency time.Duration
}

func New(t Transport, opts Options) *Datafeed {
	if opts.UpdateFrequency <= 0 {
		opts.UpdateFrequency = defaultUpdateFrequency
	}
	if opts.Countback <= 0 {
		opts.Countback = defaultCountback
	}

	cache := NewLastBarCache()
	coalescer := NewCoalescer(t, cache)
	registry := NewRegistry(coalescer, cache, opts.Countback, opts.Observer)
	if opts.Now != nil {
		registry.now = opts.Now
	}
	if opts.Ticker != nil {
		registry.newTicker = opts.Ticker
	}

	return &Datafeed{
		transport: t,
		cache:     cache,
		coalescer: coalescer,
		registry:  registry,
		frequency: opts.UpdateFrequency,
	}
}

func NewDatafeed(t Transport, cfg *config.Config, observer PollObserver) *Datafeed {
	return New(t, Options{
		UpdateFrequency: cfg.UDF.UpdateFrequency,
		Countback:       cfg.UDF.Countback,
		Observer:        observer,
	})
}

func (d *Datafeed) GetConfiguration(ctx context.Context) models.FeedConfiguration {
	return d.transport.Configuration(ctx)
}

func (d *Datafeed) SearchSymbols(ctx context.Context, query, symbolType, exchange string, limit int) []models.SymbolSummary {
	return d.transport.SearchSymbols(ctx, query, symbolType, exchange, limit)
}

func (d *Datafeed) ResolveSymbol(ctx context.Context, name string) (models.SymbolInfo, error) {
	return d.transport.ResolveSymbol(ctx, name)
}

func (d *Datafeed) GetServerTime(ctx context.Context) (int64, error) {
	return d.transport.ServerTime(ctx)
}

// GetBars requests history and calls cb exactly once. Identical concurrent
// requests share one transport call.
func (d *Datafeed) GetBars(ctx context.Context, q models.HistoryQuery, cb HistoryCallback) {
	d.coalescer.Fetch(ctx, q, cb)
}

// GetHistoricalBars is the blocking form of GetBars.
func (d *Datafeed) GetHistoricalBars(ctx context.Context, q models.HistoryQuery) ([]models.Bar, models.HistoryMeta, error) {
	return d.coalescer.Do(ctx, q)
}

// SubscribeBars polls the series at the configured frequency and returns the
// listener id.
func (d *Datafeed) SubscribeBars(symbol, resolution string, fn Listener) string {
	return d.SubscribeBarsEvery(symbol, resolution, d.frequency, fn)
}

func (d *Datafeed) SubscribeBarsEvery(symbol, resolution string, frequency time.Duration, fn Listener) string {
	if frequency <= 0 {
		frequency = d.frequency
	}
	return d.registry.Subscribe(symbol, resolution, frequency, fn)
}

// UnsubscribeBars stops the series poll loop; all its listeners are dropped.
func (d *Datafeed) UnsubscribeBars(symbol, resolution string) {
	if !d.registry.Unsubscribe(symbol, resolution) {
		logger.Debug("unsubscribe %s %s: not subscribed", symbol, resolution)
	}
}

// UnsubscribeListener removes one listener by id.
func (d *Datafeed) UnsubscribeListener(id string) bool {
	return d.registry.UnsubscribeListener(id)
}

func (d *Datafeed) LastBar(symbol, resolution string) (models.Bar, bool) {
	return d.cache.Get(symbol, resolution)
}

func (d *Datafeed) Subscriptions() int { return d.registry.Len() }

func (d *Datafeed) InFlight() int { return d.coalescer.InFlight() }

// Close stops all poll loops.
func (d *Datafeed) Close() {
	d.registry.Close()
}

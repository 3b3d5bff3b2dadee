package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"udf_feed/internal/helper"
	"udf_feed/internal/models"
	"udf_feed/internal/modules/config"
	feed "udf_feed/internal/modules/feed/service"
	"udf_feed/internal/notify"
	"udf_feed/pkg/logger"
)

// Feed is the part of the datafeed the warmup drives.
type Feed interface {
	GetHistoricalBars(ctx context.Context, q models.HistoryQuery) ([]models.Bar, models.HistoryMeta, error)
	SubscribeBars(symbol, resolution string, fn feed.Listener) string
}

type Warmuper struct {
	feed Feed
	n    notify.Notifier
	cfg  *config.Config
	now  func() time.Time

	// bounds concurrent history fetches against the UDF server
	sem chan struct{}
}

func NewWarmuper(f Feed, n notify.Notifier, cfg *config.Config) *Warmuper {
	return &Warmuper{
		feed: f,
		n:    n,
		cfg:  cfg,
		now:  time.Now,
		sem:  make(chan struct{}, 8),
	}
}

// Warmup seeds the last-bar cache with an initial history fetch per item and
// then subscribes it, forwarding every live bar to the notifier. A failed
// fetch is reported but the item is still subscribed.
func (w *Warmuper) Warmup(ctx context.Context, items []config.WatchItem) error {
	if len(items) == 0 {
		return nil
	}

	w.n.Sendf("warmup start: %d series, countback=%d", len(items), w.cfg.UDF.Countback)

	var (
		bars     atomic.Int64
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, it := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case w.sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-w.sem }()

			got, _, err := w.feed.GetHistoricalBars(ctx, w.initialQuery(it))
			if err != nil {
				logger.Warn("warmup %s %s: %v", it.Symbol, it.Resolution, err)
				mu.Lock()
				if firstErr == nil {
					firstErr = errors.Wrapf(err, "warmup %s %s", it.Symbol, it.Resolution)
				}
				mu.Unlock()
			}
			bars.Add(int64(len(got)))
			if ctx.Err() != nil {
				return
			}

			symbol, resolution := it.Symbol, it.Resolution
			w.feed.SubscribeBars(symbol, resolution, func(b models.Bar) {
				w.n.Send(notify.FormatBar(symbol, resolution, b))
			})
		}()
	}
	wg.Wait()

	if firstErr != nil {
		w.n.Sendf("warmup finished with error: %v", firstErr)
		return firstErr
	}
	w.n.Sendf("warmup finished: %d bars loaded", bars.Load())
	return nil
}

func (w *Warmuper) initialQuery(it config.WatchItem) models.HistoryQuery {
	now := w.now().Unix()
	countback := w.cfg.UDF.Countback
	return models.HistoryQuery{
		Symbol:           it.Symbol,
		Resolution:       it.Resolution,
		From:             max(0, now-helper.ResolutionSeconds(it.Resolution)*int64(countback)),
		To:               now,
		Countback:        countback,
		FirstDataRequest: true,
	}
}

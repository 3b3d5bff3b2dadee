package service

import (
	"strings"

	"udf_feed/internal/helper"
	"udf_feed/internal/modules/config"
	"udf_feed/pkg/logger"
)

type Watchlist struct{ items []config.WatchItem }

// NewWatchlist takes the configured pairs, dropping blanks and duplicates.
func NewWatchlist(cfg *config.Config) *Watchlist {
	seen := make(map[string]struct{}, len(cfg.Watchlist))
	items := make([]config.WatchItem, 0, len(cfg.Watchlist))
	for _, it := range cfg.Watchlist {
		it.Symbol = strings.TrimSpace(it.Symbol)
		it.Resolution = strings.TrimSpace(it.Resolution)
		if it.Symbol == "" || it.Resolution == "" {
			logger.Warn("watchlist: skipping incomplete entry %+v", it)
			continue
		}
		key := helper.SeriesKey(it.Symbol, it.Resolution)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, it)
	}
	return &Watchlist{items: items}
}

func (w *Watchlist) Items() []config.WatchItem { return w.items }

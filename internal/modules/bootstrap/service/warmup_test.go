package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"udf_feed/internal/models"
	"udf_feed/internal/modules/config"
	feed "udf_feed/internal/modules/feed/service"
)

type stubFeed struct {
	mu        sync.Mutex
	queries   []models.HistoryQuery
	listeners map[string]feed.Listener
	fail      string
}

func (s *stubFeed) GetHistoricalBars(ctx context.Context, q models.HistoryQuery) ([]models.Bar, models.HistoryMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if q.Symbol == s.fail {
		return nil, models.HistoryMeta{}, errors.Wrap(models.ErrNetwork, "refused")
	}
	return []models.Bar{{Time: 1000}, {Time: 2000}}, models.HistoryMeta{}, nil
}

func (s *stubFeed) SubscribeBars(symbol, resolution string, fn feed.Listener) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[string]feed.Listener)
	}
	s.listeners[symbol+"_"+resolution] = fn
	return symbol
}

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Send(msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recorder) Sendf(format string, args ...any) { r.Send(format) }

func testConfig(items ...config.WatchItem) *config.Config {
	cfg := &config.Config{Watchlist: items}
	cfg.UDF.Countback = 10
	return cfg
}

func TestWatchlistDropsBlanksAndDuplicates(t *testing.T) {
	wl := NewWatchlist(testConfig(
		config.WatchItem{Symbol: "AAPL", Resolution: "5"},
		config.WatchItem{Symbol: " AAPL ", Resolution: "5"},
		config.WatchItem{Symbol: "", Resolution: "5"},
		config.WatchItem{Symbol: "MSFT", Resolution: "1D"},
	))
	items := wl.Items()
	if len(items) != 2 || items[0].Symbol != "AAPL" || items[1].Symbol != "MSFT" {
		t.Fatalf("items = %+v", items)
	}
}

func TestWarmupFetchesThenSubscribes(t *testing.T) {
	items := []config.WatchItem{{Symbol: "AAPL", Resolution: "5"}, {Symbol: "MSFT", Resolution: "1D"}}
	f := &stubFeed{}
	n := &recorder{}
	w := NewWarmuper(f, n, testConfig(items...))
	w.now = func() time.Time { return time.Unix(100000, 0) }

	if err := w.Warmup(context.Background(), items); err != nil {
		t.Fatalf("warmup: %v", err)
	}

	sort.Slice(f.queries, func(i, j int) bool { return f.queries[i].Symbol < f.queries[j].Symbol })
	aapl := f.queries[0]
	if !aapl.FirstDataRequest || aapl.Countback != 10 || aapl.To != 100000 || aapl.From != 100000-3000 {
		t.Fatalf("aapl query = %+v", aapl)
	}
	if msft := f.queries[1]; msft.From != 0 {
		t.Fatalf("msft window not clamped: %+v", msft)
	}

	if len(f.listeners) != 2 {
		t.Fatalf("subscriptions = %d", len(f.listeners))
	}
	f.listeners["AAPL_5"](models.Bar{Time: 1700000100000, Close: 3})
	last := n.msgs[len(n.msgs)-1]
	if last != "AAPL 5 2023-11-14 22:15 O=0 H=0 L=0 C=3 V=0" {
		t.Fatalf("forwarded = %q", last)
	}
}

func TestWarmupReportsFailureButStillSubscribes(t *testing.T) {
	items := []config.WatchItem{{Symbol: "AAPL", Resolution: "5"}, {Symbol: "BAD", Resolution: "5"}}
	f := &stubFeed{fail: "BAD"}
	w := NewWarmuper(f, &recorder{}, testConfig(items...))

	err := w.Warmup(context.Background(), items)
	if !errors.Is(err, models.ErrNetwork) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := f.listeners["BAD_5"]; !ok {
		t.Fatal("failed series was not subscribed")
	}
}

func TestWarmupSkipsSubscribeAfterShutdown(t *testing.T) {
	items := []config.WatchItem{{Symbol: "AAPL", Resolution: "5"}, {Symbol: "MSFT", Resolution: "1D"}}
	f := &stubFeed{}
	w := NewWarmuper(f, &recorder{}, testConfig(items...))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = w.Warmup(ctx, items)

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.listeners) != 0 {
		t.Fatalf("subscribed %d series after shutdown", len(f.listeners))
	}
}

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"udf_feed/internal/models"
)

type fakeResult struct {
	bars []models.Bar
	meta models.HistoryMeta
	err  error
}

// fakeSource answers History from a script; the last entry repeats. When gate
// is set every call blocks on it after announcing itself on started.
type fakeSource struct {
	mu      sync.Mutex
	queries []models.HistoryQuery
	script  []fakeResult
	started chan models.HistoryQuery
	gate    chan struct{}
}

func (f *fakeSource) History(ctx context.Context, q models.HistoryQuery) ([]models.Bar, models.HistoryMeta, error) {
	f.mu.Lock()
	n := len(f.queries)
	f.queries = append(f.queries, q)
	var r fakeResult
	if len(f.script) > 0 {
		r = f.script[min(n, len(f.script)-1)]
	}
	started, gate := f.started, f.gate
	f.mu.Unlock()

	if started != nil {
		started <- q
	}
	if gate != nil {
		<-gate
	}
	return r.bars, r.meta, r.err
}

func (f *fakeSource) Configuration(ctx context.Context) models.FeedConfiguration {
	return models.FeedConfiguration{SupportsSearch: true, SupportedResolutions: []string{"5", "1D"}}
}

func (f *fakeSource) SearchSymbols(ctx context.Context, query, symbolType, exchange string, limit int) []models.SymbolSummary {
	return []models.SymbolSummary{{Symbol: query, Exchange: exchange, Type: symbolType}}
}

func (f *fakeSource) ResolveSymbol(ctx context.Context, name string) (models.SymbolInfo, error) {
	if name == "" {
		return models.SymbolInfo{}, models.ErrUnknownSymbol
	}
	return models.SymbolInfo{Name: name, Ticker: name}, nil
}

func (f *fakeSource) ServerTime(ctx context.Context) (int64, error) {
	return 1700000000000, nil
}

func (f *fakeSource) setGate(started chan models.HistoryQuery, gate chan struct{}) {
	f.mu.Lock()
	f.started, f.gate = started, gate
	f.mu.Unlock()
}

func (f *fakeSource) calls() []models.HistoryQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.HistoryQuery(nil), f.queries...)
}

func barsAt(secs ...int64) []models.Bar {
	out := make([]models.Bar, 0, len(secs))
	for _, s := range secs {
		out = append(out, models.Bar{Time: s * 1000, Open: 1, High: 2, Low: 0.5, Close: float64(s), Volume: 10})
	}
	return out
}

type pollEvent struct {
	symbol, resolution string
	emitted            int
	err                error
}

type chanObserver chan pollEvent

func (c chanObserver) OnPoll(symbol, resolution string, emitted int, err error) {
	c <- pollEvent{symbol: symbol, resolution: resolution, emitted: emitted, err: err}
}

func waitPoll(t *testing.T, polls <-chan pollEvent) pollEvent {
	t.Helper()
	select {
	case ev := <-polls:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for poll")
		return pollEvent{}
	}
}

// manualTicker hands out one tick channel the test drives by hand.
func manualTicker(ch chan time.Time) TickerFunc {
	return func(time.Duration) (<-chan time.Time, func()) { return ch, func() {} }
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

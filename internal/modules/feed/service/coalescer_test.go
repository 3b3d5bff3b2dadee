package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"udf_feed/internal/models"
)

var aaplQuery = models.HistoryQuery{Symbol: "AAPL", Resolution: "5", From: 100, To: 500, FirstDataRequest: true}

func TestCoalescerSharesOneTransportCall(t *testing.T) {
	started := make(chan models.HistoryQuery, 1)
	gate := make(chan struct{})
	src := &fakeSource{script: []fakeResult{{bars: barsAt(100, 200, 300)}}}
	src.setGate(started, gate)
	cache := NewLastBarCache()
	c := NewCoalescer(src, cache)

	var wg sync.WaitGroup
	results := make([][]models.Bar, 2)
	wg.Add(2)
	if joined := c.Fetch(context.Background(), aaplQuery, func(bars []models.Bar, _ models.HistoryMeta, err error) {
		defer wg.Done()
		results[0] = bars
	}); joined {
		t.Fatal("first caller must start the request")
	}
	<-started
	if joined := c.Fetch(context.Background(), aaplQuery, func(bars []models.Bar, _ models.HistoryMeta, err error) {
		defer wg.Done()
		results[1] = bars
	}); !joined {
		t.Fatal("second caller must join the in-flight request")
	}
	if c.InFlight() != 1 {
		t.Fatalf("in flight = %d, want 1", c.InFlight())
	}

	close(gate)
	wg.Wait()

	if n := len(src.calls()); n != 1 {
		t.Fatalf("transport calls = %d, want 1", n)
	}
	for i, bars := range results {
		if len(bars) != 3 {
			t.Fatalf("caller %d got %d bars", i, len(bars))
		}
	}
	if last, ok := cache.Get("AAPL", "5"); !ok || last.Time != 300000 {
		t.Fatalf("cache = %+v %v, want bar at 300000", last, ok)
	}
	if c.InFlight() != 0 {
		t.Fatal("pending entry not removed")
	}
}

func TestCoalescerSharedFailureLeavesCacheAlone(t *testing.T) {
	started := make(chan models.HistoryQuery, 1)
	gate := make(chan struct{})
	src := &fakeSource{script: []fakeResult{{err: errors.Wrap(models.ErrNetwork, "dial tcp: refused")}}}
	src.setGate(started, gate)
	cache := NewLastBarCache()
	c := NewCoalescer(src, cache)

	errs := make(chan error, 2)
	cb := func(bars []models.Bar, _ models.HistoryMeta, err error) {
		if bars != nil {
			t.Errorf("bars on failure: %v", bars)
		}
		errs <- err
	}
	c.Fetch(context.Background(), aaplQuery, cb)
	<-started
	c.Fetch(context.Background(), aaplQuery, cb)
	close(gate)

	for i := 0; i < 2; i++ {
		err := <-errs
		if models.ErrorKind(err) != "network_error" {
			t.Fatalf("caller %d: kind = %q", i, models.ErrorKind(err))
		}
	}
	if cache.Len() != 0 {
		t.Fatal("failure mutated the cache")
	}
}

func TestCoalescerDispatchesInRegistrationOrder(t *testing.T) {
	started := make(chan models.HistoryQuery, 1)
	gate := make(chan struct{})
	src := &fakeSource{script: []fakeResult{{bars: barsAt(100)}}}
	src.setGate(started, gate)
	c := NewCoalescer(src, NewLastBarCache())

	var mu sync.Mutex
	var order []int
	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		c.Fetch(context.Background(), aaplQuery, func([]models.Bar, models.HistoryMeta, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			done <- struct{}{}
		})
		if i == 0 {
			<-started
		}
	}
	close(gate)
	for i := 0; i < 3; i++ {
		<-done
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v", order)
		}
	}
}

func TestCoalescerReentrantRequestStartsFresh(t *testing.T) {
	src := &fakeSource{script: []fakeResult{{bars: barsAt(100)}}}
	c := NewCoalescer(src, NewLastBarCache())

	joined := make(chan bool, 1)
	second := make(chan struct{})
	c.Fetch(context.Background(), aaplQuery, func([]models.Bar, models.HistoryMeta, error) {
		joined <- c.Fetch(context.Background(), aaplQuery, func([]models.Bar, models.HistoryMeta, error) {
			close(second)
		})
	})

	if <-joined {
		t.Fatal("request issued from a callback joined the finished group")
	}
	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("reentrant request never completed")
	}
	if n := len(src.calls()); n != 2 {
		t.Fatalf("transport calls = %d, want 2", n)
	}
}

func TestCoalescerNoDataIsSuccess(t *testing.T) {
	src := &fakeSource{script: []fakeResult{{meta: models.HistoryMeta{NoData: true, NextTime: 50000}}}}
	cache := NewLastBarCache()
	c := NewCoalescer(src, cache)

	bars, meta, err := c.Do(context.Background(), aaplQuery)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if len(bars) != 0 || !meta.NoData || meta.NextTime != 50000 {
		t.Fatalf("bars=%v meta=%+v", bars, meta)
	}
	if cache.Len() != 0 {
		t.Fatal("empty result must not touch the cache")
	}
}

func TestCoalescerDoHonoursContext(t *testing.T) {
	started := make(chan models.HistoryQuery, 1)
	gate := make(chan struct{})
	src := &fakeSource{script: []fakeResult{{bars: barsAt(100)}}}
	src.setGate(started, gate)
	cache := NewLastBarCache()
	c := NewCoalescer(src, cache)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, _, err := c.Do(ctx, aaplQuery)
		errc <- err
	}()
	<-started
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// The abandoned request still completes and feeds the cache.
	close(gate)
	waitFor(t, "cache write", func() bool {
		_, ok := cache.Get("AAPL", "5")
		return ok
	})
}

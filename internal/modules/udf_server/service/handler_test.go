package service

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"udf_feed/internal/models"
	"udf_feed/internal/storage"
)

func newTestServer(t *testing.T) (*gin.Engine, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "udf.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	if err := store.UpsertSymbols(ctx, []models.SymbolRecord{
		{Exchange: "NASDAQ", Code: "AAPL", Name: "Apple Inc", Timezone: "America/New_York", Session: "0930-1600"},
		{Exchange: "NASDAQ", Code: "MSFT", Name: "Microsoft"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var bars []models.Bar
	for _, ts := range []int64{100, 200, 300} {
		bars = append(bars, models.Bar{Time: ts * 1000, Open: 1, High: 2, Low: 0.5, Close: float64(ts), Volume: 5})
	}
	if _, err := store.SaveBars(ctx, "NASDAQ:AAPL", "5", bars); err != nil {
		t.Fatalf("bars: %v", err)
	}

	h := NewHandler(store)
	h.now = func() time.Time { return time.Unix(1700000000, 0) }
	return NewRouter(h, []string{"*"}), h
}

func get(t *testing.T, r http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s: code %d body %s", target, rec.Code, rec.Body)
	}
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := sonic.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body, err)
	}
}

func TestConfigAndTime(t *testing.T) {
	r, _ := newTestServer(t)

	var cfg models.FeedConfiguration
	decode(t, get(t, r, "/udf/config"), &cfg)
	if !cfg.SupportsSearch || !cfg.SupportsTime || cfg.SupportsMarks || len(cfg.SupportedResolutions) != 8 {
		t.Fatalf("config = %+v", cfg)
	}

	if body := get(t, r, "/udf/time").Body.String(); body != "1700000000" {
		t.Fatalf("time = %q", body)
	}
}

func TestSearch(t *testing.T) {
	r, _ := newTestServer(t)

	var resp struct {
		Result []models.SymbolSummary `json:"result"`
	}
	decode(t, get(t, r, "/udf/search?query=apple&limit=abc"), &resp)
	if len(resp.Result) != 1 || resp.Result[0].Symbol != "NASDAQ:AAPL" || resp.Result[0].Description != "Apple Inc" {
		t.Fatalf("search = %+v", resp.Result)
	}

	decode(t, get(t, r, "/udf/search?exchange=NASDAQ&limit=1"), &resp)
	if len(resp.Result) != 1 {
		t.Fatalf("limit ignored: %+v", resp.Result)
	}
}

func TestSymbols(t *testing.T) {
	r, _ := newTestServer(t)

	var info models.SymbolInfo
	decode(t, get(t, r, "/udf/symbols?symbol=NASDAQ:AAPL"), &info)
	if info.Name != "AAPL" || info.Ticker != "NASDAQ:AAPL" || info.Timezone != "America/New_York" || info.Session != "0930-1600" || info.PriceScale != 100 {
		t.Fatalf("info = %+v", info)
	}

	for _, target := range []string{"/udf/symbols?symbol=NYSE:AAPL", "/udf/symbols?symbol=AAPL"} {
		var raw models.RawSymbolInfo
		decode(t, get(t, r, target), &raw)
		if raw.S != models.StatusError || raw.Error != "unknown_symbol" {
			t.Fatalf("%s: %+v", target, raw)
		}
	}
}

func TestHistory(t *testing.T) {
	r, _ := newTestServer(t)

	tests := []struct {
		name   string
		target string
		check  func(t *testing.T, resp models.HistoryResponse)
	}{
		{
			name:   "range",
			target: "/udf/history?symbol=NASDAQ:AAPL&resolution=5&from=150&to=300",
			check: func(t *testing.T, resp models.HistoryResponse) {
				if resp.S != models.StatusOK || len(resp.T) != 2 || resp.T[0] != 200 || resp.C[1] != 300 {
					t.Fatalf("resp = %+v", resp)
				}
			},
		},
		{
			name:   "countback",
			target: "/udf/history?symbol=NASDAQ:AAPL&resolution=5&from=0&to=1000&countback=1",
			check: func(t *testing.T, resp models.HistoryResponse) {
				if len(resp.T) != 1 || resp.T[0] != 300 {
					t.Fatalf("resp = %+v", resp)
				}
			},
		},
		{
			name:   "no data with next time",
			target: "/udf/history?symbol=NASDAQ:AAPL&resolution=5&from=400&to=900",
			check: func(t *testing.T, resp models.HistoryResponse) {
				if resp.S != models.StatusNoData || resp.NB == nil || *resp.NB != 300 {
					t.Fatalf("resp = %+v", resp)
				}
			},
		},
		{
			name:   "no data at all",
			target: "/udf/history?symbol=NASDAQ:MSFT&resolution=D&from=0&to=900",
			check: func(t *testing.T, resp models.HistoryResponse) {
				if resp.S != models.StatusNoData || resp.NB != nil {
					t.Fatalf("resp = %+v", resp)
				}
			},
		},
		{
			name:   "missing params",
			target: "/udf/history?symbol=NASDAQ:AAPL&resolution=5",
			check: func(t *testing.T, resp models.HistoryResponse) {
				if resp.S != models.StatusError || !strings.Contains(resp.ErrMsg, "missing") {
					t.Fatalf("resp = %+v", resp)
				}
			},
		},
		{
			name:   "unsupported resolution",
			target: "/udf/history?symbol=NASDAQ:AAPL&resolution=7&from=0&to=900",
			check: func(t *testing.T, resp models.HistoryResponse) {
				if resp.S != models.StatusError || !strings.Contains(resp.ErrMsg, "resolution") {
					t.Fatalf("resp = %+v", resp)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp models.HistoryResponse
			decode(t, get(t, r, tt.target), &resp)
			tt.check(t, resp)
		})
	}
}

func TestIngestThenHistory(t *testing.T) {
	r, _ := newTestServer(t)

	body := `{"symbol":"NASDAQ:MSFT","resolution":"1D","bars":[{"time":86400000,"open":1,"high":2,"low":1,"close":2,"volume":10}]}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/udf/bars", bytes.NewBufferString(body)))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"saved":1`) {
		t.Fatalf("ingest: %d %s", rec.Code, rec.Body)
	}

	var resp models.HistoryResponse
	decode(t, get(t, r, "/udf/history?symbol=NASDAQ:MSFT&resolution=1D&from=0&to=100000"), &resp)
	if resp.S != models.StatusOK || len(resp.T) != 1 || resp.T[0] != 86400 {
		t.Fatalf("resp = %+v", resp)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/udf/bars", bytes.NewBufferString(`{"symbol":"MSFT"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad ingest accepted: %d", rec.Code)
	}
}

func TestSymbolsList(t *testing.T) {
	r, _ := newTestServer(t)

	var recs []models.SymbolRecord
	decode(t, get(t, r, "/udf/symbols_list"), &recs)
	if len(recs) != 2 || recs[0].Code != "AAPL" {
		t.Fatalf("list = %+v", recs)
	}
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/udf/history", nil)
	req.Header.Set("Origin", "http://chart.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow origin = %q", got)
	}
}

package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"udf_feed/internal/modules/health/service"
)

func TestReadyz(t *testing.T) {
	state := service.NewState()
	mux := NewMux(state)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("not ready: code = %d", rec.Code)
	}

	state.SetReady(true)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ready: code = %d", rec.Code)
	}
}

func TestHealthzReportsPolls(t *testing.T) {
	state := service.NewState()
	state.OnPoll("AAPL", "5", 2, nil)
	state.OnPoll("AAPL", "5", 0, errors.New("network_error"))
	state.RegisterGauge("subscriptions", func() int { return 3 })

	rec := httptest.NewRecorder()
	NewMux(state).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}

	var snap service.Snapshot
	if err := sonic.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.PollsOK != 1 || snap.PollsFailed != 1 || snap.BarsEmitted != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.LastError != "AAPL 5: network_error" {
		t.Fatalf("last error = %q", snap.LastError)
	}
	if snap.Gauges["subscriptions"] != 3 {
		t.Fatalf("gauges = %v", snap.Gauges)
	}
	if snap.LastPollUnix == 0 {
		t.Fatal("last poll not recorded")
	}
}

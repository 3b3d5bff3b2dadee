package service

import (
	"strings"
	"testing"

	"github.com/pkg/errors"

	"udf_feed/internal/models"
	healthsvc "udf_feed/internal/modules/health/service"
)

type fixedBars map[string]models.Bar

func (f fixedBars) LastBar(symbol, resolution string) (models.Bar, bool) {
	b, ok := f[symbol+" "+resolution]
	return b, ok
}

func TestLastCommand(t *testing.T) {
	cmds := NewCommands(healthsvc.NewState(), fixedBars{
		"NASDAQ:AAPL 5": {Time: 1700000100000, Open: 1, High: 2, Low: 1, Close: 2, Volume: 3},
	})

	if got := cmds.Reply("last", "NASDAQ:AAPL 5"); got != "NASDAQ:AAPL 5 2023-11-14 22:15 O=1 H=2 L=1 C=2 V=3" {
		t.Fatalf("last = %q", got)
	}
	if got := cmds.Reply("last", "NASDAQ:MSFT 5"); got != "no bar cached for NASDAQ:MSFT 5" {
		t.Fatalf("miss = %q", got)
	}
	if got := cmds.Reply("last", "AAPL"); !strings.HasPrefix(got, "usage") {
		t.Fatalf("usage = %q", got)
	}
}

func TestStatusCommand(t *testing.T) {
	state := healthsvc.NewState()
	state.SetReady(true)
	state.OnPoll("AAPL", "5", 1, nil)
	state.OnPoll("AAPL", "5", 0, errors.New("network_error"))
	state.RegisterGauge("subscriptions", func() int { return 2 })

	got := NewCommands(state, fixedBars{}).Reply("status", "")
	for _, want := range []string{"ready=true", "polls ok=1 failed=1 bars=1", "last error: AAPL 5: network_error", "subscriptions=2"} {
		if !strings.Contains(got, want) {
			t.Fatalf("status %q missing %q", got, want)
		}
	}
}

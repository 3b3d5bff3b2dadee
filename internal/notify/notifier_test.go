package notify

import (
	"testing"

	"udf_feed/internal/models"
	"udf_feed/internal/modules/config"
)

func TestFormatBar(t *testing.T) {
	b := models.Bar{Time: 1700000100000, Open: 1.5, High: 2, Low: 1.25, Close: 1.75, Volume: 1200}
	got := FormatBar("NASDAQ:AAPL", "5", b)
	want := "NASDAQ:AAPL 5 2023-11-14 22:15 O=1.5 H=2 L=1.25 C=1.75 V=1200"
	if got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
}

func TestNewFallsBackToStdout(t *testing.T) {
	n, err := New(&config.Config{})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if _, ok := n.(*Stdout); !ok {
		t.Fatalf("notifier = %T, want *Stdout", n)
	}
	n.Sendf("bar %d", 1)
}

func TestNilTelegramIsSilent(t *testing.T) {
	var tg *Telegram
	tg.Send("dropped")
}

func TestCommandsReply(t *testing.T) {
	cmds := Commands{
		"status": func(string) string { return "ok" },
		"echo":   func(args string) string { return "[" + args + "]" },
	}
	if got := cmds.Reply("echo", "  AAPL 5 "); got != "[AAPL 5]" {
		t.Fatalf("echo = %q", got)
	}
	if got := cmds.Reply("nope", ""); got != "unknown command, try: /echo /status" {
		t.Fatalf("unknown = %q", got)
	}
}

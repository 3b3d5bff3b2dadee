package service

import (
	"fmt"
	"strings"
	"time"

	"udf_feed/internal/models"
	healthsvc "udf_feed/internal/modules/health/service"
	"udf_feed/internal/notify"
)

// LastBars is the datafeed view the bot reads.
type LastBars interface {
	LastBar(symbol, resolution string) (models.Bar, bool)
}

// NewCommands builds the bot commands: /status and /last SYMBOL RESOLUTION.
func NewCommands(state *healthsvc.State, bars LastBars) notify.Commands {
	return notify.Commands{
		"status": func(string) string { return status(state.Snapshot()) },
		"last": func(args string) string {
			fields := strings.Fields(args)
			if len(fields) != 2 {
				return "usage: /last SYMBOL RESOLUTION"
			}
			b, ok := bars.LastBar(fields[0], fields[1])
			if !ok {
				return fmt.Sprintf("no bar cached for %s %s", fields[0], fields[1])
			}
			return notify.FormatBar(fields[0], fields[1], b)
		},
	}
}

func status(s healthsvc.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ready=%v uptime=%s\n", s.Ready, time.Duration(s.UptimeSec)*time.Second)
	fmt.Fprintf(&sb, "polls ok=%d failed=%d bars=%d", s.PollsOK, s.PollsFailed, s.BarsEmitted)
	if s.LastPollUnix > 0 {
		fmt.Fprintf(&sb, "\nlast poll %s", time.Unix(s.LastPollUnix, 0).UTC().Format(time.RFC3339))
	}
	if s.LastError != "" {
		sb.WriteString("\nlast error: " + s.LastError)
	}
	for _, name := range sortedKeys(s.Gauges) {
		fmt.Fprintf(&sb, "\n%s=%d", name, s.Gauges[name])
	}
	return sb.String()
}

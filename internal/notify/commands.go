package notify

import (
	"context"
	"sort"
	"strings"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"udf_feed/pkg/logger"
)

// Command answers one bot command; args is the text after the command name.
type Command func(args string) string

type Commands map[string]Command

// Reply runs the named command. Unknown names get the list of known ones.
func (c Commands) Reply(name, args string) string {
	if cmd, ok := c[name]; ok {
		return cmd(strings.TrimSpace(args))
	}
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, "/"+n)
	}
	sort.Strings(names)
	return "unknown command, try: " + strings.Join(names, " ")
}

// Listen long-polls for messages from the configured chat and answers
// commands until ctx is done or Stop is called.
func (t *Telegram) Listen(ctx context.Context, cmds Commands) {
	if t == nil || t.bot == nil {
		return
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}
	updates := t.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			msg := upd.Message
			if msg == nil || msg.Chat == nil || msg.Chat.ID != t.chatID || !msg.IsCommand() {
				continue
			}
			logger.Debug("telegram: /%s %s", msg.Command(), msg.CommandArguments())
			t.Send(cmds.Reply(msg.Command(), msg.CommandArguments()))
		}
	}
}

func (t *Telegram) Stop() {
	if t != nil && t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
}

package app

import (
	"afkmon/internal/config"
	"afkmon/internal/transport"
	"afkmon/internal/transport/discord"
	"afkmon/internal/transport/telegram"
	logx "afkmon/pkg/logx"
)

// buildSenders returns one sender per configured remote channel. A
// malformed webhook disables Discord with a warning rather than failing.
func buildSenders(cfg *config.Config, thread string, log logx.Logger) (transport.Fanout, error) {
	var out transport.Fanout

	if d := cfg.Discord; d.WebhookURL != "" {
		if !discord.ValidWebhook(d.WebhookURL) {
			log.Warn("discord webhook looks invalid; discord disabled")
		} else {
			dc := discord.Config{
				WebhookURL: d.WebhookURL,
				UserID:     d.UserID,
				Identity:   d.IdentityOn(),
			}
			if d.ForumChannel {
				dc.ThreadName = thread
			}
			s, err := discord.New(dc, log)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
	}

	if t := cfg.Telegram; t.Token != "" {
		s, err := telegram.New(telegram.Config{
			Token:    t.Token,
			ChatID:   t.ChatID,
			ThreadID: t.ThreadID,
			Mention:  t.Mention,
		}, log)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// restartRequired returns the first changed section that is only read at
// startup.
func restartRequired(sections []string) (string, bool) {
	for _, s := range sections {
		switch s {
		case "discord", "telegram", "storage":
			return s, true
		}
	}
	return "", false
}

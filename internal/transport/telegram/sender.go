// Package telegram delivers notifications through a Telegram bot.
package telegram

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"afkmon/internal/transport"
	logx "afkmon/pkg/logx"
)

const textLimit = 4000

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int
	// Mention is appended to urgent messages, e.g. "@pilot".
	Mention string
	// APIURL overrides the Bot API endpoint.
	APIURL  string
	Timeout time.Duration
}

type Sender struct {
	cfg Config
	bot *tele.Bot
	log logx.Logger
}

// New builds a send-only bot. No network call happens until the first Send.
func New(cfg Config, log logx.Logger) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.APIURL,
		Offline: true,
		Client:  newHTTPClient(cfg.Timeout),
	})
	if err != nil {
		return nil, err
	}
	return &Sender{cfg: cfg, bot: b, log: log.With(logx.String("transport", "telegram"))}, nil
}

func (s *Sender) Name() string { return "telegram" }

func (s *Sender) Send(ctx context.Context, msg transport.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := ToHTML(msg.Text)
	if msg.Mention && s.cfg.Mention != "" {
		text += " " + html.EscapeString(s.cfg.Mention)
	}
	if r := []rune(text); len(r) > textLimit {
		text = string(r[:textLimit])
	}
	_, err := s.bot.Send(&tele.Chat{ID: s.cfg.ChatID}, text, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
		ThreadID:              s.cfg.ThreadID,
	})
	return err
}

// ToHTML escapes s and turns "**bold**" runs into <b> tags. An unpaired
// marker is left as literal text.
func ToHTML(s string) string {
	parts := strings.Split(s, "**")
	if len(parts)%2 == 0 {
		// Odd number of markers: keep the last one literal.
		last := len(parts) - 1
		parts[last-1] = parts[last-1] + "**" + parts[last]
		parts = parts[:last]
	}
	var b strings.Builder
	for i, p := range parts {
		p = html.EscapeString(p)
		if i%2 == 1 && p != "" {
			b.WriteString("<b>" + p + "</b>")
			continue
		}
		b.WriteString(p)
	}
	return b.String()
}

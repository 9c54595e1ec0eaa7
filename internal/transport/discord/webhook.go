// Package discord delivers notifications through a Discord webhook.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"afkmon/internal/transport"
	logx "afkmon/pkg/logx"
)

const (
	defaultTimeout = 10 * time.Second
	identityName   = "ED AFK Monitor"
	identityAvatar = "https://cdn.discordapp.com/attachments/1339930614064877570/1354083225923883038/t10.png"
	contentLimit   = 2000
)

var webhookRe = regexp.MustCompile(`^https://(canary\.|ptb\.)?discord(app)?\.com/api/webhooks/\d+/\S+$`)

// ValidWebhook reports whether raw looks like a Discord webhook URL.
func ValidWebhook(raw string) bool { return webhookRe.MatchString(strings.TrimSpace(raw)) }

type Config struct {
	WebhookURL string
	// UserID is pinged on urgent messages.
	UserID string
	// Identity posts under the monitor's own name and avatar.
	Identity bool
	// ThreadName, when set, targets a forum channel: the first message
	// opens a thread with this name and later messages post into it.
	ThreadName string
	Timeout    time.Duration
}

// APIError is a non-2xx webhook response.
type APIError struct {
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("discord webhook: status %d: %s (retry after %s)", e.Status, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("discord webhook: status %d: %s", e.Status, e.Message)
}

type Sender struct {
	cfg    Config
	client *http.Client
	log    logx.Logger

	mu       sync.Mutex
	threadID string
}

func New(cfg Config, log logx.Logger) (*Sender, error) {
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return nil, errors.New("discord webhook url is empty")
	}
	if _, err := url.Parse(cfg.WebhookURL); err != nil {
		return nil, fmt.Errorf("discord webhook url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Sender{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.With(logx.String("transport", "discord")),
	}, nil
}

func (s *Sender) Name() string { return "discord" }

type payload struct {
	Content    string `json:"content"`
	Username   string `json:"username,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
	ThreadName string `json:"thread_name,omitempty"`
}

type messageResp struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

// ThreadID returns the forum thread opened by the first message, if any.
func (s *Sender) ThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

func (s *Sender) Send(ctx context.Context, msg transport.Message) error {
	content := msg.Text
	if msg.Mention && s.cfg.UserID != "" {
		content += " <@" + s.cfg.UserID + ">"
	}
	if r := []rune(content); len(r) > contentLimit {
		content = string(r[:contentLimit-1]) + "…"
	}

	p := payload{Content: content}
	if s.cfg.Identity {
		p.Username = identityName
		p.AvatarURL = identityAvatar
	}

	// The first forum post and its thread id must not race a second send.
	s.mu.Lock()
	defer s.mu.Unlock()

	q := url.Values{"wait": {"true"}}
	switch {
	case s.threadID != "":
		q.Set("thread_id", s.threadID)
	case s.cfg.ThreadName != "":
		p.ThreadName = s.cfg.ThreadName
	}

	resp, err := s.post(ctx, q, p)
	if err != nil {
		return err
	}
	if p.ThreadName != "" {
		s.threadID = resp.ChannelID
		if s.threadID == "" {
			s.threadID = resp.ID
		}
		s.log.Debug("forum thread opened", logx.String("thread_id", s.threadID))
	}
	return nil
}

func (s *Sender) post(ctx context.Context, q url.Values, p payload) (messageResp, error) {
	var out messageResp
	body, err := json.Marshal(p)
	if err != nil {
		return out, err
	}
	u := s.cfg.WebhookURL
	if strings.Contains(u, "?") {
		u += "&" + q.Encode()
	} else {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return out, fmt.Errorf("discord webhook: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var rl struct {
			Message    string  `json:"message"`
			RetryAfter float64 `json:"retry_after"`
		}
		if json.Unmarshal(raw, &rl) == nil {
			if rl.Message != "" {
				apiErr.Message = rl.Message
			}
			apiErr.RetryAfter = time.Duration(rl.RetryAfter * float64(time.Second))
		}
		return out, apiErr
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return out, nil
}

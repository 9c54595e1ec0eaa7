package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"afkmon/internal/transport"
	logx "afkmon/pkg/logx"
)

func TestToHTML(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"**Kill** x2", "<b>Kill</b> x2"},
		{"a < b **c & d**", "a &lt; b <b>c &amp; d</b>"},
		{"**open", "**open"},
		{"**a** and **b**", "<b>a</b> and <b>b</b>"},
	}
	for _, tt := range tests {
		if got := ToHTML(tt.in); got != tt.want {
			t.Fatalf("ToHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSendPostsMessage(t *testing.T) {
	t.Parallel()
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"chat":{"id":-100}}}`))
	}))
	defer srv.Close()

	s, err := New(Config{Token: "123:abc", ChatID: -100, Mention: "@pilot", APIURL: srv.URL}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Send(context.Background(), transport.Message{Text: "💀 **Ship destroyed!**", Mention: true}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.HasSuffix(gotPath, "/sendMessage") {
		t.Fatalf("path = %q", gotPath)
	}
	body, _ := url.QueryUnescape(gotBody)
	if !strings.Contains(body, "<b>Ship destroyed!</b> @pilot") || !strings.Contains(body, "HTML") {
		t.Fatalf("body = %s", body)
	}
}

func TestNewValidates(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{ChatID: 1}, logx.Nop()); err == nil {
		t.Fatalf("empty token accepted")
	}
	if _, err := New(Config{Token: "x"}, logx.Nop()); err == nil {
		t.Fatalf("empty chat accepted")
	}
}

package notifiers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Fullex26/uptimegram/internal/config"
)

// fakeBotAPI records sendMessage calls and answers like the Bot API
type fakeBotAPI struct {
	mu       sync.Mutex
	paths    []string
	payloads []map[string]any
	fail     bool
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)

	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.payloads = append(f.payloads, payload)
	fail := f.fail
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if fail {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
		return
	}
	w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":123,"type":"private"},"text":"ok"}}`))
}

func newTestTelegram(t *testing.T, api *fakeBotAPI) *Telegram {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	tg, err := NewTelegram(config.TelegramConfig{
		APIKey: "test-token",
		ChatID: "123",
		APIURL: srv.URL + "/",
	})
	if err != nil {
		t.Fatalf("NewTelegram() error: %v", err)
	}
	return tg
}

func TestTelegram_Name(t *testing.T) {
	tg := &Telegram{}
	if got := tg.Name(); got != "telegram" {
		t.Errorf("Name() = %q, want %q", got, "telegram")
	}
}

func TestNewTelegram_RequiresCredentials(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.TelegramConfig
		wantErr string
	}{
		{"no key", config.TelegramConfig{ChatID: "123"}, "api_key"},
		{"no chat", config.TelegramConfig{APIKey: "k"}, "chat_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTelegram(tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("NewTelegram() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewTelegram_NoNetwork(t *testing.T) {
	api := &fakeBotAPI{}
	newTestTelegram(t, api)
	if len(api.paths) != 0 {
		t.Errorf("construction made %d API calls, want 0", len(api.paths))
	}
}

func TestTelegram_Send_Success(t *testing.T) {
	api := &fakeBotAPI{}
	tg := newTestTelegram(t, api)

	if err := tg.Send("123", "FooBar is down"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	if len(api.paths) != 1 {
		t.Fatalf("got %d API calls, want 1", len(api.paths))
	}
	if api.paths[0] != "/bottest-token/sendMessage" {
		t.Errorf("path = %q", api.paths[0])
	}
	if got := api.payloads[0]["chat_id"]; got != "123" {
		t.Errorf("chat_id = %v, want %q", got, "123")
	}
	if got := api.payloads[0]["text"]; got != "FooBar is down" {
		t.Errorf("text = %v", got)
	}
	if _, ok := api.payloads[0]["parse_mode"]; ok {
		t.Error("messages are plain text; parse_mode must not be set")
	}
}

func TestTelegram_Send_ChannelUsername(t *testing.T) {
	api := &fakeBotAPI{}
	tg := newTestTelegram(t, api)

	if err := tg.Send("@uptime_alerts", "hello"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if got := api.payloads[0]["chat_id"]; got != "@uptime_alerts" {
		t.Errorf("chat_id = %v, want %q", got, "@uptime_alerts")
	}
}

func TestTelegram_Send_APIError(t *testing.T) {
	api := &fakeBotAPI{fail: true}
	tg := newTestTelegram(t, api)

	err := tg.Send("123", "hello")
	if err == nil {
		t.Fatal("expected error for failed API call")
	}
	if !strings.Contains(err.Error(), "telegram send failed") {
		t.Errorf("error = %q", err.Error())
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("error = %q, want the API description", err.Error())
	}
}

func TestTelegram_Test(t *testing.T) {
	api := &fakeBotAPI{}
	tg := newTestTelegram(t, api)

	if err := tg.Test(); err != nil {
		t.Fatalf("Test() error: %v", err)
	}
	if got := api.payloads[0]["chat_id"]; got != "123" {
		t.Errorf("chat_id = %v, want configured chat", got)
	}
	text, _ := api.payloads[0]["text"].(string)
	if !strings.Contains(text, "uptimegram") {
		t.Errorf("test message should mention uptimegram: %q", text)
	}
}

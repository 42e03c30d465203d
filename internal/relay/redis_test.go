package relay

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Fullex26/uptimegram/internal/config"
	"github.com/Fullex26/uptimegram/internal/store"
	"github.com/Fullex26/uptimegram/pkg/models"
)

type capturePublisher struct {
	events []models.CheckEvent
}

func (p *capturePublisher) Publish(e models.CheckEvent) { p.events = append(p.events, e) }

func newTestRelay(t *testing.T) (*Relay, *store.Store, *capturePublisher) {
	t.Helper()
	pub := &capturePublisher{}
	s, err := store.Open(filepath.Join(t.TempDir(), "relay.db"), pub)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	r := New(config.RedisConfig{Addr: "localhost:0", Channel: "uptime:events"}, s,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { r.Stop() })
	return r, s, pub
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"minimal", `{"check_id":"c1","kind":"down","error":"Error 500"}`, ""},
		{"id from check", `{"kind":"up","check":{"id":"c1","name":"FooBar"}}`, ""},
		{"not json", `down!`, "decoding message"},
		{"no check id", `{"kind":"down"}`, "no check_id"},
		{"custom kind", `{"check_id":"c1","kind":"degraded"}`, ""},
		{"empty kind", `{"check_id":"c1"}`, "invalid event kind"},
		{"malformed kind", `{"check_id":"c1","kind":"../up"}`, "invalid event kind"},
		{"mismatched ids", `{"check_id":"c1","kind":"up","check":{"id":"c2","name":"x"}}`, "does not match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Decode([]byte(tt.payload))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Decode() error: %v", err)
				}
				if m.CheckID != "c1" {
					t.Errorf("CheckID = %q, want %q", m.CheckID, "c1")
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Decode() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestMessage_Event(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC)
	m := Message{CheckID: "c1", Kind: "up", DowntimeMS: 90000, Timestamp: ts}

	ev := m.Event()
	if ev.Kind != models.EventUp || ev.CheckID != "c1" {
		t.Errorf("Event() = %+v", ev)
	}
	if ev.Downtime != 90*time.Second {
		t.Errorf("Downtime = %v, want 90s", ev.Downtime)
	}
	if !ev.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", ev.Timestamp, ts)
	}
}

func TestProcess_UpsertsCheckAndRecords(t *testing.T) {
	r, s, pub := newTestRelay(t)
	ctx := context.Background()

	payload := `{"kind":"down","error":"Error 500","check":{"id":"c1","name":"FooBar","url":"http://foobar.com"}}`
	if err := r.Process(ctx, []byte(payload)); err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	check, err := s.FindCheck(ctx, "c1")
	if err != nil {
		t.Fatalf("FindCheck: %v", err)
	}
	if check.Name != "FooBar" || check.Status != models.StatusDown {
		t.Errorf("check = %+v", check)
	}

	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	if pub.events[0].Error != "Error 500" || pub.events[0].Kind != models.EventDown {
		t.Errorf("published event = %+v", pub.events[0])
	}
}

func TestProcess_UpdatesStatusOfKnownCheck(t *testing.T) {
	r, s, _ := newTestRelay(t)
	ctx := context.Background()
	if _, err := s.SaveCheck(ctx, models.Check{ID: "c1", Name: "FooBar"}); err != nil {
		t.Fatal(err)
	}

	if err := r.Process(ctx, []byte(`{"check_id":"c1","kind":"paused"}`)); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	check, _ := s.FindCheck(ctx, "c1")
	if check.Status != models.StatusPaused {
		t.Errorf("Status = %q, want %q", check.Status, models.StatusPaused)
	}
}

func TestProcess_CustomKindKeepsStatus(t *testing.T) {
	r, s, pub := newTestRelay(t)
	ctx := context.Background()
	if _, err := s.SaveCheck(ctx, models.Check{ID: "c1", Name: "FooBar", Status: models.StatusDown}); err != nil {
		t.Fatal(err)
	}

	if err := r.Process(ctx, []byte(`{"check_id":"c1","kind":"degraded"}`)); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	check, _ := s.FindCheck(ctx, "c1")
	if check.Status != models.StatusDown {
		t.Errorf("Status = %q, want %q", check.Status, models.StatusDown)
	}
	if len(pub.events) != 1 || pub.events[0].Kind != "degraded" {
		t.Errorf("published events = %+v", pub.events)
	}
}

func TestProcess_UnknownCheckStillRecorded(t *testing.T) {
	r, _, pub := newTestRelay(t)

	if err := r.Process(context.Background(), []byte(`{"check_id":"ghost","kind":"down"}`)); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(pub.events) != 1 {
		t.Errorf("published %d events, want 1", len(pub.events))
	}
}

func TestProcess_InvalidPayload(t *testing.T) {
	r, _, pub := newTestRelay(t)

	if err := r.Process(context.Background(), []byte(`{"check_id":"c1","kind":"not a kind"}`)); err == nil {
		t.Fatal("expected error for invalid kind")
	}
	if len(pub.events) != 0 {
		t.Error("invalid messages must not be published")
	}
}

func TestName(t *testing.T) {
	r, _, _ := newTestRelay(t)
	if r.Name() != "redis" {
		t.Errorf("Name() = %q", r.Name())
	}
}

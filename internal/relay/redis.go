// Package relay feeds check events published by the monitoring engine on a
// Redis channel into the store, which records them and notifies subscribers.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Fullex26/uptimegram/internal/config"
	"github.com/Fullex26/uptimegram/pkg/models"
)

// Recorder persists checks and events
type Recorder interface {
	SaveCheck(ctx context.Context, check models.Check) (models.Check, error)
	SetStatus(ctx context.Context, id string, status models.Status) error
	RecordEvent(ctx context.Context, event models.CheckEvent) (models.CheckEvent, error)
}

// Message is the JSON payload published by the monitoring engine
type Message struct {
	CheckID    string        `json:"check_id"`
	Kind       string        `json:"kind"`
	Error      string        `json:"error,omitempty"`
	DowntimeMS int64         `json:"downtime_ms,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	Check      *models.Check `json:"check,omitempty"` // upserted before the event when present
}

// Decode parses and validates a message payload
func Decode(payload []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return m, fmt.Errorf("decoding message: %w", err)
	}
	if m.CheckID == "" && m.Check != nil {
		m.CheckID = m.Check.ID
	}
	if m.CheckID == "" {
		return m, fmt.Errorf("message has no check_id")
	}
	if !models.EventKind(m.Kind).Valid() {
		return m, fmt.Errorf("invalid event kind %q", m.Kind)
	}
	if m.Check != nil && m.Check.ID != "" && m.Check.ID != m.CheckID {
		return m, fmt.Errorf("check id %q does not match check_id %q", m.Check.ID, m.CheckID)
	}
	return m, nil
}

// Event converts the message into a check event
func (m Message) Event() models.CheckEvent {
	return models.CheckEvent{
		CheckID:   m.CheckID,
		Kind:      models.EventKind(m.Kind),
		Timestamp: m.Timestamp,
		Error:     m.Error,
		Downtime:  time.Duration(m.DowntimeMS) * time.Millisecond,
	}
}

// Relay subscribes to a Redis channel and records each event it receives
type Relay struct {
	client  *redis.Client
	channel string
	rec     Recorder
	log     *slog.Logger
}

func New(cfg config.RedisConfig, rec Recorder, log *slog.Logger) *Relay {
	return &Relay{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		channel: cfg.Channel,
		rec:     rec,
		log:     log,
	}
}

func (r *Relay) Name() string { return "redis" }

// Start subscribes and blocks until ctx is cancelled
func (r *Relay) Start(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// wait for the subscription to be confirmed so connection errors surface here
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", r.channel, err)
	}
	r.log.Info("relaying check events", "channel", r.channel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := r.Process(ctx, []byte(msg.Payload)); err != nil {
				r.log.Error("dropping relayed event", "channel", msg.Channel, "error", err)
			}
		}
	}
}

// Process records one raw message
func (r *Relay) Process(ctx context.Context, payload []byte) error {
	m, err := Decode(payload)
	if err != nil {
		return err
	}

	status, changes := models.EventKind(m.Kind).StatusAfter()
	if m.Check != nil {
		check := *m.Check
		check.ID = m.CheckID
		if changes {
			check.Status = status
		}
		if _, err := r.rec.SaveCheck(ctx, check); err != nil {
			return err
		}
	} else if changes {
		if err := r.rec.SetStatus(ctx, m.CheckID, status); err != nil {
			// the event is still recorded; the dispatcher reports the missing check
			r.log.Warn("updating check status", "check_id", m.CheckID, "error", err)
		}
	}

	_, err = r.rec.RecordEvent(ctx, m.Event())
	return err
}

// Stop closes the Redis connection
func (r *Relay) Stop() error {
	return r.client.Close()
}

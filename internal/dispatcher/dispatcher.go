// Package dispatcher turns recorded check events into channel messages.
//
// Each event is handled on its own: filter by kind, look up the check,
// render the kind's template, send. Failures at any step are logged and
// end processing of that event only; nothing is returned to the event
// source and nothing is retried.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Fullex26/uptimegram/internal/config"
	"github.com/Fullex26/uptimegram/internal/eventbus"
	"github.com/Fullex26/uptimegram/internal/metrics"
	"github.com/Fullex26/uptimegram/internal/notifiers"
	"github.com/Fullex26/uptimegram/internal/render"
	"github.com/Fullex26/uptimegram/pkg/models"
)

// ErrAlreadyListening is returned by a second call to Start
var ErrAlreadyListening = errors.New("dispatcher already listening")

// EventSource emits "event recorded" notifications
type EventSource interface {
	Subscribe(h eventbus.Handler)
}

// CheckFinder resolves the check an event belongs to
type CheckFinder interface {
	FindCheck(ctx context.Context, id string) (models.Check, error)
}

// Dispatcher forwards check events to a channel
type Dispatcher struct {
	events   config.EventConfig
	chatID   string
	baseURL  string
	channel  notifiers.Channel
	checks   CheckFinder
	renderer render.Renderer
	log      *slog.Logger
	metrics  *metrics.Metrics

	mu        sync.Mutex
	listening bool
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithLogger sets the logger; slog.Default() is used otherwise
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithMetrics records dispatch outcomes on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New validates the channel configuration and builds a dispatcher.
// It performs no I/O.
func New(cfg *config.Config, ch notifiers.Channel, checks CheckFinder, r render.Renderer, opts ...Option) (*Dispatcher, error) {
	if err := cfg.Telegram.Validate(); err != nil {
		return nil, err
	}
	if ch == nil || checks == nil || r == nil {
		return nil, errors.New("dispatcher needs a channel, a check finder and a renderer")
	}

	d := &Dispatcher{
		events:   cfg.Telegram.Event,
		chatID:   cfg.Telegram.ChatID,
		baseURL:  cfg.BaseURL(),
		channel:  ch,
		checks:   checks,
		renderer: r,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start registers the dispatcher on src. Handlers run with ctx.
func (d *Dispatcher) Start(ctx context.Context, src EventSource) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listening {
		return ErrAlreadyListening
	}
	src.Subscribe(func(event models.CheckEvent) {
		d.Handle(ctx, event)
	})
	d.listening = true
	d.log.Info("enabled telegram notifications", "events", d.events.Kinds())
	return nil
}

// Listening reports whether Start has been called
func (d *Dispatcher) Listening() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listening
}

// Handle processes a single event to completion
func (d *Dispatcher) Handle(ctx context.Context, event models.CheckEvent) {
	kind := string(event.Kind)
	d.metrics.Received(kind)

	if !d.events.Enabled(event.Kind) {
		d.metrics.Skipped(kind)
		return
	}

	check, err := d.checks.FindCheck(ctx, event.CheckID)
	if err != nil {
		d.metrics.Failed(kind, metrics.StageLookup, 0)
		d.log.Error("check lookup failed",
			"event", event.ID, "check_id", event.CheckID, "kind", kind, "error", err)
		return
	}

	text, err := d.renderer.Render(event.Kind, render.Data{
		Check:      check,
		CheckEvent: event,
		URL:        d.baseURL,
	})
	if err != nil {
		d.metrics.Failed(kind, metrics.StageRender, 0)
		d.log.Error("rendering notification failed",
			"check", check.Name, "kind", kind, "error", err)
		return
	}

	start := time.Now()
	if err := d.channel.Send(d.chatID, text); err != nil {
		d.metrics.Failed(kind, metrics.StageSend, time.Since(start))
		d.log.Error("telegram notification failed",
			"channel", d.channel.Name(), "check", check.Name, "kind", kind, "error", err)
		return
	}
	d.metrics.Sent(kind, time.Since(start))

	d.log.Info("notified event by telegram", "check", check.Name, "kind", kind)
}

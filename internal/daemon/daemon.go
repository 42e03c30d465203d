package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/Fullex26/uptimegram/internal/config"
	"github.com/Fullex26/uptimegram/internal/dispatcher"
	"github.com/Fullex26/uptimegram/internal/eventbus"
	"github.com/Fullex26/uptimegram/internal/metrics"
	"github.com/Fullex26/uptimegram/internal/notifiers"
	"github.com/Fullex26/uptimegram/internal/relay"
	"github.com/Fullex26/uptimegram/internal/render"
	"github.com/Fullex26/uptimegram/internal/store"
	"github.com/Fullex26/uptimegram/pkg/models"
)

// Version is set at build time via ldflags: -X github.com/Fullex26/uptimegram/internal/daemon.Version=<tag>
var Version = "dev"

const pruneAfterDays = 30

// Source feeds check events into the store
type Source interface {
	// Name returns the source identifier
	Name() string
	// Start begins consuming. Blocks until context is cancelled.
	Start(ctx context.Context) error
	// Stop releases the source's connections
	Stop() error
}

// Daemon is the main uptimegram process
type Daemon struct {
	cfg        *config.Config
	log        *slog.Logger
	bus        *eventbus.Bus
	store      *store.Store
	telegram   *notifiers.Telegram
	renderer   render.Renderer
	metrics    *metrics.Metrics
	dispatcher *dispatcher.Dispatcher
	sources    []Source
}

// New creates a new daemon instance. Nothing here touches the network.
func New(cfg *config.Config, log *slog.Logger) (*Daemon, error) {
	if log == nil {
		log = slog.Default()
	}
	bus := eventbus.New()

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0750); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	db, err := store.Open(cfg.Store.Path, bus)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	d, err := build(cfg, log, bus, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func build(cfg *config.Config, log *slog.Logger, bus *eventbus.Bus, db *store.Store) (*Daemon, error) {
	tg, err := notifiers.NewTelegram(cfg.Telegram)
	if err != nil {
		return nil, fmt.Errorf("creating telegram client: %w", err)
	}

	var r render.Renderer = render.Default()
	if cfg.Templates != "" {
		dir, err := render.Dir(cfg.Templates)
		if err != nil {
			return nil, err
		}
		r = dir
	}

	d := &Daemon{
		cfg:      cfg,
		log:      log,
		bus:      bus,
		store:    db,
		telegram: tg,
		renderer: r,
	}

	opts := []dispatcher.Option{dispatcher.WithLogger(log)}
	if cfg.Metrics.Enabled {
		d.metrics = metrics.New()
		opts = append(opts, dispatcher.WithMetrics(d.metrics))
	}

	d.dispatcher, err = dispatcher.New(cfg, tg, db, r, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	if cfg.Redis.Enabled {
		d.sources = append(d.sources, relay.New(cfg.Redis, db, log))
	}

	return d, nil
}

// Run starts the daemon and blocks until interrupted
func (d *Daemon) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return d.run(ctx)
}

func (d *Daemon) run(ctx context.Context) error {
	// handlers outlive the signal so in-flight events finish; bus.Wait drains them
	if err := d.dispatcher.Start(context.WithoutCancel(ctx), d.bus); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, s := range d.sources {
		wg.Add(1)
		go func(s Source) {
			defer wg.Done()
			d.log.Info("starting source", "name", s.Name())
			if err := s.Start(ctx); err != nil {
				d.log.Error("source failed", "name", s.Name(), "error", err)
			}
		}(s)
	}

	if d.metrics != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.metrics.Serve(ctx, d.cfg.Metrics.Listen, d.log); err != nil {
				d.log.Error("metrics server failed", "error", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.runCleanup(ctx)
	}()

	d.log.Info("uptimegram started",
		"version", Version,
		"sources", len(d.sources),
		"events", d.cfg.Telegram.Event.Kinds(),
	)

	<-ctx.Done()
	d.log.Info("shutting down...")
	wg.Wait()

	for _, s := range d.sources {
		_ = s.Stop()
	}
	d.bus.Wait()
	_ = d.store.Close()

	d.log.Info("uptimegram stopped")
	return nil
}

func (d *Daemon) runCleanup(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruned, err := d.store.Prune(pruneAfterDays)
			if err != nil {
				d.log.Error("pruning events failed", "error", err)
				continue
			}
			if pruned > 0 {
				d.log.Info("pruned old events", "count", pruned)
			}
		}
	}
}

// Emit records an event as the monitoring engine would and waits until it
// has been dispatched
func (d *Daemon) Emit(ctx context.Context, event models.CheckEvent) (models.CheckEvent, error) {
	if !event.Kind.Valid() {
		return event, fmt.Errorf("invalid event kind %q", event.Kind)
	}
	if !d.dispatcher.Listening() {
		if err := d.dispatcher.Start(ctx, d.bus); err != nil {
			return event, err
		}
	}
	if status, ok := event.Kind.StatusAfter(); ok {
		if err := d.store.SetStatus(ctx, event.CheckID, status); err != nil {
			d.log.Warn("updating check status", "check_id", event.CheckID, "error", err)
		}
	}

	recorded, err := d.store.RecordEvent(ctx, event)
	if err != nil {
		return event, err
	}
	d.bus.Wait()
	return recorded, nil
}

// Preview renders the message a kind would produce for a stored check
func (d *Daemon) Preview(ctx context.Context, kind models.EventKind, checkID, errDetail string) (string, error) {
	check, err := d.store.FindCheck(ctx, checkID)
	if err != nil {
		return "", err
	}
	return d.renderer.Render(kind, render.Data{
		Check: check,
		CheckEvent: models.CheckEvent{
			CheckID:   check.ID,
			Kind:      kind,
			Timestamp: time.Now(),
			Error:     errDetail,
		},
		URL: d.cfg.BaseURL(),
	})
}

// Store exposes the check store for management commands
func (d *Daemon) Store() *store.Store {
	return d.store
}

// TestNotifiers sends a test message to the configured chat
func (d *Daemon) TestNotifiers() error {
	d.log.Info("testing notifier", "name", d.telegram.Name())
	if err := d.telegram.Test(); err != nil {
		return fmt.Errorf("%s: %w", d.telegram.Name(), err)
	}
	d.log.Info("notifier OK", "name", d.telegram.Name())
	return nil
}

// Close releases the store; used by one-shot commands that never call Run
func (d *Daemon) Close() error {
	d.bus.Wait()
	return d.store.Close()
}

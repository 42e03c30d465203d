package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Fullex26/uptimegram/pkg/models"
)

// ErrCheckNotFound is returned when no check has the requested ID
var ErrCheckNotFound = errors.New("check not found")

// Publisher receives every event after it has been recorded
type Publisher interface {
	Publish(event models.CheckEvent)
}

// Store persists checks and check events in SQLite
type Store struct {
	db  *sql.DB
	pub Publisher
}

// Open creates or opens the SQLite database. pub may be nil, in which case
// recorded events are not published anywhere.
func Open(path string, pub Publisher) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, pub: pub}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS checks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'up',
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS check_events (
			id TEXT PRIMARY KEY,
			check_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			error TEXT,
			downtime_ms INTEGER DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_check_events_timestamp ON check_events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_check_events_check ON check_events(check_id);
	`)
	return err
}

// SaveCheck inserts or replaces a check. A missing ID is generated.
func (s *Store) SaveCheck(ctx context.Context, check models.Check) (models.Check, error) {
	if check.Name == "" {
		return check, fmt.Errorf("check name is required")
	}
	if check.ID == "" {
		check.ID = uuid.NewString()
	}
	if check.Status == "" {
		check.Status = models.StatusUp
	}
	if check.CreatedAt.IsZero() {
		check.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO checks (id, name, url, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		check.ID, check.Name, check.URL, string(check.Status), check.CreatedAt,
	)
	if err != nil {
		return check, fmt.Errorf("saving check %s: %w", check.ID, err)
	}
	return check, nil
}

// FindCheck returns the check with the given ID
func (s *Store) FindCheck(ctx context.Context, id string) (models.Check, error) {
	var (
		c      models.Check
		status string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, url, status, created_at FROM checks WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.URL, &status, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Check{}, fmt.Errorf("finding check %q: %w", id, ErrCheckNotFound)
	}
	if err != nil {
		return models.Check{}, fmt.Errorf("finding check %q: %w", id, err)
	}
	c.Status = models.Status(status)
	return c, nil
}

// ListChecks returns all checks ordered by name
func (s *Store) ListChecks(ctx context.Context) ([]models.Check, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, url, status, created_at FROM checks ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checks []models.Check
	for rows.Next() {
		var (
			c      models.Check
			status string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.URL, &status, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Status = models.Status(status)
		checks = append(checks, c)
	}
	return checks, rows.Err()
}

// SetStatus updates the current status of a check
func (s *Store) SetStatus(ctx context.Context, id string, status models.Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE checks SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("updating check %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("updating check %q: %w", id, ErrCheckNotFound)
	}
	return nil
}

// RecordEvent persists an event and then publishes it. ID and Timestamp are
// filled in when empty; the stored copy is returned.
func (s *Store) RecordEvent(ctx context.Context, event models.CheckEvent) (models.CheckEvent, error) {
	if !event.Kind.Valid() {
		return event, fmt.Errorf("invalid event kind %q", event.Kind)
	}
	if event.CheckID == "" {
		return event, fmt.Errorf("event check_id is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	// stored as text, so keep a single zone for ordering
	event.Timestamp = event.Timestamp.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO check_events (id, check_id, kind, timestamp, error, downtime_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.CheckID, string(event.Kind), event.Timestamp,
		event.Error, event.Downtime.Milliseconds(),
	)
	if err != nil {
		return event, fmt.Errorf("recording event: %w", err)
	}

	if s.pub != nil {
		s.pub.Publish(event)
	}
	return event, nil
}

// RecentEvents returns the latest events, newest first
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]models.CheckEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, check_id, kind, timestamp, error, downtime_ms FROM check_events
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.CheckEvent
	for rows.Next() {
		var (
			e          models.CheckEvent
			kind       string
			errDetail  sql.NullString
			downtimeMS int64
		)
		if err := rows.Scan(&e.ID, &e.CheckID, &kind, &e.Timestamp, &errDetail, &downtimeMS); err != nil {
			return nil, err
		}
		e.Kind = models.EventKind(kind)
		e.Error = errDetail.String
		e.Downtime = time.Duration(downtimeMS) * time.Millisecond
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune removes events older than N days
func (s *Store) Prune(days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	result, err := s.db.Exec(`DELETE FROM check_events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

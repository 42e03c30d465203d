package models

import "time"

// EventKind is the transition a CheckEvent records
type EventKind string

const (
	EventUp        EventKind = "up"
	EventDown      EventKind = "down"
	EventPaused    EventKind = "paused"
	EventRestarted EventKind = "restarted"
)

// EventKinds lists the built-in kinds. The monitoring engine may emit others.
var EventKinds = []EventKind{EventUp, EventDown, EventPaused, EventRestarted}

// Valid reports whether k is usable as a kind name. Kinds name template
// files, so only letters, digits, '-' and '_' are allowed.
func (k EventKind) Valid() bool {
	if k == "" {
		return false
	}
	for _, r := range k {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func (k EventKind) Emoji() string {
	switch k {
	case EventUp:
		return "🟢"
	case EventDown:
		return "🔴"
	case EventPaused:
		return "⏸️"
	case EventRestarted:
		return "▶️"
	}
	return "ℹ️"
}

// Status is the current state of a Check
type Status string

const (
	StatusUp     Status = "up"
	StatusDown   Status = "down"
	StatusPaused Status = "paused"
)

// Check is a monitored target
type Check struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckEvent records a state transition of a Check. It is never mutated
// after it has been recorded.
type CheckEvent struct {
	ID        string        `json:"id"`
	CheckID   string        `json:"check_id"`
	Kind      EventKind     `json:"kind"`
	Timestamp time.Time     `json:"timestamp"`
	Error     string        `json:"error,omitempty"`    // failure detail, set on down events
	Downtime  time.Duration `json:"downtime,omitempty"` // how long the check was down, set on up events
}

// StatusAfter returns the check status implied by an event kind. ok is
// false for kinds that do not change the status.
func (k EventKind) StatusAfter() (status Status, ok bool) {
	switch k {
	case EventDown:
		return StatusDown, true
	case EventPaused:
		return StatusPaused, true
	case EventUp, EventRestarted:
		return StatusUp, true
	}
	return "", false
}

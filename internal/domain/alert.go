package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Level is an alert severity tier on the four-color ladder.
type Level int

const (
	LevelBlue Level = iota + 1
	LevelYellow
	LevelOrange
	LevelRed
)

// String returns the color name, or "unknown" for out-of-range values.
func (l Level) String() string {
	switch l {
	case LevelBlue:
		return "blue"
	case LevelYellow:
		return "yellow"
	case LevelOrange:
		return "orange"
	case LevelRed:
		return "red"
	default:
		return "unknown"
	}
}

// ParseLevel resolves a color name back to its tier.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "blue":
		return LevelBlue, nil
	case "yellow":
		return LevelYellow, nil
	case "orange":
		return LevelOrange, nil
	case "red":
		return LevelRed, nil
	default:
		return 0, fmt.Errorf("unknown alert level %q", s)
	}
}

// DedupKey identifies one alertable episode. Two candidates with the same
// key describe the same real-world event regardless of which cycle found it.
// Always build keys through NewDedupKey: map lookups compare time.Time
// locations, so WindowStart must be normalized.
type DedupKey struct {
	Region      string
	Type        EventType
	WindowStart time.Time
}

// NewDedupKey builds a key with WindowStart normalized to UTC so keys for
// the same instant compare equal.
func NewDedupKey(region string, typ EventType, windowStart time.Time) DedupKey {
	return DedupKey{Region: region, Type: typ, WindowStart: windowStart.UTC()}
}

// String renders the key in its canonical "region|type|start" form.
func (k DedupKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Region, k.Type, k.WindowStart.UTC().Format(time.RFC3339))
}

// Alert is an issued warning for a qualifying candidate. Alerts are
// append-only: an escalation creates a new record pointing back at the one
// it supersedes, never an in-place edit.
type Alert struct {
	ID               string     `json:"id"`
	CycleID          string     `json:"cycle_id,omitempty"`
	Region           string     `json:"region"`
	Type             EventType  `json:"type"`
	Level            Level      `json:"level"`
	SeverityScore    float64    `json:"severity_score"`
	WindowStart      time.Time  `json:"window_start"`
	WindowEnd        time.Time  `json:"window_end"`
	TriggeringValues Parameters `json:"triggering_values,omitempty"`
	IssuedAt         time.Time  `json:"issued_at"`
	Message          string     `json:"message"`
	Supersedes       string     `json:"supersedes,omitempty"`
}

// DedupKey derives the alert's episode identity.
func (a Alert) DedupKey() DedupKey {
	return NewDedupKey(a.Region, a.Type, a.WindowStart)
}

// Closure records that an open alert's window passed without re-triggering.
type Closure struct {
	AlertID     string    `json:"alert_id"`
	Region      string    `json:"region"`
	Type        EventType `json:"type"`
	WindowStart time.Time `json:"window_start"`
	ClosedAt    time.Time `json:"closed_at"`
}

// AlertID produces a deterministic ID from the alert's key fields and level.
// The same episode at the same level always hashes to the same ID; an
// escalation changes the level and therefore the ID.
func AlertID(key DedupKey, level Level) string {
	input := fmt.Sprintf("%s|%d", key.String(), level)
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])
	return string(key.Type) + "-" + short
}

// AlertStatus tracks an alert record's lifecycle in the archive.
type AlertStatus string

const (
	AlertOpen       AlertStatus = "open"
	AlertSuperseded AlertStatus = "superseded"
	AlertClosed     AlertStatus = "closed"
)

// Region is a monitored location. Name is the config key used in records
// and telemetry; DisplayName is the human label.
type Region struct {
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name,omitempty"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

package domain

import "time"

// EventType identifies a class of extreme-weather episode.
type EventType string

const (
	EventTyphoon   EventType = "typhoon"
	EventHeavyRain EventType = "heavy_rain"
	EventHighTemp  EventType = "high_temp"
	EventLowTemp   EventType = "low_temp"
	EventHeavySnow EventType = "heavy_snow"
)

// EventTypes lists all recognized types in evaluation order.
var EventTypes = []EventType{EventTyphoon, EventHeavyRain, EventHighTemp, EventLowTemp, EventHeavySnow}

// Valid reports whether t is one of the recognized event types.
func (t EventType) Valid() bool {
	switch t {
	case EventTyphoon, EventHeavyRain, EventHighTemp, EventLowTemp, EventHeavySnow:
		return true
	default:
		return false
	}
}

// Candidate is a qualifying extreme-event window found by the detector.
// Derived purely from series and forecast inputs; never mutated, only
// superseded by a later evaluation pass.
type Candidate struct {
	Type        EventType `json:"type"`
	Region      string    `json:"region"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	// TriggeringValues holds the run's decisive readings, keyed by
	// parameter name ("wind_speed", "pressure", ...).
	TriggeringValues Parameters `json:"triggering_values"`
	// SeverityScore is the 1-4 band score, monotonic in threshold exceedance.
	SeverityScore float64 `json:"severity_score"`
}

// Window is the candidate's duration, measured first sample to last.
func (c Candidate) Window() time.Duration {
	return c.WindowEnd.Sub(c.WindowStart)
}

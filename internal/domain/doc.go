// Package domain models the forecast-fusion data: observation series,
// multi-horizon forecasts, extreme-event candidates, and leveled alerts.
//
// # Data Flow
//
// An observation source supplies a per-region ObservationSeries (hourly
// samples, strictly increasing timestamps). The forecaster turns a series
// into one Forecast per horizon; the detector evaluates the series together
// with the forecast point estimates against threshold/duration rules and
// emits Candidates; the dispatcher maps candidates to Alerts and hands them
// to the configured sinks. The series is owned by its producer and treated
// as read-only everywhere downstream.
//
// # Horizons
//
// Forecast horizons form an enumerated set identified by short IDs:
//
//	1h, 3h, 6h, 1day, 2day, 3day, 1week
//
// IDs follow the grammar "<n>h" | "<n>day" | "<n>week" and parse to a lead
// time via [ParseHorizon]. A forecast issued at T for horizon H is valid at
// T + H.Lead.
//
// # Extreme Event Criteria
//
// Detection rules pair an instantaneous threshold with a minimum contiguous
// duration (operational defaults, injected via configuration):
//
//	typhoon:    wind_speed >= 32.7 m/s and pressure < 980 hPa, single sample
//	heavy_rain: precipitation_rate >= 50 mm/h for >= 3 hours
//	high_temp:  temperature >= 37 C for >= 3 days
//	low_temp:   temperature <= -10 C for >= 2 days
//	heavy_snow: snowfall >= 10 mm for >= 12 hours
//
// 32.7 m/s is the Beaufort-12 boundary, the conventional typhoon wind
// criterion; 980 hPa is a typical central pressure for a landfalling typhoon.
//
// # Severity and Alert Levels
//
// Each candidate carries a severity score on a 1-4 band scale derived from
// how far its worst value exceeds the trigger threshold (see the per-type
// band tables in the configuration defaults). Scores map monotonically onto
// the four-tier alert ladder used by Chinese meteorological services:
//
//	blue (1) < yellow (2) < orange (3) < red (4)
//
// # ID Generation
//
// Forecast and alert IDs are deterministic SHA-256 hashes of their key
// fields, prefixed with the record kind ("typhoon-3f1a...", "fc-90b2...").
// Replaying a cycle over the same inputs reproduces the same IDs, which
// makes downstream persistence idempotent (INSERT OR IGNORE) without
// coordination. See [AlertID] and [ForecastID].
//
// # Physical Ranges
//
// Percentage-like parameters (humidity, precipitation probability, cloud
// cover) are clamped to [0,100], AQI to [0,500], and non-negative quantities
// (wind speed, precipitation rate, snowfall, visibility) to >= 0 before a
// forecast is released. Clamping is monotonic, so applying it to a point
// estimate and both interval bounds preserves their ordering.
package domain

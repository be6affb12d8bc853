// Package store archives issued forecasts and alerts in SQLite. The archive
// is the system of record behind the read-only HTTP endpoints, the alert
// statistics report, and open-episode recovery after a restart.
//
// Store is safe for concurrent use; database/sql serializes access. Writes
// are idempotent: record IDs are deterministic, so replaying a cycle inserts
// nothing new.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO

	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
)

// Store wraps the SQLite archive.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the archive at path and applies the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets the HTTP readers run alongside cycle writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS forecasts (
		id TEXT PRIMARY KEY,
		cycle_id TEXT NOT NULL,
		region TEXT NOT NULL,
		horizon TEXT NOT NULL,
		issued_at DATETIME NOT NULL,
		valid_at DATETIME NOT NULL,
		source TEXT NOT NULL,
		confidence REAL NOT NULL,
		point TEXT NOT NULL,
		lower TEXT NOT NULL,
		upper TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_forecasts_region_issued ON forecasts(region, issued_at DESC);
	CREATE INDEX IF NOT EXISTS idx_forecasts_cycle ON forecasts(cycle_id);

	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		cycle_id TEXT,
		region TEXT NOT NULL,
		type TEXT NOT NULL,
		level INTEGER NOT NULL,
		severity REAL NOT NULL,
		window_start DATETIME NOT NULL,
		window_end DATETIME NOT NULL,
		triggering TEXT,
		issued_at DATETIME NOT NULL,
		message TEXT,
		supersedes TEXT,
		status TEXT NOT NULL DEFAULT 'open',
		closed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_issued ON alerts(issued_at DESC);
	CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
	CREATE INDEX IF NOT EXISTS idx_alerts_region_type ON alerts(region, type);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveForecasts inserts one cycle's forecasts, skipping IDs already present.
// Returns the number of newly inserted rows.
func (s *Store) SaveForecasts(ctx context.Context, forecasts []domain.Forecast) (int, error) {
	if len(forecasts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback is a no-op once the transaction commits.
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO forecasts (id, cycle_id, region, horizon, issued_at, valid_at, source, confidence, point, lower, upper)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var saved int
	for _, fc := range forecasts {
		point, err := json.Marshal(fc.Point)
		if err != nil {
			return saved, fmt.Errorf("marshal point: %w", err)
		}
		lower, err := json.Marshal(fc.Lower)
		if err != nil {
			return saved, fmt.Errorf("marshal lower: %w", err)
		}
		upper, err := json.Marshal(fc.Upper)
		if err != nil {
			return saved, fmt.Errorf("marshal upper: %w", err)
		}

		res, err := stmt.ExecContext(ctx,
			fc.ID, fc.CycleID, fc.Region, fc.HorizonID,
			fc.IssuedAt.UTC(), fc.ValidAt.UTC(),
			string(fc.Source), fc.Confidence,
			string(point), string(lower), string(upper),
		)
		if err != nil {
			return saved, fmt.Errorf("insert forecast %s: %w", fc.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			saved++
		}
	}

	if err := tx.Commit(); err != nil {
		return saved, fmt.Errorf("commit: %w", err)
	}
	return saved, nil
}

// SaveAlerts inserts newly emitted alerts as open records, skipping IDs
// already present. Returns the number of newly inserted rows.
func (s *Store) SaveAlerts(ctx context.Context, alerts []domain.Alert) (int, error) {
	if len(alerts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback is a no-op once the transaction commits.
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO alerts (id, cycle_id, region, type, level, severity, window_start, window_end, triggering, issued_at, message, supersedes, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'open')
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var saved int
	for _, a := range alerts {
		triggering, err := json.Marshal(a.TriggeringValues)
		if err != nil {
			return saved, fmt.Errorf("marshal triggering values: %w", err)
		}

		res, err := stmt.ExecContext(ctx,
			a.ID, a.CycleID, a.Region, string(a.Type), int(a.Level), a.SeverityScore,
			a.WindowStart.UTC(), a.WindowEnd.UTC(),
			string(triggering), a.IssuedAt.UTC(), a.Message, a.Supersedes,
		)
		if err != nil {
			return saved, fmt.Errorf("insert alert %s: %w", a.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			saved++
		}
	}

	if err := tx.Commit(); err != nil {
		return saved, fmt.Errorf("commit: %w", err)
	}
	return saved, nil
}

// MarkSuperseded flags an alert record replaced by an escalation.
func (s *Store) MarkSuperseded(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET status = 'superseded' WHERE id = ? AND status = 'open'`, id)
	return err
}

// MarkClosed flags an open alert's episode as over.
func (s *Store) MarkClosed(ctx context.Context, id string, closedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET status = 'closed', closed_at = ? WHERE id = ? AND status = 'open'`,
		closedAt.UTC(), id)
	return err
}

// OpenAlerts returns the records still marked open, oldest first. Used to
// reseed the dispatcher's registry after a restart.
func (s *Store) OpenAlerts(ctx context.Context) ([]domain.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cycle_id, region, type, level, severity, window_start, window_end, triggering, issued_at, message, supersedes
		FROM alerts WHERE status = 'open' ORDER BY issued_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query open alerts: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// AlertRecord is an archived alert together with its lifecycle status.
type AlertRecord struct {
	domain.Alert
	Status   domain.AlertStatus `json:"status"`
	ClosedAt *time.Time         `json:"closed_at,omitempty"`
}

// RecentAlerts returns up to limit alerts, newest first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cycle_id, region, type, level, severity, window_start, window_end, triggering, issued_at, message, supersedes, status, closed_at
		FROM alerts ORDER BY issued_at DESC, id ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent alerts: %w", err)
	}
	defer rows.Close()

	var out []AlertRecord
	for rows.Next() {
		var rec AlertRecord
		var typ, status, triggering string
		var level int
		var closedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.CycleID, &rec.Region, &typ, &level, &rec.SeverityScore,
			&rec.WindowStart, &rec.WindowEnd, &triggering, &rec.IssuedAt, &rec.Message, &rec.Supersedes,
			&status, &closedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		rec.Type = domain.EventType(typ)
		rec.Level = domain.Level(level)
		rec.Status = domain.AlertStatus(status)
		if closedAt.Valid {
			t := closedAt.Time.UTC()
			rec.ClosedAt = &t
		}
		if triggering != "" {
			if err := json.Unmarshal([]byte(triggering), &rec.TriggeringValues); err != nil {
				return nil, fmt.Errorf("unmarshal triggering values: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LatestForecasts returns the most recent cycle's forecasts for a region,
// ordered by valid time.
func (s *Store) LatestForecasts(ctx context.Context, region string) ([]domain.Forecast, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cycle_id, region, horizon, issued_at, valid_at, source, confidence, point, lower, upper
		FROM forecasts
		WHERE region = ? AND cycle_id = (
			SELECT cycle_id FROM forecasts WHERE region = ? ORDER BY issued_at DESC LIMIT 1
		)
		ORDER BY valid_at ASC
	`, region, region)
	if err != nil {
		return nil, fmt.Errorf("query latest forecasts: %w", err)
	}
	defer rows.Close()

	var out []domain.Forecast
	for rows.Next() {
		var fc domain.Forecast
		var source, point, lower, upper string
		if err := rows.Scan(&fc.ID, &fc.CycleID, &fc.Region, &fc.HorizonID,
			&fc.IssuedAt, &fc.ValidAt, &source, &fc.Confidence,
			&point, &lower, &upper); err != nil {
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		fc.Source = domain.Source(source)
		if err := json.Unmarshal([]byte(point), &fc.Point); err != nil {
			return nil, fmt.Errorf("unmarshal point: %w", err)
		}
		if err := json.Unmarshal([]byte(lower), &fc.Lower); err != nil {
			return nil, fmt.Errorf("unmarshal lower: %w", err)
		}
		if err := json.Unmarshal([]byte(upper), &fc.Upper); err != nil {
			return nil, fmt.Errorf("unmarshal upper: %w", err)
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}

// Report summarizes archived alerts issued since a point in time.
type Report struct {
	Since      time.Time      `json:"since"`
	Total      int            `json:"total"`
	Open       int            `json:"open"`
	Closed     int            `json:"closed"`
	Superseded int            `json:"superseded"`
	ByLevel    map[string]int `json:"by_level"`
	ByType     map[string]int `json:"by_type"`
	ByRegion   map[string]int `json:"by_region"`
}

// AlertReport computes alert statistics over records issued at or after
// since.
func (s *Store) AlertReport(ctx context.Context, since time.Time) (Report, error) {
	rep := Report{
		Since:    since.UTC(),
		ByLevel:  make(map[string]int),
		ByType:   make(map[string]int),
		ByRegion: make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT level, type, region, status FROM alerts WHERE issued_at >= ?
	`, since.UTC())
	if err != nil {
		return rep, fmt.Errorf("query report: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var level int
		var typ, region, status string
		if err := rows.Scan(&level, &typ, &region, &status); err != nil {
			return rep, fmt.Errorf("scan report row: %w", err)
		}
		rep.Total++
		rep.ByLevel[domain.Level(level).String()]++
		rep.ByType[typ]++
		rep.ByRegion[region]++
		switch domain.AlertStatus(status) {
		case domain.AlertOpen:
			rep.Open++
		case domain.AlertClosed:
			rep.Closed++
		case domain.AlertSuperseded:
			rep.Superseded++
		}
	}
	return rep, rows.Err()
}

// Close shuts down the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanAlerts(rows *sql.Rows) ([]domain.Alert, error) {
	var out []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var typ, triggering string
		var level int
		if err := rows.Scan(&a.ID, &a.CycleID, &a.Region, &typ, &level, &a.SeverityScore,
			&a.WindowStart, &a.WindowEnd, &triggering, &a.IssuedAt, &a.Message, &a.Supersedes); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Type = domain.EventType(typ)
		a.Level = domain.Level(level)
		if triggering != "" {
			if err := json.Unmarshal([]byte(triggering), &a.TriggeringValues); err != nil {
				return nil, fmt.Errorf("unmarshal triggering values: %w", err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

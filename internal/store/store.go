// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/methetech/WheelScrollFixer/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeFormat is fixed-width so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for filter runs and calibrations.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			source TEXT NOT NULL,
			ticks INTEGER NOT NULL,
			delivered INTEGER NOT NULL,
			suppressed INTEGER NOT NULL,
			blocked_up INTEGER NOT NULL,
			blocked_down INTEGER NOT NULL,
			faults INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS calibrations (
			id INTEGER PRIMARY KEY,
			created_at TEXT NOT NULL,
			interval_us INTEGER NOT NULL,
			threshold INTEGER NOT NULL,
			strict INTEGER NOT NULL,
			min_reversal_us INTEGER NOT NULL,
			smart_momentum INTEGER NOT NULL,
			diagnosis TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS calibration_samples (
			calibration_id INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			phase TEXT NOT NULL,
			attempt INTEGER NOT NULL,
			stop_at_us INTEGER NOT NULL,
			at_us INTEGER NOT NULL,
			dir INTEGER NOT NULL,
			PRIMARY KEY (calibration_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ended_at ON runs(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_calibrations_created_at ON calibrations(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun stores a finished filtering run.
func (s *Store) InsertRun(ctx context.Context, run model.RunStats) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (started_at, ended_at, source, ticks, delivered, suppressed, blocked_up, blocked_down, faults)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC().Format(timeFormat),
		run.EndedAt.UTC().Format(timeFormat),
		run.Source,
		run.Ticks,
		run.Delivered,
		run.Suppressed,
		run.BlockedUp,
		run.BlockedDown,
		run.Faults,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListRuns returns runs matching filter, oldest first.
func (s *Store) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.RunAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeFormat))
	}
	limit := -1
	if filter.Last > 0 {
		limit = filter.Last
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT id, started_at, ended_at, source, ticks, delivered, suppressed, blocked_up, blocked_down, faults
		FROM (
			SELECT * FROM runs
			WHERE %s
			ORDER BY ended_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY ended_at ASC, id ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var runs []model.RunAggregate
	for rows.Next() {
		var agg model.RunAggregate
		var startedAt, endedAt string
		if err := rows.Scan(&agg.RunID, &startedAt, &endedAt, &agg.Source, &agg.Ticks, &agg.Delivered,
			&agg.Suppressed, &agg.BlockedUp, &agg.BlockedDown, &agg.Faults); err != nil {
			return nil, err
		}
		if agg.StartedAt, err = time.Parse(timeFormat, startedAt); err != nil {
			return nil, err
		}
		if agg.EndedAt, err = time.Parse(timeFormat, endedAt); err != nil {
			return nil, err
		}
		runs = append(runs, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// InsertCalibration stores a recommendation together with the samples it was computed from.
func (s *Store) InsertCalibration(ctx context.Context, createdAt time.Time, rec model.Recommendation, samples []model.Sample) (id int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO calibrations (created_at, interval_us, threshold, strict, min_reversal_us, smart_momentum, diagnosis)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		createdAt.UTC().Format(timeFormat),
		rec.Interval.Microseconds(),
		rec.Threshold,
		boolInt(rec.Strict),
		rec.MinReversal.Microseconds(),
		boolInt(rec.SmartMomentum),
		strings.Join(rec.Diagnosis, "\n"),
	)
	if err != nil {
		return 0, err
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(samples) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO calibration_samples (calibration_id, seq, phase, attempt, stop_at_us, at_us, dir)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, smp := range samples {
			if _, err := stmt.ExecContext(ctx, id, i, string(smp.Phase), smp.Attempt,
				smp.StopAt.Microseconds(), smp.Tick.At.Microseconds(), int(smp.Tick.Dir)); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// LatestCalibration returns the most recent calibration, or nil when none is stored.
func (s *Store) LatestCalibration(ctx context.Context) (*model.Calibration, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, interval_us, threshold, strict, min_reversal_us, smart_momentum, diagnosis
		 FROM calibrations
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`)
	var (
		cal                  model.Calibration
		createdAt, diagnosis string
		intervalUs, minRevUs int64
		strict, smart        int
	)
	if err := row.Scan(&cal.ID, &createdAt, &intervalUs, &cal.Threshold, &strict, &minRevUs, &smart, &diagnosis); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	parsed, err := time.Parse(timeFormat, createdAt)
	if err != nil {
		return nil, err
	}
	cal.CreatedAt = parsed
	cal.Interval = time.Duration(intervalUs) * time.Microsecond
	cal.MinReversal = time.Duration(minRevUs) * time.Microsecond
	cal.Strict = strict != 0
	cal.SmartMomentum = smart != 0
	if diagnosis != "" {
		cal.Diagnosis = strings.Split(diagnosis, "\n")
	}
	return &cal, nil
}

// ListSamples returns the samples of one calibration in recording order.
func (s *Store) ListSamples(ctx context.Context, calibrationID int64) ([]model.Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT phase, attempt, stop_at_us, at_us, dir
		 FROM calibration_samples
		 WHERE calibration_id = ?
		 ORDER BY seq ASC`, calibrationID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var samples []model.Sample
	for rows.Next() {
		var smp model.Sample
		var phase string
		var stopAtUs, atUs int64
		var dir int
		if err := rows.Scan(&phase, &smp.Attempt, &stopAtUs, &atUs, &dir); err != nil {
			return nil, err
		}
		smp.Phase = model.Phase(phase)
		smp.StopAt = time.Duration(stopAtUs) * time.Microsecond
		smp.Tick = model.Tick{At: time.Duration(atUs) * time.Microsecond, Dir: model.Direction(dir)}
		samples = append(samples, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

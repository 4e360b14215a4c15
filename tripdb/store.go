// Package tripdb persists trip samples in a single SQLite table.
package tripdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/capsule/tripoverview/types/sample"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrStoreUnavailable    = errors.New("trace store unavailable")
	ErrConstraintViolation = errors.New("constraint violation")
)

const schema = `
CREATE TABLE IF NOT EXISTS trip_data (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL UNIQUE,
	latitude REAL CHECK (latitude IS NULL OR (latitude >= -90 AND latitude <= 90)),
	longitude REAL CHECK (longitude IS NULL OR (longitude >= -180 AND longitude <= 180)),
	altitude REAL,
	speed REAL CHECK (speed IS NULL OR speed >= 0 OR speed = -1),
	km REAL CHECK (km IS NULL OR km >= 0),
	current_country TEXT,
	current_step INTEGER CHECK (current_step IS NULL OR current_step >= 0)
);
`

const insertSample = `
INSERT INTO trip_data (timestamp, latitude, longitude, altitude, speed, km, current_country, current_step)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

const selectColumns = `timestamp, latitude, longitude, altitude, speed, km, current_country, current_step`

// Store is a handle on the trip_data table.
// A Store has a single writer; it is not meant to be shared between processes.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// TimestampInconsistency describes an adjacent pair of rows, in insertion order,
// whose timestamps do not strictly increase.
type TimestampInconsistency struct {
	Index    int   `json:"index"`
	Previous int64 `json:"previous"`
	Current  int64 `json:"current"`
}

func (ti TimestampInconsistency) String() string {
	return fmt.Sprintf("row %d: timestamp %d does not follow %d", ti.Index, ti.Current, ti.Previous)
}

// Open opens the store at path and ensures the schema.
// If the file does not exist and createIfMissing is false, ErrStoreUnavailable is returned.
func Open(ctx context.Context, path string, createIfMissing bool) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrStoreUnavailable)
	}
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if !createIfMissing {
			return nil, fmt.Errorf("%w: %s does not exist", ErrStoreUnavailable, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s := &Store{
		db:     db,
		path:   path,
		logger: slog.With("store", "tripdb"),
	}
	if err := s.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.logger.Debug("Opened trace store", "path", path)
	return s, nil
}

// InitSchema creates the trip_data table if it does not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Path returns the file path of the store.
func (s *Store) Path() string {
	return s.path
}

// Close releases the store. Calling Close more than once is a no-op.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// Append persists one sample.
func (s *Store) Append(ctx context.Context, smp sample.Sample) error {
	if err := validate(smp); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, insertSample, args(smp)...)
	if err != nil {
		return wrapExecErr(err, smp.Timestamp)
	}
	return nil
}

// AppendBatch persists samples in one transaction.
// Either every sample is written or none is; the returned count is
// the number of rows committed.
func (s *Store) AppendBatch(ctx context.Context, samples []sample.Sample) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	for i, smp := range samples {
		if err := validate(smp); err != nil {
			return 0, fmt.Errorf("sample %d: %w", i, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, insertSample)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, smp := range samples {
		if _, err := stmt.ExecContext(ctx, args(smp)...); err != nil {
			return 0, fmt.Errorf("sample %d: %w", i, wrapExecErr(err, smp.Timestamp))
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	s.logger.Debug("Appended batch", "count", len(samples))
	return len(samples), nil
}

// QueryAll returns every stored sample ordered by timestamp.
func (s *Store) QueryAll(ctx context.Context) ([]sample.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM trip_data ORDER BY timestamp ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []sample.Sample{}
	for rows.Next() {
		smp, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, smp)
	}
	return out, rows.Err()
}

// Last returns the sample with the greatest timestamp.
// The boolean is false when the store is empty.
func (s *Store) Last(ctx context.Context) (sample.Sample, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM trip_data ORDER BY timestamp DESC LIMIT 1`)
	smp, err := scanSample(row)
	if errors.Is(err, sql.ErrNoRows) {
		return sample.Sample{}, false, nil
	}
	if err != nil {
		return sample.Sample{}, false, err
	}
	return smp, true, nil
}

// LastStep returns the step of the latest sample that has one,
// or 0 when no stored sample has a step.
func (s *Store) LastStep(ctx context.Context) (int, error) {
	var step int
	err := s.db.QueryRowContext(ctx,
		`SELECT current_step FROM trip_data WHERE current_step IS NOT NULL ORDER BY timestamp DESC LIMIT 1`).Scan(&step)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return step, err
}

// LastKm returns the km of the latest sample that has one.
// The boolean is false when no stored sample has a km.
func (s *Store) LastKm(ctx context.Context) (float64, bool, error) {
	var km float64
	err := s.db.QueryRowContext(ctx,
		`SELECT km FROM trip_data WHERE km IS NOT NULL ORDER BY timestamp DESC LIMIT 1`).Scan(&km)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return km, true, nil
}

// Count returns the number of stored samples.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trip_data`).Scan(&n)
	return n, err
}

// CheckConsistency scans rows in insertion order and reports every adjacent
// pair whose timestamp does not strictly increase. Nothing is modified.
func (s *Store) CheckConsistency(ctx context.Context) ([]TimestampInconsistency, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT timestamp FROM trip_data ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TimestampInconsistency{}
	var prev int64
	i := 0
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		if i > 0 && ts <= prev {
			out = append(out, TimestampInconsistency{Index: i, Previous: prev, Current: ts})
		}
		prev = ts
		i++
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSample(sc scanner) (sample.Sample, error) {
	var (
		smp                      sample.Sample
		lat, lon, alt, speed, km sql.NullFloat64
		country                  sql.NullString
		step                     sql.NullInt64
	)
	if err := sc.Scan(&smp.Timestamp, &lat, &lon, &alt, &speed, &km, &country, &step); err != nil {
		return smp, err
	}
	smp.Latitude = fromNull(lat)
	smp.Longitude = fromNull(lon)
	smp.Altitude = fromNull(alt)
	smp.Speed = fromNull(speed)
	smp.Km = fromNull(km)
	smp.Country = country.String
	smp.Step = sample.NoStep
	if step.Valid {
		smp.Step = int(step.Int64)
	}
	return smp, nil
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func toNull(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func args(smp sample.Sample) []any {
	country := sql.NullString{String: smp.Country, Valid: smp.Country != ""}
	step := sql.NullInt64{Int64: int64(smp.Step), Valid: smp.HasStep()}
	return []any{
		smp.Timestamp,
		toNull(smp.Latitude),
		toNull(smp.Longitude),
		toNull(smp.Altitude),
		toNull(smp.Speed),
		toNull(smp.Km),
		country,
		step,
	}
}

// validate rejects values SQLite would accept but the schema cannot express.
func validate(smp sample.Sample) error {
	for name, v := range map[string]float64{
		"latitude":  smp.Latitude,
		"longitude": smp.Longitude,
		"altitude":  smp.Altitude,
		"speed":     smp.Speed,
		"km":        smp.Km,
	} {
		if math.IsInf(v, 0) {
			return fmt.Errorf("%w: timestamp %d: %s is infinite", ErrConstraintViolation, smp.Timestamp, name)
		}
	}
	if smp.Step < sample.NoStep {
		return fmt.Errorf("%w: timestamp %d: negative step %d", ErrConstraintViolation, smp.Timestamp, smp.Step)
	}
	return nil
}

func wrapExecErr(err error, ts int64) error {
	if isConstraint(err) {
		return fmt.Errorf("%w: timestamp %d: %v", ErrConstraintViolation, ts, err)
	}
	return err
}

func isConstraint(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

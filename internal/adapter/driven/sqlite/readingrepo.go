package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brewlink/brewlink/internal/domain/model"
	"github.com/brewlink/brewlink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ReadingStore = (*ReadingRepo)(nil)

// ReadingRepo is the SQLite implementation of the ReadingStore port interface.
type ReadingRepo struct {
	db *DB
}

// NewReadingRepo creates a new ReadingRepo backed by the given DB.
func NewReadingRepo(db *DB) *ReadingRepo {
	return &ReadingRepo{db: db}
}

// Insert stores a telemetry sample.
func (r *ReadingRepo) Insert(ctx context.Context, reading model.Reading) error {
	const query = `INSERT INTO readings (temperature, setpoint, duty_cycle, state, taken_at) VALUES (?, ?, ?, ?, ?)`

	takenAt := reading.TakenAt
	if takenAt.IsZero() {
		takenAt = time.Now().UTC()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		reading.Temperature, reading.Setpoint, reading.DutyCycle, string(reading.State), takenAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}

	return nil
}

// Recent returns up to limit readings, newest first.
func (r *ReadingRepo) Recent(ctx context.Context, limit int) ([]model.Reading, error) {
	const query = `SELECT id, temperature, setpoint, duty_cycle, state, taken_at FROM readings ORDER BY taken_at DESC, id DESC LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent readings: %w", err)
	}
	defer rows.Close()

	var readings []model.Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		readings = append(readings, *reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}

	return readings, nil
}

// Latest returns the newest reading, or nil, nil when no readings exist.
func (r *ReadingRepo) Latest(ctx context.Context) (*model.Reading, error) {
	const query = `SELECT id, temperature, setpoint, duty_cycle, state, taken_at FROM readings ORDER BY taken_at DESC, id DESC LIMIT 1`

	reading, err := scanReading(r.db.Reader.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest reading: %w", err)
	}

	return reading, nil
}

// PruneBefore deletes readings taken before cutoff and returns how many rows
// were removed.
func (r *ReadingRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM readings WHERE taken_at < ?`

	result, err := r.db.Writer.ExecContext(ctx, query, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("prune readings: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}

	return rows, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanReading(s scanner) (*model.Reading, error) {
	var reading model.Reading
	var state string
	var takenAt string

	err := s.Scan(&reading.ID, &reading.Temperature, &reading.Setpoint, &reading.DutyCycle, &state, &takenAt)
	if err != nil {
		return nil, err
	}

	reading.State = model.MachineState(state)

	reading.TakenAt, err = parseTime(takenAt)
	if err != nil {
		return nil, fmt.Errorf("parse taken_at: %w", err)
	}

	return &reading, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}

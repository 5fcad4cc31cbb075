// Package journal keeps a local sqlite record of what the gateway sent to the backend.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB for the journal.
type DB struct {
	*sql.DB
}

// BookingEntry is one booking submission attempt.
type BookingEntry struct {
	ID        int64
	SessionID string
	TutorID   string
	StartTime string // ISO-8601 as sent
	EndTime   string
	Status    string // submitted, rejected, failed
	Error     string
	CreatedAt time.Time
}

// NewDB opens the journal at path and creates its tables.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS booking_submissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			tutor_id TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_submissions_tutor ON booking_submissions(tutor_id)`,

		`CREATE TABLE IF NOT EXISTS availability_updates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tutor_id TEXT,
			availability TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

// RecordBooking stores a submission attempt and returns its id.
func (db *DB) RecordBooking(ctx context.Context, e BookingEntry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO booking_submissions (session_id, tutor_id, start_time, end_time, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.TutorID, e.StartTime, e.EndTime, e.Status, e.Error, e.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("record booking: %w", err)
	}
	return res.LastInsertId()
}

// RecentBookings returns the latest submissions, newest first.
func (db *DB) RecentBookings(ctx context.Context, limit int) ([]BookingEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, COALESCE(session_id, ''), tutor_id, start_time, end_time, status, COALESCE(error, ''), created_at
		FROM booking_submissions
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent bookings: %w", err)
	}
	defer rows.Close()

	var out []BookingEntry
	for rows.Next() {
		var e BookingEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.TutorID, &e.StartTime, &e.EndTime, &e.Status, &e.Error, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecordAvailabilityUpdate stores the encoded availability sent for a tutor.
func (db *DB) RecordAvailabilityUpdate(ctx context.Context, tutorID, encoded string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO availability_updates (tutor_id, availability, created_at) VALUES (?, ?, ?)`,
		tutorID, encoded, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record availability update: %w", err)
	}
	return nil
}

// LastAvailability returns the most recent encoded availability saved for a tutor.
func (db *DB) LastAvailability(ctx context.Context, tutorID string) (string, bool, error) {
	var encoded string
	err := db.QueryRowContext(ctx, `
		SELECT availability FROM availability_updates
		WHERE tutor_id = ?
		ORDER BY id DESC LIMIT 1`, tutorID).Scan(&encoded)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("last availability: %w", err)
	}
	return encoded, true, nil
}

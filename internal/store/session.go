package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Session is the summary of one tracking run.
type Session struct {
	ID              string
	Method          string
	Region          string
	StartedAt       time.Time
	EndedAt         *time.Time
	Frames          int64
	Detections      int64
	Moves           int64
	AvgFPS          float64
	LatencyMeanMs   float64
	LatencyStdDevMs float64
}

// Duration returns how long the session ran, or has been running.
func (s *Session) Duration() time.Duration {
	if s.EndedAt == nil {
		return time.Since(s.StartedAt)
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// DetectionRate returns detections per processed frame.
func (s *Session) DetectionRate() float64 {
	if s.Frames == 0 {
		return 0
	}
	return float64(s.Detections) / float64(s.Frames)
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session. An empty ID is filled with a fresh UUID.
func (r *SessionRepository) Create(s *Session) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, method, region, started_at, ended_at, frames, detections, moves,
			avg_fps, latency_mean_ms, latency_stddev_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Method, s.Region, s.StartedAt, s.EndedAt, s.Frames, s.Detections, s.Moves,
		s.AvgFPS, s.LatencyMeanMs, s.LatencyStdDevMs,
	)
	return err
}

// Update overwrites the counters and end time of an existing session.
func (r *SessionRepository) Update(s *Session) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET method = ?, region = ?, ended_at = ?, frames = ?, detections = ?, moves = ?,
			avg_fps = ?, latency_mean_ms = ?, latency_stddev_ms = ?
		 WHERE id = ?`,
		s.Method, s.Region, s.EndedAt, s.Frames, s.Detections, s.Moves,
		s.AvgFPS, s.LatencyMeanMs, s.LatencyStdDevMs, s.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

const sessionColumns = `id, method, region, started_at, ended_at, frames, detections, moves,
	avg_fps, latency_mean_ms, latency_stddev_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	s := &Session{}
	var ended sql.NullTime

	err := row.Scan(&s.ID, &s.Method, &s.Region, &s.StartedAt, &ended, &s.Frames, &s.Detections, &s.Moves,
		&s.AvgFPS, &s.LatencyMeanMs, &s.LatencyStdDevMs)
	if err != nil {
		return nil, err
	}

	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	return s, nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	s, err := scanSession(r.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// List retrieves the most recent sessions, newest first. A limit of zero or
// less returns every session.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Delete removes a session and its events.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

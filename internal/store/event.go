package store

import (
	"database/sql"
	"time"
)

// EventKind is a tracking transition.
type EventKind string

const (
	EventFound EventKind = "found"
	EventLost  EventKind = "lost"
)

// Event records a found or lost transition in a session.
type Event struct {
	ID         int64
	SessionID  string
	Kind       EventKind
	X, Y       int
	Confidence float64
	CreatedAt  time.Time
}

// EventRepository stores session events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Append inserts e and fills in its ID.
func (r *EventRepository) Append(e *Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO events (session_id, kind, x, y, confidence, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.SessionID, string(e.Kind), e.X, e.Y, e.Confidence, e.CreatedAt,
	)
	if err != nil {
		return err
	}

	e.ID, err = result.LastInsertId()
	return err
}

// ListBySession returns the events of a session in insertion order.
func (r *EventRepository) ListBySession(sessionID string) ([]*Event, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, kind, x, y, confidence, created_at
		 FROM events WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var kind string
		if err := rows.Scan(&e.ID, &e.SessionID, &kind, &e.X, &e.Y, &e.Confidence, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = EventKind(kind)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// CountBySession returns how many events of kind a session recorded.
func (r *EventRepository) CountBySession(sessionID string, kind EventKind) (int, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM events WHERE session_id = ? AND kind = ?`,
		sessionID, string(kind),
	).Scan(&n)
	return n, err
}

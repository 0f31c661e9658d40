package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const sessionColumns = "id, title, description, start_time, duration_minutes, room_id, attendees, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var s Session
	err := row.Scan(
		&s.Id,
		&s.Title,
		&s.Description,
		&s.StartTime,
		&s.Duration,
		&s.RoomId,
		pq.Array(&s.Attendees),
		&s.CreatedAt,
	)
	if s.Attendees == nil {
		s.Attendees = []string{}
	}

	return s, err
}

func (db *PgSessionRepository) CreateSession(params CreateSessionParams) (Session, error) {
	attendees := params.Attendees
	if attendees == nil {
		attendees = []string{}
	}

	row := db.conn.QueryRow(
		"INSERT INTO scheduled_sessions (id, title, description, start_time, duration_minutes, room_id, attendees, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING "+sessionColumns,
		params.Id,
		params.Title,
		params.Description,
		params.StartTime.UTC(),
		params.Duration,
		params.RoomId,
		pq.Array(attendees),
		time.Now().UTC(),
	)

	s, err := scanSession(row)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}

	return s, nil
}

func (db *PgSessionRepository) ListSessions() ([]Session, error) {
	rows, err := db.conn.Query("SELECT " + sessionColumns + " FROM scheduled_sessions ORDER BY start_time ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

func (db *PgSessionRepository) GetSession(id string) (Session, error) {
	row := db.conn.QueryRow("SELECT "+sessionColumns+" FROM scheduled_sessions WHERE id = $1 LIMIT 1", id)

	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}

	return s, nil
}

func (db *PgSessionRepository) DeleteSession(id string) error {
	res, err := db.conn.Exec("DELETE FROM scheduled_sessions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}

	return nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/c64u/internal/canonical"
	"github.com/roach88/c64u/internal/trace"
)

// Session describes one recorded trace session.
type Session struct {
	ID         string
	Label      string
	StartedAt  time.Time
	EventCount int
}

// BeginSession registers a session. Writing the same session id twice is
// a silent no-op, so a reconnecting bridge can call it unconditionally.
func (s *Store) BeginSession(ctx context.Context, id, label string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, label, started_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, label, startedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}
	return nil
}

// AppendEvents appends events to a session in one transaction. Event
// payloads are serialized to canonical JSON per RFC 8785 so identical
// traces produce byte-identical rows. An event id already present in the
// session is silently skipped - replays after a bridge reconnect are
// idempotent.
func (s *Store) AppendEvents(ctx context.Context, sessionID string, events []trace.TraceEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append events: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var next int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(insert_idx) + 1, 0) FROM events WHERE session_id = ?
	`, sessionID).Scan(&next)
	if err != nil {
		return fmt.Errorf("append events: next index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events
		(session_id, insert_idx, event_id, timestamp, relative_ms, type, origin, correlation_id, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, event_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("append events: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		data, err := marshalEventData(ev.Data)
		if err != nil {
			return fmt.Errorf("append events: %s: %w", ev.ID, err)
		}
		res, err := stmt.ExecContext(ctx, sessionID, next, ev.ID, ev.Timestamp, ev.RelativeMs,
			ev.Type, string(ev.Origin), ev.CorrelationID, data)
		if err != nil {
			return fmt.Errorf("append events: insert %s: %w", ev.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("append events: rows affected: %w", err)
		}
		if n > 0 {
			next++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append events: commit: %w", err)
	}
	return nil
}

// SessionEvents loads a session's events in canonical trace order:
// relative_ms, then timestamp, then insertion index.
func (s *Store) SessionEvents(ctx context.Context, sessionID string) ([]trace.TraceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, timestamp, relative_ms, type, origin, correlation_id, data
		FROM events
		WHERE session_id = ?
		ORDER BY relative_ms, timestamp, insert_idx
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session events: %w", err)
	}
	defer rows.Close()

	var events []trace.TraceEvent
	for rows.Next() {
		var ev trace.TraceEvent
		var origin string
		var data sql.NullString
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.RelativeMs, &ev.Type, &origin, &ev.CorrelationID, &data); err != nil {
			return nil, fmt.Errorf("session events: scan: %w", err)
		}
		ev.Origin = trace.Origin(origin)
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &ev.Data); err != nil {
				return nil, fmt.Errorf("session events: decode data for %s: %w", ev.ID, err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session events: %w", err)
	}
	return events, nil
}

// Sessions lists all sessions, newest first, with their event counts.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.label, s.started_at, COUNT(e.event_id)
		FROM sessions s
		LEFT JOIN events e ON e.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var started string
		if err := rows.Scan(&sess.ID, &sess.Label, &started, &sess.EventCount); err != nil {
			return nil, fmt.Errorf("list sessions: scan: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
			sess.StartedAt = t
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// ClearSession removes a session's events but keeps the session row, so
// a reset-session bridge call can reuse the id.
func (s *Store) ClearSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// DeleteSession removes a session and, via the cascade, its events.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// marshalEventData serializes an event payload to canonical JSON.
// A nil payload stores as NULL.
func marshalEventData(data map[string]any) (any, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := canonical.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}
	return string(raw), nil
}

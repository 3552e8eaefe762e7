// Package syncx records an append-only audit trail of the actions that
// matter after the fact: logins, session revocations, exam saves, and
// submissions.
package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const (
	EventUserLoggedIn      = "UserLoggedIn"
	EventUserLoggedOut     = "UserLoggedOut"
	EventSessionRevoked    = "SessionRevoked"
	EventExamSaved         = "ExamSaved"
	EventExamDeleted       = "ExamDeleted"
	EventSubmissionCreated = "SubmissionCreated"
)

type Event struct {
	Offset    int64  `json:"offset,omitempty"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, typ, key string, data any) error {
	payload := "{}"
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = string(b)
		}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4)`,
		typ, key, payload, time.Now().Unix())
	return err
}

// Search returns the most recent events whose type or key matches q.
func (r *EventRepo) Search(ctx context.Context, q string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT typ, key, data, created_at FROM event_log
		 WHERE typ LIKE '%'||$1||'%' OR key LIKE '%'||$1||'%'
		 ORDER BY created_at DESC LIMIT $2`, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

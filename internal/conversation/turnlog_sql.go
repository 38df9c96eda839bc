package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLTurnLog writes turn records to a relational table. A nil db disables
// logging without a special code path at the call site, so deployments
// without a database run unchanged.
type SQLTurnLog struct {
	db *sql.DB
}

// NewSQLTurnLog wraps a database handle. Accepts nil.
func NewSQLTurnLog(db *sql.DB) *SQLTurnLog {
	return &SQLTurnLog{db: db}
}

// EnsureSchema creates the turn log table if it does not exist.
func (l *SQLTurnLog) EnsureSchema(ctx context.Context) error {
	if l == nil || l.db == nil {
		return nil
	}
	_, err := l.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS conversation_turns (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			user_message TEXT NOT NULL,
			reply TEXT NOT NULL,
			mode TEXT NOT NULL,
			state TEXT NOT NULL,
			decision JSONB,
			operations JSONB,
			duration_ms BIGINT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("ensure turn log schema: %w", err)
	}
	return nil
}

// Append inserts one turn record.
func (l *SQLTurnLog) Append(ctx context.Context, rec TurnRecord) error {
	if l == nil || l.db == nil {
		return nil
	}
	ops, err := json.Marshal(rec.Operations)
	if err != nil {
		return fmt.Errorf("encode operations: %w", err)
	}
	var dec []byte
	if rec.Decision != nil {
		dec, err = json.Marshal(rec.Decision)
		if err != nil {
			return fmt.Errorf("encode decision: %w", err)
		}
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO conversation_turns
			(session_id, created_at, user_message, reply, mode, state, decision, operations, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.SessionID, rec.Timestamp, rec.UserMessage, rec.Reply,
		rec.Mode, rec.State, dec, ops, rec.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("insert turn record: %w", err)
	}
	return nil
}

// RecentTurns returns up to limit latest records for a session, oldest first.
func (l *SQLTurnLog) RecentTurns(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error) {
	if l == nil || l.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT session_id, created_at, user_message, reply, mode, state, decision, operations, duration_ms
		FROM conversation_turns
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query turn records: %w", err)
	}
	defer rows.Close()

	var recs []TurnRecord
	for rows.Next() {
		var rec TurnRecord
		var ts time.Time
		var dec, ops []byte
		if err := rows.Scan(&rec.SessionID, &ts, &rec.UserMessage, &rec.Reply,
			&rec.Mode, &rec.State, &dec, &ops, &rec.DurationMS); err != nil {
			return nil, fmt.Errorf("scan turn record: %w", err)
		}
		rec.Timestamp = ts
		if len(dec) > 0 {
			if err := json.Unmarshal(dec, &rec.Decision); err != nil {
				return nil, fmt.Errorf("decode decision: %w", err)
			}
		}
		if len(ops) > 0 {
			if err := json.Unmarshal(ops, &rec.Operations); err != nil {
				return nil, fmt.Errorf("decode operations: %w", err)
			}
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

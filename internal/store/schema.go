package store

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

const (
	tableSessions = "sessions"
	tableLines    = "session_lines"
	tableHistory  = "history_entries"
	tableLLM      = "llm_events"
)

// Timestamps are stored as unix milliseconds.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id            TEXT PRIMARY KEY,
		sequence      INTEGER NOT NULL,
		topic         TEXT NOT NULL,
		state         TEXT NOT NULL,
		fallback_used INTEGER NOT NULL DEFAULT 0,
		settings      TEXT NOT NULL DEFAULT '{}',
		started_at    INTEGER NOT NULL,
		ended_at      INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_topic_started ON sessions (topic, started_at)`,
	`CREATE TABLE IF NOT EXISTS session_lines (
		session_id   TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		position     INTEGER NOT NULL,
		line_id      TEXT NOT NULL,
		speaker      TEXT NOT NULL,
		text         TEXT NOT NULL,
		is_user_turn INTEGER NOT NULL,
		status       TEXT NOT NULL,
		PRIMARY KEY (session_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS history_entries (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		sequence   INTEGER NOT NULL,
		speaker    TEXT NOT NULL,
		text       TEXT NOT NULL,
		PRIMARY KEY (session_id, sequence)
	)`,
	`CREATE TABLE IF NOT EXISTS llm_events (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence      INTEGER NOT NULL,
		timestamp     INTEGER NOT NULL,
		provider      TEXT NOT NULL,
		model         TEXT NOT NULL,
		purpose       TEXT NOT NULL,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms    INTEGER NOT NULL DEFAULT 0,
		success       INTEGER NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		request_body  TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT ''
	)`,
}

func migrate(ctx context.Context, drv *entsql.Driver) error {
	for _, stmt := range ddl {
		var res sql.Result
		if err := drv.Exec(ctx, stmt, []any{}, &res); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' || c == '(' {
			return s[:i]
		}
	}
	return s
}

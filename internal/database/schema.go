package database

import (
	"database/sql"
	"fmt"
)

// schemaStatements are idempotent so EnsureSchema can run on every start.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS threads (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		pair_key TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_message_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS thread_participants (
		thread_id UUID NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (thread_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		thread_id UUID NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
		sender_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		edited_at TIMESTAMPTZ,
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS thread_participants_user_idx
		ON thread_participants (user_id)`,
	`CREATE INDEX IF NOT EXISTS threads_last_message_idx
		ON threads (last_message_at DESC)`,
	`CREATE INDEX IF NOT EXISTS messages_thread_created_idx
		ON messages (thread_id, created_at DESC)`,
}

// EnsureSchema creates the messaging tables and indexes if they do not
// already exist.
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}

package persistence

import (
	"context"
	"database/sql"
)

const linkedAccountsSchema = `
CREATE TABLE IF NOT EXISTS linked_accounts (
	id                TEXT PRIMARY KEY,
	platform          TEXT NOT NULL,
	external_id       TEXT NOT NULL,
	display_name      TEXT NOT NULL DEFAULT '',
	access_token      TEXT NOT NULL DEFAULT '',
	refresh_token     TEXT NOT NULL DEFAULT '',
	token_expires_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	status            TEXT NOT NULL DEFAULT 'active',
	daily_used        INTEGER NOT NULL DEFAULT 0,
	daily_limit       INTEGER NOT NULL DEFAULT 0,
	monthly_used      INTEGER NOT NULL DEFAULT 0,
	monthly_limit     INTEGER NOT NULL DEFAULT 0,
	quota_reset_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	monthly_reset_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_published_at TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureAccountSchema creates the linked_accounts table when absent so a
// fresh deployment comes up without a separate migration step.
func EnsureAccountSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, linkedAccountsSchema)
	return err
}

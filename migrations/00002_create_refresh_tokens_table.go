package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateRefreshTokensTable, downCreateRefreshTokensTable)
}

func upCreateRefreshTokensTable(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE refresh_tokens (
	  id UUID PRIMARY KEY,
	  user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	  token TEXT UNIQUE NOT NULL,
	  expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
	  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
	  revoked BOOLEAN NOT NULL DEFAULT FALSE,
	  revoked_at TIMESTAMP WITH TIME ZONE,
	  ip_address TEXT NOT NULL DEFAULT '',
	  user_agent TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX idx_refresh_tokens_user ON refresh_tokens (user_id);
	`
	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateRefreshTokensTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS refresh_tokens;`)
	return err
}

package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateAvailabilityWindowsTable, downCreateAvailabilityWindowsTable)
}

func upCreateAvailabilityWindowsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE availability_windows (
	  id UUID PRIMARY KEY,
	  teacher_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	  day_of_week TEXT NOT NULL CHECK (day_of_week IN ('Monday', 'Tuesday', 'Wednesday', 'Thursday', 'Friday', 'Saturday', 'Sunday')),
	  start_time TIME NOT NULL,
	  end_time TIME NOT NULL,
	  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
	  CONSTRAINT availability_windows_range CHECK (start_time < end_time)
	);
	CREATE INDEX idx_availability_windows_teacher_day ON availability_windows (teacher_id, day_of_week);
	`
	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateAvailabilityWindowsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS availability_windows;`)
	return err
}

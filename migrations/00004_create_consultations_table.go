package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateConsultationsTable, downCreateConsultationsTable)
}

// Active consultations of one teacher may not overlap. The repository serialises
// bookings with an advisory lock; the exclusion constraint is the last line.
func upCreateConsultationsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE EXTENSION IF NOT EXISTS btree_gist;

	CREATE TABLE consultations (
	  id UUID PRIMARY KEY,
	  teacher_id UUID NOT NULL REFERENCES users(id),
	  student_id UUID NOT NULL REFERENCES users(id),
	  date DATE NOT NULL,
	  start_time TIME NOT NULL,
	  end_time TIME NOT NULL,
	  purpose TEXT NOT NULL,
	  status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected', 'cancelled')),
	  note TEXT,
	  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
	  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
	  CONSTRAINT consultations_range CHECK (start_time < end_time),
	  CONSTRAINT consultations_no_overlap EXCLUDE USING gist (
	    teacher_id WITH =,
	    tsrange(date + start_time, date + end_time) WITH &&
	  ) WHERE (status IN ('pending', 'approved'))
	);
	CREATE INDEX idx_consultations_teacher_date ON consultations (teacher_id, date);
	CREATE INDEX idx_consultations_student_date ON consultations (student_id, date);
	`
	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateConsultationsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS consultations;`)
	return err
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgconn"
)

const schema = `
CREATE TABLE IF NOT EXISTS pending_jobs (
	job_id     TEXT PRIMARY KEY,
	chat_id    TEXT NOT NULL,
	status     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_pending_jobs_updated_at ON pending_jobs (updated_at);
`

type execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func EnsureSchema(ctx context.Context, db execer) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

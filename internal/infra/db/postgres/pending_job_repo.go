package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"telegram-tts-bot/internal/domain"
	"telegram-tts-bot/internal/domain/model"
	"telegram-tts-bot/internal/domain/ports/repository"
)

var _ repository.PendingJobRepository = (*pendingJobRepo)(nil)

// querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type pendingJobRepo struct {
	db  querier
	now func() time.Time
}

func NewPendingJobRepo(db querier) *pendingJobRepo {
	return &pendingJobRepo{db: db, now: time.Now}
}

func (r *pendingJobRepo) Upsert(ctx context.Context, jobID string, chatID int64, status model.JobStatus) error {
	if jobID == "" {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO pending_jobs (job_id, chat_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (job_id) DO UPDATE SET
  chat_id = EXCLUDED.chat_id,
  status = EXCLUDED.status,
  updated_at = EXCLUDED.updated_at;`

	_, err := r.db.Exec(ctx, q, jobID, strconv.FormatInt(chatID, 10), string(status), r.now().UTC())
	return err
}

func (r *pendingJobRepo) Delete(ctx context.Context, jobID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM pending_jobs WHERE job_id = $1`, jobID)
	return err
}

func (r *pendingJobRepo) Get(ctx context.Context, jobID string) (*model.PendingJob, error) {
	const q = `SELECT job_id, chat_id, status, created_at, updated_at FROM pending_jobs WHERE job_id = $1`
	p, err := scanPendingJob(r.db.QueryRow(ctx, q, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

func (r *pendingJobRepo) List(ctx context.Context) ([]*model.PendingJob, error) {
	const q = `SELECT job_id, chat_id, status, created_at, updated_at FROM pending_jobs ORDER BY created_at`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PendingJob
	for rows.Next() {
		p, err := scanPendingJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPendingJob(row pgx.Row) (*model.PendingJob, error) {
	var (
		p      model.PendingJob
		chatID string
		status string
	)
	if err := row.Scan(&p.JobID, &chatID, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("pending job %s: bad chat id %q: %w", p.JobID, chatID, err)
	}
	p.ChatID = id
	p.Status = model.JobStatus(status)
	return &p, nil
}

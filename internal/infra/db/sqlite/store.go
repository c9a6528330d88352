package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"telegram-tts-bot/internal/domain"
	"telegram-tts-bot/internal/domain/model"
	"telegram-tts-bot/internal/domain/ports/repository"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var _ repository.PendingJobRepository = (*Store)(nil)

// Store keeps pending job records in a local SQLite file. Timestamps are
// stored as RFC 3339 text with nanoseconds.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; concurrent sessions serialize here.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		version := migrationVersion(e.Name())
		if e.IsDir() || version <= 0 {
			continue
		}
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&n); err != nil {
			return fmt.Errorf("check migration %s: %w", e.Name(), err)
		}
		if n > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(path.Join("migrations", e.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", e.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			version, formatTime(s.now())); err != nil {
			return fmt.Errorf("record migration %s: %w", e.Name(), err)
		}
	}
	return nil
}

// migrationVersion returns the leading number of "001_name.sql", or 0.
func migrationVersion(name string) int {
	end := strings.IndexFunc(name, func(r rune) bool { return r < '0' || r > '9' })
	if end <= 0 {
		return 0
	}
	n, _ := strconv.Atoi(name[:end])
	return n
}

func (s *Store) Upsert(ctx context.Context, jobID string, chatID int64, status model.JobStatus) error {
	if jobID == "" {
		return domain.ErrInvalidArgument
	}
	now := formatTime(s.now())
	_, err := s.db.ExecContext(ctx, `
INSERT INTO pending_jobs (job_id, chat_id, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(job_id) DO UPDATE SET
  chat_id = excluded.chat_id,
  status = excluded.status,
  updated_at = excluded.updated_at`,
		jobID, strconv.FormatInt(chatID, 10), string(status), now, now)
	return err
}

func (s *Store) Delete(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_jobs WHERE job_id = ?`, jobID)
	return err
}

func (s *Store) Get(ctx context.Context, jobID string) (*model.PendingJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT job_id, chat_id, status, created_at, updated_at FROM pending_jobs WHERE job_id = ?`, jobID)
	p, err := scanPendingJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

func (s *Store) List(ctx context.Context) ([]*model.PendingJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, chat_id, status, created_at, updated_at FROM pending_jobs ORDER BY created_at`)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanPendingJob(row scanner) (*model.PendingJob, error) {
	var (
		p                model.PendingJob
		chatID, status   string
		created, updated string
	)
	if err := row.Scan(&p.JobID, &chatID, &status, &created, &updated); err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("pending job %s: bad chat id %q: %w", p.JobID, chatID, err)
	}
	p.ChatID = id
	p.Status = model.JobStatus(status)
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

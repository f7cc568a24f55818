package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/outreach-research/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS research_jobs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'queued',
	snapshot   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_research_jobs_status ON research_jobs(status);
CREATE INDEX IF NOT EXISTS idx_research_jobs_created_at ON research_jobs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, input model.JobInput) (*model.ResearchJob, error) {
	now := time.Now().UTC()
	job := &model.ResearchJob{
		ID:        uuid.New().String(),
		Input:     input,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}

	snapshot, err := json.Marshal(job)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal job")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO research_jobs (id, status, snapshot, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		job.ID, string(job.Status), string(snapshot), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}

	return job, nil
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, job *model.ResearchJob) error {
	snapshot, err := json.Marshal(job)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal job")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE research_jobs SET status = ?, snapshot = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN ('complete', 'failed')`,
		string(job.Status), string(snapshot), time.Now().UTC(), job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", job.ID)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if affected == 0 {
		// Distinguish missing from terminal.
		existing, getErr := s.GetJob(ctx, job.ID)
		if getErr != nil {
			return getErr
		}
		if existing.Status.Terminal() {
			return ErrTerminal
		}
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.ResearchJob, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM research_jobs WHERE id = ?`, id,
	).Scan(&snapshot)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %s", id)
	}

	var job model.ResearchJob
	if err := json.Unmarshal([]byte(snapshot), &job); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal job %s", id)
	}
	return &job, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.ResearchJob, error) {
	query := `SELECT snapshot FROM research_jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.ResearchJob
	for rows.Next() {
		var snapshot string
		if err := rows.Scan(&snapshot); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		var job model.ResearchJob
		if err := json.Unmarshal([]byte(snapshot), &job); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal job")
		}
		jobs = append(jobs, job)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: iterate jobs")
}

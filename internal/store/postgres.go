package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-research/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the store; pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS research_jobs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'queued',
	snapshot   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_research_jobs_status ON research_jobs(status);
CREATE INDEX IF NOT EXISTS idx_research_jobs_created_at ON research_jobs(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, input model.JobInput) (*model.ResearchJob, error) {
	now := time.Now().UTC()
	job := &model.ResearchJob{
		ID:        uuid.New().String(),
		Input:     input,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}

	snapshot, err := json.Marshal(job)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal job")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO research_jobs (id, status, snapshot, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		job.ID, string(job.Status), snapshot, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}

	return job, nil
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *model.ResearchJob) error {
	snapshot, err := json.Marshal(job)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal job")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE research_jobs SET status = $1, snapshot = $2, updated_at = $3
		 WHERE id = $4 AND status NOT IN ('complete', 'failed')`,
		string(job.Status), snapshot, time.Now().UTC(), job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", job.ID)
	}

	if tag.RowsAffected() == 0 {
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

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.ResearchJob, error) {
	var snapshot []byte
	err := s.pool.QueryRow(ctx,
		`SELECT snapshot FROM research_jobs WHERE id = $1`, id,
	).Scan(&snapshot)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}

	var job model.ResearchJob
	if err := json.Unmarshal(snapshot, &job); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal job %s", id)
	}
	return &job, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.ResearchJob, error) {
	query := `SELECT snapshot FROM research_jobs WHERE 1=1`
	var args []any
	arg := 1

	if filter.Status != "" {
		query += ` AND status = $1`
		args = append(args, string(filter.Status))
		arg++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT $` + strconv.Itoa(arg)
	args = append(args, limit)
	arg++

	if filter.Offset > 0 {
		query += ` OFFSET $` + strconv.Itoa(arg)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.ResearchJob
	for rows.Next() {
		var snapshot []byte
		if err := rows.Scan(&snapshot); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		var job model.ResearchJob
		if err := json.Unmarshal(snapshot, &job); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal job")
		}
		jobs = append(jobs, job)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: iterate jobs")
}

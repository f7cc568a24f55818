package store

import (
	"context"
	"errors"

	"github.com/sells-group/outreach-research/internal/model"
)

// ErrNotFound is returned when no job exists with the requested id.
var ErrNotFound = errors.New("store: job not found")

// ErrTerminal is returned when an update targets a job already in a terminal
// status. Terminal snapshots are immutable: a poller re-reading a complete or
// failed job always sees the same record.
var ErrTerminal = errors.New("store: job is terminal")

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for research jobs. A job is a
// single-writer record: the pipeline worker owns it during a run and every
// mutation is a full-row update keyed by id, so concurrent pollers only ever
// observe consistent snapshots.
type Store interface {
	CreateJob(ctx context.Context, input model.JobInput) (*model.ResearchJob, error)
	UpdateJob(ctx context.Context, job *model.ResearchJob) error
	GetJob(ctx context.Context, id string) (*model.ResearchJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.ResearchJob, error)

	Migrate(ctx context.Context) error
	Close() error
}

package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-research/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresCreateJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO research_jobs`).
		WithArgs(pgxmock.AnyArg(), "queued", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	job, err := s.CreateJob(context.Background(), model.JobInput{
		Recipient: model.Recipient{Name: "Jane Smith", Company: "Acme"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, model.JobStatusQueued, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetJob_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT snapshot FROM research_jobs WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	job := model.ResearchJob{ID: "job-1", Status: model.JobStatusDiscovery}
	snapshot, err := json.Marshal(job)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT snapshot FROM research_jobs WHERE id = \$1`).
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"snapshot"}).AddRow(snapshot))

	got, err := s.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusDiscovery, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateJob_TerminalGuard(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	terminal := model.ResearchJob{ID: "job-1", Status: model.JobStatusComplete}
	snapshot, err := json.Marshal(terminal)
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE research_jobs SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "job-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT snapshot FROM research_jobs WHERE id = \$1`).
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"snapshot"}).AddRow(snapshot))

	update := terminal
	update.Status = model.JobStatusExtracting
	err = s.UpdateJob(context.Background(), &update)
	assert.ErrorIs(t, err, ErrTerminal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListJobs_StatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	job := model.ResearchJob{ID: "job-1", Status: model.JobStatusComplete}
	snapshot, err := json.Marshal(job)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT snapshot FROM research_jobs WHERE 1=1 AND status = \$1`).
		WithArgs("complete", 100).
		WillReturnRows(pgxmock.NewRows([]string{"snapshot"}).AddRow(snapshot))

	jobs, err := s.ListJobs(context.Background(), JobFilter{Status: model.JobStatusComplete})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-1", jobs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

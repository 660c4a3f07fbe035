package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/taskflow/internal/core"
	"github.com/target/taskflow/internal/domain/model"
	"github.com/target/taskflow/internal/testutil"
)

// seedTerminalJob inserts a job already in the given terminal state with a
// controlled updated_at so retention cutoffs can be tested deterministically.
func seedTerminalJob(t testutil.TestingTB, repo *JobRepo, state model.JobState, updatedAt time.Time, archived bool) model.Job {
	t.Helper()

	job, err := model.NewJob(testutil.SendEmailCommand(), updatedAt)
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	job.State = state
	job.Attempts = job.MaxAttempts
	job.Archived = archived
	if err := repo.Insert(context.Background(), job); err != nil {
		t.Fatalf("insert job: %v", err)
	}
	return job
}

func TestJobRepo_ArchiveTerminalJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		old := testutil.TestTime()
		cutoff := old.Add(time.Hour)

		succeeded := seedTerminalJob(t, repo, model.JobStateSucceeded, old, false)
		dead := seedTerminalJob(t, repo, model.JobStateDead, old, false)
		recent := seedTerminalJob(t, repo, model.JobStateSucceeded, cutoff.Add(time.Minute), false)
		pending := mustInsertJob(t, repo, testutil.SendEmailCommand(), old)

		archived, err := repo.ArchiveTerminalJobs(context.Background(), core.RetentionParams{
			OlderThan: cutoff,
			BatchSize: 100,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), archived)

		for _, id := range []struct {
			job  model.Job
			want bool
		}{
			{succeeded, true},
			{dead, true},
			{recent, false},
			{pending, false},
		} {
			got, getErr := repo.GetByID(context.Background(), id.job.ID)
			require.NoError(t, getErr)
			assert.Equal(t, id.want, got.Archived, "job %s archived flag", id.job.ID)
		}

		// Second sweep finds nothing left to archive.
		archived, err = repo.ArchiveTerminalJobs(context.Background(), core.RetentionParams{
			OlderThan: cutoff,
			BatchSize: 100,
		})
		require.NoError(t, err)
		assert.Zero(t, archived)
	})
}

func TestJobRepo_ArchiveTerminalJobs_BatchSize(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		old := testutil.TestTime()
		cutoff := old.Add(time.Hour)

		for i := 0; i < 3; i++ {
			seedTerminalJob(t, repo, model.JobStateSucceeded, old.Add(time.Duration(i)*time.Second), false)
		}

		archived, err := repo.ArchiveTerminalJobs(context.Background(), core.RetentionParams{
			OlderThan: cutoff,
			BatchSize: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), archived)

		archived, err = repo.ArchiveTerminalJobs(context.Background(), core.RetentionParams{
			OlderThan: cutoff,
			BatchSize: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), archived)
	})
}

func TestJobRepo_PurgeArchivedJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		attempts := NewJobAttemptRepo(db, RepoConfig{})
		old := testutil.TestTime()
		cutoff := old.Add(time.Hour)

		purgeable := seedTerminalJob(t, repo, model.JobStateDead, old, true)
		kept := seedTerminalJob(t, repo, model.JobStateSucceeded, old, false)

		// Attempts ride along through the FK cascade.
		running := purgeable
		running.State = model.JobStateRunning
		running.LockedBy = "worker-1"
		running.LastRunAt = testutil.TimePtr(old)
		running.Attempts = 1
		_, err := attempts.Insert(context.Background(), model.NewFailureAttempt(running, "handler_error", "boom", old))
		require.NoError(t, err)

		purged, err := repo.PurgeArchivedJobs(context.Background(), core.RetentionParams{
			OlderThan: cutoff,
			BatchSize: 100,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), purged)

		_, err = repo.GetByID(context.Background(), purgeable.ID)
		require.Error(t, err)

		got, err := repo.GetByID(context.Background(), kept.ID)
		require.NoError(t, err)
		assert.False(t, got.Archived)

		remaining, err := attempts.ListForJob(context.Background(), purgeable.ID)
		require.NoError(t, err)
		assert.Empty(t, remaining, "attempts should cascade with the purged job")

		// Unarchived jobs are never purged regardless of age.
		purged, err = repo.PurgeArchivedJobs(context.Background(), core.RetentionParams{
			OlderThan: cutoff,
			BatchSize: 100,
		})
		require.NoError(t, err)
		assert.Zero(t, purged)
	})
}

package data

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/taskflow/internal/core"
	"github.com/target/taskflow/internal/domain/model"
	apperrors "github.com/target/taskflow/internal/errors"
	"github.com/target/taskflow/internal/testutil"
)

func TestTxManager_WithinTx_Commits(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		txm := NewTxManager(db, RepoConfig{})
		pool := NewJobRepo(db, RepoConfig{})
		now := testutil.TestTime()

		job, err := model.NewJob(testutil.SendEmailCommand(), now)
		require.NoError(t, err)

		err = txm.WithinTx(context.Background(), func(uow core.UnitOfWork) error {
			return uow.Jobs().Insert(context.Background(), job)
		})
		require.NoError(t, err)

		got, err := pool.GetByID(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, got.ID)
	})
}

func TestTxManager_WithinTx_RollsBackOnError(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		txm := NewTxManager(db, RepoConfig{})
		pool := NewJobRepo(db, RepoConfig{})
		now := testutil.TestTime()

		job, err := model.NewJob(testutil.SendEmailCommand(), now)
		require.NoError(t, err)

		boom := errors.New("boom")
		err = txm.WithinTx(context.Background(), func(uow core.UnitOfWork) error {
			if insertErr := uow.Jobs().Insert(context.Background(), job); insertErr != nil {
				return insertErr
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = pool.GetByID(context.Background(), job.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err), "insert should have rolled back, got %v", err)
	})
}

func TestTxManager_WithinTx_CompletionFlow(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		txm := NewTxManager(db, RepoConfig{})
		pool := NewJobRepo(db, RepoConfig{})
		attempts := NewJobAttemptRepo(db, RepoConfig{})
		now := testutil.TestTime()

		seeded := mustInsertJob(t, pool, testutil.SendEmailCommand(), now)
		claimed, ok, err := pool.AcquireNextDue(context.Background(), core.AcquireParams{
			Queue:    model.DefaultQueue,
			WorkerID: "worker-1",
			Now:      now,
		})
		require.NoError(t, err)
		require.True(t, ok)

		finished := now.Add(time.Second)
		err = txm.WithinTx(context.Background(), func(uow core.UnitOfWork) error {
			current, getErr := uow.Jobs().GetByID(context.Background(), claimed.ID)
			if getErr != nil {
				return getErr
			}
			done, trErr := current.MarkSucceeded(finished)
			if trErr != nil {
				return trErr
			}
			if updErr := uow.Jobs().Update(context.Background(), done); updErr != nil {
				return updErr
			}
			_, insErr := uow.Attempts().Insert(context.Background(), model.NewSuccessAttempt(current, finished))
			return insErr
		})
		require.NoError(t, err)

		got, err := pool.GetByID(context.Background(), seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStateSucceeded, got.State)
		assert.Empty(t, got.LockedBy)
		assert.Nil(t, got.LockedAt)
		assert.Nil(t, got.NextRunAt)

		recorded, err := attempts.ListForJob(context.Background(), seeded.ID)
		require.NoError(t, err)
		require.Len(t, recorded, 1)
		assert.True(t, recorded[0].Success)
		assert.Equal(t, 1, recorded[0].AttemptNumber)
	})
}

func TestTxManager_WithinTx_PartialWritesRollBackTogether(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		txm := NewTxManager(db, RepoConfig{})
		pool := NewJobRepo(db, RepoConfig{})
		attempts := NewJobAttemptRepo(db, RepoConfig{})
		now := testutil.TestTime()

		seeded := mustInsertJob(t, pool, testutil.SendEmailCommand(), now)
		claimed, ok, err := pool.AcquireNextDue(context.Background(), core.AcquireParams{
			Queue:    model.DefaultQueue,
			WorkerID: "worker-1",
			Now:      now,
		})
		require.NoError(t, err)
		require.True(t, ok)

		boom := errors.New("boom")
		err = txm.WithinTx(context.Background(), func(uow core.UnitOfWork) error {
			done, trErr := claimed.MarkSucceeded(now.Add(time.Second))
			if trErr != nil {
				return trErr
			}
			if updErr := uow.Jobs().Update(context.Background(), done); updErr != nil {
				return updErr
			}
			if _, insErr := uow.Attempts().Insert(context.Background(), model.NewSuccessAttempt(claimed, now.Add(time.Second))); insErr != nil {
				return insErr
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		// Both writes must be gone: the job is still running and no attempt exists.
		got, err := pool.GetByID(context.Background(), seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStateRunning, got.State)
		assert.Equal(t, "worker-1", got.LockedBy)

		recorded, err := attempts.ListForJob(context.Background(), seeded.ID)
		require.NoError(t, err)
		assert.Empty(t, recorded)
	})
}

func TestTxManager_WithinTx_AcquireInsideTx(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		txm := NewTxManager(db, RepoConfig{})
		pool := NewJobRepo(db, RepoConfig{})
		now := testutil.TestTime()

		seeded := mustInsertJob(t, pool, testutil.SendEmailCommand(), now)

		var claimed model.Job
		err := txm.WithinTx(context.Background(), func(uow core.UnitOfWork) error {
			job, ok, acqErr := uow.Jobs().AcquireNextDue(context.Background(), core.AcquireParams{
				Queue:    model.DefaultQueue,
				WorkerID: "worker-1",
				Now:      now,
			})
			if acqErr != nil {
				return acqErr
			}
			if !ok {
				return errors.New("expected a claimable job")
			}
			claimed = job
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, seeded.ID, claimed.ID)

		got, err := pool.GetByID(context.Background(), seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStateRunning, got.State)
	})
}

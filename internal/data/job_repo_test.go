package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/console-api/internal/core"
	"github.com/target/console-api/internal/domain/model"
	apperrors "github.com/target/console-api/internal/errors"
	"github.com/target/console-api/internal/testutil"
)

func createJob(t *testing.T, repo *JobRepo, org string) *model.Job {
	t.Helper()
	job, err := repo.Create(context.Background(), core.CreateJobParams{
		Type:           "noop",
		OrganizationID: org,
		Payload:        json.RawMessage(`{"x":1}`),
		CreatedBy:      "user@example.com",
	})
	require.NoError(t, err)
	return job
}

func TestJobRepo_Create(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		clock := NewFixedTimeProvider(testutil.TestTime())
		repo := NewJobRepo(db, RepoConfig{TimeProvider: clock})

		job := createJob(t, repo, "org-a")

		assert.NotEmpty(t, job.ID)
		assert.Equal(t, model.JobStatusPending, job.Status)
		assert.Equal(t, "org-a", job.OrganizationID)
		assert.JSONEq(t, `{"x":1}`, string(job.Payload))
		assert.Nil(t, job.Result)
		assert.Nil(t, job.Error)
		assert.True(t, job.CreatedAt.Equal(testutil.TestTime()))
		assert.Equal(t, "user@example.com", job.CreatedBy)

		other := createJob(t, repo, "org-a")
		assert.NotEqual(t, job.ID, other.ID)
	})
}

func TestJobRepo_CreateRequiresFields(t *testing.T) {
	repo := NewJobRepo(nil, RepoConfig{})
	_, err := repo.Create(context.Background(), core.CreateJobParams{Type: "noop"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestJobRepo_GetByID(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		created := createJob(t, repo, "org-a")

		got, err := repo.GetByID(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)

		_, err = repo.GetByID(context.Background(), "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestJobRepo_MalformedIDIsNotFound(t *testing.T) {
	repo := NewJobRepo(nil, RepoConfig{})
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = repo.Update(ctx, "not-a-uuid", func(*model.Job) error { return nil })
	assert.ErrorIs(t, err, ErrJobNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, ""), ErrJobNotFound)
}

func TestJobRepo_Update(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()
		created := createJob(t, repo, "org-a")
		at := time.Now().UTC().Truncate(time.Microsecond)

		updated, err := repo.Update(ctx, created.ID, func(j *model.Job) error {
			j.Status = model.JobStatusCompleted
			j.Result = json.RawMessage(`{"elements":[]}`)
			j.UpdatedAt = at
			j.UpdatedBy = "system"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, updated.Status)
		assert.JSONEq(t, `{"elements":[]}`, string(updated.Result))
		assert.True(t, updated.UpdatedAt.Equal(at))
		assert.Equal(t, "system", updated.UpdatedBy)

		msg := "boom"
		updated, err = repo.Update(ctx, created.ID, func(j *model.Job) error {
			j.Status = model.JobStatusFailed
			j.Result = nil
			j.Error = &msg
			return nil
		})
		require.NoError(t, err)
		assert.Nil(t, updated.Result)
		require.NotNil(t, updated.Error)
		assert.Equal(t, "boom", *updated.Error)
	})
}

func TestJobRepo_UpdateAbortsOnCallbackError(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()
		created := createJob(t, repo, "org-a")
		sentinel := apperrors.Validation("nope")

		_, err := repo.Update(ctx, created.ID, func(j *model.Job) error {
			j.Status = model.JobStatusAborted
			return sentinel
		})
		require.ErrorIs(t, err, sentinel)

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, got.Status)
	})
}

func TestJobRepo_UpdateSerializesWriters(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()
		created := createJob(t, repo, "org-a")

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Update(ctx, created.ID, func(j *model.Job) error {
					var counter struct{ N int }
					if err := json.Unmarshal(j.Payload, &counter); err != nil {
						return err
					}
					counter.N++
					raw, err := json.Marshal(counter)
					j.Payload = raw
					return err
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.JSONEq(t, `{"N":5}`, string(got.Payload))
	})
}

func TestJobRepo_List(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		clock := NewFixedTimeProvider(testutil.TestTime())
		repo := NewJobRepo(db, RepoConfig{TimeProvider: clock})
		ctx := context.Background()

		first := createJob(t, repo, "org-a")
		clock.AddTime(time.Minute)
		second := createJob(t, repo, "org-a")
		clock.AddTime(time.Minute)
		createJob(t, repo, "org-b")

		_, err := repo.Update(ctx, first.ID, func(j *model.Job) error {
			j.Status = model.JobStatusFailed
			return nil
		})
		require.NoError(t, err)

		all, err := repo.List(ctx, model.JobListOptions{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		orgA, err := repo.List(ctx, model.JobListOptions{OrganizationID: "org-a"})
		require.NoError(t, err)
		require.Len(t, orgA, 2)
		assert.Equal(t, second.ID, orgA[0].ID, "newest first")

		failed := model.JobStatusFailed
		orgAFailed, err := repo.List(ctx, model.JobListOptions{OrganizationID: "org-a", Status: &failed})
		require.NoError(t, err)
		require.Len(t, orgAFailed, 1)
		assert.Equal(t, first.ID, orgAFailed[0].ID)

		none, err := repo.List(ctx, model.JobListOptions{OrganizationID: "org-z"})
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})
}

func TestJobRepo_Delete(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()
		created := createJob(t, repo, "org-a")

		require.NoError(t, repo.Delete(ctx, created.ID))
		err := repo.Delete(ctx, created.ID)
		assert.True(t, errors.Is(err, ErrJobNotFound))
	})
}

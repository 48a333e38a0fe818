package job

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/console-api/internal/domain/model"
	apperrors "github.com/target/console-api/internal/errors"
)

func newJob() *model.Job {
	return &model.Job{
		ID:             "job-1",
		Type:           model.JobTypeDiagramElementsExtraction,
		OrganizationID: "org-a",
		Status:         model.JobStatusPending,
		Payload:        json.RawMessage(`{"project_id":"p1","diagram_id":"d1"}`),
	}
}

func TestApplyReport_Completed(t *testing.T) {
	j := newJob()
	prevErr := "earlier failure"
	j.Error = &prevErr
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := ApplyReport(j, Report{Status: model.JobStatusCompleted, Result: json.RawMessage(`{"elements":[1]}`)}, Stamp{By: "system", At: at})
	require.NoError(t, err)

	assert.Equal(t, model.JobStatusCompleted, j.Status)
	assert.JSONEq(t, `{"elements":[1]}`, string(j.Result))
	assert.Nil(t, j.Error)
	assert.Equal(t, at, j.UpdatedAt)
	assert.Equal(t, "system", j.UpdatedBy)
}

func TestApplyReport_FailedClearsResult(t *testing.T) {
	j := newJob()
	j.Result = json.RawMessage(`{"x":1}`)

	require.NoError(t, ApplyReport(j, Report{Status: model.JobStatusFailed, Error: "worker crashed"}, Stamp{At: time.Now()}))

	assert.Equal(t, model.JobStatusFailed, j.Status)
	require.NotNil(t, j.Error)
	assert.Equal(t, "worker crashed", *j.Error)
	assert.Nil(t, j.Result)
}

func TestApplyReport_ProcessingKeepsFinalFields(t *testing.T) {
	j := newJob()
	require.NoError(t, ApplyReport(j, Report{Status: model.JobStatusProcessing}, Stamp{At: time.Now()}))
	assert.Equal(t, model.JobStatusProcessing, j.Status)
	assert.Nil(t, j.Result)
	assert.Nil(t, j.Error)
}

func TestApplyReport_OmittedFieldsKeepStoredValues(t *testing.T) {
	t.Run("completed without result", func(t *testing.T) {
		j := newJob()
		j.Status = model.JobStatusCompleted
		j.Result = json.RawMessage(`{"elements":[1]}`)

		require.NoError(t, ApplyReport(j, Report{Status: model.JobStatusCompleted}, Stamp{At: time.Now()}))

		assert.JSONEq(t, `{"elements":[1]}`, string(j.Result))
		assert.Nil(t, j.Error)
	})

	t.Run("failed without error", func(t *testing.T) {
		j := newJob()
		j.Status = model.JobStatusProcessing

		require.NoError(t, ApplyReport(j, Report{Status: model.JobStatusFailed}, Stamp{At: time.Now()}))

		assert.Equal(t, model.JobStatusFailed, j.Status)
		assert.Nil(t, j.Error)
		assert.Nil(t, j.Result)
	})

	t.Run("failed without error keeps earlier reason", func(t *testing.T) {
		j := newJob()
		reason := "worker crashed"
		j.Status = model.JobStatusFailed
		j.Error = &reason

		require.NoError(t, ApplyReport(j, Report{Status: model.JobStatusFailed}, Stamp{At: time.Now()}))

		require.NotNil(t, j.Error)
		assert.Equal(t, "worker crashed", *j.Error)
	})
}

func TestApplyReport_Idempotent(t *testing.T) {
	at := time.Now().UTC()
	r := Report{Status: model.JobStatusCompleted, Result: json.RawMessage(`{"ok":true}`)}

	once := newJob()
	require.NoError(t, ApplyReport(once, r, Stamp{At: at}))

	twice := newJob()
	require.NoError(t, ApplyReport(twice, r, Stamp{At: at}))
	require.NoError(t, ApplyReport(twice, r, Stamp{At: at}))

	assert.Equal(t, once, twice)
}

func TestApplyReport_InvalidStatus(t *testing.T) {
	j := newJob()
	err := ApplyReport(j, Report{Status: "done"}, Stamp{At: time.Now()})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, model.JobStatusPending, j.Status)
}

func TestApplyReport_NullResultStoredAsNil(t *testing.T) {
	j := newJob()
	require.NoError(t, ApplyReport(j, Report{Status: model.JobStatusCompleted, Result: json.RawMessage(`null`)}, Stamp{At: time.Now()}))
	assert.Nil(t, j.Result)
}

func TestMarkFailed(t *testing.T) {
	j := newJob()
	MarkFailed(j, "Diagram preview URL not found", Stamp{By: "system", At: time.Now()})

	assert.Equal(t, model.JobStatusFailed, j.Status)
	require.NotNil(t, j.Error)
	assert.Equal(t, "Diagram preview URL not found", *j.Error)
}

func TestApplyUpdate(t *testing.T) {
	t.Run("status and payload", func(t *testing.T) {
		j := newJob()
		status := model.JobStatusAborted
		err := ApplyUpdate(j, model.UpdateJobRequest{Status: &status, Payload: json.RawMessage(`{"a":1}`)}, Stamp{By: "admin@example.com", At: time.Now()})
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusAborted, j.Status)
		assert.JSONEq(t, `{"a":1}`, string(j.Payload))
		assert.Equal(t, "admin@example.com", j.UpdatedBy)
	})

	t.Run("same type tolerated", func(t *testing.T) {
		j := newJob()
		typ := j.Type
		require.NoError(t, ApplyUpdate(j, model.UpdateJobRequest{Type: &typ}, Stamp{At: time.Now()}))
	})

	t.Run("type change rejected", func(t *testing.T) {
		j := newJob()
		typ := model.JobType("noop")
		err := ApplyUpdate(j, model.UpdateJobRequest{Type: &typ}, Stamp{At: time.Now()})
		assert.True(t, apperrors.IsValidation(err))
		assert.Equal(t, model.JobTypeDiagramElementsExtraction, j.Type)
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		j := newJob()
		status := model.JobStatus("archived")
		err := ApplyUpdate(j, model.UpdateJobRequest{Status: &status}, Stamp{At: time.Now()})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("completed clears error", func(t *testing.T) {
		j := newJob()
		msg := "x"
		j.Error = &msg
		status := model.JobStatusCompleted
		require.NoError(t, ApplyUpdate(j, model.UpdateJobRequest{Status: &status, Result: json.RawMessage(`[]`)}, Stamp{At: time.Now()}))
		assert.Nil(t, j.Error)
		assert.JSONEq(t, `[]`, string(j.Result))
	})

	t.Run("leaving completed drops result", func(t *testing.T) {
		j := newJob()
		j.Status = model.JobStatusCompleted
		j.Result = json.RawMessage(`{"a":1}`)
		status := model.JobStatusPending
		require.NoError(t, ApplyUpdate(j, model.UpdateJobRequest{Status: &status}, Stamp{At: time.Now()}))
		assert.Equal(t, model.JobStatusPending, j.Status)
		assert.Nil(t, j.Result)
	})

	t.Run("leaving failed drops error", func(t *testing.T) {
		j := newJob()
		msg := "worker crashed"
		j.Status = model.JobStatusFailed
		j.Error = &msg
		status := model.JobStatusProcessing
		require.NoError(t, ApplyUpdate(j, model.UpdateJobRequest{Status: &status}, Stamp{At: time.Now()}))
		assert.Nil(t, j.Error)
	})

	t.Run("payload only keeps final fields", func(t *testing.T) {
		j := newJob()
		j.Status = model.JobStatusCompleted
		j.Result = json.RawMessage(`{"a":1}`)
		require.NoError(t, ApplyUpdate(j, model.UpdateJobRequest{Payload: json.RawMessage(`{"b":2}`)}, Stamp{At: time.Now()}))
		assert.JSONEq(t, `{"a":1}`, string(j.Result))
	})

	t.Run("result on non-completed job rejected", func(t *testing.T) {
		j := newJob()
		err := ApplyUpdate(j, model.UpdateJobRequest{Result: json.RawMessage(`{"a":1}`)}, Stamp{At: time.Now()})
		assert.True(t, apperrors.IsValidation(err))
		assert.Nil(t, j.Result)
	})
}

func TestIsRegression(t *testing.T) {
	assert.False(t, IsRegression(model.JobStatusPending, model.JobStatusCompleted))
	assert.False(t, IsRegression(model.JobStatusCompleted, model.JobStatusCompleted))
	assert.True(t, IsRegression(model.JobStatusCompleted, model.JobStatusProcessing))
	assert.True(t, IsRegression(model.JobStatusFailed, model.JobStatusCompleted))
}

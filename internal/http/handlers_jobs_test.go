package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/console-api/internal/core"
	domainauth "github.com/target/console-api/internal/domain/auth"
	"github.com/target/console-api/internal/domain/model"
	apperrors "github.com/target/console-api/internal/errors"
	"github.com/target/console-api/internal/mocks"
	mockauth "github.com/target/console-api/internal/mocks/auth"
	"github.com/target/console-api/internal/service"
	"github.com/target/console-api/internal/testutil"
)

const (
	userToken  = "user-token"
	adminToken = "admin-token"
)

type routerHarness struct {
	handler     http.Handler
	svc         *service.JobService
	repo        *mocks.MockJobRepository
	dispatcher  *mocks.MockDispatcher
	broadcaster *mocks.MockBroadcaster
}

func newRouterHarness(t *testing.T) *routerHarness {
	t.Helper()
	ctrl := gomock.NewController(t)
	h := &routerHarness{
		repo:        mocks.NewMockJobRepository(ctrl),
		dispatcher:  mocks.NewMockDispatcher(ctrl),
		broadcaster: mocks.NewMockBroadcaster(ctrl),
	}
	h.svc = service.MustNewJobService(service.JobServiceOptions{
		Repo:        h.repo,
		Dispatcher:  h.dispatcher,
		Broadcaster: h.broadcaster,
		CallbackURL: "http://console.test/api/jobs/callback",
		Now:         testutil.TestTime,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.svc.Shutdown(ctx)
	})

	resolver := mockauth.NewTokenResolver().
		With(userToken, domainauth.Actor{UserID: "u-1", Email: "user@example.com", Role: domainauth.RoleUser}).
		With(adminToken, domainauth.Actor{UserID: "a-1", Email: "admin@example.com", Role: domainauth.RoleAdmin})

	h.handler = NewRouter(RouterServices{
		Jobs:         h.svc,
		Resolver:     resolver,
		MaxBodyBytes: 1024,
	})
	return h
}

func (h *routerHarness) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, r)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCreateJob_Success(t *testing.T) {
	h := newRouterHarness(t)
	stored := testutil.NewJob().WithPayload(`{"a":1}`).Build()

	h.repo.EXPECT().Create(gomock.Any(), core.CreateJobParams{
		Type:           "noop",
		OrganizationID: "org-a",
		Payload:        json.RawMessage(`{"a":1}`),
		CreatedBy:      "user@example.com",
	}).Return(stored, nil)
	h.dispatcher.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil)

	w := h.do(t, http.MethodPost, "/api/jobs", userToken, `{"type":"noop","payload":{"a":1},"organization_id":"org-a"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var got model.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, stored.ID, got.ID)
	assert.Equal(t, model.JobStatusPending, got.Status)
}

func TestCreateJob_IgnoresUnknownFields(t *testing.T) {
	h := newRouterHarness(t)
	stored := testutil.NewJob().Build()

	h.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(stored, nil)
	h.dispatcher.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil)

	w := h.do(t, http.MethodPost, "/api/jobs", userToken, `{"type":"noop","organization_id":"org-a","projectName":"demo"}`)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateJob_Errors(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		body     string
		wantCode int
		wantErr  string
	}{
		{"no credentials", "", `{"type":"noop","organization_id":"org-a"}`, http.StatusUnauthorized, "authentication_required"},
		{"bad credentials", "nope", `{"type":"noop","organization_id":"org-a"}`, http.StatusUnauthorized, "authentication_required"},
		{"invalid json", userToken, `{bad`, http.StatusBadRequest, "invalid_json"},
		{"missing type", userToken, `{"organization_id":"org-a"}`, http.StatusBadRequest, "validation"},
		{"missing org", userToken, `{"type":"noop"}`, http.StatusBadRequest, "validation"},
		{"too large", userToken, `{"type":"noop","organization_id":"org-a","payload":"` + strings.Repeat("x", 2048) + `"}`, http.StatusRequestEntityTooLarge, "request_too_large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouterHarness(t)
			w := h.do(t, http.MethodPost, "/api/jobs", tt.token, tt.body)
			require.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, decodeError(t, w)["error"])
		})
	}
}

func TestCallback_Success(t *testing.T) {
	h := newRouterHarness(t)
	job := testutil.NewJob().WithStatus(model.JobStatusProcessing).Build()

	h.repo.EXPECT().Update(gomock.Any(), job.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, fn core.UpdateFunc) (*model.Job, error) {
			next := *job
			if err := fn(&next); err != nil {
				return nil, err
			}
			return &next, nil
		})
	h.broadcaster.EXPECT().Broadcast(gomock.Any(), "org-a", gomock.Any())

	body := `{"jobId":"` + job.ID + `","status":"completed","result":{"ok":true},"workerVersion":"2"}`
	w := h.do(t, http.MethodPost, "/api/jobs/callback", "", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp CallbackResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Job status updated successfully", resp.Message)
	require.NotNil(t, resp.Job)
	assert.Equal(t, model.JobStatusCompleted, resp.Job.Status)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Job.Result))
}

func TestCallback_Errors(t *testing.T) {
	t.Run("missing status", func(t *testing.T) {
		h := newRouterHarness(t)
		w := h.do(t, http.MethodPost, "/api/jobs/callback", "", `{"jobId":"j1"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Status is required", decodeError(t, w)["message"])
	})

	t.Run("invalid status", func(t *testing.T) {
		h := newRouterHarness(t)
		w := h.do(t, http.MethodPost, "/api/jobs/callback", "", `{"jobId":"j1","status":"done"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t,
			"Invalid status. Must be one of: pending, processing, completed, failed, aborted",
			decodeError(t, w)["message"])
	})

	t.Run("unknown job", func(t *testing.T) {
		h := newRouterHarness(t)
		h.repo.EXPECT().Update(gomock.Any(), "missing", gomock.Any()).Return(nil, apperrors.NotFound("job not found"))
		w := h.do(t, http.MethodPost, "/api/jobs/callback", "", `{"jobId":"missing","status":"failed","error":"x"}`)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_found", decodeError(t, w)["error"])
	})
}

func TestUpdateJob(t *testing.T) {
	t.Run("requires admin", func(t *testing.T) {
		h := newRouterHarness(t)
		w := h.do(t, http.MethodPut, "/api/jobs/j1", userToken, `{"status":"aborted"}`)
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("empty update", func(t *testing.T) {
		h := newRouterHarness(t)
		w := h.do(t, http.MethodPut, "/api/jobs/j1", adminToken, `{}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("applies", func(t *testing.T) {
		h := newRouterHarness(t)
		job := testutil.NewJob().Build()
		h.repo.EXPECT().Update(gomock.Any(), job.ID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, fn core.UpdateFunc) (*model.Job, error) {
				next := *job
				if err := fn(&next); err != nil {
					return nil, err
				}
				return &next, nil
			})
		h.broadcaster.EXPECT().Broadcast(gomock.Any(), "org-a", gomock.Any())

		w := h.do(t, http.MethodPut, "/api/jobs/"+job.ID, adminToken, `{"status":"aborted"}`)
		require.Equal(t, http.StatusOK, w.Code)
		var got model.Job
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, model.JobStatusAborted, got.Status)
		assert.Equal(t, "admin@example.com", got.UpdatedBy)
	})
}

func TestGetAndListJobs(t *testing.T) {
	h := newRouterHarness(t)
	job := testutil.NewJob().Build()
	completed := model.JobStatusCompleted

	h.repo.EXPECT().GetByID(gomock.Any(), job.ID).Return(job, nil)
	h.repo.EXPECT().GetByID(gomock.Any(), "nope").Return(nil, apperrors.NotFound("job not found"))
	h.repo.EXPECT().List(gomock.Any(), model.JobListOptions{OrganizationID: "org-a", Status: &completed, Limit: 10}).
		Return(nil, nil)
	h.repo.EXPECT().List(gomock.Any(), model.JobListOptions{Limit: defaultListLimit}).Return([]*model.Job{job}, nil)

	w := h.do(t, http.MethodGet, "/api/jobs/"+job.ID, userToken, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/api/jobs/nope", userToken, "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodGet, "/api/jobs/organization/org-a?status=completed&limit=10", userToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = h.do(t, http.MethodGet, "/api/jobs/organization/org-a?status=bogus", userToken, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodGet, "/api/jobs", userToken, "")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, http.MethodGet, "/api/jobs", adminToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	var jobs []model.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	assert.Len(t, jobs, 1)
}

func TestDeleteJob(t *testing.T) {
	h := newRouterHarness(t)
	h.repo.EXPECT().Delete(gomock.Any(), "j1").Return(nil)

	w := h.do(t, http.MethodDelete, "/api/jobs/j1", userToken, "")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, http.MethodDelete, "/api/jobs/j1", adminToken, "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.Bytes())
}

func TestRenderError_HidesServerErrors(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", bytes.NewReader(nil))
	w := httptest.NewRecorder()

	RenderError(w, r, nil, assert.AnError)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "internal", body["error"])
	assert.NotContains(t, body["message"], assert.AnError.Error())
}

func TestDetermineErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, DetermineErrorStatus(apperrors.Validation("x")))
	assert.Equal(t, http.StatusNotFound, DetermineErrorStatus(apperrors.NotFound("x")))
	assert.Equal(t, http.StatusUnprocessableEntity, DetermineErrorStatus(apperrors.Precondition("x")))
	assert.Equal(t, http.StatusUnauthorized, DetermineErrorStatus(apperrors.Unauthorized("x")))
	assert.Equal(t, http.StatusConflict, DetermineErrorStatus(apperrors.Wrap(assert.AnError, apperrors.ErrCodeConflict, "x")))
	assert.Equal(t, http.StatusInternalServerError, DetermineErrorStatus(assert.AnError))
}

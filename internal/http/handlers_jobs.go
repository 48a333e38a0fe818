// Package httpx provides the console's HTTP API: job submission, worker
// callbacks, job administration and the viewer WebSocket endpoint.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/target/console-api/internal/domain/model"
	"github.com/target/console-api/internal/service"
)

const callbackSuccessMessage = "Job status updated successfully"

// JobHandlers provides HTTP handlers for job-related operations.
type JobHandlers struct {
	Svc    *service.JobService
	Logger *slog.Logger
}

// CallbackResponse is the worker-facing acknowledgement of a status report.
type CallbackResponse struct {
	Message string     `json:"message"`
	Job     *model.Job `json:"job"`
}

// CreateJob accepts a job submission and returns it as pending. Dispatch
// happens after the response. Fields the console does not read are ignored.
func (h *JobHandlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req model.CreateJobRequest
	if !DecodeJSONLenient(w, r, &req) {
		return
	}

	actor, _ := GetActorFromContext(r.Context())
	job, err := h.Svc.Create(r.Context(), req, actor)
	if err != nil {
		RenderError(w, r, h.Logger, err)
		return
	}

	WriteJSON(w, http.StatusCreated, job)
}

// Callback applies a worker's status report.
func (h *JobHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	var req model.CallbackRequest
	if !DecodeJSONLenient(w, r, &req) {
		return
	}

	job, err := h.Svc.HandleCallback(r.Context(), req)
	if err != nil {
		RenderError(w, r, h.Logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, CallbackResponse{Message: callbackSuccessMessage, Job: job})
}

// UpdateJob applies an administrative partial update.
func (h *JobHandlers) UpdateJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req model.UpdateJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.IsEmpty() {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "validation",
			Err:     errors.New("at least one field must be updated"),
		})
		return
	}

	actor, _ := GetActorFromContext(r.Context())
	job, err := h.Svc.Update(r.Context(), id, req, actor)
	if err != nil {
		RenderError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// GetJob returns one job.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		RenderError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// ListJobs returns jobs across all organizations.
func (h *JobHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Svc.List(r.Context(), parseJobListOptions(r))
	if err != nil {
		RenderError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, nonNilJobs(jobs))
}

// ListOrganizationJobs returns one organization's jobs.
func (h *JobHandlers) ListOrganizationJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Svc.ListByOrganization(r.Context(), r.PathValue("organizationId"), parseJobListOptions(r))
	if err != nil {
		RenderError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, nonNilJobs(jobs))
}

// DeleteJob removes a job.
func (h *JobHandlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		RenderError(w, r, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nonNilJobs(jobs []*model.Job) []*model.Job {
	if jobs == nil {
		return []*model.Job{}
	}
	return jobs
}

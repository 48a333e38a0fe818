// Package model defines the core data types shared by the console's job
// orchestration, dispatch and realtime layers.
package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// JobType names a kind of externally processed job. The set is open: types
// without a registered transformer are forwarded to workers unchanged.
type JobType string

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobTypeDiagramElementsExtraction extracts structural elements from a
	// rendered diagram preview.
	JobTypeDiagramElementsExtraction JobType = "diagram_elements_extraction"

	// JobStatusPending indicates the job is accepted and awaiting a worker.
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing indicates a worker has started the job.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates the worker finished and attached a result.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates dispatch or processing failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusAborted indicates the job was abandoned.
	JobStatusAborted JobStatus = "aborted"
)

// JobStatuses lists every valid status in lifecycle order.
func JobStatuses() []JobStatus {
	return []JobStatus{
		JobStatusPending,
		JobStatusProcessing,
		JobStatusCompleted,
		JobStatusFailed,
		JobStatusAborted,
	}
}

// Valid returns true if the JobStatus is one of the five known values.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusAborted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further worker progress is expected.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusAborted
}

// Job is the persisted record of one unit of externally processed work.
type Job struct {
	ID             string          `json:"id"                   db:"id"`
	Type           JobType         `json:"type"                 db:"type"`
	OrganizationID string          `json:"organization_id"      db:"organization_id"`
	Status         JobStatus       `json:"status"               db:"status"`
	Payload        json.RawMessage `json:"payload"              db:"payload"`
	Result         json.RawMessage `json:"result"               db:"result"`
	Error          *string         `json:"error,omitempty"      db:"error"`
	CreatedAt      time.Time       `json:"created_at"           db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"           db:"updated_at"`
	CreatedBy      string          `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy      string          `json:"updated_by,omitempty" db:"updated_by"`
}

// CreateJobRequest is the client submission for a new job.
type CreateJobRequest struct {
	Type           JobType         `json:"type"`
	Payload        json.RawMessage `json:"payload"`
	OrganizationID string          `json:"organization_id"`
}

// Normalize trims identifiers and substitutes an empty object for a missing payload.
func (r *CreateJobRequest) Normalize() {
	r.Type = JobType(strings.TrimSpace(string(r.Type)))
	r.OrganizationID = strings.TrimSpace(r.OrganizationID)
	if IsNullJSON(r.Payload) {
		r.Payload = json.RawMessage(`{}`)
	}
}

// UpdateJobRequest is an administrative partial update. Nil fields are left
// unchanged.
type UpdateJobRequest struct {
	Status  *JobStatus      `json:"status,omitempty"`
	Type    *JobType        `json:"type,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// IsEmpty reports whether the request changes nothing.
func (r *UpdateJobRequest) IsEmpty() bool {
	return r.Status == nil && r.Type == nil && len(r.Payload) == 0 && len(r.Result) == 0
}

// CallbackRequest is the worker's report on a dispatched job.
type CallbackRequest struct {
	JobID         string          `json:"jobId"`
	Status        JobStatus       `json:"status"`
	Result        json.RawMessage `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
	CallbackToken string          `json:"callbackToken,omitempty"`
}

// JobListOptions filters job listings.
type JobListOptions struct {
	OrganizationID string
	Status         *JobStatus
	Limit          int
	Offset         int
}

// IsNullJSON reports whether raw is absent or the JSON literal null.
func IsNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

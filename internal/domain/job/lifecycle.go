// Package job holds the pure job state machine: how worker reports,
// administrative updates and internal failures change a job record.
package job

import (
	"encoding/json"
	"time"

	"github.com/target/console-api/internal/domain/model"
	apperrors "github.com/target/console-api/internal/errors"
)

// Report is a worker's statement about a job's progress.
type Report struct {
	Status model.JobStatus
	Result json.RawMessage
	Error  string
}

// Stamp identifies who changed a job and when.
type Stamp struct {
	By string
	At time.Time
}

// ApplyReport moves j to the reported status. Any transition is accepted so
// that redelivered callbacks converge on the same record. A completed report
// clears the error and replaces the result when it carries one; a failed report
// clears the result and replaces the error when it carries one.
func ApplyReport(j *model.Job, r Report, s Stamp) error {
	if !r.Status.Valid() {
		return apperrors.ValidationField("status", "invalid status: "+string(r.Status))
	}

	j.Status = r.Status
	switch r.Status {
	case model.JobStatusCompleted:
		if len(r.Result) > 0 {
			j.Result = normalizeResult(r.Result)
		}
		j.Error = nil
	case model.JobStatusFailed:
		if r.Error != "" {
			msg := r.Error
			j.Error = &msg
		}
		j.Result = nil
	}
	touch(j, s)
	return nil
}

// MarkFailed records an internal failure such as a transform or dispatch error.
func MarkFailed(j *model.Job, reason string, s Stamp) {
	j.Status = model.JobStatusFailed
	j.Error = &reason
	j.Result = nil
	touch(j, s)
}

// ApplyUpdate applies an administrative partial update. The job type and
// organization are fixed at creation; a type field equal to the current type
// is tolerated. A result is only kept or set while the job is completed and an
// error only while it is failed.
func ApplyUpdate(j *model.Job, req model.UpdateJobRequest, s Stamp) error {
	if req.Type != nil && *req.Type != j.Type {
		return apperrors.ValidationField("type", "job type cannot be changed")
	}
	if req.Status != nil && !req.Status.Valid() {
		return apperrors.ValidationField("status", "invalid status: "+string(*req.Status))
	}
	status := j.Status
	if req.Status != nil {
		status = *req.Status
	}
	if len(req.Result) > 0 && status != model.JobStatusCompleted {
		return apperrors.ValidationField("result", "result can only be set on a completed job")
	}

	if len(req.Payload) > 0 {
		j.Payload = req.Payload
	}
	j.Status = status
	if status != model.JobStatusCompleted {
		j.Result = nil
	}
	if status != model.JobStatusFailed {
		j.Error = nil
	}
	if len(req.Result) > 0 {
		j.Result = normalizeResult(req.Result)
	}
	touch(j, s)
	return nil
}

// IsRegression reports whether a job that already reached a terminal status is
// being moved to a different status.
func IsRegression(from, to model.JobStatus) bool {
	return from.IsTerminal() && from != to
}

func touch(j *model.Job, s Stamp) {
	j.UpdatedAt = s.At
	if s.By != "" {
		j.UpdatedBy = s.By
	}
}

func normalizeResult(raw json.RawMessage) json.RawMessage {
	if model.IsNullJSON(raw) {
		return nil
	}
	return raw
}

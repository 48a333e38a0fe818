package testutil

import (
	"encoding/json"
	"time"

	"github.com/target/console-api/internal/domain/model"
)

// JobBuilder builds model.Job fixtures.
type JobBuilder struct {
	job model.Job
}

// NewJob starts a pending job fixture in org-a.
func NewJob() *JobBuilder {
	now := TestTime()
	return &JobBuilder{job: model.Job{
		ID:             "4f9d8c8e-8a2e-4d55-9c1b-9c0f5d1a7a10",
		Type:           "noop",
		OrganizationID: "org-a",
		Status:         model.JobStatusPending,
		Payload:        json.RawMessage(`{}`),
		CreatedAt:      now,
		UpdatedAt:      now,
		CreatedBy:      "user@example.com",
		UpdatedBy:      "user@example.com",
	}}
}

// WithID sets the job id.
func (b *JobBuilder) WithID(id string) *JobBuilder {
	b.job.ID = id
	return b
}

// WithType sets the job type.
func (b *JobBuilder) WithType(t model.JobType) *JobBuilder {
	b.job.Type = t
	return b
}

// WithOrg sets the organization.
func (b *JobBuilder) WithOrg(org string) *JobBuilder {
	b.job.OrganizationID = org
	return b
}

// WithStatus sets the status.
func (b *JobBuilder) WithStatus(s model.JobStatus) *JobBuilder {
	b.job.Status = s
	return b
}

// WithPayload sets the payload from a JSON string.
func (b *JobBuilder) WithPayload(payload string) *JobBuilder {
	b.job.Payload = json.RawMessage(payload)
	return b
}

// WithUpdatedAt sets the last update time.
func (b *JobBuilder) WithUpdatedAt(t time.Time) *JobBuilder {
	b.job.UpdatedAt = t
	return b
}

// Build returns a copy of the fixture.
func (b *JobBuilder) Build() *model.Job {
	j := b.job
	return &j
}

// Package metrics defines the job lifecycle metrics emitted to StatsD.
package metrics

import (
	"time"

	obserrors "github.com/target/console-api/internal/observability/errors"
	"github.com/target/console-api/internal/observability/statsd"
)

// Transition names the lifecycle step being measured.
type Transition string

const (
	TransitionCreated    Transition = "created"
	TransitionDispatched Transition = "dispatched"
	TransitionCallback   Transition = "callback"
	TransitionUpdated    Transition = "updated"
	TransitionReaped     Transition = "reaped"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// JobMetric describes one lifecycle event.
type JobMetric struct {
	JobType    string
	Transition Transition
	// Status is the job status after the transition, when known.
	Status   string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitJobTransition counts the transition and, when a duration is set,
// records its timing. A nil sink is ignored.
func EmitJobTransition(sink statsd.Sink, m JobMetric) {
	if sink == nil {
		return
	}
	if m.Result == "" {
		m.Result = ResultSuccess
		if m.Err != nil {
			m.Result = ResultError
		}
	}

	tags := map[string]string{
		"job_type":   m.JobType,
		"transition": string(m.Transition),
		"result":     m.Result,
	}
	if m.Status != "" {
		tags["status"] = m.Status
	}
	if m.Err != nil {
		tags["error_class"] = obserrors.Classify(m.Err)
	}

	sink.Count("job.transition", 1, tags)
	if m.Duration > 0 {
		sink.Timing("job.duration", m.Duration, tags)
	}
}

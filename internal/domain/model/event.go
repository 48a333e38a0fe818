package model

// WildcardScope subscribes a connection to every organization's events.
const WildcardScope = "*"

// EventTypeJobUpdate is the only event type published to viewers.
const EventTypeJobUpdate = "job_update"

// MessageTypeSubscribe is the client message that sets a connection's scope.
const MessageTypeSubscribe = "subscribe"

// JobEvent is the frame delivered to subscribed viewers.
type JobEvent struct {
	Type string `json:"type"`
	Job  Job    `json:"job"`
}

// NewJobUpdateEvent wraps a job snapshot in a job_update event.
func NewJobUpdateEvent(job Job) JobEvent {
	return JobEvent{Type: EventTypeJobUpdate, Job: job}
}

// SubscribeMessage is sent by a viewer to choose its scope.
type SubscribeMessage struct {
	Type           string `json:"type"`
	OrganizationID string `json:"organizationId,omitempty"`
	IsAdmin        bool   `json:"isAdmin,omitempty"`
}

// RelayMessage carries a broadcast between replicas.
type RelayMessage struct {
	Origin         string   `json:"origin"`
	OrganizationID string   `json:"organization_id"`
	Event          JobEvent `json:"event"`
}

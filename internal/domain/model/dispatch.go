package model

import "encoding/json"

// DispatchEnvelope is the message handed to the worker tier. Workers report
// back by POSTing a CallbackRequest to CallbackURL, echoing CallbackToken when
// one is present.
type DispatchEnvelope struct {
	JobID         string          `json:"jobId"`
	JobType       JobType         `json:"jobType"`
	Payload       json.RawMessage `json:"payload"`
	CallbackURL   string          `json:"callbackUrl"`
	CallbackToken string          `json:"callbackToken,omitempty"`
}

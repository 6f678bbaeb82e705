// Package model defines the request and response payloads used by the API.
// It keeps transport-level types in one place for reuse.
package model

import "time"

// JobRequest describes a simulated operation to run.
type JobRequest struct {
	Name    string `json:"name,omitempty"`
	DelayMS int64  `json:"delay_ms,omitempty"` // 0 uses the configured default
	Fail    bool   `json:"fail,omitempty"`
}

// OperationView is the externally visible state of a tracked operation.
type OperationView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name,omitempty"`
	Status     string     `json:"status"` // "running" | "succeeded" | "failed" | "canceled"
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// LoadingResponse reports the aggregated loading state.
type LoadingResponse struct {
	Loading     bool      `json:"loading"`
	Since       time.Time `json:"since"`
	Transitions int64     `json:"transitions"`
}

// LoadingEvent is pushed to stream clients on every loading change.
type LoadingEvent struct {
	Loading bool `json:"loading"`
}

// BatchRequest runs several jobs concurrently; the first failure cancels the rest.
type BatchRequest struct {
	Steps []JobRequest `json:"steps"`
}

// BatchResponse is the output payload of a batch run.
type BatchResponse struct {
	Status string        `json:"status"` // "ok" | "error"
	Steps  []StepResult  `json:"steps,omitempty"`
	Error  *ErrorPayload `json:"error,omitempty"`
}

// StepResult captures the outcome of one batch step.
type StepResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"` // "ok" | "error" | "canceled"
	DurationMS int64  `json:"duration_ms"`
	Detail     string `json:"detail,omitempty"` // error kind for failed steps
}

// ErrorPayload describes an error response.
type ErrorPayload struct {
	Kind    string `json:"kind"`              // "not_found", "timeout", ...
	Message string `json:"message,omitempty"` // optional, human-readable error message
}

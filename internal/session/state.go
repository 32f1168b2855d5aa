package session

import (
	"people-search/internal/metrics"
	"people-search/internal/search"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInFlight
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseInFlight:
		return "IN_FLIGHT"
	case PhaseSucceeded:
		return "SUCCEEDED"
	case PhaseFailed:
		return "FAILED"
	default:
		return "IDLE"
	}
}

// State is a snapshot of the current submission.
type State struct {
	ID              string                  `json:"id,omitempty"`
	FileName        string                  `json:"file_name,omitempty"`
	AttemptsMade    int                     `json:"attempts_made"`
	MaxAttempts     int                     `json:"max_attempts"`
	ProgressPercent int                     `json:"progress_percent"`
	Phase           Phase                   `json:"phase"`
	Error           string                  `json:"error,omitempty"`
	Payload         *search.ResponsePayload `json:"payload,omitempty"`
}

type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureTimeout   FailureKind = "timeout"
	FailureHTTP      FailureKind = "http"
	FailureNetwork   FailureKind = "network"
	FailureCancelled FailureKind = "cancelled"
)

// Result is published once per finished submission. Superseded submissions
// publish nothing.
type Result struct {
	SubmissionID string                     `json:"submission_id"`
	FileName     string                     `json:"file_name"`
	Payload      *search.ResponsePayload    `json:"payload,omitempty"`
	Error        string                     `json:"error,omitempty"`
	Kind         FailureKind                `json:"kind,omitempty"`
	Metrics      *metrics.SubmissionMetrics `json:"metrics,omitempty"`
}

func (r Result) Succeeded() bool { return r.Error == "" }

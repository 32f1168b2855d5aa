package metrics

import "time"

type AttemptMetrics struct {
	Attempt    int       `json:"attempt"`
	Outcome    string    `json:"outcome"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	DurationMs int64     `json:"duration_ms"`
	TimedOut   bool      `json:"timed_out,omitempty"`
	BackoffMs  int64     `json:"backoff_ms,omitempty"`
	Err        string    `json:"err,omitempty"`
}

type SubmissionMetrics struct {
	SubmissionID string           `json:"submission_id"`
	FileName     string           `json:"file_name"`
	Bytes        int              `json:"bytes"`
	Start        time.Time        `json:"start"`
	End          time.Time        `json:"end"`
	DurationMs   int64            `json:"duration_ms"`
	Succeeded    bool             `json:"succeeded"`
	Attempts     []AttemptMetrics `json:"attempts"`
}

// Compute derived fields for an attempt.
func (a *AttemptMetrics) Finalize() {
	a.DurationMs = a.End.Sub(a.Start).Milliseconds()
}

func (s *SubmissionMetrics) Finalize() {
	s.DurationMs = s.End.Sub(s.Start).Milliseconds()
}

// TotalBackoff is the time spent waiting between attempts.
func (s *SubmissionMetrics) TotalBackoff() time.Duration {
	var total time.Duration
	for _, a := range s.Attempts {
		total += time.Duration(a.BackoffMs) * time.Millisecond
	}
	return total
}

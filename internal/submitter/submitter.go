// Package submitter posts a CSV upload to the backend, retrying transient
// failures with a linear backoff. Every attempt runs under its own deadline
// which aborts the transport when it fires.
package submitter

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"people-search/internal/deadline"
	"people-search/internal/search"
)

const (
	DefaultMaxAttempts    = 3
	DefaultAttemptTimeout = 30 * time.Second
	DefaultBackoffStep    = time.Second

	timeoutMessage = "Request timed out. Please check your internet connection and try again."
)

var errEmptyResponse = errors.New("empty upload response")

type Uploader interface {
	Upload(ctx context.Context, req search.UploadRequest) (*search.ResponsePayload, error)
}

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRetryable
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// AttemptOutcome describes one finished attempt. Backoff is the wait before
// the next attempt and is only set for retryable outcomes.
type AttemptOutcome struct {
	Attempt  int
	Kind     OutcomeKind
	Payload  *search.ResponsePayload
	Err      error
	TimedOut bool
	Start    time.Time
	End      time.Time
	Backoff  time.Duration
}

type Observer func(AttemptOutcome)

// FatalError is returned once the final attempt has failed.
type FatalError struct {
	Attempts int
	TimedOut bool
	Err      error
}

func (e *FatalError) Error() string {
	if e.TimedOut {
		return timeoutMessage
	}
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error { return e.Err }

type Submitter struct {
	client         Uploader
	clock          clock.WithDelayedExecution
	maxAttempts    int
	attemptTimeout time.Duration
	backoffStep    time.Duration
	newTimer       func() backoff.Timer
}

type Option func(*Submitter)

func WithClock(c clock.WithDelayedExecution) Option {
	return func(s *Submitter) { s.clock = c }
}

func WithMaxAttempts(n int) Option {
	return func(s *Submitter) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithAttemptTimeout(d time.Duration) Option {
	return func(s *Submitter) {
		if d > 0 {
			s.attemptTimeout = d
		}
	}
}

func WithBackoffStep(d time.Duration) Option {
	return func(s *Submitter) {
		if d >= 0 {
			s.backoffStep = d
		}
	}
}

// WithTimer overrides the timer used for the waits between attempts. By
// default the waits run on the submitter's clock.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(s *Submitter) { s.newTimer = newTimer }
}

func New(client Uploader, opts ...Option) *Submitter {
	s := &Submitter{
		client:         client,
		clock:          clock.RealClock{},
		maxAttempts:    DefaultMaxAttempts,
		attemptTimeout: DefaultAttemptTimeout,
		backoffStep:    DefaultBackoffStep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Submitter) MaxAttempts() int { return s.maxAttempts }

// Submit uploads req, making at most MaxAttempts transport calls. A success
// returns at once. When the last attempt fails the error is a *FatalError.
// Cancelling ctx stops the loop and returns the context error instead.
func (s *Submitter) Submit(ctx context.Context, req search.UploadRequest, observe Observer) (*search.ResponsePayload, error) {
	log := zap.S().Named("submitter")
	if observe == nil {
		observe = func(AttemptOutcome) {}
	}

	var (
		attempt int
		payload *search.ResponsePayload
		pending AttemptOutcome
	)

	operation := func() error {
		attempt++
		out := s.attempt(ctx, req, attempt)

		switch {
		case out.Err == nil:
			out.Kind = OutcomeSuccess
			payload = out.Payload
			observe(out)
			log.Infow("upload succeeded", "attempt", attempt, "file", req.FileName(), "found", payload.Found)
			return nil
		case ctx.Err() != nil:
			log.Infow("upload cancelled", "attempt", attempt, "file", req.FileName())
			return backoff.Permanent(ctx.Err())
		case attempt >= s.maxAttempts:
			out.Kind = OutcomeFatal
			observe(out)
			log.Errorw("upload failed", "attempt", attempt, "timed_out", out.TimedOut, "error", out.Err)
			return backoff.Permanent(&FatalError{Attempts: attempt, TimedOut: out.TimedOut, Err: out.Err})
		default:
			out.Kind = OutcomeRetryable
			pending = out
			return out.Err
		}
	}

	notify := func(err error, next time.Duration) {
		pending.Backoff = next
		observe(pending)
		log.Warnw("upload attempt failed, retrying",
			"attempt", pending.Attempt, "max_attempts", s.maxAttempts, "backoff", next,
			"timed_out", pending.TimedOut, "error", err)
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{step: s.backoffStep}, uint64(s.maxAttempts-1)),
		ctx,
	)

	timer := s.newTimer
	if timer == nil {
		timer = func() backoff.Timer { return &clockTimer{clock: s.clock} }
	}

	if err := backoff.RetryNotifyWithTimer(operation, b, notify, timer()); err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *Submitter) attempt(ctx context.Context, req search.UploadRequest, n int) AttemptOutcome {
	out := AttemptOutcome{Attempt: n, Start: s.clock.Now()}

	attemptCtx, cancel := deadline.WithTimeout(ctx, s.clock, s.attemptTimeout)
	defer cancel()

	res, err := s.client.Upload(attemptCtx, req)
	if err == nil && res == nil {
		err = errEmptyResponse
	}
	out.End = s.clock.Now()
	out.Payload = res
	out.Err = err
	out.TimedOut = err != nil && deadline.Expired(attemptCtx)
	return out
}

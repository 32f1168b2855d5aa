// Package session runs one search submission at a time. A new submission
// supersedes the one in flight; events from a superseded submission are
// dropped.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"people-search/internal/backend"
	"people-search/internal/metrics"
	"people-search/internal/notify"
	"people-search/internal/progress"
	"people-search/internal/search"
	"people-search/internal/submitter"
)

const CancelledMessage = "Submission cancelled"

var (
	ErrNothingRunning = errors.New("no search is currently running")
	ErrClosed         = errors.New("session closed")

	errSuperseded = errors.New("superseded by a newer submission")
	errCancelled  = errors.New(CancelledMessage)
)

type Submitter interface {
	Submit(ctx context.Context, req search.UploadRequest, observe submitter.Observer) (*search.ResponsePayload, error)
	MaxAttempts() int
}

type Estimator interface {
	Start(report func(int)) *progress.Handle
	Stop(h *progress.Handle, final int)
}

type Session struct {
	submitter Submitter
	estimator Estimator
	clock     clock.PassiveClock
	updates   *notify.Broadcaster[State]
	results   chan Result
	closing   chan struct{}
	wg        sync.WaitGroup

	// flowMu serializes Submit, Cancel and Close. It is never taken by the
	// submission goroutines.
	flowMu sync.Mutex

	lock   sync.Mutex
	state  State
	gen    uint64
	cancel context.CancelCauseFunc
	closed bool
}

type Option func(*Session)

func WithClock(c clock.PassiveClock) Option {
	return func(s *Session) { s.clock = c }
}

func New(sub Submitter, est Estimator, opts ...Option) *Session {
	s := &Session{
		submitter: sub,
		estimator: est,
		clock:     clock.RealClock{},
		updates:   notify.NewBroadcaster[State](0),
		results:   make(chan Result, 16),
		closing:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

func (s *Session) Subscribe() (<-chan State, func()) {
	return s.updates.Subscribe()
}

// Results yields one Result per submission that ran to completion or was
// cancelled. The channel is closed by Close.
func (s *Session) Results() <-chan Result {
	return s.results
}

// InFlight reports whether a submission is running.
func (s *Session) InFlight() bool {
	return s.State().Phase == PhaseInFlight
}

// Submit resets the submission state and uploads req in the background. A
// submission already in flight is cancelled and its events are ignored from
// here on. The returned ID identifies the new submission.
func (s *Session) Submit(ctx context.Context, req search.UploadRequest) (string, error) {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()

	id := uuid.New().String()[:8]

	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return "", ErrClosed
	}
	prevCancel := s.cancel
	s.gen++
	gen := s.gen
	runCtx, cancel := context.WithCancelCause(ctx)
	s.cancel = cancel
	s.setStateLocked(State{
		ID:          id,
		FileName:    req.FileName(),
		MaxAttempts: s.submitter.MaxAttempts(),
		Phase:       PhaseInFlight,
	})
	s.lock.Unlock()

	if prevCancel != nil {
		zap.S().Named("session").Infow("superseding in-flight submission", "submission", id)
		prevCancel(errSuperseded)
	}

	// Start halts the previous estimate synchronously. Its report callback
	// takes s.lock, so s.lock must not be held here.
	h := s.estimator.Start(func(p int) {
		s.update(gen, func(st *State) { st.ProgressPercent = p })
	})

	s.wg.Add(1)
	go s.run(runCtx, gen, id, req, h)

	zap.S().Named("session").Infow("submission started", "submission", id, "file", req.FileName(), "bytes", req.Size())
	return id, nil
}

// Cancel stops the submission in flight. It finishes as failed with
// "Submission cancelled".
func (s *Session) Cancel() (string, error) {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()

	s.lock.Lock()
	defer s.lock.Unlock()
	if s.cancel == nil || s.state.Phase != PhaseInFlight {
		return "", ErrNothingRunning
	}
	s.cancel(errCancelled)
	return s.state.ID, nil
}

// Close cancels any submission and waits for background work to finish.
func (s *Session) Close() {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()

	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel(ErrClosed)
	}
	s.lock.Unlock()

	close(s.closing)
	s.wg.Wait()
	s.updates.Close()
	close(s.results)
}

func (s *Session) run(ctx context.Context, gen uint64, id string, req search.UploadRequest, h *progress.Handle) {
	defer s.wg.Done()
	log := zap.S().Named("session")

	mm := &metrics.SubmissionMetrics{
		SubmissionID: id,
		FileName:     req.FileName(),
		Bytes:        req.Size(),
		Start:        s.clock.Now(),
	}
	observe := func(o submitter.AttemptOutcome) {
		am := metrics.AttemptMetrics{
			Attempt:   o.Attempt,
			Outcome:   o.Kind.String(),
			Start:     o.Start,
			End:       o.End,
			TimedOut:  o.TimedOut,
			BackoffMs: o.Backoff.Milliseconds(),
		}
		if o.Err != nil {
			am.Err = o.Err.Error()
		}
		am.Finalize()
		mm.Attempts = append(mm.Attempts, am)
		s.update(gen, func(st *State) { st.AttemptsMade = o.Attempt })
	}

	payload, err := s.submitter.Submit(ctx, req, observe)

	mm.End = s.clock.Now()
	mm.Succeeded = err == nil
	mm.Finalize()

	final := h.Value()
	if err == nil {
		final = 100
	}
	s.estimator.Stop(h, final)

	res := Result{SubmissionID: id, FileName: req.FileName(), Payload: payload, Metrics: mm}
	if err != nil {
		res.Kind, res.Error = classify(ctx, err)
	}

	s.lock.Lock()
	if gen != s.gen {
		s.lock.Unlock()
		log.Debugw("dropping result of superseded submission", "submission", id)
		return
	}
	s.cancel = nil
	st := s.state
	st.Payload = payload
	st.Error = res.Error
	if err == nil {
		st.Phase = PhaseSucceeded
	} else {
		st.Phase = PhaseFailed
	}
	s.setStateLocked(st)
	s.lock.Unlock()

	if err != nil {
		log.Warnw("submission failed", "submission", id, "kind", res.Kind, "error", res.Error)
	} else {
		log.Infow("submission finished", "submission", id, "found", payload.Found, "total", payload.TotalProcessed)
	}

	select {
	case s.results <- res:
	case <-s.closing:
	}
}

// update applies fn to the state if gen is still the current submission.
func (s *Session) update(gen uint64, fn func(*State)) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if gen != s.gen {
		return
	}
	st := s.state
	fn(&st)
	s.setStateLocked(st)
}

func (s *Session) setStateLocked(st State) {
	s.state = st
	s.updates.Publish(st)
}

// classify maps a submitter error to a failure kind. A terminal failure keeps
// its own kind even if the flow was cancelled after it was decided.
func classify(ctx context.Context, err error) (FailureKind, string) {
	var fatal *submitter.FatalError
	isFatal := errors.As(err, &fatal)
	if !isFatal && ctx.Err() != nil {
		return FailureCancelled, CancelledMessage
	}
	if isFatal && fatal.TimedOut {
		return FailureTimeout, err.Error()
	}
	var httpErr *backend.HTTPError
	if errors.As(err, &httpErr) {
		return FailureHTTP, err.Error()
	}
	return FailureNetwork, err.Error()
}

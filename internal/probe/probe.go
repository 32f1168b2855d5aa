package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"people-search/internal/backend"
	"people-search/internal/deadline"
	"people-search/internal/notify"
	"people-search/internal/search"
)

const DefaultTimeout = 10 * time.Second

var errEmptyResponse = errors.New("empty health response")

type Status int

const (
	StatusUnknown Status = iota
	StatusTesting
	StatusConnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusTesting:
		return "testing"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// AllowsSubmit is the gate for starting a search: only a failed probe blocks.
func (s Status) AllowsSubmit() bool {
	return s != StatusError
}

type HealthClient interface {
	Health(ctx context.Context) (*search.HealthInfo, error)
}

// Result is the outcome of one probe. Superseded is set when a newer probe
// started before this one finished; such a result never touches Status.
type Result struct {
	Status     Status
	Info       *search.HealthInfo
	Message    string
	TimedOut   bool
	Superseded bool
	Err        error
}

type Prober struct {
	client  HealthClient
	clock   clock.WithDelayedExecution
	timeout time.Duration
	updates *notify.Broadcaster[Status]

	lock   sync.Mutex
	status Status
	gen    uint64
	cancel context.CancelFunc
}

type Option func(*Prober)

func WithClock(c clock.WithDelayedExecution) Option {
	return func(p *Prober) { p.clock = c }
}

func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewProber(client HealthClient, opts ...Option) *Prober {
	p := &Prober{
		client:  client,
		clock:   clock.RealClock{},
		timeout: DefaultTimeout,
		updates: notify.NewBroadcaster[Status](0),
		status:  StatusUnknown,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Prober) Status() Status {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.status
}

// Subscribe streams every status transition.
func (p *Prober) Subscribe() (<-chan Status, func()) {
	return p.updates.Subscribe()
}

// Probe checks the backend health endpoint. Status is Testing before the
// request goes out. Any probe still outstanding is cancelled.
func (p *Prober) Probe(ctx context.Context) Result {
	p.lock.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	gen := p.gen
	runCtx, cancelRun := context.WithCancel(ctx)
	p.cancel = cancelRun
	p.setStatusLocked(StatusTesting)
	p.lock.Unlock()
	defer cancelRun()

	attemptCtx, cancel := deadline.WithTimeout(runCtx, p.clock, p.timeout)
	defer cancel()

	info, err := p.client.Health(attemptCtx)
	if err == nil && info == nil {
		err = errEmptyResponse
	}
	res := classify(attemptCtx, info, err)

	p.lock.Lock()
	defer p.lock.Unlock()
	if gen != p.gen {
		res.Superseded = true
		zap.S().Named("probe").Debugw("probe superseded", "generation", gen)
		return res
	}
	p.cancel = nil
	p.setStatusLocked(res.Status)

	if res.Status == StatusConnected {
		zap.S().Named("probe").Infow("backend reachable", "status", info.Status, "version", info.Version)
	} else {
		zap.S().Named("probe").Warnw("backend unreachable", "timed_out", res.TimedOut, "error", err)
	}
	return res
}

func (p *Prober) setStatusLocked(s Status) {
	p.status = s
	p.updates.Publish(s)
}

func classify(ctx context.Context, info *search.HealthInfo, err error) Result {
	if err == nil {
		return Result{
			Status:  StatusConnected,
			Info:    info,
			Message: fmt.Sprintf("Backend connection successful! Status: %s, Version: %s", info.Status, info.Version),
		}
	}

	res := Result{Status: StatusError, Err: err}
	var httpErr *backend.HTTPError
	switch {
	case deadline.Expired(ctx):
		res.TimedOut = true
		res.Message = "Connection test timed out. Please check your internet connection."
	case errors.As(err, &httpErr):
		res.Message = fmt.Sprintf("Backend connection failed: HTTP %d", httpErr.StatusCode)
	default:
		res.Message = fmt.Sprintf("Backend connection error: %v", err)
	}
	return res
}

// Package progress fakes upload progress: a percentage that climbs on a
// ticker towards a ceiling until the caller stops it with the real outcome.
package progress

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

const (
	DefaultStep     = 10
	DefaultInterval = 2 * time.Second
	DefaultCeiling  = 90
)

type Estimator struct {
	clock    clock.WithTicker
	step     int
	interval time.Duration
	ceiling  int

	lock    sync.Mutex
	current *Handle
}

type Option func(*Estimator)

func WithStep(n int) Option {
	return func(e *Estimator) {
		if n > 0 {
			e.step = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(e *Estimator) {
		if d > 0 {
			e.interval = d
		}
	}
}

func WithCeiling(n int) Option {
	return func(e *Estimator) {
		if n >= 0 && n <= 100 {
			e.ceiling = n
		}
	}
}

func New(clk clock.WithTicker, opts ...Option) *Estimator {
	if clk == nil {
		clk = clock.RealClock{}
	}
	e := &Estimator{
		clock:    clk,
		step:     DefaultStep,
		interval: DefaultInterval,
		ceiling:  DefaultCeiling,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle is one running estimate.
type Handle struct {
	report func(int)
	ticker clock.Ticker
	done   chan struct{}
	exited chan struct{}

	mu      sync.Mutex
	value   int
	stopped bool
}

func (h *Handle) Value() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value
}

// Start reports 0 and begins ticking. Any estimate still running is stopped
// first without a final report.
func (e *Estimator) Start(report func(int)) *Handle {
	if report == nil {
		report = func(int) {}
	}

	e.lock.Lock()
	prev := e.current
	h := &Handle{
		report: report,
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	e.current = h
	e.lock.Unlock()

	if prev != nil {
		prev.halt()
	}

	report(0)
	h.ticker = e.clock.NewTicker(e.interval)
	go e.run(h)
	return h
}

// Stop halts h and then reports final, clamped to [0, 100]. The tick
// goroutine has exited by the time final is reported. Only the first Stop of
// a handle reports anything.
func (e *Estimator) Stop(h *Handle, final int) {
	if h == nil {
		return
	}

	e.lock.Lock()
	if e.current == h {
		e.current = nil
	}
	e.lock.Unlock()

	if !h.halt() {
		return
	}

	final = max(0, min(100, final))
	h.mu.Lock()
	h.value = final
	h.mu.Unlock()
	h.report(final)
}

func (e *Estimator) run(h *Handle) {
	defer close(h.exited)
	defer h.ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-h.ticker.C():
		}

		h.mu.Lock()
		if h.stopped {
			h.mu.Unlock()
			return
		}
		next := min(h.value+e.step, e.ceiling)
		changed := next != h.value
		h.value = next
		h.mu.Unlock()

		if changed {
			h.report(next)
		}
		if next >= e.ceiling {
			return
		}
	}
}

// halt stops the ticker and waits for the goroutine. It returns false when h
// was already halted.
func (h *Handle) halt() bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return false
	}
	h.stopped = true
	close(h.done)
	h.mu.Unlock()

	<-h.exited
	return true
}

package submitter

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"k8s.io/utils/clock"
)

// linearBackOff waits step*n before retry n: 1s, 2s, 3s with the default step.
type linearBackOff struct {
	step time.Duration
	n    int
}

var _ backoff.BackOff = (*linearBackOff)(nil)

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return b.step * time.Duration(b.n)
}

func (b *linearBackOff) Reset() { b.n = 0 }

// clockTimer runs backoff waits on a k8s clock so tests can step through them.
type clockTimer struct {
	clock clock.Clock
	timer clock.Timer
}

var _ backoff.Timer = (*clockTimer)(nil)

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clock.NewTimer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.C()
}

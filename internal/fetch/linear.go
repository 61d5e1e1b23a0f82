package fetch

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// linear is a backoff.BackOff yielding base, 2×base, ... and stopping once
// attempts calls have been made in total.
type linear struct {
	base     time.Duration
	attempts int
	n        int
}

func newLinear(base time.Duration, attempts int) *linear {
	return &linear{base: base, attempts: attempts}
}

func (l *linear) NextBackOff() time.Duration {
	l.n++
	if l.n >= l.attempts {
		return backoff.Stop
	}
	return time.Duration(l.n) * l.base
}

func (l *linear) Reset() { l.n = 0 }

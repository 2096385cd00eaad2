package delivery

import (
	"math/rand/v2"
	"time"
)

// backoff returns the delay before the given attempt (1-based):
// base·2^(attempt-1) with ±20% jitter, capped at max. Jitter keeps a
// burst of failures against one host from retrying in lockstep.
func backoff(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}
	jitter := 0.8 + 0.4*rand.Float64()
	d = time.Duration(float64(d) * jitter)
	if d > max {
		d = max
	}
	return d
}

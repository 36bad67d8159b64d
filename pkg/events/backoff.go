package events

import (
	"math"
	"math/rand"
	"time"
)

// backoff returns the delay before the next sweep tick after a run of
// consecutive tick failures: 1s * 2^(failures-1), capped.
func backoff(failures int, maxBackoff time.Duration) time.Duration {
	if failures <= 0 {
		return 0
	}
	seconds := math.Pow(2, float64(failures-1))
	d := time.Duration(seconds * float64(time.Second))
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func jitter(r *rand.Rand, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 || r == nil {
		return 0
	}
	// [0, maxJitter]
	return time.Duration(r.Int63n(int64(maxJitter) + 1)) //nolint:gosec
}

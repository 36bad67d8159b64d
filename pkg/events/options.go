package events

import (
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

type SweeperOptions struct {
	// Interval between sweep ticks, independent of request traffic.
	Interval time.Duration
	// BatchSize caps how many pending records one tick claims.
	BatchSize int
	// SingleActive makes the sweeper hold the store's sweep lease (when
	// the store supports one), so exactly one worker sweeps at a time
	// across processes. Claims stay safe without it.
	SingleActive bool
	// DefaultMaxRetries is stamped on records enqueued without an
	// explicit budget.
	DefaultMaxRetries int
	// LockTTL bounds how long a processing claim may go unresolved
	// before the sweep treats it as abandoned and reclaims the record.
	// Must exceed DispatchTimeout or an in-flight record can be
	// delivered twice.
	LockTTL time.Duration
	// RetryBackoff computes the delay before a failed record becomes
	// eligible for requeue, given the attempt number about to be
	// retried (1 for the first retry).
	RetryBackoff func(attempt int) time.Duration
	// MaxBackoff caps the delay inserted after consecutive tick
	// failures and the default per-record retry delay.
	MaxBackoff time.Duration
	JitterMax  time.Duration

	LastErrorMaxLen int

	DispatchTimeout time.Duration

	// ObserveDepthEvery throttles the status-depth gauge refresh.
	ObserveDepthEvery time.Duration

	Logger *logrus.Entry

	Rand *rand.Rand
}

func (o *SweeperOptions) setDefaults() {
	if o.Interval == 0 {
		o.Interval = 1 * time.Second
	}
	if o.BatchSize == 0 {
		o.BatchSize = 50
	}
	if o.DefaultMaxRetries == 0 {
		o.DefaultMaxRetries = 3
	}
	if o.MaxBackoff == 0 {
		o.MaxBackoff = 60 * time.Second
	}
	if o.JitterMax == 0 {
		o.JitterMax = 200 * time.Millisecond
	}
	if o.LastErrorMaxLen == 0 {
		o.LastErrorMaxLen = 2048
	}
	if o.DispatchTimeout == 0 {
		o.DispatchTimeout = 30 * time.Second
	}
	if o.ObserveDepthEvery == 0 {
		o.ObserveDepthEvery = 10 * time.Second
	}
	if o.LockTTL == 0 {
		o.LockTTL = 5 * time.Minute
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	}
	if o.RetryBackoff == nil {
		o.RetryBackoff = func(attempt int) time.Duration {
			return backoff(attempt, o.MaxBackoff) + jitter(o.Rand, o.JitterMax)
		}
	}
}

type CleanerOptions struct {
	Enabled  bool
	Interval time.Duration
	// Retention is how long processed records are kept before the
	// cleanup pass deletes them.
	Retention time.Duration

	Logger *logrus.Entry
}

func (o *CleanerOptions) setDefaults() {
	if o.Interval == 0 {
		o.Interval = 1 * time.Minute
	}
	if o.Retention == 0 {
		o.Retention = 30 * 24 * time.Hour
	}
}

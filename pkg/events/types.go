package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a durable event record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
)

// Mode selects how Publish delivers an event.
type Mode int

const (
	// Sync invokes listeners inline on the publisher's goroutine.
	Sync Mode = iota
	// Durable persists the event in the publisher's transaction and
	// defers delivery to the sweep.
	Durable
)

// Record is a persisted durable event. Transitions are
// pending -> processing -> processed on the happy path,
// processing -> failed when the dispatch plumbing errors, and
// failed -> pending when requeued within the retry budget.
// A processing record whose claim outlives the sweep lock TTL is
// treated as abandoned and reclaimed back to pending.
type Record struct {
	ID            uuid.UUID
	Name          string
	Payload       json.RawMessage
	ActorID       uuid.UUID
	SubjectID     uuid.UUID
	Status        Status
	RetryCount    int
	MaxRetries    int
	CreatedAt     time.Time
	ClaimedAt     *time.Time
	ProcessedAt   *time.Time
	NextAttemptAt *time.Time
	LastError     string
}

// Exhausted reports whether the record has consumed its retry budget.
// An exhausted failed record is terminal: the retry pass never selects
// it again, only an operator can requeue it.
func (r *Record) Exhausted() bool {
	return r.RetryCount >= r.MaxRetries
}

package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxishq/praxis/pkg/composables"
)

const (
	eventColumns = `id, name, payload, actor_id, subject_id, status, retry_count, max_retries, created_at, claimed_at, processed_at, next_attempt_at, last_error`

	// sweepLeaseKey is the advisory lock id shared by all sweep workers
	// against one database.
	sweepLeaseKey = int64(0x5052585F45565453)
)

// PgStore persists durable events in the durable_events table, indexed
// by (status, created_at) and by name.
type PgStore struct {
	pool *pgxpool.Pool

	leaseMu   sync.Mutex
	leaseConn *pgxpool.Conn
}

func NewPgStore(pool *pgxpool.Pool) (*PgStore, error) {
	if pool == nil {
		return nil, invalidConfig("pool is required")
	}
	return &PgStore{pool: pool}, nil
}

// Append joins the transaction carried by ctx when one is present, so
// the event record commits together with the publisher's state change.
func (s *PgStore) Append(ctx context.Context, rec *Record) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		tx = s.pool
	}

	q := `
		INSERT INTO durable_events (id, name, payload, actor_id, subject_id, status, retry_count, max_retries, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := tx.Exec(
		ctx,
		q,
		rec.ID,
		rec.Name,
		rec.Payload,
		rec.ActorID,
		rec.SubjectID,
		rec.Status,
		rec.RetryCount,
		rec.MaxRetries,
		rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("events append: %w", err)
	}
	return nil
}

func (s *PgStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	q := fmt.Sprintf(`SELECT %s FROM durable_events WHERE id = $1`, eventColumns)

	rec, err := scanRecord(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("events get: %w", err)
	}
	return rec, nil
}

func (s *PgStore) ClaimPending(ctx context.Context, limit int) ([]*Record, error) {
	q := fmt.Sprintf(`
		UPDATE durable_events
		   SET status = $1, claimed_at = now()
		 WHERE id IN (
		       SELECT id
		         FROM durable_events
		        WHERE status = $2
		        ORDER BY created_at
		        LIMIT $3
		        FOR UPDATE SKIP LOCKED)
		RETURNING %s`, eventColumns)

	rows, err := s.pool.Query(ctx, q, StatusProcessing, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("events claim: %w", err)
	}
	defer rows.Close()

	var claimed []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("events claim scan: %w", err)
		}
		rec.Status = StatusProcessing
		claimed = append(claimed, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("events claim rows: %w", err)
	}
	return claimed, nil
}

func (s *PgStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	q := `
		UPDATE durable_events
		   SET status = $2, processed_at = now(), last_error = NULL
		 WHERE id = $1 AND status = $3
	`
	if _, err := s.pool.Exec(ctx, q, id, StatusProcessed, StatusProcessing); err != nil {
		return fmt.Errorf("events mark processed: %w", err)
	}
	return nil
}

func (s *PgStore) MarkFailed(ctx context.Context, id uuid.UUID, lastError string, retryAt time.Time) error {
	q := `
		UPDATE durable_events
		   SET status = $2, last_error = $3, next_attempt_at = $4
		 WHERE id = $1 AND status = $5
	`
	if _, err := s.pool.Exec(ctx, q, id, StatusFailed, lastError, retryAt, StatusProcessing); err != nil {
		return fmt.Errorf("events mark failed: %w", err)
	}
	return nil
}

// ReclaimStale returns processing records whose claim predates the
// cutoff to pending. The retry budget is untouched: the reclaimed
// attempt never reported an outcome.
func (s *PgStore) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	q := `
		UPDATE durable_events
		   SET status = $1, claimed_at = NULL
		 WHERE status = $2 AND claimed_at IS NOT NULL AND claimed_at < $3
	`
	tag, err := s.pool.Exec(ctx, q, StatusPending, StatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("events reclaim stale: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PgStore) RequeueFailed(ctx context.Context, limit int) (int64, error) {
	q := `
		UPDATE durable_events
		   SET status = $1, last_error = NULL, next_attempt_at = NULL, retry_count = retry_count + 1
		 WHERE id IN (
		       SELECT id
		         FROM durable_events
		        WHERE status = $2 AND retry_count < max_retries
		          AND (next_attempt_at IS NULL OR next_attempt_at <= now())
		        ORDER BY created_at
		        LIMIT $3
		        FOR UPDATE SKIP LOCKED)
	`
	tag, err := s.pool.Exec(ctx, q, StatusPending, StatusFailed, limit)
	if err != nil {
		return 0, fmt.Errorf("events requeue failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PgStore) Requeue(ctx context.Context, id uuid.UUID) error {
	q := `
		UPDATE durable_events
		   SET status = $2, last_error = NULL, next_attempt_at = NULL, retry_count = retry_count + 1
		 WHERE id = $1 AND status = $3
	`
	tag, err := s.pool.Exec(ctx, q, id, StatusPending, StatusFailed)
	if err != nil {
		return fmt.Errorf("events requeue: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrNotRetryable
	}
	return nil
}

func (s *PgStore) CountsByStatus(ctx context.Context) (map[Status]int64, error) {
	q := `SELECT status, count(*) FROM durable_events GROUP BY status`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("events counts: %w", err)
	}
	defer rows.Close()

	counts := map[Status]int64{}
	for rows.Next() {
		var status Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("events counts scan: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (s *PgStore) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	q := `DELETE FROM durable_events WHERE status = $1 AND processed_at IS NOT NULL AND processed_at < $2`

	tag, err := s.pool.Exec(ctx, q, StatusProcessed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("events delete processed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// AcquireSweepLease takes the session advisory lock on a dedicated
// pooled connection. The connection is held until release so the lock
// survives between sweep ticks.
func (s *PgStore) AcquireSweepLease(ctx context.Context) (bool, error) {
	s.leaseMu.Lock()
	defer s.leaseMu.Unlock()

	if s.leaseConn != nil {
		return true, nil
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("events lease acquire conn: %w", err)
	}

	var held bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, sweepLeaseKey).Scan(&held); err != nil {
		conn.Release()
		return false, fmt.Errorf("events lease lock: %w", err)
	}
	if !held {
		conn.Release()
		return false, nil
	}

	s.leaseConn = conn
	return true, nil
}

func (s *PgStore) ReleaseSweepLease(ctx context.Context) error {
	s.leaseMu.Lock()
	defer s.leaseMu.Unlock()

	if s.leaseConn == nil {
		return nil
	}

	_, err := s.leaseConn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, sweepLeaseKey)
	s.leaseConn.Release()
	s.leaseConn = nil
	if err != nil {
		return fmt.Errorf("events lease unlock: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	rec := &Record{}
	var lastError *string
	if err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Payload,
		&rec.ActorID,
		&rec.SubjectID,
		&rec.Status,
		&rec.RetryCount,
		&rec.MaxRetries,
		&rec.CreatedAt,
		&rec.ClaimedAt,
		&rec.ProcessedAt,
		&rec.NextAttemptAt,
		&lastError,
	); err != nil {
		return nil, err
	}
	if lastError != nil {
		rec.LastError = *lastError
	}
	return rec, nil
}

package store

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/tilt-fermenter/internal/ferment"
	"github.com/sweeney/tilt-fermenter/internal/ring"
)

// Batch is one set of metrics observed together.
type Batch struct {
	ObservedAt time.Time
	Metrics    []ferment.Metric
}

// RetryQueue writes measurement batches through a Gateway and keeps the ones
// that failed for a later attempt. Oldest pending batches are written first.
// Not safe for concurrent use; callers must synchronize.
type RetryQueue struct {
	gw      Gateway
	pending *ring.Buffer[Batch]
}

// NewRetryQueue creates a queue holding at most capacity failed batches.
func NewRetryQueue(gw Gateway, capacity int) *RetryQueue {
	return &RetryQueue{
		gw:      gw,
		pending: ring.New[Batch](capacity),
	}
}

// Write flushes pending batches and then writes b. If anything fails, b is
// kept for retry and the error is returned.
func (q *RetryQueue) Write(ctx context.Context, b Batch) error {
	if len(b.Metrics) == 0 {
		return nil
	}
	if _, err := q.Flush(ctx); err != nil {
		q.push(b)
		return err
	}
	if err := q.gw.WriteData(ctx, b.ObservedAt, b.Metrics); err != nil {
		q.push(b)
		return err
	}
	return nil
}

// Flush retries pending batches in order, stopping at the first failure.
// Returns how many batches were written.
func (q *RetryQueue) Flush(ctx context.Context) (int, error) {
	batches := q.pending.DrainAll()
	for i, b := range batches {
		if err := q.gw.WriteData(ctx, b.ObservedAt, b.Metrics); err != nil {
			for _, rest := range batches[i:] {
				q.push(rest)
			}
			return i, err
		}
	}
	return len(batches), nil
}

// Len returns the number of batches waiting for retry.
func (q *RetryQueue) Len() int {
	return q.pending.Len()
}

func (q *RetryQueue) push(b Batch) {
	if q.pending.Push(b) {
		log.Warn().
			Int("dropped", q.pending.Dropped()).
			Int("pending", q.pending.Len()).
			Msg("store: retry queue full, dropped oldest measurement batch")
	}
}

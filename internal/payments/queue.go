package payments

import (
	"context"
	"sync"

	pkgerrors "github.com/abarbet/shoply-backend/pkg/errors"
	"github.com/google/uuid"
)

// Queue is an unbounded in-process FIFO of payment IDs. Enqueue never
// blocks; Dequeue blocks until an ID is available or the context ends.
// Queued IDs live in memory only and are lost on process exit.
type Queue struct {
	mu     sync.Mutex
	items  []uuid.UUID
	signal chan struct{}
}

// NewQueue builds an empty payment queue.
func NewQueue() *Queue {
	return &Queue{
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a payment ID and wakes one waiting consumer.
func (q *Queue) Enqueue(id uuid.UUID) {
	q.mu.Lock()
	q.items = append(q.items, id)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the oldest payment ID, blocking while the
// queue is empty. When ctx ends first it returns a cancelled-kind error
// wrapping the context error.
func (q *Queue) Dequeue(ctx context.Context) (uuid.UUID, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			id := q.items[0]
			q.items[0] = uuid.Nil // release the slot so the backing array does not pin consumed IDs
			q.items = q.items[1:]
			if len(q.items) > 0 {
				// More work remains; keep the wakeup token for other consumers.
				select {
				case q.signal <- struct{}{}:
				default:
				}
			}
			q.mu.Unlock()
			return id, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeCancelled, ctx.Err(), "queue wait aborted")
		case <-q.signal:
		}
	}
}

// Len reports how many payments are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

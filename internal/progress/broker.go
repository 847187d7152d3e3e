// Package progress fans job progress events out to stream subscribers.
// Every broker remembers the last event per job so a late subscriber starts
// from the current state, and a subscription channel closes right after the
// job's terminal event.
package progress

import (
	"context"
	"sync"

	"mediashrink/internal/domain"
)

// Broker publishes and subscribes to per-job progress events.
type Broker interface {
	Publish(ctx context.Context, ev domain.ProgressEvent) error
	Subscribe(ctx context.Context, jobID string) (*Subscription, error)
	// Forget drops the remembered last event of a job.
	Forget(ctx context.Context, jobID string) error
}

// Subscription delivers events for one job until the terminal event, after
// which C is closed. Close releases it early.
type Subscription struct {
	C <-chan domain.ProgressEvent

	once    sync.Once
	release func()
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}

const subscriberBuffer = 16

// Settled returns a subscription that yields ev once and closes. It serves
// subscribers of jobs that were already terminal when they subscribed.
func Settled(ev domain.ProgressEvent) *Subscription {
	ch := make(chan domain.ProgressEvent, 1)
	ch <- ev
	close(ch)
	return &Subscription{C: ch}
}

package progress

import (
	"context"
	"sync"

	"mediashrink/internal/domain"
	"mediashrink/internal/infra"
)

// Hub is the in-process Broker.
type Hub struct {
	mu          sync.Mutex
	last        map[string]domain.ProgressEvent
	subscribers map[string]map[chan domain.ProgressEvent]struct{}
	logger      *infra.Logger
}

// NewHub returns an empty hub. A nil logger discards output.
func NewHub(logger *infra.Logger) *Hub {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Hub{
		last:        make(map[string]domain.ProgressEvent),
		subscribers: make(map[string]map[chan domain.ProgressEvent]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a subscriber and replays the last known event.
func (h *Hub) Subscribe(_ context.Context, jobID string) (*Subscription, error) {
	ch := make(chan domain.ProgressEvent, subscriberBuffer)
	sub := &Subscription{C: ch}

	h.mu.Lock()
	defer h.mu.Unlock()

	last, known := h.last[jobID]
	if known {
		ch <- last
		if last.Terminal {
			close(ch)
			return sub, nil
		}
	}
	if _, ok := h.subscribers[jobID]; !ok {
		h.subscribers[jobID] = make(map[chan domain.ProgressEvent]struct{})
	}
	h.subscribers[jobID][ch] = struct{}{}
	sub.release = func() { h.unsubscribe(jobID, ch) }
	return sub, nil
}

func (h *Hub) unsubscribe(jobID string, ch chan domain.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	chans, ok := h.subscribers[jobID]
	if !ok {
		return
	}
	if _, ok := chans[ch]; !ok {
		return
	}
	delete(chans, ch)
	close(ch)
	if len(chans) == 0 {
		delete(h.subscribers, jobID)
	}
}

// Publish records ev as the job's last event and delivers it. Slow
// subscribers miss intermediate events but never the terminal one.
func (h *Hub) Publish(_ context.Context, ev domain.ProgressEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.last[ev.JobID]; ok && prev.Terminal {
		return nil
	}
	h.last[ev.JobID] = ev

	chans := h.subscribers[ev.JobID]
	for ch := range chans {
		if ev.Terminal {
			deliverTerminal(ch, ev)
			close(ch)
			continue
		}
		select {
		case ch <- ev:
		default:
			h.logger.Debug().Str("job_id", ev.JobID).Msg("progress: skipping update for slow subscriber")
		}
	}
	if ev.Terminal {
		delete(h.subscribers, ev.JobID)
	}
	return nil
}

// deliverTerminal makes room by discarding the oldest pending event when
// the buffer is full. Only the publisher sends, so one slot is enough.
func deliverTerminal(ch chan domain.ProgressEvent, ev domain.ProgressEvent) {
	select {
	case ch <- ev:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- ev
}

// Forget drops the last event of a job swept by retention.
func (h *Hub) Forget(_ context.Context, jobID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.last, jobID)
	return nil
}

package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mediashrink/internal/domain"
	"mediashrink/internal/infra"
)

// RedisBroker shares progress between API replicas through Redis pub/sub.
// The last event of each job is kept under a key with a TTL so that late
// subscribers on any replica can replay it.
type RedisBroker struct {
	client  *redis.Client
	lastTTL time.Duration
	logger  *infra.Logger
}

// NewRedisBroker wraps an existing client. lastTTL bounds how long the last
// event is remembered and should cover the retention window.
func NewRedisBroker(client *redis.Client, lastTTL time.Duration, logger *infra.Logger) *RedisBroker {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	if lastTTL <= 0 {
		lastTTL = time.Hour
	}
	return &RedisBroker{client: client, lastTTL: lastTTL, logger: logger}
}

func channelKey(jobID string) string { return "progress:" + jobID }
func lastKey(jobID string) string    { return "progress:last:" + jobID }
func doneKey(jobID string) string    { return "progress:done:" + jobID }

// publishScript stores and broadcasts an event unless the job already had
// its terminal event.
var publishScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
if ARGV[3] == '1' then
  redis.call('SET', KEYS[2], '1', 'PX', ARGV[2])
end
redis.call('PUBLISH', KEYS[3], ARGV[1])
return 1
`)

// Publish stores ev as the last event and broadcasts it. Events after the
// terminal one are dropped.
func (b *RedisBroker) Publish(ctx context.Context, ev domain.ProgressEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("progress: marshal event: %w", err)
	}
	terminal := "0"
	if ev.Terminal {
		terminal = "1"
	}
	keys := []string{lastKey(ev.JobID), doneKey(ev.JobID), channelKey(ev.JobID)}
	if err := publishScript.Run(ctx, b.client, keys, payload, b.lastTTL.Milliseconds(), terminal).Err(); err != nil {
		return fmt.Errorf("progress: publish %s: %w", ev.JobID, err)
	}
	return nil
}

// Subscribe listens on the job channel and replays the stored last event.
// The subscription is confirmed before the replay is read, so no event
// published in between is lost.
func (b *RedisBroker) Subscribe(ctx context.Context, jobID string) (*Subscription, error) {
	pubsub := b.client.Subscribe(ctx, channelKey(jobID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("progress: subscribe %s: %w", jobID, err)
	}

	var replay *domain.ProgressEvent
	raw, err := b.client.Get(ctx, lastKey(jobID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		_ = pubsub.Close()
		return nil, fmt.Errorf("progress: read last event %s: %w", jobID, err)
	default:
		var ev domain.ProgressEvent
		if err := json.Unmarshal(raw, &ev); err == nil {
			replay = &ev
		} else {
			b.logger.Warn().Err(err).Str("job_id", jobID).Msg("progress: discarding malformed last event")
		}
	}

	out := make(chan domain.ProgressEvent, subscriberBuffer)
	done := make(chan struct{})
	sub := &Subscription{C: out, release: func() { close(done) }}

	go func() {
		defer close(out)
		defer pubsub.Close()

		if replay != nil {
			out <- *replay
			if replay.Terminal {
				return
			}
		}
		messages := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var ev domain.ProgressEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn().Err(err).Str("job_id", jobID).Msg("progress: discarding malformed event")
					continue
				}
				if ev.Terminal {
					select {
					case out <- ev:
					case <-done:
					}
					return
				}
				select {
				case out <- ev:
				default:
					b.logger.Debug().Str("job_id", jobID).Msg("progress: skipping update for slow subscriber")
				}
			}
		}
	}()
	return sub, nil
}

// Forget deletes the stored last event.
func (b *RedisBroker) Forget(ctx context.Context, jobID string) error {
	if err := b.client.Del(ctx, lastKey(jobID), doneKey(jobID)).Err(); err != nil {
		return fmt.Errorf("progress: forget %s: %w", jobID, err)
	}
	return nil
}

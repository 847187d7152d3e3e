package progress

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"mediashrink/internal/domain"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	return client
}

func TestRedisBrokerReplayAndTerminal(t *testing.T) {
	client := newTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	broker := NewRedisBroker(client, time.Minute, nil)
	jobID := uuid.NewString()
	defer broker.Forget(context.Background(), jobID)

	if err := broker.Publish(ctx, domain.ProgressEvent{JobID: jobID, Percent: 25}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	sub, err := broker.Subscribe(ctx, jobID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if ev, ok := receive(t, sub); !ok || ev.Percent != 25 {
		t.Fatalf("replay = %+v, %v", ev, ok)
	}
	_ = broker.Publish(ctx, domain.ProgressEvent{JobID: jobID, Percent: 60})
	_ = broker.Publish(ctx, domain.ProgressEvent{JobID: jobID, Terminal: true, Phase: domain.PhaseDone, Percent: 100})

	var last domain.ProgressEvent
	for ev := range sub.C {
		last = ev
	}
	if last.TerminalState() != domain.JobStateCompleted {
		t.Fatalf("last event = %+v", last)
	}

	again, err := broker.Subscribe(ctx, jobID)
	if err != nil {
		t.Fatalf("Subscribe after terminal: %v", err)
	}
	defer again.Close()
	if ev, ok := receive(t, again); !ok || !ev.Terminal {
		t.Fatalf("late subscriber got %+v, %v", ev, ok)
	}
}

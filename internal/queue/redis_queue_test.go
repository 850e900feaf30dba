package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T, visibility time.Duration) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisQueue(client, "reports", visibility), mr
}

func TestEnqueueDequeueAck(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, time.Minute)

	payload := map[string]string{"email": "a@example.com"}
	id, err := q.Enqueue(ctx, "generateReport", payload)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if id == "" {
		t.Fatal("expected a job id")
	}

	depth, err := q.ReadyDepth(ctx)
	if err != nil || depth != 1 {
		t.Fatalf("ready depth = %d (err=%v), want 1", depth, err)
	}

	job, err := q.DequeueWithLease(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job == nil {
		t.Fatal("expected a job")
	}
	if job.ID != id || job.Name != "generateReport" || job.Attempts != 0 {
		t.Fatalf("unexpected job: %+v", job)
	}
	var got map[string]string
	if err := json.Unmarshal(job.Payload, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got["email"] != "a@example.com" {
		t.Fatalf("payload round trip broken: %v", got)
	}

	// While leased the job is invisible to other workers.
	if other, _ := q.DequeueWithLease(ctx); other != nil {
		t.Fatalf("leased job delivered twice: %+v", other)
	}

	if err := q.Ack(ctx, job.ID); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if job, _ := q.DequeueWithLease(ctx); job != nil {
		t.Fatalf("acked job redelivered: %+v", job)
	}
}

func TestDequeueEmptyQueue(t *testing.T) {
	q, _ := newTestQueue(t, time.Minute)
	job, err := q.DequeueWithLease(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job != nil {
		t.Fatalf("expected no job, got %+v", job)
	}
}

func TestScheduleRetryAndPromote(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, time.Minute)

	id, err := q.Enqueue(ctx, "generateReport", map[string]string{})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job, err := q.DequeueWithLease(ctx)
	if err != nil || job == nil {
		t.Fatalf("dequeue: job=%v err=%v", job, err)
	}

	runAt := time.Now().Add(-time.Second) // already due
	if err := q.ScheduleRetry(ctx, id, 1, runAt, "boom"); err != nil {
		t.Fatalf("schedule retry: %v", err)
	}
	if job, _ := q.DequeueWithLease(ctx); job != nil {
		t.Fatalf("scheduled job should not be ready yet: %+v", job)
	}

	n, err := q.PromoteScheduled(ctx, time.Now(), 100)
	if err != nil || n != 1 {
		t.Fatalf("promote = %d (err=%v), want 1", n, err)
	}

	job, err = q.DequeueWithLease(ctx)
	if err != nil || job == nil {
		t.Fatalf("dequeue after promote: job=%v err=%v", job, err)
	}
	if job.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", job.Attempts)
	}
}

func TestRequeueExpiredLease(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 10*time.Millisecond)

	id, err := q.Enqueue(ctx, "generateReport", map[string]string{})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.DequeueWithLease(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}

	reclaimed, err := q.RequeueExpired(ctx, time.Now().Add(time.Second), 100)
	if err != nil {
		t.Fatalf("requeue expired: %v", err)
	}
	if len(reclaimed) != 1 || reclaimed[0] != id {
		t.Fatalf("reclaimed = %v, want [%s]", reclaimed, id)
	}

	job, err := q.DequeueWithLease(ctx)
	if err != nil || job == nil || job.ID != id {
		t.Fatalf("expected redelivery of %s, got job=%v err=%v", id, job, err)
	}
}

func TestDeadLetter(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, time.Minute)

	id, err := q.Enqueue(ctx, "generateReport", map[string]string{})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.DequeueWithLease(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := q.DeadLetter(ctx, id, "exhausted"); err != nil {
		t.Fatalf("dead letter: %v", err)
	}

	items, err := q.DLQPeek(ctx, 10)
	if err != nil {
		t.Fatalf("dlq peek: %v", err)
	}
	if len(items) != 1 || items[0] != id {
		t.Fatalf("dlq = %v, want [%s]", items, id)
	}
	if job, _ := q.DequeueWithLease(ctx); job != nil {
		t.Fatalf("dead-lettered job redelivered: %+v", job)
	}
}

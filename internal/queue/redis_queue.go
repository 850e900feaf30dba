package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Job is a unit of work pulled off the queue. Payload is the JSON document
// handed to Enqueue, delivered to exactly one worker at a time via the
// in-flight lease; a crashed worker's lease expires and the job is redelivered.
type Job struct {
	ID       string
	Name     string
	Payload  []byte
	Attempts int
}

// RedisQueue is a durable queue over Redis: a ready list feeding workers, an
// in-flight zset scored by lease deadline, a scheduled zset for deferred
// retries, and a dead-letter list for exhausted jobs.
type RedisQueue struct {
	client     *redis.Client
	name       string
	visibility time.Duration
}

func NewRedisQueue(client *redis.Client, name string, visibility time.Duration) *RedisQueue {
	if name == "" {
		name = "reports"
	}
	if visibility == 0 {
		visibility = 30 * time.Second
	}
	return &RedisQueue{client: client, name: name, visibility: visibility}
}

func (q *RedisQueue) readyKey() string     { return q.name + ":ready" }
func (q *RedisQueue) inflightKey() string  { return q.name + ":inflight" }
func (q *RedisQueue) scheduledKey() string { return q.name + ":scheduled" }
func (q *RedisQueue) dlqKey() string       { return q.name + ":dlq" }
func (q *RedisQueue) jobKey(id string) string {
	return q.name + ":job:" + id
}

// Enqueue stores the payload under a fresh job ID and pushes it onto the
// ready list. The payload is marshaled to JSON and immutable afterwards.
func (q *RedisQueue) Enqueue(ctx context.Context, jobName string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	id := uuid.New().String()
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(id), "name", jobName, "payload", body, "attempts", 0)
	pipe.RPush(ctx, q.readyKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", jobName, err)
	}
	return id, nil
}

// DequeueWithLease pops one ready job and places it in-flight with a
// visibility deadline. Returns nil when the queue is empty.
func (q *RedisQueue) DequeueWithLease(ctx context.Context) (*Job, error) {
	deadline := time.Now().Add(q.visibility).UnixMilli()
	res, err := dequeueScript.Run(ctx, q.client, []string{q.readyKey(), q.inflightKey()}, deadline).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	id, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected type from dequeue script: %T", res)
	}

	fields, err := q.client.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil {
		return nil, err
	}
	attempts, _ := strconv.Atoi(fields["attempts"])
	return &Job{
		ID:       id,
		Name:     fields["name"],
		Payload:  []byte(fields["payload"]),
		Attempts: attempts,
	}, nil
}

// Ack removes a completed job from in-flight tracking and deletes its record.
func (q *RedisQueue) Ack(ctx context.Context, id string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.inflightKey(), id)
	pipe.Del(ctx, q.jobKey(id))
	_, err := pipe.Exec(ctx)
	return err
}

// ScheduleRetry moves a failed job out of in-flight into the scheduled set.
func (q *RedisQueue) ScheduleRetry(ctx context.Context, id string, attempts int, runAt time.Time, lastErr string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.inflightKey(), id)
	pipe.HSet(ctx, q.jobKey(id), "attempts", attempts, "last_error", lastErr)
	pipe.ZAdd(ctx, q.scheduledKey(), redis.Z{Score: float64(runAt.UnixMilli()), Member: id})
	_, err := pipe.Exec(ctx)
	return err
}

// DeadLetter parks a job on the DLQ; the record is kept for inspection.
func (q *RedisQueue) DeadLetter(ctx context.Context, id string, lastErr string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.inflightKey(), id)
	pipe.HSet(ctx, q.jobKey(id), "last_error", lastErr)
	pipe.RPush(ctx, q.dlqKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// PromoteScheduled moves due scheduled jobs back onto the ready list and
// returns how many were promoted.
func (q *RedisQueue) PromoteScheduled(ctx context.Context, now time.Time, limit int64) (int, error) {
	ids, err := q.client.ZRangeByScore(ctx, q.scheduledKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := q.client.TxPipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, q.scheduledKey(), id)
		pipe.RPush(ctx, q.readyKey(), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// RequeueExpired reclaims in-flight jobs whose lease deadline passed, giving
// the queue its at-least-once delivery guarantee.
func (q *RedisQueue) RequeueExpired(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	ids, err := q.client.ZRangeByScore(ctx, q.inflightKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := q.client.TxPipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, q.inflightKey(), id)
		pipe.RPush(ctx, q.readyKey(), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// ReadyDepth reports how many jobs are waiting for a worker.
func (q *RedisQueue) ReadyDepth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.readyKey()).Result()
}

// DLQPeek reads up to count dead-lettered job IDs.
func (q *RedisQueue) DLQPeek(ctx context.Context, count int64) ([]string, error) {
	return q.client.LRange(ctx, q.dlqKey(), 0, count-1).Result()
}

var dequeueScript = redis.NewScript(`
local job = redis.call('LPOP', KEYS[1])
if job then
  redis.call('ZADD', KEYS[2], ARGV[1], job)
  return job
end
return nil
`)

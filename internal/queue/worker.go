package queue

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"medtrack/internal/telemetry"
)

// Handler executes one job. A returned error sends the job back through the
// retry policy; success acknowledges and deletes it.
type Handler func(ctx context.Context, job Job) error

// Worker consumes jobs from a RedisQueue, dispatching by job name. Retries use
// capped exponential backoff with jitter; exhausted jobs land on the DLQ.
type Worker struct {
	queue          *RedisQueue
	handlers       map[string]Handler
	log            *logrus.Logger
	pollInterval   time.Duration
	maxAttempts    int
	backoffInitial time.Duration
	backoffMax     time.Duration
}

type WorkerOptions struct {
	PollInterval   time.Duration
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

func NewWorker(q *RedisQueue, log *logrus.Logger, opts WorkerOptions) *Worker {
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Second
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 5
	}
	if opts.BackoffInitial == 0 {
		opts.BackoffInitial = 2 * time.Second
	}
	if opts.BackoffMax == 0 {
		opts.BackoffMax = 5 * time.Minute
	}
	return &Worker{
		queue:          q,
		handlers:       make(map[string]Handler),
		log:            log,
		pollInterval:   opts.PollInterval,
		maxAttempts:    opts.MaxAttempts,
		backoffInitial: opts.BackoffInitial,
		backoffMax:     opts.BackoffMax,
	}
}

// RegisterHandler binds a handler to a job name.
func (w *Worker) RegisterHandler(jobName string, h Handler) {
	if jobName == "" || h == nil {
		return
	}
	w.handlers[jobName] = h
}

// Run drives the consume loop until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		now := time.Now()
		if _, err := w.queue.PromoteScheduled(ctx, now, 100); err != nil {
			w.log.WithError(err).Warn("promote scheduled jobs")
		}
		if reclaimed, err := w.queue.RequeueExpired(ctx, now, 100); err != nil {
			w.log.WithError(err).Warn("requeue expired leases")
		} else if len(reclaimed) > 0 {
			w.log.WithField("count", len(reclaimed)).Info("requeued jobs with expired leases")
		}
		if depth, err := w.queue.ReadyDepth(ctx); err == nil {
			telemetry.QueueDepthGauge.Set(float64(depth))
		}

		job, err := w.queue.DequeueWithLease(ctx)
		if err != nil {
			w.log.WithError(err).Warn("dequeue")
			w.sleep(ctx)
			continue
		}
		if job == nil {
			w.sleep(ctx)
			continue
		}

		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *Job) {
	logEntry := w.log.WithFields(logrus.Fields{"job_id": job.ID, "job_name": job.Name})

	handler, ok := w.handlers[job.Name]
	if !ok {
		logEntry.Error("no handler registered, dead-lettering")
		_ = w.queue.DeadLetter(ctx, job.ID, "no handler registered for "+job.Name)
		telemetry.JobsDeadLettered.Inc()
		return
	}

	if err := w.invoke(ctx, handler, job); err != nil {
		attempts := job.Attempts + 1
		telemetry.ReportFailures.Inc()
		if attempts >= w.maxAttempts {
			logEntry.WithError(err).WithField("attempts", attempts).Error("job exhausted retries, dead-lettering")
			_ = w.queue.DeadLetter(ctx, job.ID, err.Error())
			telemetry.JobsDeadLettered.Inc()
			return
		}
		next := time.Now().Add(backoffWithJitter(w.backoffInitial, w.backoffMax, attempts))
		logEntry.WithError(err).WithFields(logrus.Fields{"attempts": attempts, "next_run": next}).Warn("job failed, retry scheduled")
		_ = w.queue.ScheduleRetry(ctx, job.ID, attempts, next, err.Error())
		return
	}

	if err := w.queue.Ack(ctx, job.ID); err != nil {
		logEntry.WithError(err).Warn("ack")
	}
}

// invoke runs the handler, converting a panic into an error so the job goes
// through the retry/DLQ policy instead of crash-looping the process on
// lease-expiry redelivery.
func (w *Worker) invoke(ctx context.Context, handler Handler, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, *job)
}

func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.pollInterval):
	}
}

func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return base
	}
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	wait := time.Duration(exp)
	if wait > max {
		wait = max
	}
	jitter := time.Duration(rand.Int63n(int64(wait/2) + 1))
	return wait/2 + jitter
}

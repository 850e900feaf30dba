package report

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"medtrack/internal/auth"
	"medtrack/internal/telemetry"
)

// UserSource enumerates report recipients.
type UserSource interface {
	ListUsers(ctx context.Context) ([]auth.User, error)
}

// Enqueuer pushes a named job onto the durable queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobName string, payload any) (string, error)
}

// Trigger fires once a week and enqueues one report job per user over the
// trailing 7-day window. Enqueueing only: worker capacity is decoupled from
// the trigger's cadence by the queue.
type Trigger struct {
	Users UserSource
	Queue Enqueuer
	Log   *logrus.Logger
}

// Run computes the window ending at now and enqueues a job per user. An
// enqueue failure for one user is logged and does not block the rest.
func (t *Trigger) Run(ctx context.Context, now time.Time) error {
	end := now.UTC()
	start := end.AddDate(0, 0, -7)

	users, err := t.Users.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	for _, u := range users {
		job := Job{
			OwnerID:     u.ID,
			Email:       u.Email,
			WindowStart: start.Format(time.RFC3339),
			WindowEnd:   end.Format(time.RFC3339),
		}
		if _, err := t.Queue.Enqueue(ctx, JobName, job); err != nil {
			t.Log.WithError(err).WithField("user_id", u.ID).Error("enqueue report job")
			continue
		}
		telemetry.ReportsEnqueued.Inc()
	}

	t.Log.WithField("users", len(users)).Info("weekly report jobs enqueued")
	return nil
}

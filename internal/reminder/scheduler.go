package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"medtrack/internal/medication"
	"medtrack/internal/telemetry"
)

// Source yields the medications a tick has to evaluate.
type Source interface {
	Pending(ctx context.Context) ([]medication.WithOwner, error)
}

// Notifier delivers a reminder to the owner. Implementations must be safe for
// concurrent use; a tick dispatches all due sends at once.
type Notifier interface {
	SendReminder(to, medicineName, scheduledTime string) error
}

// Scheduler runs the once-per-minute reminder pass. It keeps no state between
// ticks: "already notified this minute" is not tracked, so two ticks landing
// in the same calendar minute can double-notify. That imprecision is accepted.
type Scheduler struct {
	Source   Source
	Notifier Notifier
	Log      *logrus.Logger
}

// Tick evaluates every pending medication against now and sends reminders for
// the due ones. Each send runs in its own goroutine so one slow delivery never
// holds up the rest of the tick; the tick waits for all sends before
// returning. A failed send is logged and never affects other records.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	meds, err := s.Source.Pending(ctx)
	if err != nil {
		return fmt.Errorf("load pending medications: %w", err)
	}

	var wg sync.WaitGroup
	for i := range meds {
		m := &meds[i]
		if !medication.IsDue(&m.Medication, now) {
			continue
		}
		if m.OwnerEmail == "" {
			s.Log.WithFields(logrus.Fields{
				"medication_id": m.ID,
				"user_id":       m.UserID,
			}).Warn("due medication has no owner email, skipping reminder")
			continue
		}

		wg.Add(1)
		go func(m *medication.WithOwner) {
			defer wg.Done()

			if err := s.Notifier.SendReminder(m.OwnerEmail, m.Name, m.ReminderTime()); err != nil {
				telemetry.ReminderFailures.Inc()
				s.Log.WithError(err).WithFields(logrus.Fields{
					"medication_id": m.ID,
					"user_id":       m.UserID,
				}).Error("send reminder")
				return
			}

			telemetry.RemindersSent.Inc()
			s.Log.WithFields(logrus.Fields{
				"medication_id": m.ID,
				"user_id":       m.UserID,
			}).Debug("reminder sent")
		}(m)
	}
	wg.Wait()
	return nil
}

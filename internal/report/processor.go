package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"medtrack/internal/mail"
	"medtrack/internal/medication"
	"medtrack/internal/queue"
	"medtrack/internal/telemetry"
)

// CompletedSource queries a user's completed medications inside a window.
type CompletedSource interface {
	CompletedInWindow(ctx context.Context, ownerID uint64, start, end time.Time) ([]medication.WithOwner, error)
}

// Sender delivers the report email (custom body, optional attachment).
type Sender interface {
	Send(to, subject, html string, attachments ...mail.Attachment) error
}

// Processor consumes generateReport jobs: query the window, render a CSV,
// email it, clean up. Errors propagate to the queue's retry policy; resending
// an email on redelivery is accepted.
type Processor struct {
	Meds   CompletedSource
	Mailer Sender
	Dir    string
	Log    *logrus.Logger
}

const reportSubject = "Weekly Medication Report"

// Handle adapts Process to the queue worker's handler signature.
func (p *Processor) Handle(ctx context.Context, qjob queue.Job) error {
	var job Job
	if err := json.Unmarshal(qjob.Payload, &job); err != nil {
		return fmt.Errorf("decode report job payload: %w", err)
	}
	return p.Process(ctx, qjob.ID, job)
}

// Process runs one report job. jobID namespaces the transient CSV so
// concurrent workers with identical windows never collide on disk.
func (p *Processor) Process(ctx context.Context, jobID string, job Job) error {
	start, end, err := job.Window()
	if err != nil {
		return err
	}

	meds, err := p.Meds.CompletedInWindow(ctx, job.OwnerID, start, end)
	if err != nil {
		return fmt.Errorf("query completed medications: %w", err)
	}

	if len(meds) == 0 {
		if err := p.Mailer.Send(job.Email, reportSubject,
			"<p>No medications were taken during this period.</p>"); err != nil {
			return fmt.Errorf("send no-activity notice: %w", err)
		}
		telemetry.ReportsGenerated.Inc()
		p.Log.WithField("user_id", job.OwnerID).Info("no-activity report sent")
		return nil
	}

	fileName := fmt.Sprintf("medication_report_%s_to_%s.csv", job.WindowStart, job.WindowEnd)
	path := filepath.Join(p.Dir, jobID+"_"+fileName)
	if err := writeCSV(path, meds); err != nil {
		return err
	}
	// Cleanup is best-effort once the send attempt has resolved either way.
	defer func() {
		if err := os.Remove(path); err != nil {
			p.Log.WithError(err).WithField("path", path).Warn("remove report artifact")
		}
	}()

	body := fmt.Sprintf("<p>Please find attached your medication report for the period %s to %s.</p>",
		job.WindowStart, job.WindowEnd)
	if err := p.Mailer.Send(job.Email, reportSubject, body, mail.Attachment{Path: path, Name: fileName}); err != nil {
		return fmt.Errorf("email report: %w", err)
	}

	telemetry.ReportsGenerated.Inc()
	p.Log.WithFields(logrus.Fields{"user_id": job.OwnerID, "rows": len(meds)}).Info("weekly report sent")
	return nil
}

package report

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"medtrack/internal/mail"
	"medtrack/internal/medication"
)

type fakeCompleted struct {
	meds []medication.WithOwner
	err  error

	gotOwner      uint64
	gotStart, end time.Time
}

func (f *fakeCompleted) CompletedInWindow(ctx context.Context, ownerID uint64, start, end time.Time) ([]medication.WithOwner, error) {
	f.gotOwner = ownerID
	f.gotStart = start
	f.end = end
	return f.meds, f.err
}

type sentMail struct {
	to, subject, html string
	attachments       []mail.Attachment
	attachmentBody    string // captured before cleanup deletes the file
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(to, subject, html string, attachments ...mail.Attachment) error {
	if f.err != nil {
		return f.err
	}
	m := sentMail{to: to, subject: subject, html: html, attachments: attachments}
	if len(attachments) > 0 {
		b, err := os.ReadFile(attachments[0].Path)
		if err != nil {
			return err
		}
		m.attachmentBody = string(b)
	}
	f.sent = append(f.sent, m)
	return nil
}

func doneMedication(t *testing.T, name string, completedAt time.Time) medication.WithOwner {
	t.Helper()
	m, err := medication.New(7, name, "with food", medication.OneTime{At: completedAt.Add(-time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	m.Status = medication.StatusDone
	m.UpdatedAt = completedAt
	return medication.WithOwner{Medication: *m, OwnerName: "Pat", OwnerEmail: "pat@example.com"}
}

func testJob() Job {
	return Job{
		OwnerID:     7,
		Email:       "pat@example.com",
		WindowStart: "2024-03-10T00:00:00Z",
		WindowEnd:   "2024-03-17T00:00:00Z",
	}
}

func TestProcessEmptyWindowSendsNoticeWithoutArtifact(t *testing.T) {
	dir := t.TempDir()
	mailer := &fakeMailer{}
	p := &Processor{Meds: &fakeCompleted{}, Mailer: mailer, Dir: dir, Log: quietLogger()}

	if err := p.Process(context.Background(), "job-1", testJob()); err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if len(msg.attachments) != 0 {
		t.Fatalf("no-activity notice must not carry an attachment: %+v", msg.attachments)
	}
	if !strings.Contains(msg.html, "No medications were taken") {
		t.Fatalf("unexpected notice body: %q", msg.html)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no artifacts, found %d", len(entries))
	}
}

func TestProcessRendersCSVAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	completed := &fakeCompleted{meds: []medication.WithOwner{
		doneMedication(t, "Aspirin", time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC)),
		doneMedication(t, "Vitamin D", time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC)),
	}}
	mailer := &fakeMailer{}
	p := &Processor{Meds: completed, Mailer: mailer, Dir: dir, Log: quietLogger()}

	job := testJob()
	if err := p.Process(context.Background(), "job-2", job); err != nil {
		t.Fatalf("process: %v", err)
	}

	if completed.gotOwner != 7 {
		t.Fatalf("queried owner %d, want 7", completed.gotOwner)
	}
	start, end, _ := job.Window()
	if !completed.gotStart.Equal(start) || !completed.end.Equal(end) {
		t.Fatalf("queried window [%s, %s], want [%s, %s]", completed.gotStart, completed.end, start, end)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if len(msg.attachments) != 1 {
		t.Fatalf("attachments = %+v, want exactly 1", msg.attachments)
	}
	wantName := "medication_report_2024-03-10T00:00:00Z_to_2024-03-17T00:00:00Z.csv"
	if msg.attachments[0].Name != wantName {
		t.Fatalf("attachment name = %q, want %q", msg.attachments[0].Name, wantName)
	}

	records, err := csv.NewReader(strings.NewReader(msg.attachmentBody)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	wantHeader := []string{"MedicineName", "Description", "Type", "ScheduledTime", "RecurringType", "CompletedAt", "UserName", "UserEmail"}
	if len(records) != 3 {
		t.Fatalf("csv has %d records, want header + 2 rows", len(records))
	}
	for i, col := range wantHeader {
		if records[0][i] != col {
			t.Fatalf("header[%d] = %q, want %q", i, records[0][i], col)
		}
	}
	if records[1][0] != "Aspirin" || records[2][0] != "Vitamin D" {
		t.Fatalf("row names = %q, %q", records[1][0], records[2][0])
	}
	if records[1][4] != "N/A" {
		t.Fatalf("one-time cadence column = %q, want N/A", records[1][4])
	}

	// Transient artifact is gone once the send resolved.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("artifact not cleaned up: %v", entries)
	}
}

func TestProcessArtifactNamespacedByJobID(t *testing.T) {
	dir := t.TempDir()
	completed := &fakeCompleted{meds: []medication.WithOwner{
		doneMedication(t, "Aspirin", time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC)),
	}}

	var paths []string
	mailer := &pathCapturingMailer{paths: &paths}
	p := &Processor{Meds: completed, Mailer: mailer, Dir: dir, Log: quietLogger()}

	if err := p.Process(context.Background(), "job-a", testJob()); err != nil {
		t.Fatal(err)
	}
	if err := p.Process(context.Background(), "job-b", testJob()); err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 || paths[0] == paths[1] {
		t.Fatalf("on-disk paths must differ per job: %v", paths)
	}
	if filepath.Base(paths[0]) == filepath.Base(paths[1]) {
		t.Fatalf("artifact names must embed the job id: %v", paths)
	}
}

type pathCapturingMailer struct {
	paths *[]string
}

func (m *pathCapturingMailer) Send(to, subject, html string, attachments ...mail.Attachment) error {
	for _, a := range attachments {
		*m.paths = append(*m.paths, a.Path)
	}
	return nil
}

func TestProcessSendFailurePropagatesAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	completed := &fakeCompleted{meds: []medication.WithOwner{
		doneMedication(t, "Aspirin", time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC)),
	}}
	mailer := &fakeMailer{err: errors.New("smtp down")}
	p := &Processor{Meds: completed, Mailer: mailer, Dir: dir, Log: quietLogger()}

	if err := p.Process(context.Background(), "job-3", testJob()); err == nil {
		t.Fatal("expected send failure to propagate for queue retry")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("artifact should be cleaned up even when the send fails: %v", entries)
	}
}

func TestProcessRejectsBadWindow(t *testing.T) {
	p := &Processor{Meds: &fakeCompleted{}, Mailer: &fakeMailer{}, Dir: t.TempDir(), Log: quietLogger()}
	job := testJob()
	job.WindowStart = "not-a-time"
	if err := p.Process(context.Background(), "job-4", job); err == nil {
		t.Fatal("expected parse error")
	}
}

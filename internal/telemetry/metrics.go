package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	RemindersSent    = prometheus.NewCounter(prometheus.CounterOpts{Name: "medtrack_reminders_sent_total", Help: "Reminder emails sent"})
	ReminderFailures = prometheus.NewCounter(prometheus.CounterOpts{Name: "medtrack_reminder_failures_total", Help: "Reminder emails that failed to send"})
	ReportsEnqueued  = prometheus.NewCounter(prometheus.CounterOpts{Name: "medtrack_reports_enqueued_total", Help: "Weekly report jobs enqueued"})
	ReportsGenerated = prometheus.NewCounter(prometheus.CounterOpts{Name: "medtrack_reports_generated_total", Help: "Weekly report jobs completed"})
	ReportFailures   = prometheus.NewCounter(prometheus.CounterOpts{Name: "medtrack_report_failures_total", Help: "Report job attempts that failed"})
	JobsDeadLettered = prometheus.NewCounter(prometheus.CounterOpts{Name: "medtrack_jobs_dead_letter_total", Help: "Report jobs moved to the DLQ"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "medtrack_rate_limit_rejects_total", Help: "Requests rejected by the rate limiter"})
	QueueDepthGauge  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "medtrack_report_queue_depth", Help: "Ready report jobs waiting for a worker"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			RemindersSent,
			ReminderFailures,
			ReportsEnqueued,
			ReportsGenerated,
			ReportFailures,
			JobsDeadLettered,
			RateLimitRejects,
			QueueDepthGauge,
		)
	})
	return promhttp.Handler()
}

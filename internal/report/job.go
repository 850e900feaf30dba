package report

import (
	"fmt"
	"time"
)

// JobName is the queue job name report workers consume by.
const JobName = "generateReport"

// Job is the immutable payload enqueued once per user per week. Window bounds
// travel as RFC3339 strings.
type Job struct {
	OwnerID     uint64 `json:"ownerId"`
	Email       string `json:"email"`
	WindowStart string `json:"windowStart"`
	WindowEnd   string `json:"windowEnd"`
}

// Window parses the job's report window.
func (j Job) Window() (start, end time.Time, err error) {
	start, err = time.Parse(time.RFC3339, j.WindowStart)
	if err != nil {
		return start, end, fmt.Errorf("parse windowStart %q: %w", j.WindowStart, err)
	}
	end, err = time.Parse(time.RFC3339, j.WindowEnd)
	if err != nil {
		return start, end, fmt.Errorf("parse windowEnd %q: %w", j.WindowEnd, err)
	}
	return start, end, nil
}

package medication

import (
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindOneTime   Kind = "one-time"
	KindRecurring Kind = "recurring"
)

type Cadence string

const (
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// Weekday is the lowercase day name carried on weekly recurring medications.
type Weekday string

var weekdays = map[Weekday]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func (w Weekday) Valid() bool {
	_, ok := weekdays[w]
	return ok
}

// Time maps the day name onto time.Weekday.
func (w Weekday) Time() (time.Weekday, bool) {
	d, ok := weekdays[w]
	return d, ok
}

var (
	ErrNotFound    = errors.New("medication not found")
	ErrAlreadyDone = errors.New("medication already marked done")
)

// Medication is stored flat; the variant columns are populated by exactly one
// of the Schedule implementations, matching Kind.
type Medication struct {
	ID          uint64 `gorm:"primaryKey"`
	UserID      uint64 `gorm:"index;not null"`
	Name        string `gorm:"not null"`
	Description string `gorm:"type:text"`

	Kind Kind `gorm:"type:text;not null"`

	// One-time fields.
	ScheduledAt *time.Time `gorm:"type:timestamptz"`

	// Recurring fields.
	WindowStart *time.Time `gorm:"type:timestamptz"`
	WindowEnd   *time.Time `gorm:"type:timestamptz"`
	Cadence     *Cadence   `gorm:"type:text"`
	Weekday     *Weekday   `gorm:"type:text"`

	Status Status `gorm:"type:text;index;not null;default:'pending'"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

// Schedule is the tagged variant a medication is constructed from. Each
// implementation carries only the fields relevant to its kind, so the
// one-time/recurring field sets cannot be mixed.
type Schedule interface {
	apply(*Medication) error
}

type OneTime struct {
	At time.Time
}

func (s OneTime) apply(m *Medication) error {
	if s.At.IsZero() {
		return errors.New("one-time medication requires a scheduled time")
	}
	at := s.At
	m.Kind = KindOneTime
	m.ScheduledAt = &at
	return nil
}

type Recurring struct {
	Start   time.Time
	End     time.Time
	Cadence Cadence
	Weekday Weekday
}

func (s Recurring) apply(m *Medication) error {
	if s.Start.IsZero() || s.End.IsZero() {
		return errors.New("recurring medication requires a start and end date")
	}
	if s.End.Before(s.Start) {
		return errors.New("recurring medication end date precedes start date")
	}
	switch s.Cadence {
	case CadenceDaily:
		if s.Weekday != "" {
			return errors.New("weekday is only valid for weekly medications")
		}
	case CadenceWeekly:
		if !s.Weekday.Valid() {
			return fmt.Errorf("invalid weekday %q for weekly medication", s.Weekday)
		}
	default:
		return fmt.Errorf("invalid cadence %q", s.Cadence)
	}

	start, end, cadence := s.Start, s.End, s.Cadence
	m.Kind = KindRecurring
	m.WindowStart = &start
	m.WindowEnd = &end
	m.Cadence = &cadence
	if s.Cadence == CadenceWeekly {
		wd := s.Weekday
		m.Weekday = &wd
	}
	return nil
}

// New builds a pending medication for the owner from a schedule variant.
func New(userID uint64, name, description string, sched Schedule) (*Medication, error) {
	if userID == 0 {
		return nil, errors.New("owner is required")
	}
	if name == "" {
		return nil, errors.New("medicine name is required")
	}
	if sched == nil {
		return nil, errors.New("schedule is required")
	}

	m := &Medication{
		UserID:      userID,
		Name:        name,
		Description: description,
		Status:      StatusPending,
	}
	if err := sched.apply(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ReminderTime renders the time shown in a reminder email: the absolute
// timestamp for one-time medications, the time-of-day for recurring ones.
func (m *Medication) ReminderTime() string {
	if m.Kind == KindOneTime && m.ScheduledAt != nil {
		return m.ScheduledAt.Format("Jan 2, 2006 3:04 PM MST")
	}
	if m.WindowStart != nil {
		return m.WindowStart.Format("3:04 PM MST")
	}
	return ""
}

// ScheduleDescription renders the schedule column of the weekly report.
func (m *Medication) ScheduleDescription() string {
	if m.Kind == KindOneTime && m.ScheduledAt != nil {
		return m.ScheduledAt.Format(time.RFC3339)
	}
	if m.WindowStart != nil && m.WindowEnd != nil {
		return m.WindowStart.Format(time.RFC3339) + " to " + m.WindowEnd.Format(time.RFC3339)
	}
	return ""
}

// CadenceLabel is the report value for the RecurringType column.
func (m *Medication) CadenceLabel() string {
	if m.Cadence == nil {
		return "N/A"
	}
	return string(*m.Cadence)
}

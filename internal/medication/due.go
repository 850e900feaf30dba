package medication

import "time"

// dueWindow is how long a one-time medication stays due after its scheduled
// instant. The evaluator must run at least once inside that window; a missed
// window is never made up.
const dueWindow = time.Minute

// IsDue reports whether a reminder should fire for m at the given instant.
// Pure and deterministic; callers decide how often to evaluate.
func IsDue(m *Medication, now time.Time) bool {
	switch m.Kind {
	case KindOneTime:
		if m.ScheduledAt == nil {
			return false
		}
		since := now.Sub(*m.ScheduledAt)
		return since >= 0 && since < dueWindow

	case KindRecurring:
		if m.WindowStart == nil || m.WindowEnd == nil || m.Cadence == nil {
			return false
		}
		if now.Before(*m.WindowStart) || now.After(*m.WindowEnd) {
			return false
		}

		// Clock comparison happens in the window's own location so the
		// trigger minute doesn't shift with the server timezone.
		local := now.In(m.WindowStart.Location())
		if local.Hour() != m.WindowStart.Hour() || local.Minute() != m.WindowStart.Minute() {
			return false
		}

		switch *m.Cadence {
		case CadenceDaily:
			return true
		case CadenceWeekly:
			if m.Weekday == nil {
				return false
			}
			wd, ok := m.Weekday.Time()
			return ok && local.Weekday() == wd
		}
	}
	return false
}

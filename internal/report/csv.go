package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"medtrack/internal/medication"
)

// columns is the fixed CSV header; order is part of the report contract.
var columns = []string{
	"MedicineName",
	"Description",
	"Type",
	"ScheduledTime",
	"RecurringType",
	"CompletedAt",
	"UserName",
	"UserEmail",
}

// writeCSV renders one row per completed medication at path.
func writeCSV(path string, meds []medication.WithOwner) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range meds {
		m := &meds[i]
		row := []string{
			m.Name,
			m.Description,
			string(m.Kind),
			m.ScheduleDescription(),
			m.CadenceLabel(),
			m.UpdatedAt.Format(time.RFC3339),
			m.OwnerName,
			m.OwnerEmail,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return f.Close()
}

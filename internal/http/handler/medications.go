package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"medtrack/internal/auth"
	"medtrack/internal/medication"
)

type MedicationHandler struct {
	DB   *gorm.DB
	Repo *medication.Repo
	Log  *logrus.Logger
}

type createMedicationReq struct {
	MedicineName  string  `json:"medicineName"`
	Description   string  `json:"description"`
	Type          string  `json:"type"`
	DateTime      *string `json:"dateTime"`
	StartDate     *string `json:"startDate"`
	EndDate       *string `json:"endDate"`
	RecurringType *string `json:"recurringType"`
	DayOfWeek     *string `json:"dayOfWeek"`
}

type medicationDTO struct {
	ID            uint64     `json:"id"`
	MedicineName  string     `json:"medicineName"`
	Description   string     `json:"description,omitempty"`
	Type          string     `json:"type"`
	DateTime      *time.Time `json:"dateTime,omitempty"`
	StartDate     *time.Time `json:"startDate,omitempty"`
	EndDate       *time.Time `json:"endDate,omitempty"`
	RecurringType *string    `json:"recurringType,omitempty"`
	DayOfWeek     *string    `json:"dayOfWeek,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func toMedicationDTO(m *medication.Medication) medicationDTO {
	dto := medicationDTO{
		ID:           m.ID,
		MedicineName: m.Name,
		Description:  m.Description,
		Type:         string(m.Kind),
		DateTime:     m.ScheduledAt,
		StartDate:    m.WindowStart,
		EndDate:      m.WindowEnd,
		Status:       string(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.Cadence != nil {
		c := string(*m.Cadence)
		dto.RecurringType = &c
	}
	if m.Weekday != nil {
		d := string(*m.Weekday)
		dto.DayOfWeek = &d
	}
	return dto
}

// parseSchedule maps the request's per-kind fields onto the matching schedule
// variant; the variant constructor enforces the required-field rules.
func parseSchedule(req *createMedicationReq) (medication.Schedule, error) {
	switch req.Type {
	case string(medication.KindOneTime):
		if req.DateTime == nil {
			return nil, errors.New("Valid date and time required for one-time medication")
		}
		at, err := time.Parse(time.RFC3339, *req.DateTime)
		if err != nil {
			return nil, errors.New("Valid date and time required for one-time medication")
		}
		return medication.OneTime{At: at}, nil

	case string(medication.KindRecurring):
		if req.StartDate == nil || req.EndDate == nil {
			return nil, errors.New("Valid start and end date required for recurring medication")
		}
		start, err := time.Parse(time.RFC3339, *req.StartDate)
		if err != nil {
			return nil, errors.New("Valid start date required for recurring medication")
		}
		end, err := time.Parse(time.RFC3339, *req.EndDate)
		if err != nil {
			return nil, errors.New("Valid end date required for recurring medication")
		}
		rec := medication.Recurring{Start: start, End: end}
		if req.RecurringType != nil {
			rec.Cadence = medication.Cadence(*req.RecurringType)
		}
		if req.DayOfWeek != nil {
			rec.Weekday = medication.Weekday(strings.ToLower(*req.DayOfWeek))
		}
		return rec, nil
	}
	return nil, errors.New("Type must be one-time or recurring")
}

func (h *MedicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req createMedicationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	req.MedicineName = strings.TrimSpace(req.MedicineName)

	sched, err := parseSchedule(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := medication.New(uid, req.MedicineName, strings.TrimSpace(req.Description), sched)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.DB.Create(m).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"medication": toMedicationDTO(m)})
}

func (h *MedicationHandler) MarkDone(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	m, err := h.Repo.MarkDone(r.Context(), uid, id)
	switch {
	case errors.Is(err, medication.ErrNotFound):
		writeError(w, http.StatusNotFound, "Medication not found")
		return
	case errors.Is(err, medication.ErrAlreadyDone):
		writeError(w, http.StatusConflict, "Medication already marked done")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"medication": toMedicationDTO(m)})
}

func (h *MedicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	res := h.DB.Where("id = ? AND user_id = ?", id, uid).Delete(&medication.Medication{})
	if res.Error != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if res.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "Medication not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

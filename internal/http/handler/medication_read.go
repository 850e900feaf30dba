package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"medtrack/internal/auth"
	"medtrack/internal/medication"
)

func (h *MedicationHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	q := h.DB.Where("user_id = ?", uid)
	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var meds []medication.Medication
	if err := q.Order("created_at desc").Find(&meds).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	out := make([]medicationDTO, 0, len(meds))
	for i := range meds {
		out = append(out, toMedicationDTO(&meds[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"medications": out})
}

func (h *MedicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var m medication.Medication
	if err := h.DB.Where("id = ? AND user_id = ?", id, uid).First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			writeError(w, http.StatusNotFound, "Medication not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"medication": toMedicationDTO(&m)})
}

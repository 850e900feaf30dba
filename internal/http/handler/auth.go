package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"medtrack/internal/auth"
)

// WelcomeMailer greets a freshly registered user; delivery is best effort.
type WelcomeMailer interface {
	SendWelcome(to, name string) error
}

type AuthHandler struct {
	DB     *gorm.DB
	JWT    *auth.JWT
	Mailer WelcomeMailer
	Log    *logrus.Logger
}

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userDTO struct {
	ID        uint64     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func toUserDTO(u *auth.User) userDTO {
	return userDTO{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if len(req.Name) < 2 || len(req.Name) > 50 {
		writeError(w, http.StatusBadRequest, "Name must be between 2 and 50 characters")
		return
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "Please provide a valid email")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters long")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	u := auth.User{Name: req.Name, Email: req.Email, PasswordHash: hash}
	if err := h.DB.Create(&u).Error; err != nil {
		writeError(w, http.StatusBadRequest, "Email is already registered")
		return
	}

	token, err := h.JWT.Sign(u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	if h.Mailer != nil {
		go func(email, name string) {
			if err := h.Mailer.SendWelcome(email, name); err != nil {
				h.Log.WithError(err).WithField("email", email).Warn("send welcome email")
			}
		}(u.Email, u.Name)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":  toUserDTO(&u),
		"token": token,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid input")
		return
	}

	var u auth.User
	if err := h.DB.Where("email = ?", req.Email).First(&u).Error; err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid login credentials")
		return
	}
	if !auth.ComparePassword(u.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid login credentials")
		return
	}

	now := time.Now()
	u.LastLogin = &now
	if err := h.DB.Model(&u).Update("last_login", now).Error; err != nil {
		h.Log.WithError(err).WithField("user_id", u.ID).Warn("stamp last login")
	}

	token, err := h.JWT.Sign(u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":  toUserDTO(&u),
		"token": token,
	})
}

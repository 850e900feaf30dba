package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"medtrack/internal/auth"
	"medtrack/internal/config"
	"medtrack/internal/http/handler"
	mw "medtrack/internal/http/middleware"
	"medtrack/internal/medication"
	"medtrack/internal/telemetry"
)

func NewRouter(cfg config.Config, gdb *gorm.DB, rdb *redis.Client, jwtSvc *auth.JWT, mailer handler.WelcomeMailer, log *logrus.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	limiter := mw.NewRateLimiter(rdb, cfg.RateLimitMax, cfg.RateLimitWindow, log)

	ah := &handler.AuthHandler{DB: gdb, JWT: jwtSvc, Mailer: mailer, Log: log}
	mh := &handler.MedicationHandler{DB: gdb, Repo: &medication.Repo{DB: gdb}, Log: log}

	r.Route("/api", func(r chi.Router) {
		r.Use(limiter.Handler)

		r.Post("/auth/register", ah.Register)
		r.Post("/auth/login", ah.Login)
		r.With(auth.RequireAuth(jwtSvc)).Get("/auth/me", ah.Me)

		r.Route("/medications", func(r chi.Router) {
			r.Use(auth.RequireAuth(jwtSvc))

			r.Post("/", mh.Create)
			r.Get("/", mh.List)

			r.Get("/{id}", mh.Get)
			r.Patch("/{id}/done", mh.MarkDone)
			r.Delete("/{id}", mh.Delete)
		})
	})

	return r
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	Environment          string
	LogLevel             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string

	// Cron specs for the two periodic drivers.
	ReminderCronSpec string
	ReportCronSpec   string

	// Report queue tuning.
	QueueName          string
	VisibilityTimeout  time.Duration
	WorkerPollInterval time.Duration
	MaxAttempts        int
	BackoffInitial     time.Duration
	BackoffMax         time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration

	// Directory for transient report artifacts.
	ReportDir string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		Environment:          getenv("ENVIRONMENT", "development"),
		LogLevel:             getenv("LOG_LEVEL", "info"),
		DatabaseURL:          mustGetenv("DATABASE_URL"),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		SMTPHost: getenv("SMTP_HOST", "localhost"),
		SMTPPort: getenvInt("SMTP_PORT", 587),
		SMTPUser: getenv("SMTP_USER", ""),
		SMTPPass: getenv("SMTP_PASS", ""),
		MailFrom: getenv("MAIL_FROM", "Health & Wellness System <no-reply@medtrack.local>"),

		ReminderCronSpec: getenv("REMINDER_CRON_SPEC", "* * * * *"),
		ReportCronSpec:   getenv("REPORT_CRON_SPEC", "0 0 * * 0"),

		QueueName:          getenv("REPORT_QUEUE_NAME", "reports"),
		VisibilityTimeout:  getenvDuration("VISIBILITY_TIMEOUT", 30*time.Second),
		WorkerPollInterval: getenvDuration("WORKER_POLL_INTERVAL", time.Second),
		MaxAttempts:        getenvInt("MAX_ATTEMPTS", 5),
		BackoffInitial:     getenvDuration("BACKOFF_INITIAL", 2*time.Second),
		BackoffMax:         getenvDuration("BACKOFF_MAX", 5*time.Minute),

		RateLimitMax:    getenvInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow: getenvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),

		ReportDir: getenv("REPORT_DIR", os.TempDir()),
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	cfg.JWTSecret = mustGetenv("JWT_SECRET")
	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func mustGetenv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		panic("missing env: " + key)
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"medtrack/internal/auth"
	"medtrack/internal/config"
	"medtrack/internal/db"
	httpx "medtrack/internal/http"
	"medtrack/internal/logger"
	"medtrack/internal/mail"
	"medtrack/internal/medication"
	"medtrack/internal/queue"
	"medtrack/internal/reminder"
	"medtrack/internal/report"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.LogLevel, cfg.Environment)

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("connect database")
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.WithError(err).Fatal("migrate database")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.WithError(err).Fatal("connect redis")
	}

	jwtSvc := auth.NewJWT(cfg.JWTSecret)
	mailer := mail.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	medRepo := &medication.Repo{DB: gdb}
	userRepo := &auth.Repo{DB: gdb}

	reportQueue := queue.NewRedisQueue(rdb, cfg.QueueName, cfg.VisibilityTimeout)

	worker := queue.NewWorker(reportQueue, log, queue.WorkerOptions{
		PollInterval:   cfg.WorkerPollInterval,
		MaxAttempts:    cfg.MaxAttempts,
		BackoffInitial: cfg.BackoffInitial,
		BackoffMax:     cfg.BackoffMax,
	})
	processor := &report.Processor{Meds: medRepo, Mailer: mailer, Dir: cfg.ReportDir, Log: log}
	worker.RegisterHandler(report.JobName, processor.Handle)

	scheduler := &reminder.Scheduler{Source: medRepo, Notifier: mailer, Log: log}
	trigger := &report.Trigger{Users: userRepo, Queue: reportQueue, Log: log}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := worker.Run(ctx); err != nil && err != context.Canceled {
			log.WithError(err).Error("report worker stopped")
		}
	}()

	// A slow pass must never stack on top of itself.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log))))
	if _, err := c.AddFunc(cfg.ReminderCronSpec, func() {
		if err := scheduler.Tick(ctx, time.Now()); err != nil {
			log.WithError(err).Error("reminder tick")
		}
	}); err != nil {
		log.WithError(err).Fatal("schedule reminder job")
	}
	if _, err := c.AddFunc(cfg.ReportCronSpec, func() {
		if err := trigger.Run(ctx, time.Now()); err != nil {
			log.WithError(err).Error("weekly report trigger")
		}
	}); err != nil {
		log.WithError(err).Fatal("schedule report trigger")
	}
	c.Start()

	r := httpx.NewRouter(cfg, gdb, rdb, jwtSvc, mailer, log)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server")
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	log.Info("shutting down")

	cronCtx := c.Stop()
	<-cronCtx.Done()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

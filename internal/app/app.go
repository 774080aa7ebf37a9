// Package app assembles the tracker's stores, sources and services from config.
// Both the HTTP server and contestctl build on it.
package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"contesttracker/internal/config"
	"contesttracker/internal/db"
	"contesttracker/internal/lock"
	"contesttracker/internal/metrics"
	"contesttracker/internal/notify"
	"contesttracker/internal/repository"
	gormrepository "contesttracker/internal/repository/gorm"
	memoryrepository "contesttracker/internal/repository/memory"
	"contesttracker/internal/service"
	"contesttracker/internal/source"
)

type App struct {
	Config config.Config
	Logger *zap.Logger

	Store    repository.Repository
	Locker   lock.Locker
	Metrics  *metrics.Pipeline
	Registry *prometheus.Registry

	Sources      []source.Adapter
	CodeChef     *source.CodeChef
	Orchestrator *service.FetchOrchestrator
	Sweeper      *service.StatusEngine
	Reconciler   *service.Reconciler
	Aggregator   *service.Aggregator
	Dispatcher   *notify.Dispatcher
	Scheduler    *service.ReminderScheduler
	Reminders    *service.ReminderService

	// Pings feeds the readiness endpoint.
	Pings map[string]func(context.Context) error

	closers []func() error
}

func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Config: cfg,
		Logger: logger,
		Pings:  map[string]func(context.Context) error{},
	}
	if err := a.openStore(); err != nil {
		a.Close()
		return nil, err
	}
	a.openLocker()

	a.Registry = prometheus.NewRegistry()
	a.Metrics = metrics.New(a.Registry)

	retry := RetryPolicy(cfg.Sources.Retry)
	retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Debug("source attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	fetcher := &source.Fetcher{
		Client:    &http.Client{Timeout: cfg.Sources.HTTPTimeout},
		UserAgent: cfg.Sources.UserAgent,
	}
	a.CodeChef = source.NewCodeChef(fetcher, retry, logger.Named("codechef"))
	if cfg.Sources.Codeforces.Enabled {
		a.Sources = append(a.Sources, source.NewCodeforces(fetcher, retry, logger.Named("codeforces")))
	}
	if cfg.Sources.CodeChef.Enabled {
		a.Sources = append(a.Sources, a.CodeChef)
	}
	if cfg.Sources.Leetcode.Enabled {
		a.Sources = append(a.Sources, source.NewLeetcode(fetcher, retry, logger.Named("leetcode")))
	}

	a.Sweeper = &service.StatusEngine{Store: a.Store, Metrics: a.Metrics, Logger: logger}
	a.Orchestrator = &service.FetchOrchestrator{
		Sources:   a.Sources,
		SyncStore: a.Store,
		Metrics:   a.Metrics,
		Logger:    logger,
	}
	a.Reconciler = &service.Reconciler{
		Store:   a.Store,
		Sweeper: a.Sweeper,
		Metrics: a.Metrics,
		Logger:  logger,
	}
	a.Aggregator = &service.Aggregator{
		Orchestrator: a.Orchestrator,
		Reconciler:   a.Reconciler,
		Locker:       a.Locker,
		LockTTL:      cfg.Lock.TTL,
		SyncStore:    a.Store,
		Metrics:      a.Metrics,
		Logger:       logger,
	}

	a.Dispatcher = &notify.Dispatcher{
		Transport: mailTransport(cfg.Mail, logger),
		Logger:    logger,
		Location:  loadLocation(cfg.Mail.Timezone, logger),
		Timeout:   cfg.Mail.Timeout,
	}
	a.Scheduler = &service.ReminderScheduler{
		Contests:   a.Store,
		Reminders:  a.Store,
		Users:      a.Store,
		Dispatcher: a.Dispatcher,
		Interval:   cfg.Cron.ReminderInterval,
		Metrics:    a.Metrics,
		Logger:     logger,
	}
	a.Reminders = &service.ReminderService{Contests: a.Store, Reminders: a.Store}
	return a, nil
}

func (a *App) openStore() error {
	switch strings.ToLower(strings.TrimSpace(a.Config.DB.Driver)) {
	case "memory":
		a.Logger.Warn("using in-memory store; data is lost on exit")
		a.Store = memoryrepository.New()
		return nil
	case "", "postgres":
	default:
		return errors.New("unsupported db driver: " + a.Config.DB.Driver)
	}
	conn, err := db.Open(a.Config.DB, a.Logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { return db.Close(conn) })
	if err := db.SetTimezone(conn, a.Config.DB.Timezone); err != nil {
		a.Logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(conn); err != nil {
		return err
	}
	a.Store = gormrepository.New(conn.Gorm)
	a.Pings["postgres"] = func(ctx context.Context) error { return db.Ping(ctx, conn) }
	return nil
}

func (a *App) openLocker() {
	if !a.Config.Redis.Enabled {
		a.Locker = lock.NewMemoryLocker()
		return
	}
	rl := lock.NewRedisLocker(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	}, a.Config.Redis.Prefix)
	a.Locker = rl
	a.closers = append(a.closers, rl.Close)
	a.Pings["redis"] = rl.Ping
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

// RetryPolicy maps the config block onto the source retry policy.
func RetryPolicy(cfg config.RetryConfig) source.RetryPolicy {
	p := source.DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelay > 0 {
		p.BaseDelay = cfg.BaseDelay
	}
	if cfg.Multiplier >= 1 {
		p.Multiplier = cfg.Multiplier
	}
	if cfg.JitterMax > 0 {
		p.JitterMin = cfg.JitterMin
		p.JitterMax = cfg.JitterMax
	}
	if cfg.AttemptTimeout > 0 {
		p.AttemptTimeout = cfg.AttemptTimeout
	}
	return p
}

func mailTransport(cfg config.MailConfig, logger *zap.Logger) notify.Transport {
	if !cfg.Enabled || strings.TrimSpace(cfg.Host) == "" {
		logger.Warn("mail disabled; reminders are logged and stay unsent")
		return &notify.LogTransport{Logger: logger}
	}
	return notify.NewSMTPTransport(notify.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	}, logger.Named("smtp"))
}

func loadLocation(name string, logger *zap.Logger) *time.Location {
	if strings.TrimSpace(name) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("unknown mail timezone, using UTC", zap.String("timezone", name), zap.Error(err))
		return time.UTC
	}
	return loc
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	_ "contesttracker/docs"
	"contesttracker/internal/app"
	"contesttracker/internal/config"
	cronrunner "contesttracker/internal/cron"
	"contesttracker/internal/handler"
	"contesttracker/internal/logger"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CT_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("CT_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	tracker, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("app init failed", zap.Error(err))
	}
	defer tracker.Close()

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(handler.AccessLog(logger.Named("http")))

	checks := map[string]handler.PingFunc{}
	for name, ping := range tracker.Pings {
		checks[name] = ping
	}
	healthHandler := &handler.HealthHandler{Checks: checks}
	healthHandler.Register(engine)
	contestHandler := &handler.ContestHandler{
		Aggregator: tracker.Aggregator,
		Sweeper:    tracker.Sweeper,
		Store:      tracker.Store,
		SyncStore:  tracker.Store,
		Logger:     logger,
	}
	contestHandler.Register(engine)
	reminderHandler := &handler.ReminderHandler{Service: tracker.Reminders}
	reminderHandler.Register(engine)
	handler.RegisterDocs(engine)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(tracker.Registry, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add(cfg.Cron.Aggregation, func(ctx context.Context) {
			if _, err := tracker.Aggregator.Run(ctx); err != nil {
				logger.Warn("cron aggregation failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("cron register aggregation failed", zap.Error(err))
		}

		_, err = cronRunner.Add(cfg.Cron.Sweep, func(ctx context.Context) {
			if _, err := tracker.Sweeper.Sweep(ctx, time.Now().UTC()); err != nil {
				logger.Warn("cron status sweep failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("cron register status sweep failed", zap.Error(err))
		}

		go func() {
			if err := tracker.Scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("reminder scheduler stopped", zap.Error(err))
			}
		}()
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	if cfg.Cron.RunOnStart {
		go func() {
			logger.Info("running initial aggregation")
			if _, err := tracker.Aggregator.Run(ctx); err != nil {
				logger.Warn("initial aggregation failed (continuing)", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-User-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"

	"contesttracker/internal/lock"
	"contesttracker/internal/metrics"
	"contesttracker/internal/models"
	"contesttracker/internal/repository"
)

// ErrAlreadyRunning is returned when another process holds the aggregation lock.
var ErrAlreadyRunning = errors.New("aggregation already running")

const (
	aggregationLockKey = "aggregate"
	aggregationScope   = "aggregate"
)

type AggregationResult struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Candidates int            `json:"candidates"`
	Sources    []SourceResult `json:"sources"`
	Reconcile  ReconcileStats `json:"reconcile"`
	Shared     bool           `json:"shared,omitempty"`
}

// Aggregator is the single entry point for one fetch+reconcile cycle. Triggers
// inside one process are coalesced; across processes the Locker decides.
type Aggregator struct {
	Orchestrator *FetchOrchestrator
	Reconciler   *Reconciler
	Locker       lock.Locker
	LockTTL      time.Duration
	SyncStore    repository.SyncStateStore
	Metrics      *metrics.Pipeline
	Logger       *zap.Logger

	group singleflight.Group
}

func (a *Aggregator) Run(ctx context.Context) (AggregationResult, error) {
	if a == nil || a.Orchestrator == nil || a.Reconciler == nil {
		return AggregationResult{}, nil
	}
	v, err, shared := a.group.Do(aggregationLockKey, func() (any, error) {
		return a.run(ctx)
	})
	res, _ := v.(AggregationResult)
	res.Shared = shared
	return res, err
}

func (a *Aggregator) run(ctx context.Context) (AggregationResult, error) {
	res := AggregationResult{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	logger := a.Logger
	if logger != nil {
		logger = logger.With(zap.String("run_id", res.RunID))
	}

	if a.Locker != nil {
		ttl := a.LockTTL
		if ttl <= 0 {
			ttl = 30 * time.Minute
		}
		release, err := a.Locker.Acquire(ctx, aggregationLockKey, ttl)
		if errors.Is(err, lock.ErrHeld) {
			a.Metrics.IncAggregationSkipped()
			if logger != nil {
				logger.Info("aggregation skipped: lock held")
			}
			return res, ErrAlreadyRunning
		}
		if err != nil {
			return res, err
		}
		defer func() {
			relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := release(relCtx); err != nil && logger != nil {
				logger.Warn("release aggregation lock failed", zap.Error(err))
			}
		}()
	}

	if logger != nil {
		logger.Info("aggregation started")
	}
	candidates, sources := a.Orchestrator.Fetch(ctx, res.RunID)
	res.Candidates = len(candidates)
	res.Sources = sources
	res.Reconcile = a.Reconciler.Reconcile(ctx, candidates)
	res.FinishedAt = time.Now().UTC()

	took := res.FinishedAt.Sub(res.StartedAt)
	a.Metrics.ObserveAggregation(took)
	a.saveState(ctx, res)
	if logger != nil {
		logger.Info("aggregation finished",
			zap.Int("candidates", res.Candidates),
			zap.Duration("took", took),
			zap.Int("inserted", res.Reconcile.Inserted),
			zap.Int("updated", res.Reconcile.Updated),
			zap.Int("failed", res.Reconcile.Failed),
		)
	}
	return res, nil
}

func (a *Aggregator) saveState(ctx context.Context, res AggregationResult) {
	if a.SyncStore == nil {
		return
	}
	finished := res.FinishedAt
	runID := res.RunID
	stats, _ := json.Marshal(map[string]any{
		"candidates": res.Candidates,
		"reconcile":  res.Reconcile,
		"took_ms":    res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
	})
	state := models.SyncState{
		Scope:         aggregationScope,
		LastRunID:     &runID,
		LastAttemptAt: &finished,
		LastSuccessAt: &finished,
		StatsJSON:     datatypes.JSON(stats),
	}
	if err := a.SyncStore.SaveSyncState(ctx, &state); err != nil && a.Logger != nil {
		a.Logger.Warn("save aggregation state failed", zap.Error(err))
	}
}

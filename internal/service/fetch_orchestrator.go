package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"contesttracker/internal/metrics"
	"contesttracker/internal/models"
	"contesttracker/internal/repository"
	"contesttracker/internal/source"
)

// SourceResult is the outcome of one adapter within a fetch.
type SourceResult struct {
	Source     string             `json:"source"`
	Candidates []source.Candidate `json:"-"`
	Count      int                `json:"count"`
	Err        error              `json:"-"`
	Error      string             `json:"error,omitempty"`
	Took       time.Duration      `json:"-"`
	TookMS     int64              `json:"took_ms"`
}

// FetchOrchestrator runs every adapter concurrently. Each adapter is its own
// failure domain: an error or panic empties that source's slice and nothing else.
type FetchOrchestrator struct {
	Sources   []source.Adapter
	SyncStore repository.SyncStateStore
	Metrics   *metrics.Pipeline
	Logger    *zap.Logger
	Now       func() time.Time
}

// FetchAll returns the union of every succeeding source's candidates.
func (o *FetchOrchestrator) FetchAll(ctx context.Context) []source.Candidate {
	merged, _ := o.Fetch(ctx, "")
	return merged
}

func (o *FetchOrchestrator) Fetch(ctx context.Context, runID string) ([]source.Candidate, []SourceResult) {
	if o == nil || len(o.Sources) == 0 {
		return nil, nil
	}
	results := make([]SourceResult, len(o.Sources))
	var g errgroup.Group
	for i, adapter := range o.Sources {
		i, adapter := i, adapter
		g.Go(func() error {
			results[i] = o.fetchOne(ctx, adapter)
			return nil
		})
	}
	_ = g.Wait()

	var merged []source.Candidate
	for i := range results {
		res := &results[i]
		if res.Err != nil {
			res.Error = res.Err.Error()
			if o.Logger != nil {
				o.Logger.Warn("source fetch failed",
					zap.String("source", res.Source),
					zap.Duration("took", res.Took),
					zap.Error(res.Err),
				)
			}
		}
		res.Count = len(res.Candidates)
		res.TookMS = res.Took.Milliseconds()
		merged = append(merged, res.Candidates...)
		o.Metrics.ObserveSourceFetch(res.Source, res.Err == nil, res.Count, res.Took)
		o.saveSyncState(ctx, runID, *res)
	}
	if o.Logger != nil {
		o.Logger.Info("fetch done", zap.String("run_id", runID), zap.Int("candidates", len(merged)))
	}
	return merged, results
}

func (o *FetchOrchestrator) fetchOne(ctx context.Context, adapter source.Adapter) (res SourceResult) {
	res.Source = adapter.Name()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Candidates = nil
			res.Err = fmt.Errorf("adapter panic: %v", r)
		}
		res.Took = time.Since(start)
	}()
	items, err := adapter.Fetch(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	res.Candidates = items
	return res
}

func (o *FetchOrchestrator) saveSyncState(ctx context.Context, runID string, res SourceResult) {
	if o.SyncStore == nil {
		return
	}
	scope := "source:" + res.Source
	now := o.now()
	state := models.SyncState{Scope: scope, LastAttemptAt: &now}
	if prev, err := o.SyncStore.GetSyncState(ctx, scope); err == nil && prev != nil {
		state.LastSuccessAt = prev.LastSuccessAt
	}
	if runID != "" {
		state.LastRunID = &runID
	}
	if res.Err != nil {
		msg := res.Err.Error()
		state.LastError = &msg
	} else {
		state.LastSuccessAt = &now
	}
	stats, _ := json.Marshal(map[string]any{
		"candidates":  res.Count,
		"duration_ms": res.Took.Milliseconds(),
	})
	state.StatsJSON = datatypes.JSON(stats)
	if err := o.SyncStore.SaveSyncState(ctx, &state); err != nil && o.Logger != nil {
		o.Logger.Warn("save sync state failed", zap.String("scope", scope), zap.Error(err))
	}
}

func (o *FetchOrchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

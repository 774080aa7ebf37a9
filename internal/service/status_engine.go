package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"contesttracker/internal/metrics"
	"contesttracker/internal/models"
	"contesttracker/internal/repository"
)

// StatusEngine advances stored contests along upcoming -> ongoing -> past.
// A sweep is two bulk conditional writes, so it never regresses a status and a
// second sweep at the same instant changes nothing.
type StatusEngine struct {
	Store   repository.ContestStore
	Metrics *metrics.Pipeline
	Logger  *zap.Logger
}

type SweepResult struct {
	At       time.Time                      `json:"at"`
	Started  int64                          `json:"started"`
	Finished int64                          `json:"finished"`
	Before   map[models.ContestStatus]int64 `json:"before,omitempty"`
	After    map[models.ContestStatus]int64 `json:"after,omitempty"`
}

func (e *StatusEngine) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	res := SweepResult{At: now.UTC()}
	if e == nil || e.Store == nil {
		return res, nil
	}
	if before, err := e.Store.CountContestsByStatus(ctx); err == nil {
		res.Before = before
	}

	at := now.UTC()
	started, err := e.Store.BulkUpdateContestStatus(ctx, repository.ContestFilter{
		Statuses:    []models.ContestStatus{models.StatusUpcoming},
		StartBefore: &at,
	}, models.StatusOngoing)
	if err != nil {
		return res, fmt.Errorf("sweep upcoming->ongoing: %w", err)
	}
	res.Started = started

	// runs second so a contest that started and ended since the last sweep lands in past
	finished, err := e.Store.BulkUpdateContestStatus(ctx, repository.ContestFilter{
		Statuses:  []models.ContestStatus{models.StatusOngoing},
		EndBefore: &at,
	}, models.StatusPast)
	if err != nil {
		return res, fmt.Errorf("sweep ongoing->past: %w", err)
	}
	res.Finished = finished

	if after, err := e.Store.CountContestsByStatus(ctx); err == nil {
		res.After = after
	}
	e.Metrics.AddTransitions(string(models.StatusOngoing), started)
	e.Metrics.AddTransitions(string(models.StatusPast), finished)
	if e.Logger != nil {
		e.Logger.Info("status sweep done",
			zap.Int64("upcoming_to_ongoing", started),
			zap.Int64("ongoing_to_past", finished),
			zap.Any("before", res.Before),
			zap.Any("after", res.After),
		)
	}
	return res, nil
}

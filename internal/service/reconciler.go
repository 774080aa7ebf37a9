package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"contesttracker/internal/metrics"
	"contesttracker/internal/models"
	"contesttracker/internal/repository"
	"contesttracker/internal/source"
)


type ReconcileStats struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Reconciler merges candidates into the contest store keyed by (name, platform).
// Candidates are processed one at a time; the store's conditional insert is the
// guard against a concurrent cycle creating the same key.
type Reconciler struct {
	Store   repository.ContestStore
	Sweeper *StatusEngine
	Metrics *metrics.Pipeline
	Logger  *zap.Logger
	Now     func() time.Time
}

func (r *Reconciler) Reconcile(ctx context.Context, candidates []source.Candidate) ReconcileStats {
	var stats ReconcileStats
	if r == nil || r.Store == nil {
		return stats
	}
	now := r.now()
	if r.Sweeper != nil {
		if _, err := r.Sweeper.Sweep(ctx, now); err != nil {
			r.logWarn("pre-merge sweep failed", err)
		}
	}

	for _, c := range candidates {
		if ctx.Err() != nil {
			r.logWarn("reconcile interrupted", ctx.Err(), zap.Int("remaining", len(candidates)-stats.total()))
			break
		}
		action, err := r.reconcileOne(ctx, c, now)
		if err != nil {
			stats.Failed++
			r.logWarn("reconcile candidate failed", err,
				zap.String("name", c.Name),
				zap.String("platform", string(c.Platform)),
			)
			continue
		}
		switch action {
		case actionInserted:
			stats.Inserted++
		case actionUpdated:
			stats.Updated++
		case actionUnchanged:
			stats.Unchanged++
		case actionSkipped:
			stats.Skipped++
		}
	}

	r.Metrics.AddReconcile(actionInserted, stats.Inserted)
	r.Metrics.AddReconcile(actionUpdated, stats.Updated)
	r.Metrics.AddReconcile(actionUnchanged, stats.Unchanged)
	r.Metrics.AddReconcile(actionSkipped, stats.Skipped)
	r.Metrics.AddReconcile("failed", stats.Failed)
	if r.Logger != nil {
		r.Logger.Info("reconcile done",
			zap.Int("candidates", len(candidates)),
			zap.Int("inserted", stats.Inserted),
			zap.Int("updated", stats.Updated),
			zap.Int("unchanged", stats.Unchanged),
			zap.Int("skipped", stats.Skipped),
			zap.Int("failed", stats.Failed),
		)
	}
	return stats
}

const (
	actionInserted  = "inserted"
	actionUpdated   = "updated"
	actionUnchanged = "unchanged"
	actionSkipped   = "skipped"
)

func (s ReconcileStats) total() int {
	return s.Inserted + s.Updated + s.Unchanged + s.Skipped + s.Failed
}

func (r *Reconciler) reconcileOne(ctx context.Context, c source.Candidate, now time.Time) (string, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" || c.StartTime.IsZero() || !c.Platform.Valid() {
		return "", fmt.Errorf("%w: incomplete candidate", source.ErrInvalidCandidate)
	}
	c.Name = name

	existing, err := r.Store.FindContestByKey(ctx, c.Name, c.Platform)
	if err != nil {
		return "", fmt.Errorf("find: %w", err)
	}
	if existing == nil {
		rec, err := newContestRecord(c, now)
		if err != nil {
			return "", err
		}
		err = r.Store.InsertContest(ctx, &rec)
		if err == nil {
			return actionInserted, nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return "", fmt.Errorf("insert: %w", err)
		}
		// lost the race to another cycle; merge into the winner's record instead
		existing, err = r.Store.FindContestByKey(ctx, c.Name, c.Platform)
		if err != nil {
			return "", fmt.Errorf("refetch after conflict: %w", err)
		}
		if existing == nil {
			return "", fmt.Errorf("refetch after conflict: %w", repository.ErrNotFound)
		}
	}

	var patch repository.ContestPatch
	if c.IsPlaceholderTiming {
		// tentative timing never replaces stored timing; only the link is refreshed
		if c.URL == "" || c.URL == existing.URL {
			return actionSkipped, nil
		}
		url := c.URL
		patch.URL = &url
	} else {
		patch = mergePatch(*existing, c, now)
	}
	if patch.Empty() {
		return actionUnchanged, nil
	}
	if err := r.Store.UpdateContestFields(ctx, existing.ID, patch); err != nil {
		return "", fmt.Errorf("update: %w", err)
	}
	return actionUpdated, nil
}

// newContestRecord builds the first stored version of a candidate, filling in a
// duration when the source did not provide one.
func newContestRecord(c source.Candidate, now time.Time) (models.Contest, error) {
	dur := c.DurationMinutes
	estimated := c.IsDurationEstimated
	if dur <= 0 {
		switch {
		case !c.EndTime.IsZero():
			dur = source.MinutesBetween(c.StartTime, c.EndTime)
		default:
			dur, estimated = source.DefaultDurationMinutes, true
		}
	}
	end := c.EndTime
	if end.IsZero() {
		end = c.StartTime.Add(time.Duration(dur) * time.Minute)
	}
	if !end.After(c.StartTime) {
		return models.Contest{}, fmt.Errorf("%w: end not after start", source.ErrInvalidCandidate)
	}
	return models.Contest{
		Name:                c.Name,
		Platform:            c.Platform,
		StartTime:           c.StartTime.UTC(),
		EndTime:             end.UTC(),
		DurationMinutes:     dur,
		URL:                 c.URL,
		Status:              source.DeriveStatus(c.StartTime, end, now),
		IsDurationEstimated: estimated,
		IsPlaceholderTiming: c.IsPlaceholderTiming,
	}, nil
}

// mergePatch is the field-level update for a confirmed candidate. When the
// timing changes the status is re-derived from it; with unchanged timing a
// stale source cannot move the status backwards.
func mergePatch(existing models.Contest, c source.Candidate, now time.Time) repository.ContestPatch {
	var patch repository.ContestPatch
	if c.URL != "" && c.URL != existing.URL {
		url := c.URL
		patch.URL = &url
	}

	start, end := existing.StartTime, existing.EndTime
	if !c.StartTime.Equal(existing.StartTime) {
		v := c.StartTime.UTC()
		patch.StartTime = &v
		start = v
	}
	if !c.EndTime.IsZero() && !c.EndTime.Equal(existing.EndTime) {
		v := c.EndTime.UTC()
		patch.EndTime = &v
		end = v
	}
	if c.DurationMinutes > 0 && c.DurationMinutes != existing.DurationMinutes {
		v := c.DurationMinutes
		patch.DurationMinutes = &v
	}
	if c.DurationMinutes > 0 && c.IsDurationEstimated != existing.IsDurationEstimated {
		v := c.IsDurationEstimated
		patch.IsDurationEstimated = &v
	}
	if existing.IsPlaceholderTiming {
		v := false
		patch.IsPlaceholderTiming = &v
	}

	status := source.DeriveStatus(start, end, now)
	timingChanged := patch.StartTime != nil || patch.EndTime != nil
	if !timingChanged && status.Rank() < existing.Status.Rank() {
		status = existing.Status
	}
	if status != existing.Status {
		patch.Status = &status
	}
	return patch
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Reconciler) logWarn(msg string, err error, fields ...zap.Field) {
	if r == nil || r.Logger == nil {
		return
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	r.Logger.Warn(msg, fields...)
}

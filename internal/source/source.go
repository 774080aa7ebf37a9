package source

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"contesttracker/internal/models"
)

var (
	// ErrNonSuccessPayload is returned when an API answers 2xx but reports failure in its body.
	ErrNonSuccessPayload = errors.New("source: non-success payload")
	ErrInvalidCandidate  = errors.New("source: invalid candidate")
)

// Adapter fetches one external source and returns validated candidates.
type Adapter interface {
	Name() string
	Platform() models.Platform
	Fetch(ctx context.Context) ([]Candidate, error)
}

// Candidate is a contest record produced by an Adapter and not yet persisted.
type Candidate struct {
	Name                string               `json:"name"`
	Platform            models.Platform      `json:"platform"`
	StartTime           time.Time            `json:"start_time"`
	EndTime             time.Time            `json:"end_time"`
	URL                 string               `json:"url"`
	DurationMinutes     int                  `json:"duration_minutes"`
	IsDurationEstimated bool                 `json:"is_duration_estimated"`
	IsPlaceholderTiming bool                 `json:"is_placeholder_timing"`
	Status              models.ContestStatus `json:"status"`
}

// DeriveStatus is the lifecycle state of a contest at now.
func DeriveStatus(start, end, now time.Time) models.ContestStatus {
	if now.Before(start) {
		return models.StatusUpcoming
	}
	if now.Before(end) {
		return models.StatusOngoing
	}
	return models.StatusPast
}

// MinutesBetween rounds (end-start) to whole minutes.
func MinutesBetween(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Minutes()))
}

// Finalize fills EndTime from the duration when missing, prefers the
// timestamp-derived duration when both ends are reliable, and sets Status.
func Finalize(c Candidate, now time.Time) (Candidate, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return c, fmt.Errorf("%w: missing name", ErrInvalidCandidate)
	}
	if !c.Platform.Valid() {
		return c, fmt.Errorf("%w: unknown platform %q", ErrInvalidCandidate, c.Platform)
	}
	if c.StartTime.IsZero() {
		return c, fmt.Errorf("%w: %s: missing start time", ErrInvalidCandidate, c.Name)
	}
	endReported := !c.EndTime.IsZero()
	if !endReported && c.DurationMinutes > 0 {
		c.EndTime = c.StartTime.Add(time.Duration(c.DurationMinutes) * time.Minute)
	}
	if c.EndTime.IsZero() {
		return c, fmt.Errorf("%w: %s: end time not derivable", ErrInvalidCandidate, c.Name)
	}
	if !c.EndTime.After(c.StartTime) {
		return c, fmt.Errorf("%w: %s: end %s not after start %s", ErrInvalidCandidate, c.Name,
			c.EndTime.Format(time.RFC3339), c.StartTime.Format(time.RFC3339))
	}
	if endReported && !c.IsPlaceholderTiming {
		c.DurationMinutes = MinutesBetween(c.StartTime, c.EndTime)
		c.IsDurationEstimated = false
	} else if c.DurationMinutes <= 0 {
		c.DurationMinutes = MinutesBetween(c.StartTime, c.EndTime)
	}
	c.StartTime = c.StartTime.UTC()
	c.EndTime = c.EndTime.UTC()
	c.Status = DeriveStatus(c.StartTime, c.EndTime, now)
	return c, nil
}

// Validate finalizes every candidate and drops the ones that fail, logging each drop.
func Validate(items []Candidate, now time.Time, logger *zap.Logger) []Candidate {
	out := make([]Candidate, 0, len(items))
	for _, item := range items {
		c, err := Finalize(item, now)
		if err != nil {
			if logger != nil {
				logger.Info("candidate dropped", zap.String("platform", string(item.Platform)), zap.Error(err))
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

// base carries what every adapter shares.
type base struct {
	Fetcher *Fetcher
	Retry   RetryPolicy
	Logger  *zap.Logger
	Now     func() time.Time
}

func (b *base) now() time.Time {
	if b.Now != nil {
		return b.Now().UTC()
	}
	return time.Now().UTC()
}

func (b *base) logWarn(msg string, err error, fields ...zap.Field) {
	if b == nil || b.Logger == nil {
		return
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	b.Logger.Warn(msg, fields...)
}

func (b *base) logInfo(msg string, fields ...zap.Field) {
	if b == nil || b.Logger == nil {
		return
	}
	b.Logger.Info(msg, fields...)
}

// primaryThenFallback runs the structured strategy under the retry policy and
// falls back to scraping only when it fails.
func (b *base) primaryThenFallback(
	ctx context.Context,
	name string,
	primary func(ctx context.Context) ([]Candidate, error),
	fallback func(ctx context.Context) ([]Candidate, error),
) ([]Candidate, error) {
	now := b.now()
	items, err := Retry(ctx, b.Retry, primary)
	if err == nil {
		out := Validate(items, now, b.Logger)
		b.logInfo("source fetched", zap.String("source", name), zap.String("strategy", "api"), zap.Int("count", len(out)))
		return out, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	b.logWarn("source api failed, falling back to scrape", err, zap.String("source", name))
	if fallback == nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	items, ferr := Retry(ctx, b.Retry, fallback)
	if ferr != nil {
		return nil, fmt.Errorf("%s: %w", name, errors.Join(err, ferr))
	}
	out := Validate(items, now, b.Logger)
	b.logInfo("source fetched", zap.String("source", name), zap.String("strategy", "scrape"), zap.Int("count", len(out)))
	return out, nil
}

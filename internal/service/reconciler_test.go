package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contesttracker/internal/models"
	"contesttracker/internal/repository"
	memoryrepository "contesttracker/internal/repository/memory"
	"contesttracker/internal/source"
)

func newReconciler(store *memoryrepository.Store, now time.Time) *Reconciler {
	return &Reconciler{
		Store:   store,
		Sweeper: &StatusEngine{Store: store},
		Now:     fixedClock(now),
	}
}

func mustFind(t *testing.T, store repository.ContestStore, name string, platform models.Platform) *models.Contest {
	t.Helper()
	c, err := store.FindContestByKey(context.Background(), name, platform)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func TestReconcile_InsertThenIdempotent(t *testing.T) {
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	store := memoryrepository.New()
	r := newReconciler(store, now)
	batch := []source.Candidate{
		candidate("Round 1", models.PlatformCodeforces, now.Add(time.Hour), 120),
		candidate("Weekly 400", models.PlatformLeetcode, now.Add(-30*time.Minute), 90),
	}

	stats := r.Reconcile(context.Background(), batch)
	assert.Equal(t, ReconcileStats{Inserted: 2}, stats)
	assert.Equal(t, models.StatusOngoing, mustFind(t, store, "Weekly 400", models.PlatformLeetcode).Status)

	stats = r.Reconcile(context.Background(), batch)
	assert.Equal(t, ReconcileStats{Unchanged: 2}, stats)

	items, err := store.ListContests(context.Background(), repository.ContestFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestReconcile_PlaceholderKeepsStoredTiming(t *testing.T) {
	now := time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC)
	store := memoryrepository.New()
	r := newReconciler(store, now)
	exact := time.Date(2024, 8, 21, 14, 30, 0, 0, time.UTC)
	require.Equal(t, 1, r.Reconcile(context.Background(), []source.Candidate{
		candidate("Starters 150", models.PlatformCodeChef, exact, 120),
	}).Inserted)

	placeholder := source.Candidate{
		Name:                "Starters 150",
		Platform:            models.PlatformCodeChef,
		StartTime:           time.Date(2024, 8, 21, 18, 30, 0, 0, time.UTC),
		DurationMinutes:     120,
		URL:                 "https://www.codechef.com/START150A",
		IsPlaceholderTiming: true,
	}
	stats := r.Reconcile(context.Background(), []source.Candidate{placeholder})
	assert.Equal(t, 1, stats.Updated)

	got := mustFind(t, store, "Starters 150", models.PlatformCodeChef)
	assert.True(t, got.StartTime.Equal(exact))
	assert.False(t, got.IsPlaceholderTiming)
	assert.Equal(t, "https://www.codechef.com/START150A", got.URL)

	// same link again: nothing to write
	stats = r.Reconcile(context.Background(), []source.Candidate{placeholder})
	assert.Equal(t, 1, stats.Skipped)
}

func TestReconcile_ConfirmedTimingReplacesPlaceholder(t *testing.T) {
	now := time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC)
	store := memoryrepository.New()
	r := newReconciler(store, now)
	r.Reconcile(context.Background(), []source.Candidate{{
		Name:                "Biweekly 132",
		Platform:            models.PlatformLeetcode,
		StartTime:           time.Date(2024, 8, 24, 0, 0, 0, 0, time.UTC),
		DurationMinutes:     90,
		IsDurationEstimated: true,
		IsPlaceholderTiming: true,
	}})
	stored := mustFind(t, store, "Biweekly 132", models.PlatformLeetcode)
	require.True(t, stored.IsPlaceholderTiming)

	exact := time.Date(2024, 8, 24, 14, 30, 0, 0, time.UTC)
	stats := r.Reconcile(context.Background(), []source.Candidate{
		candidate("Biweekly 132", models.PlatformLeetcode, exact, 90),
	})
	assert.Equal(t, 1, stats.Updated)
	got := mustFind(t, store, "Biweekly 132", models.PlatformLeetcode)
	assert.True(t, got.StartTime.Equal(exact))
	assert.True(t, got.EndTime.Equal(exact.Add(90*time.Minute)))
	assert.False(t, got.IsPlaceholderTiming)
	assert.False(t, got.IsDurationEstimated)
}

func TestReconcile_MissingDurationFallsBack(t *testing.T) {
	now := time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC)
	store := memoryrepository.New()
	r := newReconciler(store, now)
	start := now.Add(48 * time.Hour)
	r.Reconcile(context.Background(), []source.Candidate{{
		Name:      "Starters 151",
		Platform:  models.PlatformCodeChef,
		StartTime: start,
	}})
	got := mustFind(t, store, "Starters 151", models.PlatformCodeChef)
	assert.Equal(t, source.DefaultDurationMinutes, got.DurationMinutes)
	assert.True(t, got.IsDurationEstimated)
	assert.True(t, got.EndTime.Equal(start.Add(time.Duration(source.DefaultDurationMinutes)*time.Minute)))
}

func TestReconcile_RescheduleRederivesStatus(t *testing.T) {
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	store := memoryrepository.New()
	r := newReconciler(store, now)
	r.Reconcile(context.Background(), []source.Candidate{
		candidate("Round 5", models.PlatformCodeforces, now.Add(-3*time.Hour), 120),
	})
	require.Equal(t, models.StatusPast, mustFind(t, store, "Round 5", models.PlatformCodeforces).Status)

	later := now.Add(24 * time.Hour)
	stats := r.Reconcile(context.Background(), []source.Candidate{
		candidate("Round 5", models.PlatformCodeforces, later, 120),
	})
	assert.Equal(t, 1, stats.Updated)
	got := mustFind(t, store, "Round 5", models.PlatformCodeforces)
	assert.True(t, got.StartTime.Equal(later))
	assert.Equal(t, models.StatusUpcoming, got.Status)
}

func TestReconcile_UnchangedTimingKeepsAdvancedStatus(t *testing.T) {
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	store := memoryrepository.New()
	start := now.Add(-3 * time.Hour)
	newReconciler(store, now).Reconcile(context.Background(), []source.Candidate{
		candidate("Round 6", models.PlatformCodeforces, start, 120),
	})
	require.Equal(t, models.StatusPast, mustFind(t, store, "Round 6", models.PlatformCodeforces).Status)

	// a cycle evaluated with an older clock sees the same timing as upcoming
	stale := newReconciler(store, now.Add(-4*time.Hour))
	stats := stale.Reconcile(context.Background(), []source.Candidate{
		candidate("Round 6", models.PlatformCodeforces, start, 120),
	})
	assert.Equal(t, 1, stats.Unchanged)
	assert.Equal(t, models.StatusPast, mustFind(t, store, "Round 6", models.PlatformCodeforces).Status)
}

// racingStore hides the first lookup so the insert collides with a row written
// by a concurrent cycle.
type racingStore struct {
	*memoryrepository.Store
	hidden bool
}

func (s *racingStore) FindContestByKey(ctx context.Context, name string, platform models.Platform) (*models.Contest, error) {
	if !s.hidden {
		s.hidden = true
		return nil, nil
	}
	return s.Store.FindContestByKey(ctx, name, platform)
}

func TestReconcile_DuplicateKeyMergesIntoWinner(t *testing.T) {
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	mem := memoryrepository.New()
	start := now.Add(time.Hour)
	require.NoError(t, mem.InsertContest(context.Background(), &models.Contest{
		Name:            "Round 9",
		Platform:        models.PlatformCodeforces,
		StartTime:       start,
		EndTime:         start.Add(2 * time.Hour),
		DurationMinutes: 120,
		Status:          models.StatusUpcoming,
	}))

	r := &Reconciler{Store: &racingStore{Store: mem}, Now: fixedClock(now)}
	stats := r.Reconcile(context.Background(), []source.Candidate{
		candidate("Round 9", models.PlatformCodeforces, start, 120),
	})
	assert.Equal(t, ReconcileStats{Updated: 1}, stats)

	items, err := mem.ListContests(context.Background(), repository.ContestFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://example.com/Round 9", items[0].URL)
}

func TestReconcile_CountsInvalidAsFailed(t *testing.T) {
	store := memoryrepository.New()
	r := newReconciler(store, time.Now())
	stats := r.Reconcile(context.Background(), []source.Candidate{{Name: " ", Platform: models.PlatformLeetcode}})
	assert.Equal(t, ReconcileStats{Failed: 1}, stats)
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contesttracker/internal/models"
	memoryrepository "contesttracker/internal/repository/memory"
)

func seed(t *testing.T, store *memoryrepository.Store, name string, start time.Time, minutes int, status models.ContestStatus) {
	t.Helper()
	require.NoError(t, store.InsertContest(context.Background(), &models.Contest{
		Name:            name,
		Platform:        models.PlatformCodeforces,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
		Status:          status,
	}))
}

func TestStatusEngine_Sweep(t *testing.T) {
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	store := memoryrepository.New()
	seed(t, store, "starting", now.Add(-10*time.Minute), 120, models.StatusUpcoming)
	seed(t, store, "finishing", now.Add(-3*time.Hour), 120, models.StatusOngoing)
	seed(t, store, "missed entirely", now.Add(-5*time.Hour), 60, models.StatusUpcoming)
	seed(t, store, "future", now.Add(time.Hour), 60, models.StatusUpcoming)
	seed(t, store, "starts exactly now", now, 60, models.StatusUpcoming)

	e := &StatusEngine{Store: store}
	res, err := e.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Started)
	assert.Equal(t, int64(2), res.Finished)
	assert.Equal(t, int64(1), res.After[models.StatusUpcoming])
	assert.Equal(t, int64(2), res.After[models.StatusOngoing])
	assert.Equal(t, int64(2), res.After[models.StatusPast])

	missed, err := store.FindContestByKey(context.Background(), "missed entirely", models.PlatformCodeforces)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPast, missed.Status)

	// a second sweep at the same instant is a no-op
	res, err = e.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, res.Started)
	assert.Zero(t, res.Finished)
}

func TestStatusEngine_NilStore(t *testing.T) {
	res, err := (&StatusEngine{}).Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, res.Started)
}

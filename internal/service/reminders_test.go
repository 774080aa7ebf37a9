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

func TestReminderService_Set(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	store := memoryrepository.New()
	seed(t, store, "future", now.Add(2*time.Hour), 120, models.StatusUpcoming)
	seed(t, store, "running", now.Add(-time.Hour), 120, models.StatusOngoing)
	svc := &ReminderService{Contests: store, Reminders: store, Now: fixedClock(now)}

	_, err := svc.Set(ctx, "u1", 1, models.LeadTime("15min"))
	assert.ErrorIs(t, err, ErrInvalidLeadTime)

	_, err = svc.Set(ctx, "u1", 99, models.LeadTime30Min)
	assert.ErrorIs(t, err, ErrContestNotFound)

	_, err = svc.Set(ctx, "u1", 2, models.LeadTime30Min)
	assert.ErrorIs(t, err, ErrContestStarted)

	item, err := svc.Set(ctx, "u1", 1, models.LeadTime30Min)
	require.NoError(t, err)
	assert.Equal(t, models.LeadTime30Min, item.LeadTime)

	// a new lead time replaces the old one
	item, err = svc.Set(ctx, "u1", 1, models.LeadTime1Hour)
	require.NoError(t, err)
	assert.Equal(t, models.LeadTime1Hour, item.LeadTime)

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.LeadTime1Hour, list[0].LeadTime)
}

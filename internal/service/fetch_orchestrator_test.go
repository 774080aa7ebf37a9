package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contesttracker/internal/models"
	memoryrepository "contesttracker/internal/repository/memory"
	"contesttracker/internal/source"
)

func TestFetchOrchestrator_IsolatesFailingSources(t *testing.T) {
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	store := memoryrepository.New()
	good := &stubAdapter{name: "leetcode", items: []source.Candidate{
		candidate("Weekly 400", models.PlatformLeetcode, now.Add(time.Hour), 90),
		candidate("Weekly 401", models.PlatformLeetcode, now.Add(8*24*time.Hour), 90),
	}}
	failing := &stubAdapter{name: "codeforces", err: errors.New("http 503")}
	panicking := &stubAdapter{name: "codechef", panics: true}

	o := &FetchOrchestrator{
		Sources:   []source.Adapter{failing, good, panicking},
		SyncStore: store,
		Now:       fixedClock(now),
	}
	merged, results := o.Fetch(context.Background(), "run-1")

	require.Len(t, merged, 2)
	assert.Equal(t, "Weekly 400", merged[0].Name)
	require.Len(t, results, 3)
	assert.Equal(t, "http 503", results[0].Error)
	assert.Equal(t, 2, results[1].Count)
	assert.Contains(t, results[2].Error, "panic")
	assert.Empty(t, results[2].Candidates)

	st, err := store.GetSyncState(context.Background(), "source:codeforces")
	require.NoError(t, err)
	require.NotNil(t, st.LastError)
	assert.Nil(t, st.LastSuccessAt)
	assert.Equal(t, "run-1", *st.LastRunID)

	st, err = store.GetSyncState(context.Background(), "source:leetcode")
	require.NoError(t, err)
	assert.Nil(t, st.LastError)
	require.NotNil(t, st.LastSuccessAt)
	assert.True(t, st.LastSuccessAt.Equal(now))
}

func TestFetchOrchestrator_KeepsLastSuccessOnFailure(t *testing.T) {
	first := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	store := memoryrepository.New()
	adapter := &stubAdapter{name: "codeforces"}
	o := &FetchOrchestrator{Sources: []source.Adapter{adapter}, SyncStore: store, Now: fixedClock(first)}
	o.FetchAll(context.Background())

	adapter.err = errors.New("timeout")
	o.Now = fixedClock(first.Add(4 * time.Hour))
	assert.Empty(t, o.FetchAll(context.Background()))

	st, err := store.GetSyncState(context.Background(), "source:codeforces")
	require.NoError(t, err)
	require.NotNil(t, st.LastSuccessAt)
	assert.True(t, st.LastSuccessAt.Equal(first))
	assert.True(t, st.LastAttemptAt.Equal(first.Add(4*time.Hour)))
}

func TestFetchOrchestrator_AllFailIsEmpty(t *testing.T) {
	o := &FetchOrchestrator{Sources: []source.Adapter{
		&stubAdapter{name: "a", err: errors.New("x")},
		&stubAdapter{name: "b", err: errors.New("y")},
	}}
	assert.Empty(t, o.FetchAll(context.Background()))
}

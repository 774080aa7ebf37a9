package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contesttracker/internal/lock"
	"contesttracker/internal/models"
	memoryrepository "contesttracker/internal/repository/memory"
	"contesttracker/internal/source"
)

func newAggregator(store *memoryrepository.Store, locker lock.Locker, adapters ...source.Adapter) *Aggregator {
	return &Aggregator{
		Orchestrator: &FetchOrchestrator{Sources: adapters, SyncStore: store},
		Reconciler:   &Reconciler{Store: store, Sweeper: &StatusEngine{Store: store}},
		Locker:       locker,
		LockTTL:      time.Minute,
		SyncStore:    store,
	}
}

func TestAggregator_RunFetchesAndReconciles(t *testing.T) {
	store := memoryrepository.New()
	start := time.Now().UTC().Add(24 * time.Hour)
	adapter := &stubAdapter{name: "codeforces", items: []source.Candidate{
		candidate("Round 11", models.PlatformCodeforces, start, 120),
	}}
	a := newAggregator(store, lock.NewMemoryLocker(), adapter)

	res, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 1, res.Candidates)
	assert.Equal(t, 1, res.Reconcile.Inserted)

	st, err := store.GetSyncState(context.Background(), "aggregate")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, res.RunID, *st.LastRunID)

	// lock released: a second run proceeds and changes nothing
	res, err = a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reconcile.Unchanged)
}

func TestAggregator_LockHeldElsewhere(t *testing.T) {
	store := memoryrepository.New()
	locker := lock.NewMemoryLocker()
	release, err := locker.Acquire(context.Background(), "aggregate", time.Minute)
	require.NoError(t, err)
	defer release(context.Background())

	adapter := &stubAdapter{name: "codeforces"}
	a := newAggregator(store, locker, adapter)
	_, err = a.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Zero(t, adapter.calls)
}

type blockingAdapter struct {
	stubAdapter
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingAdapter) Fetch(ctx context.Context) ([]source.Candidate, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.stubAdapter.Fetch(ctx)
}

func TestAggregator_ConcurrentTriggersShareOneCycle(t *testing.T) {
	store := memoryrepository.New()
	adapter := &blockingAdapter{
		stubAdapter: stubAdapter{name: "codeforces"},
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	a := newAggregator(store, lock.NewMemoryLocker(), adapter)

	var wg sync.WaitGroup
	results := make([]AggregationResult, 2)
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = a.Run(context.Background())
	}()
	<-adapter.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = a.Run(context.Background())
	}()
	// give the second trigger time to join the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(adapter.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, adapter.calls)
	assert.Equal(t, results[0].RunID, results[1].RunID)
}

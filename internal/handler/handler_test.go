package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contesttracker/internal/lock"
	"contesttracker/internal/models"
	memoryrepository "contesttracker/internal/repository/memory"
	"contesttracker/internal/service"
)

type fixture struct {
	router *gin.Engine
	store  *memoryrepository.Store
	locker *lock.MemoryLocker
}

func setupRouter(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memoryrepository.New()
	locker := lock.NewMemoryLocker()
	sweeper := &service.StatusEngine{Store: store}
	aggregator := &service.Aggregator{
		Orchestrator: &service.FetchOrchestrator{SyncStore: store},
		Reconciler:   &service.Reconciler{Store: store, Sweeper: sweeper},
		Locker:       locker,
		SyncStore:    store,
	}

	now := time.Now().UTC()
	for i, c := range []models.Contest{
		{Name: "Round 1", Platform: models.PlatformCodeforces, StartTime: now.Add(2 * time.Hour), Status: models.StatusUpcoming},
		{Name: "Weekly 400", Platform: models.PlatformLeetcode, StartTime: now.Add(-time.Hour), Status: models.StatusOngoing},
		{Name: "Starters 149", Platform: models.PlatformCodeChef, StartTime: now.Add(-48 * time.Hour), Status: models.StatusPast},
	} {
		c.EndTime = c.StartTime.Add(2 * time.Hour)
		c.DurationMinutes = 120
		require.NoError(t, store.InsertContest(context.Background(), &c), "seed %d", i)
	}

	r := gin.New()
	(&HealthHandler{Checks: map[string]PingFunc{
		"ok": func(context.Context) error { return nil },
	}}).Register(r)
	(&ContestHandler{Aggregator: aggregator, Sweeper: sweeper, Store: store, SyncStore: store}).Register(r)
	(&ReminderHandler{Service: &service.ReminderService{Contests: store, Reminders: store}}).Register(r)
	return &fixture{router: r, store: store, locker: locker}
}

func (f *fixture) do(method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, apiResponse) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	var resp apiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestListContests_FilterByStatus(t *testing.T) {
	f := setupRouter(t)
	w, resp := f.do(http.MethodGet, "/api/contests?status=upcoming,ongoing", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	items, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Len(t, items, 2)
	assert.EqualValues(t, 2, resp.Meta["count"])

	w, _ = f.do(http.MethodGet, "/api/contests?platform=Leetcode", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(http.MethodGet, "/api/contests?status=finished", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(http.MethodGet, "/api/contests?platform=Topcoder", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunAggregation(t *testing.T) {
	f := setupRouter(t)
	w, _ := f.do(http.MethodPost, "/api/contests/update", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	release, err := f.locker.Acquire(context.Background(), "aggregate", time.Minute)
	require.NoError(t, err)
	defer release(context.Background())
	w, resp := f.do(http.MethodPost, "/api/contests/update", nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, service.ErrAlreadyRunning.Error(), resp.Message)
}

func TestRunSweepAndSyncState(t *testing.T) {
	f := setupRouter(t)
	w, _ := f.do(http.MethodPost, "/api/contests/sweep", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, _ = f.do(http.MethodPost, "/api/contests/update", nil, nil)
	w, resp := f.do(http.MethodGet, "/api/sync-state", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	states, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Len(t, states, 1)
}

func TestSetReminder(t *testing.T) {
	f := setupRouter(t)

	w, _ := f.do(http.MethodPut, "/api/reminders", map[string]any{"contest_id": 1, "lead_time": "30min"}, map[string]string{"X-User-ID": "u1"})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(http.MethodPut, "/api/reminders", map[string]any{"user_id": "u1", "contest_id": 1, "lead_time": "2hours"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(http.MethodPut, "/api/reminders", map[string]any{"user_id": "u1", "contest_id": 42, "lead_time": "1hour"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(http.MethodPut, "/api/reminders", map[string]any{"user_id": "u1", "contest_id": 2, "lead_time": "1hour"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(http.MethodPut, "/api/reminders", map[string]any{"contest_id": 1, "lead_time": "1hour"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp := f.do(http.MethodGet, "/api/reminders?user_id=u1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	items, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Len(t, items, 1)
}

func TestHealth(t *testing.T) {
	f := setupRouter(t)
	w, _ := f.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = f.do(http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	r := gin.New()
	(&HealthHandler{Checks: map[string]PingFunc{
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	}}).Register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

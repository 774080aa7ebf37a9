package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contesttracker/internal/config"
	"contesttracker/internal/models"
	"contesttracker/internal/notify"
)

func memoryConfig() config.Config {
	var cfg config.Config
	cfg.DB.Driver = "memory"
	cfg.Lock.TTL = time.Minute
	cfg.Sources.Codeforces.Enabled = true
	return cfg
}

func TestNew_MemoryWiring(t *testing.T) {
	a, err := New(memoryConfig(), nil)
	require.NoError(t, err)
	defer a.Close()

	require.Len(t, a.Sources, 1)
	assert.Equal(t, "codeforces", a.Sources[0].Name())
	assert.NotNil(t, a.CodeChef)
	assert.IsType(t, &notify.LogTransport{}, a.Dispatcher.Transport)
	assert.Empty(t, a.Pings)

	res, err := a.Sweeper.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, res.Started)
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.DB.Driver = "mysql"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestRetryPolicy_FromConfig(t *testing.T) {
	p := RetryPolicy(config.RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, Multiplier: 2})
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, time.Second, p.BaseDelay)
	assert.Equal(t, 4*time.Second, p.Backoff(2))
	// unset fields keep the defaults
	assert.Equal(t, 15*time.Second, p.AttemptTimeout)
	assert.Equal(t, time.Second, p.JitterMin)
}

func TestMailTransport_SMTPWhenConfigured(t *testing.T) {
	tr := mailTransport(config.MailConfig{Enabled: true, Host: "smtp.example.com", Port: 587}, nil)
	assert.IsType(t, &notify.SMTPTransport{}, tr)
}

func TestNew_DisabledMailKeepsRemindersUnsent(t *testing.T) {
	a, err := New(memoryConfig(), nil)
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Minute)
	contest := models.Contest{
		Name:            "Round 9",
		Platform:        models.PlatformCodeforces,
		StartTime:       now.Add(30 * time.Minute),
		EndTime:         now.Add(150 * time.Minute),
		DurationMinutes: 120,
		Status:          models.StatusUpcoming,
	}
	require.NoError(t, a.Store.InsertContest(ctx, &contest))
	require.NoError(t, a.Store.UpsertUser(ctx, &models.User{ID: "u1", Email: "u1@example.com"}))
	_, err = a.Reminders.Set(ctx, "u1", contest.ID, models.LeadTime30Min)
	require.NoError(t, err)

	stats := a.Scheduler.Tick(ctx, now)
	assert.Equal(t, 1, stats.Due)
	assert.Equal(t, 0, stats.Sent)
	assert.Equal(t, 1, stats.Failed)

	unsent, err := a.Store.FindUnsentReminders(ctx, contest.ID, models.LeadTime30Min)
	require.NoError(t, err)
	assert.Len(t, unsent, 1)
}

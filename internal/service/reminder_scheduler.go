package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"contesttracker/internal/metrics"
	"contesttracker/internal/models"
	"contesttracker/internal/repository"
	"contesttracker/internal/source"
)

// ReminderSender is the dispatch boundary; false means "not delivered, try again".
type ReminderSender interface {
	Send(ctx context.Context, email, contestName, platform string, startTime time.Time, url string) bool
}

// leadWindow is the inclusive minutesUntilStart range in which a lead time fires.
// The two-minute tolerance absorbs poll jitter; an exact match would miss ticks.
type leadWindow struct {
	lead   models.LeadTime
	lo, hi int
}

var leadWindows = []leadWindow{
	{lead: models.LeadTime30Min, lo: 29, hi: 31},
	{lead: models.LeadTime1Hour, lo: 59, hi: 61},
}

// lookahead bounds the contest query to what any window can still match.
const lookahead = 62 * time.Minute

type TickStats struct {
	Contests int `json:"contests"`
	Due      int `json:"due"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
}

// ReminderScheduler polls for contests entering a reminder window and sends each
// unsent reminder once. A reminder is marked sent only after a confirmed send,
// so a failure is retried by the next tick inside the same window.
type ReminderScheduler struct {
	Contests   repository.ContestStore
	Reminders  repository.ReminderStore
	Users      repository.UserDirectory
	Dispatcher ReminderSender
	Interval   time.Duration
	Metrics    *metrics.Pipeline
	Logger     *zap.Logger
	Now        func() time.Time
}

func (s *ReminderScheduler) Run(ctx context.Context) error {
	if s == nil || s.Contests == nil || s.Reminders == nil {
		return nil
	}
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	s.Tick(ctx, s.now())

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.Tick(ctx, s.now())
		}
	}
}

func (s *ReminderScheduler) Tick(ctx context.Context, now time.Time) TickStats {
	var stats TickStats
	if s == nil || s.Contests == nil || s.Reminders == nil {
		return stats
	}
	now = now.UTC()
	horizon := now.Add(lookahead)
	contests, err := s.Contests.ListContests(ctx, repository.ContestFilter{
		Statuses:    []models.ContestStatus{models.StatusUpcoming},
		StartAfter:  &now,
		StartBefore: &horizon,
	})
	if err != nil {
		s.logWarn("list upcoming contests failed", err)
		return stats
	}
	stats.Contests = len(contests)

	for _, contest := range contests {
		minutes := source.MinutesBetween(now, contest.StartTime)
		for _, w := range leadWindows {
			if minutes < w.lo || minutes > w.hi {
				continue
			}
			s.dispatchWindow(ctx, contest, w.lead, minutes, &stats)
		}
	}
	if stats.Due > 0 && s.Logger != nil {
		s.Logger.Info("reminder tick",
			zap.Int("contests", stats.Contests),
			zap.Int("due", stats.Due),
			zap.Int("sent", stats.Sent),
			zap.Int("failed", stats.Failed),
		)
	}
	return stats
}

func (s *ReminderScheduler) dispatchWindow(ctx context.Context, contest models.Contest, lead models.LeadTime, minutes int, stats *TickStats) {
	reminders, err := s.Reminders.FindUnsentReminders(ctx, contest.ID, lead)
	if err != nil {
		s.logWarn("find unsent reminders failed", err, zap.Uint64("contest_id", contest.ID))
		return
	}
	for _, r := range reminders {
		stats.Due++
		if s.dispatchOne(ctx, contest, r) {
			stats.Sent++
			s.Metrics.IncReminder(string(lead), true)
			continue
		}
		stats.Failed++
		s.Metrics.IncReminder(string(lead), false)
		if s.Logger != nil {
			s.Logger.Debug("reminder left unsent",
				zap.Uint64("reminder_id", r.ID),
				zap.Int("minutes_until_start", minutes),
			)
		}
	}
}

func (s *ReminderScheduler) dispatchOne(ctx context.Context, contest models.Contest, r models.Reminder) bool {
	if s.Users == nil || s.Dispatcher == nil {
		return false
	}
	email, err := s.Users.FindEmailByID(ctx, r.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logWarn("user lookup failed", err, zap.String("user_id", r.UserID))
		} else {
			s.logWarn("reminder owner has no email", nil, zap.String("user_id", r.UserID), zap.Uint64("reminder_id", r.ID))
		}
		return false
	}
	if !s.Dispatcher.Send(ctx, email, contest.Name, string(contest.Platform), contest.StartTime, contest.URL) {
		return false
	}
	if err := s.Reminders.MarkReminderSent(ctx, r.ID, s.now()); err != nil {
		// delivered but not recorded: the next tick in the window may send again
		s.logWarn("mark reminder sent failed", err, zap.Uint64("reminder_id", r.ID))
		return false
	}
	return true
}

func (s *ReminderScheduler) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *ReminderScheduler) logWarn(msg string, err error, fields ...zap.Field) {
	if s == nil || s.Logger == nil {
		return
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	s.Logger.Warn(msg, fields...)
}

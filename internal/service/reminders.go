package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"contesttracker/internal/models"
	"contesttracker/internal/repository"
)

var (
	ErrInvalidLeadTime = errors.New("lead time must be 30min or 1hour")
	ErrContestNotFound = errors.New("contest not found")
	ErrContestStarted  = errors.New("contest has already started")
)

// ReminderService records user reminder requests.
type ReminderService struct {
	Contests  repository.ContestStore
	Reminders repository.ReminderStore
	Now       func() time.Time
}

// Set creates or overwrites the user's reminder for a contest. Changing the lead
// time re-arms a reminder that was already sent.
func (s *ReminderService) Set(ctx context.Context, userID string, contestID uint64, lead models.LeadTime) (*models.Reminder, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("user id required")
	}
	if !lead.Valid() {
		return nil, ErrInvalidLeadTime
	}
	contest, err := s.Contests.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if contest == nil {
		return nil, ErrContestNotFound
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	if !contest.StartTime.After(now) || contest.Status != models.StatusUpcoming {
		return nil, ErrContestStarted
	}
	item := &models.Reminder{UserID: userID, ContestID: contestID, LeadTime: lead}
	if err := s.Reminders.UpsertReminder(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *ReminderService) List(ctx context.Context, userID string) ([]models.Reminder, error) {
	return s.Reminders.ListRemindersByUser(ctx, strings.TrimSpace(userID))
}

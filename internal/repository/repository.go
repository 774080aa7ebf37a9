package repository

import (
	"context"
	"errors"
	"time"

	"contesttracker/internal/models"
)

var (
	// ErrDuplicateKey is returned by InsertContest when (name, platform) already exists.
	ErrDuplicateKey = errors.New("repository: duplicate key")
	ErrNotFound     = errors.New("repository: not found")
)

type ContestStore interface {
	// FindContestByKey returns nil, nil when no record matches.
	FindContestByKey(ctx context.Context, name string, platform models.Platform) (*models.Contest, error)
	GetContest(ctx context.Context, id uint64) (*models.Contest, error)
	InsertContest(ctx context.Context, item *models.Contest) error
	UpdateContestFields(ctx context.Context, id uint64, patch ContestPatch) error
	BulkUpdateContestStatus(ctx context.Context, filter ContestFilter, status models.ContestStatus) (int64, error)
	ListContests(ctx context.Context, filter ContestFilter) ([]models.Contest, error)
	CountContestsByStatus(ctx context.Context) (map[models.ContestStatus]int64, error)
}

type ReminderStore interface {
	FindUnsentReminders(ctx context.Context, contestID uint64, lead models.LeadTime) ([]models.Reminder, error)
	MarkReminderSent(ctx context.Context, id uint64, sentAt time.Time) error
	// UpsertReminder overwrites the lead time of an existing (user, contest) reminder and resets sent.
	UpsertReminder(ctx context.Context, item *models.Reminder) error
	ListRemindersByUser(ctx context.Context, userID string) ([]models.Reminder, error)
}

type UserDirectory interface {
	FindEmailByID(ctx context.Context, userID string) (string, error)
	UpsertUser(ctx context.Context, item *models.User) error
}

type SyncStateStore interface {
	GetSyncState(ctx context.Context, scope string) (*models.SyncState, error)
	SaveSyncState(ctx context.Context, state *models.SyncState) error
	ListSyncStates(ctx context.Context) ([]models.SyncState, error)
}

// Repository is the full store surface used by the pipeline and the HTTP layer.
type Repository interface {
	ContestStore
	ReminderStore
	UserDirectory
	SyncStateStore
}

// ContestFilter selects contests. Zero fields are ignored. StartAfter is exclusive, the
// other time bounds are inclusive.
type ContestFilter struct {
	Statuses    []models.ContestStatus
	Platform    models.Platform
	StartBefore *time.Time
	StartAfter  *time.Time
	EndBefore   *time.Time
	Limit       int
	Offset      int
}

// ContestPatch is a field-level update; nil fields are left untouched.
type ContestPatch struct {
	URL                 *string
	Status              *models.ContestStatus
	StartTime           *time.Time
	EndTime             *time.Time
	DurationMinutes     *int
	IsDurationEstimated *bool
	IsPlaceholderTiming *bool
}

func (p ContestPatch) Empty() bool {
	return p.URL == nil && p.Status == nil && p.StartTime == nil && p.EndTime == nil &&
		p.DurationMinutes == nil && p.IsDurationEstimated == nil && p.IsPlaceholderTiming == nil
}

// Apply copies the non-nil patch fields onto c.
func (p ContestPatch) Apply(c *models.Contest) {
	if c == nil {
		return
	}
	if p.URL != nil {
		c.URL = *p.URL
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.StartTime != nil {
		c.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		c.EndTime = *p.EndTime
	}
	if p.DurationMinutes != nil {
		c.DurationMinutes = *p.DurationMinutes
	}
	if p.IsDurationEstimated != nil {
		c.IsDurationEstimated = *p.IsDurationEstimated
	}
	if p.IsPlaceholderTiming != nil {
		c.IsPlaceholderTiming = *p.IsPlaceholderTiming
	}
}

// Matches reports whether c satisfies the filter (limit/offset aside).
func (f ContestFilter) Matches(c models.Contest) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, st := range f.Statuses {
			if c.Status == st {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.Platform != "" && c.Platform != f.Platform {
		return false
	}
	if f.StartBefore != nil && c.StartTime.After(*f.StartBefore) {
		return false
	}
	if f.StartAfter != nil && !c.StartTime.After(*f.StartAfter) {
		return false
	}
	if f.EndBefore != nil && c.EndTime.After(*f.EndBefore) {
		return false
	}
	return true
}

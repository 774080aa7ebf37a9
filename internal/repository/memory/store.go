package memoryrepository

import (
	"context"
	"sort"
	"sync"
	"time"

	"contesttracker/internal/models"
	"contesttracker/internal/repository"
)

type contestKey struct {
	name     string
	platform models.Platform
}

type reminderKey struct {
	userID    string
	contestID uint64
}

// Store is an in-process Repository. Unique keys match the postgres schema.
type Store struct {
	mu sync.RWMutex

	contestSeq  uint64
	contests    map[uint64]models.Contest
	contestKeys map[contestKey]uint64

	reminderSeq  uint64
	reminders    map[uint64]models.Reminder
	reminderKeys map[reminderKey]uint64

	users      map[string]models.User
	syncStates map[string]models.SyncState
}

func New() *Store {
	return &Store{
		contests:     map[uint64]models.Contest{},
		contestKeys:  map[contestKey]uint64{},
		reminders:    map[uint64]models.Reminder{},
		reminderKeys: map[reminderKey]uint64{},
		users:        map[string]models.User{},
		syncStates:   map[string]models.SyncState{},
	}
}

func (s *Store) FindContestByKey(ctx context.Context, name string, platform models.Platform) (*models.Contest, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.contestKeys[contestKey{name: name, platform: platform}]
	if !ok {
		return nil, nil
	}
	item := s.contests[id]
	return &item, nil
}

func (s *Store) GetContest(ctx context.Context, id uint64) (*models.Contest, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.contests[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) InsertContest(ctx context.Context, item *models.Contest) error {
	_ = ctx
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := contestKey{name: item.Name, platform: item.Platform}
	if _, exists := s.contestKeys[key]; exists {
		return repository.ErrDuplicateKey
	}
	s.contestSeq++
	now := time.Now().UTC()
	item.ID = s.contestSeq
	item.CreatedAt = now
	item.UpdatedAt = now
	s.contests[item.ID] = *item
	s.contestKeys[key] = item.ID
	return nil
}

func (s *Store) UpdateContestFields(ctx context.Context, id uint64, patch repository.ContestPatch) error {
	_ = ctx
	if patch.Empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.contests[id]
	if !ok {
		return repository.ErrNotFound
	}
	patch.Apply(&item)
	item.UpdatedAt = time.Now().UTC()
	s.contests[id] = item
	return nil
}

func (s *Store) BulkUpdateContestStatus(ctx context.Context, filter repository.ContestFilter, status models.ContestStatus) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for id, item := range s.contests {
		if !filter.Matches(item) {
			continue
		}
		item.Status = status
		item.UpdatedAt = now
		s.contests[id] = item
		n++
	}
	return n, nil
}

func (s *Store) ListContests(ctx context.Context, filter repository.ContestFilter) ([]models.Contest, error) {
	_ = ctx
	s.mu.RLock()
	out := make([]models.Contest, 0, len(s.contests))
	for _, item := range s.contests {
		if filter.Matches(item) {
			out = append(out, item)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) CountContestsByStatus(ctx context.Context) (map[models.ContestStatus]int64, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[models.ContestStatus]int64{}
	for _, item := range s.contests {
		out[item.Status]++
	}
	return out, nil
}

func (s *Store) FindUnsentReminders(ctx context.Context, contestID uint64, lead models.LeadTime) ([]models.Reminder, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Reminder
	for _, r := range s.reminders {
		if r.ContestID == contestID && r.LeadTime == lead && !r.Sent {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) MarkReminderSent(ctx context.Context, id uint64, sentAt time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return repository.ErrNotFound
	}
	at := sentAt.UTC()
	r.Sent = true
	r.SentAt = &at
	r.UpdatedAt = time.Now().UTC()
	s.reminders[id] = r
	return nil
}

func (s *Store) UpsertReminder(ctx context.Context, item *models.Reminder) error {
	_ = ctx
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	key := reminderKey{userID: item.UserID, contestID: item.ContestID}
	if id, ok := s.reminderKeys[key]; ok {
		existing := s.reminders[id]
		existing.LeadTime = item.LeadTime
		existing.Sent = false
		existing.SentAt = nil
		existing.UpdatedAt = now
		s.reminders[id] = existing
		*item = existing
		return nil
	}
	s.reminderSeq++
	item.ID = s.reminderSeq
	item.Sent = false
	item.SentAt = nil
	item.CreatedAt = now
	item.UpdatedAt = now
	s.reminders[item.ID] = *item
	s.reminderKeys[key] = item.ID
	return nil
}

func (s *Store) ListRemindersByUser(ctx context.Context, userID string) ([]models.Reminder, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Reminder
	for _, r := range s.reminders {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindEmailByID(ctx context.Context, userID string) (string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok || u.Email == "" {
		return "", repository.ErrNotFound
	}
	return u.Email, nil
}

func (s *Store) UpsertUser(ctx context.Context, item *models.User) error {
	_ = ctx
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.users[item.ID]; ok {
		item.CreatedAt = existing.CreatedAt
	} else {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	s.users[item.ID] = *item
	return nil
}

func (s *Store) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.syncStates[scope]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *Store) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	_ = ctx
	if state == nil {
		return nil
	}
	s.mu.Lock()
	s.syncStates[state.Scope] = *state
	s.mu.Unlock()
	return nil
}

func (s *Store) ListSyncStates(ctx context.Context) ([]models.SyncState, error) {
	_ = ctx
	s.mu.RLock()
	out := make([]models.SyncState, 0, len(s.syncStates))
	for _, st := range s.syncStates {
		out = append(out, st)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Scope < out[j].Scope })
	return out, nil
}

var _ repository.Repository = (*Store)(nil)

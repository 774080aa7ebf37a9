package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"contesttracker/internal/models"
	"contesttracker/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- contests ---------------------------------------------------------------

func (s *Store) FindContestByKey(ctx context.Context, name string, platform models.Platform) (*models.Contest, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Contest
	err := s.db.WithContext(ctx).
		Where("name = ? AND platform = ?", name, platform).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetContest(ctx context.Context, id uint64) (*models.Contest, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Contest
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// InsertContest is a conditional write on (name, platform). A concurrent insert that
// got there first surfaces as repository.ErrDuplicateKey.
func (s *Store) InsertContest(ctx context.Context, item *models.Contest) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "platform"}},
		DoNothing: true,
	}).Create(item)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrDuplicateKey
	}
	return nil
}

func (s *Store) UpdateContestFields(ctx context.Context, id uint64, patch repository.ContestPatch) error {
	if s == nil || s.db == nil || patch.Empty() {
		return nil
	}
	updates := contestPatchColumns(patch)
	updates["updated_at"] = time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&models.Contest{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) BulkUpdateContestStatus(ctx context.Context, filter repository.ContestFilter, status models.ContestStatus) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := applyContestFilter(s.db.WithContext(ctx).Model(&models.Contest{}), filter)
	res := query.Updates(map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	})
	return res.RowsAffected, res.Error
}

func (s *Store) ListContests(ctx context.Context, filter repository.ContestFilter) ([]models.Contest, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyContestFilter(s.db.WithContext(ctx).Model(&models.Contest{}), filter)
	query = query.Order("start_time asc").Order("id asc")
	if filter.Limit > 0 {
		query = query.Limit(normalizeLimit(filter.Limit, 100, 1000))
	}
	if filter.Offset > 0 {
		query = query.Offset(normalizeOffset(filter.Offset))
	}
	var items []models.Contest
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountContestsByStatus(ctx context.Context) (map[models.ContestStatus]int64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	type row struct {
		Status models.ContestStatus
		N      int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.Contest{}).
		Select("status, count(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[models.ContestStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// --- reminders --------------------------------------------------------------

func (s *Store) FindUnsentReminders(ctx context.Context, contestID uint64, lead models.LeadTime) ([]models.Reminder, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Reminder
	err := s.db.WithContext(ctx).
		Where("contest_id = ? AND lead_time = ? AND sent = ?", contestID, lead, false).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) MarkReminderSent(ctx context.Context, id uint64, sentAt time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Reminder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"sent":       true,
			"sent_at":    sentAt.UTC(),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) UpsertReminder(ctx context.Context, item *models.Reminder) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Sent = false
	item.SentAt = nil
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "contest_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"lead_time",
			"sent",
			"sent_at",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListRemindersByUser(ctx context.Context, userID string) ([]models.Reminder, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Reminder
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- users ------------------------------------------------------------------

func (s *Store) FindEmailByID(ctx context.Context, userID string) (string, error) {
	if s == nil || s.db == nil {
		return "", repository.ErrNotFound
	}
	var user models.User
	err := s.db.WithContext(ctx).Select("id", "email").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(user.Email) == "" {
		return "", repository.ErrNotFound
	}
	return user.Email, nil
}

func (s *Store) UpsertUser(ctx context.Context, item *models.User) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "updated_at"}),
	}).Create(item).Error
}

// --- sync state -------------------------------------------------------------

func (s *Store) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var state models.SyncState
	err := s.db.WithContext(ctx).First(&state, "scope = ?", scope).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	if s == nil || s.db == nil || state == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"last_run_id",
			"last_success_at",
			"last_attempt_at",
			"last_error",
			"stats_json",
		}),
	}).Create(state).Error
}

func (s *Store) ListSyncStates(ctx context.Context) ([]models.SyncState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var states []models.SyncState
	if err := s.db.WithContext(ctx).Order("scope asc").Find(&states).Error; err != nil {
		return nil, err
	}
	return states, nil
}

func applyContestFilter(query *gorm.DB, filter repository.ContestFilter) *gorm.DB {
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.Platform != "" {
		query = query.Where("platform = ?", filter.Platform)
	}
	if filter.StartBefore != nil {
		query = query.Where("start_time <= ?", filter.StartBefore.UTC())
	}
	if filter.StartAfter != nil {
		query = query.Where("start_time > ?", filter.StartAfter.UTC())
	}
	if filter.EndBefore != nil {
		query = query.Where("end_time <= ?", filter.EndBefore.UTC())
	}
	return query
}

func contestPatchColumns(patch repository.ContestPatch) map[string]any {
	updates := map[string]any{}
	if patch.URL != nil {
		updates["url"] = *patch.URL
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.StartTime != nil {
		updates["start_time"] = patch.StartTime.UTC()
	}
	if patch.EndTime != nil {
		updates["end_time"] = patch.EndTime.UTC()
	}
	if patch.DurationMinutes != nil {
		updates["duration_minutes"] = *patch.DurationMinutes
	}
	if patch.IsDurationEstimated != nil {
		updates["is_duration_estimated"] = *patch.IsDurationEstimated
	}
	if patch.IsPlaceholderTiming != nil {
		updates["is_placeholder_timing"] = *patch.IsPlaceholderTiming
	}
	return updates
}

func normalizeLimit(limit int, fallback int, max int) int {
	if limit <= 0 {
		return fallback
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

var _ repository.Repository = (*Store)(nil)

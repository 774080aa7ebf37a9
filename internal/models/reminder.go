package models

import "time"

type LeadTime string

const (
	LeadTime30Min LeadTime = "30min"
	LeadTime1Hour LeadTime = "1hour"
)

func (l LeadTime) Valid() bool {
	return l == LeadTime30Min || l == LeadTime1Hour
}

// Reminder is unique per (user, contest); a new lead time overwrites the old one.
type Reminder struct {
	ID        uint64   `gorm:"primaryKey;autoIncrement"`
	UserID    string   `gorm:"type:varchar(64);not null;uniqueIndex:uq_reminders_user_contest,priority:1"`
	ContestID uint64   `gorm:"not null;uniqueIndex:uq_reminders_user_contest,priority:2;index:idx_reminders_due,priority:1"`
	LeadTime  LeadTime `gorm:"type:varchar(10);not null;index:idx_reminders_due,priority:2;comment:提醒提前量"`
	Sent      bool     `gorm:"not null;default:false;index:idx_reminders_due,priority:3"`

	SentAt    *time.Time `gorm:"type:timestamptz"`
	CreatedAt time.Time  `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Reminder) TableName() string {
	return "reminders"
}

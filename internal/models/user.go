package models

import "time"

// User is the minimal directory entry the reminder pipeline needs.
type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	Email     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

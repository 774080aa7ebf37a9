package models

import "time"

type Platform string

const (
	PlatformCodeforces Platform = "Codeforces"
	PlatformCodeChef   Platform = "CodeChef"
	PlatformLeetcode   Platform = "Leetcode"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformCodeforces, PlatformCodeChef, PlatformLeetcode:
		return true
	}
	return false
}

type ContestStatus string

const (
	StatusUpcoming ContestStatus = "upcoming"
	StatusOngoing  ContestStatus = "ongoing"
	StatusPast     ContestStatus = "past"
)

// Rank orders statuses along the lifecycle so callers can refuse regressions.
func (s ContestStatus) Rank() int {
	switch s {
	case StatusUpcoming:
		return 0
	case StatusOngoing:
		return 1
	case StatusPast:
		return 2
	}
	return -1
}

// Contest is the canonical record of one external contest. (name, platform) is unique.
type Contest struct {
	ID       uint64   `gorm:"primaryKey;autoIncrement"`
	Name     string   `gorm:"type:text;not null;uniqueIndex:uq_contests_name_platform,priority:1;comment:比赛名称"`
	Platform Platform `gorm:"type:varchar(20);not null;uniqueIndex:uq_contests_name_platform,priority:2;index;comment:平台"`

	StartTime       time.Time     `gorm:"type:timestamptz;not null;index"`
	EndTime         time.Time     `gorm:"type:timestamptz;not null;index"`
	DurationMinutes int           `gorm:"not null;default:0"`
	URL             string        `gorm:"column:url;type:text"`
	Status          ContestStatus `gorm:"type:varchar(10);not null;index;default:upcoming"`
	SolutionURL     *string       `gorm:"column:solution_url;type:text;comment:题解链接(外部维护)"`

	IsDurationEstimated bool `gorm:"not null;default:false"`
	IsPlaceholderTiming bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Contest) TableName() string {
	return "contests"
}

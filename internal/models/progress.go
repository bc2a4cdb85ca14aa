package models

import (
	"time"

	"gorm.io/gorm"
)

// DailyProgress holds one user's completion flags for one day.
type DailyProgress struct {
	ID                  string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID              string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_progress_user_date" json:"user_id"`
	Date                string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_progress_user_date" json:"date"`
	QuoteCompleted      bool      `gorm:"not null;default:false" json:"quote_completed"`
	PassageCompleted    bool      `gorm:"not null;default:false" json:"passage_completed"`
	DevotionalCompleted bool      `gorm:"not null;default:false" json:"devotional_completed"`
	CreatedAt           time.Time `json:"created_at"`
}

func (DailyProgress) TableName() string {
	return TableDailyProgress
}

func (p *DailyProgress) BeforeCreate(tx *gorm.DB) (err error) {
	ensureID(&p.ID)
	ensureCreatedAt(&p.CreatedAt)
	return
}

// DiaryEntry is a user's journal for one day.
type DiaryEntry struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_diary_user_date" json:"user_id"`
	Date        string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_diary_user_date" json:"date"`
	Reflections string    `gorm:"type:text" json:"reflections"`
	Gratitude   string    `gorm:"type:text" json:"gratitude"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (DiaryEntry) TableName() string {
	return TableDiaryEntries
}

func (e *DiaryEntry) BeforeCreate(tx *gorm.DB) (err error) {
	ensureID(&e.ID)
	return
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// Prayer is a prayer request. Only shared prayers appear on the wall.
type Prayer struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string    `gorm:"type:varchar(36);index;not null" json:"user_id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Content   string    `gorm:"type:text" json:"content"`
	IsShared  bool      `gorm:"not null;default:false;index" json:"is_shared"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Prayer) TableName() string {
	return TablePrayers
}

func (p *Prayer) BeforeCreate(tx *gorm.DB) (err error) {
	ensureID(&p.ID)
	ensureCreatedAt(&p.CreatedAt)
	return
}

// PrayerSupport records that UserID is praying for PrayerID.
type PrayerSupport struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PrayerID  string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_prayer_support_pair" json:"prayer_id"`
	UserID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_prayer_support_pair" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (PrayerSupport) TableName() string {
	return TablePrayerSupport
}

func (s *PrayerSupport) BeforeCreate(tx *gorm.DB) (err error) {
	ensureID(&s.ID)
	ensureCreatedAt(&s.CreatedAt)
	return
}

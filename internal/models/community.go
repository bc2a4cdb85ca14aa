package models

import (
	"time"

	"gorm.io/gorm"
)

// CommunityInvite is the single-use, time-bounded credential that unlocks the
// community features. A user has at most one.
type CommunityInvite struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      string     `gorm:"type:varchar(36);uniqueIndex;not null" json:"user_id"`
	Email       string     `gorm:"type:varchar(255);not null" json:"email"`
	InviteToken string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"invite_token"`
	IsAccepted  bool       `gorm:"not null;default:false" json:"is_accepted"`
	InvitedAt   time.Time  `json:"invited_at"`
	SentAt      *time.Time `json:"sent_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func (CommunityInvite) TableName() string {
	return TableCommunityInvites
}

func (c *CommunityInvite) BeforeCreate(tx *gorm.DB) (err error) {
	ensureID(&c.ID)
	ensureCreatedAt(&c.InvitedAt)
	return
}

// Expired reports whether the invite has an expiry at or before now.
func (c CommunityInvite) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

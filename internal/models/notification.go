package models

import (
	"time"

	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationMessage       NotificationType = "message"
	NotificationPrayerSupport NotificationType = "prayer_support"
	NotificationFriendRequest NotificationType = "friend_request"
)

// Notification is an alert addressed to UserID. It is created once and only
// ever mutated by flipping IsRead to true.
type Notification struct {
	ID         string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID     string           `gorm:"type:varchar(36);index;not null" json:"user_id"` // Recipient
	Type       NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	Title      string           `gorm:"type:varchar(255);not null" json:"title"`
	Content    string           `gorm:"type:text" json:"content"`
	IsRead     bool             `gorm:"not null;default:false" json:"is_read"`
	RelatedID  *string          `gorm:"type:varchar(36)" json:"related_id"`
	FromUserID *string          `gorm:"type:varchar(36);index" json:"from_user_id"` // Who raised it
	CreatedAt  time.Time        `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string {
	return TableNotifications
}

func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	ensureID(&n.ID)
	ensureCreatedAt(&n.CreatedAt)
	return
}

// IsValidNotificationType reports whether t is one of the known types.
func IsValidNotificationType(t NotificationType) bool {
	switch t {
	case NotificationMessage, NotificationPrayerSupport, NotificationFriendRequest:
		return true
	}
	return false
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// Message is a point-to-point direct message. Only ReadAt ever changes after
// the row is created, and only the receiver sets it.
type Message struct {
	ID         string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SenderID   string     `gorm:"type:varchar(36);index;not null" json:"sender_id"`
	ReceiverID string     `gorm:"type:varchar(36);index;not null" json:"receiver_id"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
	ReadAt     *time.Time `json:"read_at"`
}

// TableName 指定 Message 模型的表名。
func (Message) TableName() string {
	return TableMessages
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	ensureID(&m.ID)
	ensureCreatedAt(&m.CreatedAt)
	return
}

// Peer returns the other party of the message from me's point of view.
func (m Message) Peer(me string) string {
	if m.SenderID == me {
		return m.ReceiverID
	}
	return m.SenderID
}

// Involves reports whether user is the sender or the receiver.
func (m Message) Involves(user string) bool {
	return m.SenderID == user || m.ReceiverID == user
}

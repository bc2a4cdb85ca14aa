package models

import (
	"time"

	"gorm.io/gorm"
)

// FriendshipStatus is the lifecycle state of a Friendship row.
type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
)

// Friendship is an undirected relation stored as a directed record: UserID
// created it, FriendID is the target.
// PairKey is the normalized unordered pair and carries the unique index, so
// at most one row exists for any {A,B} regardless of direction.
type Friendship struct {
	ID        string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string           `gorm:"type:varchar(36);index;not null" json:"user_id"`
	FriendID  string           `gorm:"type:varchar(36);index;not null" json:"friend_id"`
	Status    FriendshipStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	PairKey   string           `gorm:"type:varchar(80);uniqueIndex;not null" json:"pair_key"`
	CreatedAt time.Time        `json:"created_at"`
}

// TableName overrides the table name used by Friendship to `friendships`.
func (Friendship) TableName() string {
	return TableFriendships
}

// PairKey returns the normalized key of the unordered pair {a, b}.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

func (f *Friendship) BeforeCreate(tx *gorm.DB) (err error) {
	ensureID(&f.ID)
	ensureCreatedAt(&f.CreatedAt)
	f.PairKey = PairKey(f.UserID, f.FriendID)
	if f.Status == "" {
		f.Status = FriendshipPending
	}
	return
}

// Other returns the party of the friendship that is not me.
func (f Friendship) Other(me string) string {
	if f.UserID == me {
		return f.FriendID
	}
	return f.UserID
}

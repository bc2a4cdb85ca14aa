package models

import (
	"time"

	"github.com/google/uuid"
)

// Table names used by the gateway. Json tags on every model equal the column
// names so that change-event records decode into the same structs.
const (
	TableProfiles         = "profiles"
	TableFriendships      = "friendships"
	TableMessages         = "messages"
	TableNotifications    = "notifications"
	TableDailyProgress    = "user_daily_progress"
	TableDiaryEntries     = "diary_entries"
	TableCommunityInvites = "community_invites"
	TablePrayers          = "prayers"
	TablePrayerSupport    = "prayer_support"
)

// DateLayout is the format of day keys stored in date-scoped tables.
const DateLayout = "2006-01-02"

// DateKey formats t as a day key in t's own location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ensureID fills an empty string primary key with a new uuid.
func ensureID(id *string) {
	if *id == "" {
		*id = uuid.New().String()
	}
}

func ensureCreatedAt(t *time.Time) {
	if t.IsZero() {
		*t = time.Now().UTC()
	}
}

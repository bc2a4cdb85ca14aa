package models

import (
	"time"

	"gorm.io/gorm"
)

// Profile is the read-only identity record of a user.
type Profile struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name            string    `gorm:"type:varchar(100)" json:"name"`
	Email           string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Church          string    `gorm:"type:varchar(255)" json:"church"`
	CommunityAccess bool      `gorm:"not null;default:false" json:"community_access"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName overrides the table name used by Profile to `profiles`.
func (Profile) TableName() string {
	return TableProfiles
}

func (p *Profile) BeforeCreate(tx *gorm.DB) (err error) {
	ensureID(&p.ID)
	ensureCreatedAt(&p.CreatedAt)
	return
}

// DisplayName falls back to the email when no name is set.
func (p Profile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Email
}

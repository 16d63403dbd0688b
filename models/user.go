package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User represents an anonymous forum account. No personal information is
// required beyond a chosen username; passwords are stored as bcrypt hashes only.
type User struct {
	ID              uint                        `gorm:"primaryKey" json:"-"`
	UserID          string                      `gorm:"size:36;uniqueIndex;not null" json:"user_id"`
	Username        string                      `gorm:"size:150;uniqueIndex;not null" json:"username"`
	PasswordHash    string                      `gorm:"size:255;not null" json:"-"`
	DisplayName     string                      `gorm:"size:50" json:"display_name"`
	Bio             string                      `gorm:"size:500" json:"bio"`
	IsAnonymous     bool                        `gorm:"default:true" json:"is_anonymous"`
	PreferredTopics datatypes.JSONSlice[string] `gorm:"type:text" json:"preferred_topics"`
	IsActive        bool                        `gorm:"default:true" json:"is_active"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`

	Posts   []Post  `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Replies []Reply `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Likes   []Like  `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// BeforeCreate assigns the immutable public identifier and timestamps.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == "" {
		u.UserID = uuid.NewString()
	}
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate refreshes the UpdatedAt timestamp.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}

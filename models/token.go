package models

import "time"

// AuthToken is an opaque bearer credential tied 1:1 to a user. A user has at
// most one live token (get-or-create on login/register) and tokens carry no
// expiry: a token is valid while its row exists and the owning user is active.
type AuthToken struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Key       string    `gorm:"size:40;uniqueIndex;not null" json:"key"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`

	User User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

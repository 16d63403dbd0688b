package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reply is a response to a post. ParentReplyID forms an adjacency relation
// for nested replies; threads are reconstructed from the flat list by
// grouping on the parent id.
type Reply struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	ReplyID       string    `gorm:"size:36;uniqueIndex;not null" json:"reply_id"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	AuthorID      uint      `gorm:"index;not null" json:"-"`
	PostID        uint      `gorm:"index;not null" json:"-"`
	ParentReplyID *uint     `gorm:"index" json:"-"`
	IsActive      bool      `gorm:"default:true" json:"is_active"`
	LikeCount     int       `gorm:"default:0" json:"like_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Author      User   `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ParentReply *Reply `gorm:"foreignKey:ParentReplyID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Likes       []Like `gorm:"foreignKey:ReplyID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// IsNested reports whether this reply answers another reply.
func (r *Reply) IsNested() bool {
	return r.ParentReplyID != nil
}

func (r *Reply) BeforeCreate(tx *gorm.DB) error {
	if r.ReplyID == "" {
		r.ReplyID = uuid.NewString()
	}
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	return nil
}

func (r *Reply) BeforeUpdate(tx *gorm.DB) error {
	r.UpdatedAt = time.Now()
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Post is a top-level forum post. Soft deletion is expressed through
// IsActive; inactive posts are excluded from every read path. ViewCount and
// LikeCount are denormalized counters maintained with atomic SQL updates.
type Post struct {
	ID           uint                        `gorm:"primaryKey" json:"-"`
	PostID       string                      `gorm:"size:36;uniqueIndex;not null" json:"post_id"`
	Title        string                      `gorm:"size:200;not null" json:"title"`
	Content      string                      `gorm:"type:text;not null" json:"content"`
	AuthorID     uint                        `gorm:"index;not null" json:"-"`
	CategoryID   uint                        `gorm:"index;not null" json:"-"`
	Tags         datatypes.JSONSlice[string] `gorm:"type:text" json:"tags"`
	IsPinned     bool                        `gorm:"default:false" json:"is_pinned"`
	IsLocked     bool                        `gorm:"default:false" json:"is_locked"`
	IsActive     bool                        `gorm:"default:true" json:"is_active"`
	ViewCount    int                         `gorm:"default:0" json:"view_count"`
	LikeCount    int                         `gorm:"default:0" json:"like_count"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
	LastActivity time.Time                   `gorm:"index" json:"last_activity"`

	Author   User     `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Category Category `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Replies  []Reply  `gorm:"foreignKey:PostID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Likes    []Like   `gorm:"foreignKey:PostID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// BeforeCreate assigns the public id and seeds LastActivity so fresh posts
// sort correctly before their first reply.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.PostID == "" {
		p.PostID = uuid.NewString()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.LastActivity.IsZero() {
		p.LastActivity = now
	}
	return nil
}

func (p *Post) BeforeUpdate(tx *gorm.DB) error {
	p.UpdatedAt = time.Now()
	return nil
}

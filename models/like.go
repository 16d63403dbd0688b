package models

import "time"

// Like records that a user liked exactly one of a post or a reply. The
// check constraint makes "exactly one target, never both" structural, and
// the partial unique indexes make the like idempotent per (user, target):
// at most one row may exist for a given pair, which is what makes the
// toggle semantics well defined.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"index;uniqueIndex:idx_like_user_post;uniqueIndex:idx_like_user_reply;not null" json:"-"`
	PostID    *uint     `gorm:"uniqueIndex:idx_like_user_post;check:chk_like_target,(post_id IS NULL) <> (reply_id IS NULL)" json:"-"`
	ReplyID   *uint     `gorm:"uniqueIndex:idx_like_user_reply" json:"-"`
	CreatedAt time.Time `json:"created_at"`

	User  User   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Post  *Post  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Reply *Reply `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// NewPostLike builds a like targeting a post.
func NewPostLike(userID, postID uint) Like {
	return Like{UserID: userID, PostID: &postID}
}

// NewReplyLike builds a like targeting a reply.
func NewReplyLike(userID, replyID uint) Like {
	return Like{UserID: userID, ReplyID: &replyID}
}

package controllers

import (
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/peerhaven/peerhaven/models"
)

// View structs project storage models onto the wire. Authors are reduced to
// their anonymous public identity; internal surrogate ids never leave the
// process.

// AuthorView is the public identity attached to posts and replies.
type AuthorView struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	UserID      string `json:"user_id"`
}

// UserView is the profile projection. user_id, username, is_anonymous and
// created_at are read-only and never writable through update.
type UserView struct {
	UserID          string    `json:"user_id"`
	Username        string    `json:"username"`
	DisplayName     string    `json:"display_name"`
	Bio             string    `json:"bio"`
	PreferredTopics []string  `json:"preferred_topics"`
	IsAnonymous     bool      `json:"is_anonymous"`
	CreatedAt       time.Time `json:"created_at"`
}

// CategoryView carries the derived post_count alongside the stored fields.
type CategoryView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Slug        string `json:"slug"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	PostCount   int64  `json:"post_count"`
	Order       int    `json:"order"`
}

// LatestPostView summarizes the most recent active post in a category.
type LatestPostView struct {
	PostID    string    `json:"post_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// CategoryListItem is a category plus its latest-post summary.
type CategoryListItem struct {
	CategoryView
	LatestPost *LatestPostView `json:"latest_post"`
}

// PostView is the full post projection used by lists and detail.
type PostView struct {
	PostID       string       `json:"post_id"`
	Title        string       `json:"title"`
	Content      string       `json:"content"`
	Author       AuthorView   `json:"author"`
	Category     CategoryView `json:"category"`
	Tags         []string     `json:"tags"`
	IsPinned     bool         `json:"is_pinned"`
	IsLocked     bool         `json:"is_locked"`
	ViewCount    int          `json:"view_count"`
	LikeCount    int          `json:"like_count"`
	ReplyCount   int64        `json:"reply_count"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	LastActivity time.Time    `json:"last_activity"`
}

// ReplyView is the reply projection; parent_reply is the parent's public id
// or null for top-level replies.
type ReplyView struct {
	ReplyID       string     `json:"reply_id"`
	Content       string     `json:"content"`
	Author        AuthorView `json:"author"`
	ParentReply   *string    `json:"parent_reply"`
	IsNestedReply bool       `json:"is_nested_reply"`
	LikeCount     int        `json:"like_count"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// PaginationView is the offset pagination envelope.
type PaginationView struct {
	Page        int   `json:"page"`
	PageSize    int   `json:"page_size"`
	Total       int64 `json:"total"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

func authorView(u models.User) AuthorView {
	return AuthorView{
		Username:    u.Username,
		DisplayName: u.DisplayName,
		UserID:      u.UserID,
	}
}

func userView(u models.User) UserView {
	topics := []string(u.PreferredTopics)
	if topics == nil {
		topics = []string{}
	}
	return UserView{
		UserID:          u.UserID,
		Username:        u.Username,
		DisplayName:     u.DisplayName,
		Bio:             u.Bio,
		PreferredTopics: topics,
		IsAnonymous:     u.IsAnonymous,
		CreatedAt:       u.CreatedAt,
	}
}

func categoryView(c models.Category, postCount int64) CategoryView {
	return CategoryView{
		Name:        c.Name,
		Description: c.Description,
		Slug:        c.Slug,
		Icon:        c.Icon,
		Color:       c.Color,
		PostCount:   postCount,
		Order:       c.Order,
	}
}

func paginationView(page, pageSize int, total int64) PaginationView {
	start := int64((page - 1) * pageSize)
	return PaginationView{
		Page:        page,
		PageSize:    pageSize,
		Total:       total,
		HasNext:     start+int64(pageSize) < total,
		HasPrevious: page > 1,
	}
}

// buildPostViews projects posts that were loaded with Author and Category
// preloaded, batching the derived reply and category post counts.
func buildPostViews(db *gorm.DB, posts []models.Post) ([]PostView, error) {
	if len(posts) == 0 {
		return []PostView{}, nil
	}

	postIDs := lo.Map(posts, func(p models.Post, _ int) uint { return p.ID })
	categoryIDs := lo.Uniq(lo.Map(posts, func(p models.Post, _ int) uint { return p.CategoryID }))

	type countRow struct {
		ID    uint
		Count int64
	}

	var replyRows []countRow
	if err := db.Model(&models.Reply{}).
		Select("post_id AS id, COUNT(*) AS count").
		Where("post_id IN ? AND is_active = ?", postIDs, true).
		Group("post_id").
		Scan(&replyRows).Error; err != nil {
		return nil, err
	}
	replyCounts := lo.SliceToMap(replyRows, func(r countRow) (uint, int64) { return r.ID, r.Count })

	var postRows []countRow
	if err := db.Model(&models.Post{}).
		Select("category_id AS id, COUNT(*) AS count").
		Where("category_id IN ? AND is_active = ?", categoryIDs, true).
		Group("category_id").
		Scan(&postRows).Error; err != nil {
		return nil, err
	}
	categoryCounts := lo.SliceToMap(postRows, func(r countRow) (uint, int64) { return r.ID, r.Count })

	views := lo.Map(posts, func(p models.Post, _ int) PostView {
		tags := []string(p.Tags)
		if tags == nil {
			tags = []string{}
		}
		return PostView{
			PostID:       p.PostID,
			Title:        p.Title,
			Content:      p.Content,
			Author:       authorView(p.Author),
			Category:     categoryView(p.Category, categoryCounts[p.CategoryID]),
			Tags:         tags,
			IsPinned:     p.IsPinned,
			IsLocked:     p.IsLocked,
			ViewCount:    p.ViewCount,
			LikeCount:    p.LikeCount,
			ReplyCount:   replyCounts[p.ID],
			CreatedAt:    p.CreatedAt,
			UpdatedAt:    p.UpdatedAt,
			LastActivity: p.LastActivity,
		}
	})
	return views, nil
}

// buildReplyViews projects replies loaded with Author and ParentReply
// preloaded.
func buildReplyViews(replies []models.Reply) []ReplyView {
	return lo.Map(replies, func(r models.Reply, _ int) ReplyView {
		var parent *string
		if r.ParentReply != nil {
			parent = &r.ParentReply.ReplyID
		}
		return ReplyView{
			ReplyID:       r.ReplyID,
			Content:       r.Content,
			Author:        authorView(r.Author),
			ParentReply:   parent,
			IsNestedReply: r.IsNested(),
			LikeCount:     r.LikeCount,
			CreatedAt:     r.CreatedAt,
			UpdatedAt:     r.UpdatedAt,
		}
	})
}

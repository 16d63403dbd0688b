package controllers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/peerhaven/peerhaven/middleware"
	"github.com/peerhaven/peerhaven/models"
	"github.com/peerhaven/peerhaven/utils"
)

// PostController manages posts, replies, likes and search.
type PostController struct {
	db *gorm.DB
}

// NewPostController creates a PostController.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{db: db}
}

// ListCategoryPosts returns the active posts of one category, optionally
// narrowed by a search term, pinned posts first then most recent activity.
func (p *PostController) ListCategoryPosts(ctx *gin.Context) {
	slug := ctx.Param("slug")

	var category models.Category
	if err := p.db.Where("slug = ? AND is_active = ?", slug, true).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(ctx)
			return
		}
		utils.ServerError(ctx, "failed to load category")
		return
	}

	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	search := strings.TrimSpace(ctx.Query("search"))

	query := p.db.Model(&models.Post{}).
		Where("category_id = ? AND is_active = ?", category.ID, true)
	if search != "" {
		query = applySearchFilter(query, search)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.ServerError(ctx, "failed to count posts")
		return
	}

	var posts []models.Post
	if err := query.
		Preload("Author").Preload("Category").
		Order("is_pinned DESC, last_activity DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&posts).Error; err != nil {
		utils.ServerError(ctx, "failed to list posts")
		return
	}

	views, err := buildPostViews(p.db, posts)
	if err != nil {
		utils.ServerError(ctx, "failed to build post list")
		return
	}

	var categoryPosts int64
	if err := p.db.Model(&models.Post{}).
		Where("category_id = ? AND is_active = ?", category.ID, true).
		Count(&categoryPosts).Error; err != nil {
		utils.ServerError(ctx, "failed to count category posts")
		return
	}

	utils.OK(ctx, gin.H{
		"category":   categoryView(category, categoryPosts),
		"posts":      views,
		"pagination": paginationView(page, pageSize, total),
	})
}

// CreatePost creates a post in an active category.
func (p *PostController) CreatePost(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.AuthError(ctx, "Authentication credentials were not provided.")
		return
	}

	var req struct {
		Title        string   `json:"title"`
		Content      string   `json:"content"`
		CategorySlug string   `json:"category_slug"`
		Tags         []string `json:"tags"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationErrors(ctx, gin.H{"detail": "invalid request payload"})
		return
	}

	errs := gin.H{}
	title := utils.Sanitize(strings.TrimSpace(req.Title))
	if title == "" {
		errs["title"] = "This field is required."
	} else if len([]rune(title)) > 200 {
		errs["title"] = "Ensure this field has no more than 200 characters."
	}
	content := utils.Sanitize(req.Content)
	if strings.TrimSpace(content) == "" {
		errs["content"] = "This field is required."
	}

	var category models.Category
	if strings.TrimSpace(req.CategorySlug) == "" {
		errs["category_slug"] = "This field is required."
	} else if err := p.db.Where("slug = ? AND is_active = ?", req.CategorySlug, true).
		First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			errs["category_slug"] = "Invalid category or category is not active"
		} else {
			utils.ServerError(ctx, "failed to load category")
			return
		}
	}
	if len(errs) > 0 {
		utils.ValidationErrors(ctx, errs)
		return
	}

	post := models.Post{
		Title:      title,
		Content:    content,
		AuthorID:   user.ID,
		CategoryID: category.ID,
		Tags:       req.Tags,
		IsActive:   true,
	}
	if err := p.db.Create(&post).Error; err != nil {
		utils.ServerError(ctx, "failed to create post")
		return
	}

	post.Author = *user
	post.Category = category
	views, err := buildPostViews(p.db, []models.Post{post})
	if err != nil {
		utils.ServerError(ctx, "failed to build post")
		return
	}

	utils.Created(ctx, gin.H{
		"message": "Post created successfully",
		"post":    views[0],
	})
}

// GetPostDetail returns one post with its active replies in creation order.
// Every successful fetch counts as a view: the counter is bumped with an
// atomic SQL increment so concurrent readers cannot lose updates.
func (p *PostController) GetPostDetail(ctx *gin.Context) {
	post, ok := p.findActivePost(ctx)
	if !ok {
		return
	}

	if err := p.db.Model(&models.Post{}).
		Where("id = ?", post.ID).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error; err != nil {
		utils.ServerError(ctx, "failed to record view")
		return
	}
	post.ViewCount++

	var replies []models.Reply
	if err := p.db.Where("post_id = ? AND is_active = ?", post.ID, true).
		Preload("Author").Preload("ParentReply").
		Order("created_at ASC").
		Find(&replies).Error; err != nil {
		utils.ServerError(ctx, "failed to load replies")
		return
	}

	views, err := buildPostViews(p.db, []models.Post{*post})
	if err != nil {
		utils.ServerError(ctx, "failed to build post")
		return
	}

	utils.OK(ctx, gin.H{
		"post":        views[0],
		"replies":     buildReplyViews(replies),
		"reply_count": len(replies),
	})
}

// ReplyToPost adds a reply to an unlocked post and advances the post's
// last_activity to the reply's creation time.
func (p *PostController) ReplyToPost(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.AuthError(ctx, "Authentication credentials were not provided.")
		return
	}

	post, found := p.findActivePost(ctx)
	if !found {
		return
	}
	if post.IsLocked {
		utils.Forbidden(ctx, gin.H{"error": "This post is locked and cannot receive new replies"})
		return
	}

	var req struct {
		Content       string `json:"content"`
		ParentReplyID string `json:"parent_reply_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationErrors(ctx, gin.H{"detail": "invalid request payload"})
		return
	}

	errs := gin.H{}
	content := utils.Sanitize(req.Content)
	if strings.TrimSpace(content) == "" {
		errs["content"] = "This field is required."
	}

	var parent *models.Reply
	if strings.TrimSpace(req.ParentReplyID) != "" {
		var pr models.Reply
		if err := p.db.Where("reply_id = ? AND is_active = ?", req.ParentReplyID, true).
			First(&pr).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				errs["parent_reply_id"] = "Invalid parent reply"
			} else {
				utils.ServerError(ctx, "failed to load parent reply")
				return
			}
		} else {
			parent = &pr
		}
	}
	if len(errs) > 0 {
		utils.ValidationErrors(ctx, errs)
		return
	}

	reply := models.Reply{
		Content:  content,
		AuthorID: user.ID,
		PostID:   post.ID,
		IsActive: true,
	}
	if parent != nil {
		reply.ParentReplyID = &parent.ID
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&reply).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).
			Where("id = ?", post.ID).
			UpdateColumn("last_activity", reply.CreatedAt).Error
	})
	if err != nil {
		utils.ServerError(ctx, "failed to create reply")
		return
	}

	reply.Author = *user
	reply.ParentReply = parent

	utils.Created(ctx, gin.H{
		"message": "Reply posted successfully",
		"reply":   buildReplyViews([]models.Reply{reply})[0],
	})
}

// LikePost toggles the caller's like on a post.
func (p *PostController) LikePost(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.AuthError(ctx, "Authentication credentials were not provided.")
		return
	}

	post, found := p.findActivePost(ctx)
	if !found {
		return
	}

	liked, likeCount, err := p.toggleLike(user.ID, &post.ID, nil)
	if err != nil {
		utils.ServerError(ctx, "failed to toggle like")
		return
	}

	message := "Post unliked successfully"
	if liked {
		message = "Post liked successfully"
	}
	utils.OK(ctx, gin.H{
		"message":    message,
		"liked":      liked,
		"like_count": likeCount,
	})
}

// LikeReply toggles the caller's like on a reply.
func (p *PostController) LikeReply(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.AuthError(ctx, "Authentication credentials were not provided.")
		return
	}

	var reply models.Reply
	if err := p.db.Where("reply_id = ? AND is_active = ?", ctx.Param("reply_id"), true).
		First(&reply).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(ctx)
			return
		}
		utils.ServerError(ctx, "failed to load reply")
		return
	}

	liked, likeCount, err := p.toggleLike(user.ID, nil, &reply.ID)
	if err != nil {
		utils.ServerError(ctx, "failed to toggle like")
		return
	}

	message := "Reply unliked successfully"
	if liked {
		message = "Reply liked successfully"
	}
	utils.OK(ctx, gin.H{
		"message":    message,
		"liked":      liked,
		"like_count": likeCount,
	})
}

// SearchPosts searches active posts across all categories, optionally
// narrowed to one category slug.
func (p *PostController) SearchPosts(ctx *gin.Context) {
	query := strings.TrimSpace(ctx.Query("q"))
	if query == "" {
		utils.ValidationErrors(ctx, gin.H{"error": "Search query is required"})
		return
	}

	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	categorySlug := strings.TrimSpace(ctx.Query("category"))

	base := p.db.Model(&models.Post{}).Where("posts.is_active = ?", true)
	if categorySlug != "" {
		base = base.Where("category_id IN (?)",
			p.db.Model(&models.Category{}).Select("id").Where("slug = ?", categorySlug))
	}
	base = applySearchFilter(base, query)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		utils.ServerError(ctx, "failed to count posts")
		return
	}

	var posts []models.Post
	if err := base.
		Preload("Author").Preload("Category").
		Order("is_pinned DESC, last_activity DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&posts).Error; err != nil {
		utils.ServerError(ctx, "search failed")
		return
	}

	views, err := buildPostViews(p.db, posts)
	if err != nil {
		utils.ServerError(ctx, "failed to build post list")
		return
	}

	utils.OK(ctx, gin.H{
		"query":      query,
		"posts":      views,
		"pagination": paginationView(page, pageSize, total),
	})
}

// findActivePost resolves the post_id path parameter to an active post,
// answering 404 itself when the lookup fails.
func (p *PostController) findActivePost(ctx *gin.Context) (*models.Post, bool) {
	var post models.Post
	if err := p.db.Where("post_id = ? AND is_active = ?", ctx.Param("post_id"), true).
		Preload("Author").Preload("Category").
		First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(ctx)
			return nil, false
		}
		utils.ServerError(ctx, "failed to load post")
		return nil, false
	}
	return &post, true
}

// toggleLike flips the (user, target) like state. The counter moves with an
// atomic SQL expression in the same transaction as the Like row, with the
// decrement floored at zero.
func (p *PostController) toggleLike(userID uint, postID, replyID *uint) (liked bool, likeCount int, err error) {
	err = p.db.Transaction(func(tx *gorm.DB) error {
		var (
			existing models.Like
			lookup   *gorm.DB
		)
		if postID != nil {
			lookup = tx.Where("user_id = ? AND post_id = ?", userID, *postID)
		} else {
			lookup = tx.Where("user_id = ? AND reply_id = ?", userID, *replyID)
		}

		findErr := lookup.First(&existing).Error
		switch {
		case findErr == nil:
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			if err := p.adjustLikeCount(tx, postID, replyID,
				gorm.Expr("CASE WHEN like_count > 0 THEN like_count - 1 ELSE 0 END")); err != nil {
				return err
			}
			liked = false
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			var like models.Like
			if postID != nil {
				like = models.NewPostLike(userID, *postID)
			} else {
				like = models.NewReplyLike(userID, *replyID)
			}
			if err := tx.Create(&like).Error; err != nil {
				return err
			}
			if err := p.adjustLikeCount(tx, postID, replyID, gorm.Expr("like_count + 1")); err != nil {
				return err
			}
			liked = true
		default:
			return findErr
		}

		if postID != nil {
			return tx.Model(&models.Post{}).Where("id = ?", *postID).
				Select("like_count").Scan(&likeCount).Error
		}
		return tx.Model(&models.Reply{}).Where("id = ?", *replyID).
			Select("like_count").Scan(&likeCount).Error
	})
	return liked, likeCount, err
}

func (p *PostController) adjustLikeCount(tx *gorm.DB, postID, replyID *uint, expr interface{}) error {
	if postID != nil {
		return tx.Model(&models.Post{}).Where("id = ?", *postID).
			UpdateColumn("like_count", expr).Error
	}
	return tx.Model(&models.Reply{}).Where("id = ?", *replyID).
		UpdateColumn("like_count", expr).Error
}

// applySearchFilter matches the term case-insensitively against title,
// content, or the serialized tags list.
func applySearchFilter(query *gorm.DB, term string) *gorm.DB {
	pattern := "%" + strings.ToLower(term) + "%"
	return query.Where(
		"LOWER(title) LIKE ? OR LOWER(content) LIKE ? OR LOWER(tags) LIKE ?",
		pattern, pattern, pattern,
	)
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 20
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

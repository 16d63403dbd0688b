package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/peerhaven/peerhaven/models"
	"github.com/peerhaven/peerhaven/utils"
)

// ForumController serves the category catalog.
type ForumController struct {
	db *gorm.DB
}

// NewForumController creates a ForumController.
func NewForumController(db *gorm.DB) *ForumController {
	return &ForumController{db: db}
}

// ListCategories returns active categories ordered by (order, name), each
// with its derived post count and latest-post summary.
func (f *ForumController) ListCategories(ctx *gin.Context) {
	var categories []models.Category
	if err := f.db.Where("is_active = ?", true).
		Order("sort_order ASC, name ASC").
		Find(&categories).Error; err != nil {
		utils.ServerError(ctx, "failed to list categories")
		return
	}

	items := make([]CategoryListItem, 0, len(categories))
	if len(categories) > 0 {
		categoryIDs := lo.Map(categories, func(c models.Category, _ int) uint { return c.ID })

		type countRow struct {
			ID    uint
			Count int64
		}
		var rows []countRow
		if err := f.db.Model(&models.Post{}).
			Select("category_id AS id, COUNT(*) AS count").
			Where("category_id IN ? AND is_active = ?", categoryIDs, true).
			Group("category_id").
			Scan(&rows).Error; err != nil {
			utils.ServerError(ctx, "failed to count posts")
			return
		}
		counts := lo.SliceToMap(rows, func(r countRow) (uint, int64) { return r.ID, r.Count })

		for _, category := range categories {
			item := CategoryListItem{CategoryView: categoryView(category, counts[category.ID])}
			var latest models.Post
			err := f.db.Where("category_id = ? AND is_active = ?", category.ID, true).
				Order("created_at DESC").
				First(&latest).Error
			if err == nil {
				item.LatestPost = &LatestPostView{
					PostID:    latest.PostID,
					Title:     latest.Title,
					CreatedAt: latest.CreatedAt,
				}
			}
			items = append(items, item)
		}
	}

	utils.OK(ctx, gin.H{"categories": items})
}

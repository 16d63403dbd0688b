package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/peerhaven/peerhaven/config"
	"github.com/peerhaven/peerhaven/controllers"
	"github.com/peerhaven/peerhaven/middleware"
	"github.com/peerhaven/peerhaven/utils"
)

// SetupRouter wires the middleware chain and the API routes.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(utils.GinLogger(), utils.GinRecovery())
	r.Use(corsMiddleware(cfg.AllowedOrigins))

	r.NoRoute(func(ctx *gin.Context) {
		ctx.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	})

	auth := controllers.NewAuthController(db)
	forum := controllers.NewForumController(db)
	post := controllers.NewPostController(db)

	throttle := middleware.RateLimitMiddleware()
	requireAuth := middleware.AuthRequired(db)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	{
		authGroup.GET("/status/", auth.Status)
		authGroup.POST("/register/", throttle, auth.Register)
		authGroup.POST("/login/", throttle, auth.Login)
		authGroup.POST("/logout/", requireAuth, auth.Logout)
		authGroup.GET("/profile/", requireAuth, auth.Profile)
		authGroup.PUT("/profile/update/", requireAuth, auth.UpdateProfile)
		authGroup.PATCH("/profile/update/", requireAuth, auth.UpdateProfile)
		authGroup.DELETE("/profile/delete/", requireAuth, auth.DeleteAccount)
	}

	forums := api.Group("/forums")
	{
		forums.GET("/categories/", forum.ListCategories)
		forums.GET("/categories/:slug/posts/", post.ListCategoryPosts)
		forums.POST("/posts/", requireAuth, post.CreatePost)
		forums.GET("/posts/:post_id/", post.GetPostDetail)
		forums.POST("/posts/:post_id/replies/", requireAuth, post.ReplyToPost)
		forums.POST("/posts/:post_id/like/", requireAuth, post.LikePost)
		forums.POST("/replies/:reply_id/like/", requireAuth, post.LikeReply)
		forums.GET("/search/", post.SearchPosts)
	}

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOrigins = origins
	}
	return cors.New(corsConfig)
}

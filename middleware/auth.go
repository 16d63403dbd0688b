package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/peerhaven/peerhaven/models"
	"github.com/peerhaven/peerhaven/utils"
)

const (
	// ContextUserKey stores the authenticated *models.User in the Gin context.
	ContextUserKey = "auth_user"
	// ContextTokenKey stores the presented bearer key, needed by logout.
	ContextTokenKey = "auth_token"
)

// BearerToken extracts the opaque credential from the Authorization header.
// Both "Bearer <key>" and the DRF-style "Token <key>" schemes are accepted.
func BearerToken(ctx *gin.Context) string {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") && !strings.EqualFold(parts[0], "Token") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthRequired ensures the request carries a token resolving to an active
// user, and injects that user into the context.
func AuthRequired(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key := BearerToken(ctx)
		if key == "" {
			utils.AuthError(ctx, "Authentication credentials were not provided.")
			ctx.Abort()
			return
		}

		user, err := utils.LookupTokenUser(db, key)
		if err != nil {
			utils.AuthError(ctx, "Invalid token.")
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserKey, user)
		ctx.Set(ContextTokenKey, key)
		ctx.Next()
	}
}

// CurrentUser returns the authenticated user placed by AuthRequired.
func CurrentUser(ctx *gin.Context) (*models.User, bool) {
	value, exists := ctx.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}

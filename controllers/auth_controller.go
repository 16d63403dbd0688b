package controllers

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/peerhaven/peerhaven/middleware"
	"github.com/peerhaven/peerhaven/models"
	"github.com/peerhaven/peerhaven/utils"
)

// AuthController handles registration, login, logout and profile management
// for anonymous accounts.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

// Status is the public health check. It reports whether the presented
// token, if any, resolves to an active user.
func (a *AuthController) Status(ctx *gin.Context) {
	authenticated := false
	if key := middleware.BearerToken(ctx); key != "" {
		if _, err := utils.LookupTokenUser(a.db, key); err == nil {
			authenticated = true
		}
	}
	utils.OK(ctx, gin.H{
		"status":        "API is running",
		"message":       "PeerHaven Support Network API v1.0",
		"authenticated": authenticated,
	})
}

// Register creates a new anonymous account and issues its token.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Username        string `json:"username"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
		DisplayName     string `json:"display_name"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationErrors(ctx, gin.H{"detail": "invalid request payload"})
		return
	}

	errs := gin.H{}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		errs["username"] = "This field is required."
	} else {
		var count int64
		if err := a.db.Model(&models.User{}).Where("username = ?", req.Username).Count(&count).Error; err != nil {
			utils.ServerError(ctx, "failed to check username")
			return
		}
		if count > 0 {
			errs["username"] = "A user with that username already exists."
		}
	}
	// The confirmation check runs before the length check so a mismatch is
	// what the caller hears about first.
	if req.Password != req.ConfirmPassword {
		errs["non_field_errors"] = "Passwords don't match"
	} else if len(req.Password) < 8 {
		errs["password"] = "Ensure this field has at least 8 characters."
	}
	if len(errs) > 0 {
		utils.ValidationErrors(ctx, errs)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.ServerError(ctx, "failed to hash password")
		return
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		IsAnonymous:  true,
		IsActive:     true,
	}
	if err := a.db.Create(&user).Error; err != nil {
		// Unique index is the authority; a concurrent register can slip past
		// the count above.
		utils.ValidationErrors(ctx, gin.H{"username": "A user with that username already exists."})
		return
	}

	token, err := utils.GetOrCreateToken(a.db, user.ID)
	if err != nil {
		utils.ServerError(ctx, "failed to issue token")
		return
	}

	utils.Created(ctx, gin.H{
		"message": "User registered successfully",
		"user":    userView(user),
		"token":   token.Key,
	})
}

// Login verifies credentials and returns the user's token (get-or-create;
// a user never holds two live tokens).
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationErrors(ctx, gin.H{"detail": "invalid request payload"})
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		utils.ValidationErrors(ctx, gin.H{"non_field_errors": "Must include username and password"})
		return
	}

	var user models.User
	if err := a.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.ValidationErrors(ctx, gin.H{"non_field_errors": "Invalid credentials"})
			return
		}
		utils.ServerError(ctx, "failed to load user")
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.ValidationErrors(ctx, gin.H{"non_field_errors": "Invalid credentials"})
		return
	}
	if !user.IsActive {
		utils.ValidationErrors(ctx, gin.H{"non_field_errors": "User account is disabled"})
		return
	}

	token, err := utils.GetOrCreateToken(a.db, user.ID)
	if err != nil {
		utils.ServerError(ctx, "failed to issue token")
		return
	}

	utils.OK(ctx, gin.H{
		"message": "Login successful",
		"user":    userView(user),
		"token":   token.Key,
	})
}

// Logout revokes the presented token. Revoking an already-gone token still
// reports success; logout is idempotent.
func (a *AuthController) Logout(ctx *gin.Context) {
	if key, exists := ctx.Get(middleware.ContextTokenKey); exists {
		if s, ok := key.(string); ok {
			if err := utils.RevokeToken(a.db, s); err != nil {
				utils.Sugar.Warnf("token revoke failed: %v", err)
			}
		}
	}
	utils.OK(ctx, gin.H{"message": "Logout successful"})
}

// Profile returns the authenticated user's profile projection.
func (a *AuthController) Profile(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.AuthError(ctx, "Authentication credentials were not provided.")
		return
	}
	utils.OK(ctx, gin.H{"user": userView(*user)})
}

// UpdateProfile applies a partial update of the writable profile fields.
// user_id, username, created_at and is_anonymous are never writable.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.AuthError(ctx, "Authentication credentials were not provided.")
		return
	}

	var req struct {
		DisplayName     *string         `json:"display_name"`
		Bio             *string         `json:"bio"`
		PreferredTopics json.RawMessage `json:"preferred_topics"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationErrors(ctx, gin.H{"detail": "invalid request payload"})
		return
	}

	errs := gin.H{}
	var topics []string
	hasTopics := len(req.PreferredTopics) > 0 && string(req.PreferredTopics) != "null"
	if hasTopics {
		if err := json.Unmarshal(req.PreferredTopics, &topics); err != nil {
			errs["preferred_topics"] = "Preferred topics must be a list"
		} else if len(topics) > 10 {
			errs["preferred_topics"] = "Maximum 10 preferred topics allowed"
		}
	}
	if req.DisplayName != nil && len([]rune(*req.DisplayName)) > 50 {
		errs["display_name"] = "Ensure this field has no more than 50 characters."
	}
	if req.Bio != nil && len([]rune(*req.Bio)) > 500 {
		errs["bio"] = "Ensure this field has no more than 500 characters."
	}
	if len(errs) > 0 {
		utils.ValidationErrors(ctx, errs)
		return
	}

	if req.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.Bio != nil {
		user.Bio = utils.Sanitize(strings.TrimSpace(*req.Bio))
	}
	if hasTopics {
		user.PreferredTopics = topics
	}

	if err := a.db.Save(user).Error; err != nil {
		utils.ServerError(ctx, "failed to update profile")
		return
	}

	utils.OK(ctx, gin.H{
		"message": "Profile updated successfully",
		"user":    userView(*user),
	})
}

// DeleteAccount revokes every token for the user and removes the account.
// Posts, replies and likes cascade away; like counters on surviving content
// the user had liked are repaired in the same transaction so the
// like-count invariant holds after the cascade.
func (a *AuthController) DeleteAccount(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.AuthError(ctx, "Authentication credentials were not provided.")
		return
	}

	if err := utils.RevokeUserTokens(a.db, user.ID); err != nil {
		utils.ServerError(ctx, "failed to revoke tokens")
		return
	}

	err := a.db.Transaction(func(tx *gorm.DB) error {
		// Targets the user had liked lose one like each before the Like rows
		// cascade away. Targets owned by the user are deleted anyway, so the
		// extra decrement on them is harmless.
		if err := tx.Exec(
			"UPDATE posts SET like_count = CASE WHEN like_count > 0 THEN like_count - 1 ELSE 0 END "+
				"WHERE id IN (SELECT post_id FROM likes WHERE user_id = ? AND post_id IS NOT NULL)",
			user.ID,
		).Error; err != nil {
			return err
		}
		if err := tx.Exec(
			"UPDATE replies SET like_count = CASE WHEN like_count > 0 THEN like_count - 1 ELSE 0 END "+
				"WHERE id IN (SELECT reply_id FROM likes WHERE user_id = ? AND reply_id IS NOT NULL)",
			user.ID,
		).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, user.ID).Error
	})
	if err != nil {
		utils.ServerError(ctx, "failed to delete account")
		return
	}

	utils.OK(ctx, gin.H{"message": "Account deleted successfully"})
}

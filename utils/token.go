package utils

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/peerhaven/peerhaven/models"
)

// ErrInvalidToken is returned when a bearer token does not resolve to an
// active user.
var ErrInvalidToken = errors.New("invalid token")

const (
	tokenCachePrefix = "token:user:"
	tokenCacheTTL    = 10 * time.Minute
)

// GenerateTokenKey returns a 40 character hex credential.
func GenerateTokenKey() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// GetOrCreateToken returns the user's live token, issuing one only when none
// exists. A user never holds two simultaneously valid tokens.
func GetOrCreateToken(db *gorm.DB, userID uint) (*models.AuthToken, error) {
	var token models.AuthToken
	err := db.Where("user_id = ?", userID).First(&token).Error
	if err == nil {
		return &token, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	key, err := GenerateTokenKey()
	if err != nil {
		return nil, err
	}
	token = models.AuthToken{Key: key, UserID: userID}
	if err := db.Create(&token).Error; err != nil {
		// Lost a race against a concurrent login; the winner's token is the
		// one to hand out.
		var existing models.AuthToken
		if ferr := db.Where("user_id = ?", userID).First(&existing).Error; ferr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &token, nil
}

// LookupTokenUser resolves a bearer key to its active owner. The Redis
// fast path only skips the token-row query; the user row and its active
// flag are always checked against the database.
func LookupTokenUser(db *gorm.DB, key string) (*models.User, error) {
	if key == "" {
		return nil, ErrInvalidToken
	}

	userID, cached := cachedTokenUserID(key)
	if !cached {
		var token models.AuthToken
		if err := db.Where("`key` = ?", key).First(&token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrInvalidToken
			}
			return nil, err
		}
		userID = token.UserID
		cacheTokenUserID(key, userID)
	}

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidToken
	}
	return &user, nil
}

// RevokeToken deletes the token row for the given key. Revoking an unknown
// key is not an error; logout is idempotent.
func RevokeToken(db *gorm.DB, key string) error {
	if key == "" {
		return nil
	}
	dropCachedToken(key)
	return db.Where("`key` = ?", key).Delete(&models.AuthToken{}).Error
}

// RevokeUserTokens deletes every token owned by the user, e.g. before
// account deletion.
func RevokeUserTokens(db *gorm.DB, userID uint) error {
	var tokens []models.AuthToken
	if err := db.Where("user_id = ?", userID).Find(&tokens).Error; err != nil {
		return err
	}
	for _, t := range tokens {
		dropCachedToken(t.Key)
	}
	return db.Where("user_id = ?", userID).Delete(&models.AuthToken{}).Error
}

func cachedTokenUserID(key string) (uint, bool) {
	rc := GetRedis()
	if rc == nil {
		return 0, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	val, err := rc.Get(ctx, tokenCachePrefix+key).Result()
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func cacheTokenUserID(key string, userID uint) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Set(ctx, tokenCachePrefix+key, strconv.FormatUint(uint64(userID), 10), tokenCacheTTL).Err(); err != nil {
		Sugar.Debugf("token cache set failed: %v", err)
	}
}

func dropCachedToken(key string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = rc.Del(ctx, tokenCachePrefix+key).Err()
}

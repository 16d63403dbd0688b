package utils

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/peerhaven/peerhaven/models"
)

var tokenDBSeq atomic.Int64

func newTokenTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:tokentest%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", tokenDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.AuthToken{}))
	return db
}

func newTokenTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	hash, err := HashPassword("sturdy-passphrase")
	require.NoError(t, err)
	u := models.User{Username: username, PasswordHash: hash, IsActive: true}
	require.NoError(t, db.Create(&u).Error)
	return &u
}

func TestGenerateTokenKey(t *testing.T) {
	a, err := GenerateTokenKey()
	require.NoError(t, err)
	b, err := GenerateTokenKey()
	require.NoError(t, err)
	assert.Len(t, a, 40)
	assert.NotEqual(t, a, b)
}

func TestGetOrCreateTokenIsStable(t *testing.T) {
	db := newTokenTestDB(t)
	user := newTokenTestUser(t, db, "steady_moth")

	first, err := GetOrCreateToken(db, user.ID)
	require.NoError(t, err)
	second, err := GetOrCreateToken(db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Key, second.Key)

	var count int64
	require.NoError(t, db.Model(&models.AuthToken{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLookupTokenUser(t *testing.T) {
	db := newTokenTestDB(t)
	user := newTokenTestUser(t, db, "bright_tern")
	token, err := GetOrCreateToken(db, user.ID)
	require.NoError(t, err)

	got, err := LookupTokenUser(db, token.Key)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = LookupTokenUser(db, "0000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// disabled accounts cannot authenticate even with a live token
	require.NoError(t, db.Model(user).Update("is_active", false).Error)
	_, err = LookupTokenUser(db, token.Key)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeToken(t *testing.T) {
	db := newTokenTestDB(t)
	user := newTokenTestUser(t, db, "plain_crow")
	token, err := GetOrCreateToken(db, user.ID)
	require.NoError(t, err)

	require.NoError(t, RevokeToken(db, token.Key))
	_, err = LookupTokenUser(db, token.Key)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// revoking twice is harmless
	require.NoError(t, RevokeToken(db, token.Key))

	// a later login mints a fresh key
	next, err := GetOrCreateToken(db, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, token.Key, next.Key)
}

func TestRevokeUserTokens(t *testing.T) {
	db := newTokenTestDB(t)
	user := newTokenTestUser(t, db, "dim_owl")
	token, err := GetOrCreateToken(db, user.ID)
	require.NoError(t, err)

	require.NoError(t, RevokeUserTokens(db, user.ID))
	_, err = LookupTokenUser(db, token.Key)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

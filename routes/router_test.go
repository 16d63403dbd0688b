package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/peerhaven/peerhaven/config"
	"github.com/peerhaven/peerhaven/models"
)

func TestMain(m *testing.M) {
	os.Setenv("RATE_LIMIT_PER_MINUTE", "100000")
	os.Setenv("GIN_MODE", "test")
	config.Load()
	os.Exit(m.Run())
}

var dbSeq atomic.Int64

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:routertest%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.AuthToken{}, &models.Category{},
		&models.Post{}, &models.Reply{}, &models.Like{},
	))
	return SetupRouter(db), db
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	out := map[string]interface{}{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func registerUser(t *testing.T, r http.Handler, username string) string {
	t.Helper()
	w, body := doJSON(t, r, http.MethodPost, "/api/v1/auth/register/", "", gin.H{
		"username":         username,
		"password":         "sturdy-passphrase",
		"confirm_password": "sturdy-passphrase",
	})
	require.Equal(t, http.StatusCreated, w.Code, "register %s: %s", username, w.Body.String())
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func seedCategory(t *testing.T, db *gorm.DB, name, slug string) models.Category {
	t.Helper()
	c := models.Category{Name: name, Slug: slug, Description: name + " space", IsActive: true}
	require.NoError(t, db.Create(&c).Error)
	return c
}

func createPost(t *testing.T, r http.Handler, token, slug, title string, tags []string) string {
	t.Helper()
	w, body := doJSON(t, r, http.MethodPost, "/api/v1/forums/posts/", token, gin.H{
		"title":         title,
		"content":       "some supportive words about " + title,
		"category_slug": slug,
		"tags":          tags,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	post := body["post"].(map[string]interface{})
	return post["post_id"].(string)
}

func TestRegisterLoginFlow(t *testing.T) {
	r, _ := newTestRouter(t)

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/auth/status/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["authenticated"])

	token := registerUser(t, r, "quiet_heron")

	w, body = doJSON(t, r, http.MethodGet, "/api/v1/auth/status/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["authenticated"])

	// duplicate username
	w, body = doJSON(t, r, http.MethodPost, "/api/v1/auth/register/", "", gin.H{
		"username":         "quiet_heron",
		"password":         "sturdy-passphrase",
		"confirm_password": "sturdy-passphrase",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "A user with that username already exists.", body["username"])

	// mismatch wins over the length check
	w, body = doJSON(t, r, http.MethodPost, "/api/v1/auth/register/", "", gin.H{
		"username":         "other_heron",
		"password":         "short",
		"confirm_password": "different",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Passwords don't match", body["non_field_errors"])
	assert.NotContains(t, body, "password")

	w, body = doJSON(t, r, http.MethodPost, "/api/v1/auth/register/", "", gin.H{
		"username":         "other_heron",
		"password":         "short",
		"confirm_password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Ensure this field has at least 8 characters.", body["password"])

	// wrong password
	w, body = doJSON(t, r, http.MethodPost, "/api/v1/auth/login/", "", gin.H{
		"username": "quiet_heron",
		"password": "not-the-passphrase",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid credentials", body["non_field_errors"])

	// good login reuses the registration token
	w, body = doJSON(t, r, http.MethodPost, "/api/v1/auth/login/", "", gin.H{
		"username": "quiet_heron",
		"password": "sturdy-passphrase",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, token, body["token"])

	// profile requires the token
	w, body = doJSON(t, r, http.MethodGet, "/api/v1/auth/profile/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "quiet_heron", user["username"])
	assert.Equal(t, true, user["is_anonymous"])
	assert.NotEmpty(t, user["user_id"])

	w, body = doJSON(t, r, http.MethodGet, "/api/v1/auth/profile/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authentication credentials were not provided.", body["detail"])

	w, body = doJSON(t, r, http.MethodGet, "/api/v1/auth/profile/", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid token.", body["detail"])

	// logout revokes the token
	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/auth/logout/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/auth/profile/", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfileUpdate(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerUser(t, r, "gentle_otter")

	w, body := doJSON(t, r, http.MethodPatch, "/api/v1/auth/profile/update/", token, gin.H{
		"display_name":     "Gentle Otter",
		"bio":              "here to listen",
		"preferred_topics": []string{"anxiety", "sleep"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "Gentle Otter", user["display_name"])
	assert.Equal(t, "here to listen", user["bio"])
	assert.Len(t, user["preferred_topics"], 2)

	// topics must arrive as a list
	w, body = doJSON(t, r, http.MethodPatch, "/api/v1/auth/profile/update/", token, gin.H{
		"preferred_topics": "anxiety",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Preferred topics must be a list", body["preferred_topics"])

	eleven := make([]string, 11)
	for i := range eleven {
		eleven[i] = fmt.Sprintf("topic-%d", i)
	}
	w, body = doJSON(t, r, http.MethodPatch, "/api/v1/auth/profile/update/", token, gin.H{
		"preferred_topics": eleven,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Maximum 10 preferred topics allowed", body["preferred_topics"])

	w, body = doJSON(t, r, http.MethodPatch, "/api/v1/auth/profile/update/", token, gin.H{
		"preferred_topics": eleven[:10],
	})
	require.Equal(t, http.StatusOK, w.Code)
	user = body["user"].(map[string]interface{})
	assert.Len(t, user["preferred_topics"], 10)
}

func TestCategoryListingAndPagination(t *testing.T) {
	r, db := newTestRouter(t)
	token := registerUser(t, r, "steady_wren")
	seedCategory(t, db, "Anxiety Support", "anxiety-support")
	seedCategory(t, db, "Sleep Health", "sleep-health")

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/forums/categories/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["categories"], 2)

	// invalid category on post creation
	w, body = doJSON(t, r, http.MethodPost, "/api/v1/forums/posts/", token, gin.H{
		"title":         "hello",
		"content":       "hello",
		"category_slug": "no-such-place",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid category or category is not active", body["category_slug"])

	for i := 0; i < 25; i++ {
		createPost(t, r, token, "anxiety-support", fmt.Sprintf("thread %02d", i), nil)
	}

	w, body = doJSON(t, r, http.MethodGet, "/api/v1/forums/categories/anxiety-support/posts/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["posts"], 20)
	pg := body["pagination"].(map[string]interface{})
	assert.Equal(t, float64(1), pg["page"])
	assert.Equal(t, float64(25), pg["total"])
	assert.Equal(t, true, pg["has_next"])
	assert.Equal(t, false, pg["has_previous"])

	w, body = doJSON(t, r, http.MethodGet, "/api/v1/forums/categories/anxiety-support/posts/?page=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["posts"], 5)
	pg = body["pagination"].(map[string]interface{})
	assert.Equal(t, false, pg["has_next"])
	assert.Equal(t, true, pg["has_previous"])

	cat := body["category"].(map[string]interface{})
	assert.Equal(t, float64(25), cat["post_count"])

	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/forums/categories/no-such-place/posts/", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPinnedPostsListFirst(t *testing.T) {
	r, db := newTestRouter(t)
	token := registerUser(t, r, "calm_finch")
	seedCategory(t, db, "General", "general")

	createPost(t, r, token, "general", "ordinary thread", nil)
	pinnedID := createPost(t, r, token, "general", "read me first", nil)
	require.NoError(t, db.Model(&models.Post{}).
		Where("post_id = ?", pinnedID).
		Update("is_pinned", true).Error)
	createPost(t, r, token, "general", "newest thread", nil)

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/forums/categories/general/posts/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	posts := body["posts"].([]interface{})
	require.Len(t, posts, 3)
	first := posts[0].(map[string]interface{})
	assert.Equal(t, pinnedID, first["post_id"])
}

func TestPostDetailCountsViews(t *testing.T) {
	r, db := newTestRouter(t)
	token := registerUser(t, r, "warm_vole")
	seedCategory(t, db, "General", "general")
	postID := createPost(t, r, token, "general", "counting views", nil)

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/forums/posts/"+postID+"/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	post := body["post"].(map[string]interface{})
	assert.Equal(t, float64(1), post["view_count"])
	assert.Equal(t, float64(0), body["reply_count"])

	w, body = doJSON(t, r, http.MethodGet, "/api/v1/forums/posts/"+postID+"/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	post = body["post"].(map[string]interface{})
	assert.Equal(t, float64(2), post["view_count"])

	w, body = doJSON(t, r, http.MethodGet, "/api/v1/forums/posts/0e6afde1-0000-0000-0000-000000000000/", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not found.", body["detail"])
}

func TestRepliesAndLocking(t *testing.T) {
	r, db := newTestRouter(t)
	token := registerUser(t, r, "kind_ibis")
	seedCategory(t, db, "General", "general")
	postID := createPost(t, r, token, "general", "open thread", nil)

	w, body := doJSON(t, r, http.MethodPost, "/api/v1/forums/posts/"+postID+"/replies/", token, gin.H{
		"content": "you are not alone",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reply := body["reply"].(map[string]interface{})
	assert.Equal(t, false, reply["is_nested_reply"])
	replyID := reply["reply_id"].(string)

	// nested reply references its parent
	w, body = doJSON(t, r, http.MethodPost, "/api/v1/forums/posts/"+postID+"/replies/", token, gin.H{
		"content":         "agreed",
		"parent_reply_id": replyID,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	nested := body["reply"].(map[string]interface{})
	assert.Equal(t, true, nested["is_nested_reply"])
	assert.Equal(t, replyID, nested["parent_reply"])

	w, body = doJSON(t, r, http.MethodPost, "/api/v1/forums/posts/"+postID+"/replies/", token, gin.H{
		"content":         "agreed",
		"parent_reply_id": "not-a-reply",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid parent reply", body["parent_reply_id"])

	w, body = doJSON(t, r, http.MethodGet, "/api/v1/forums/posts/"+postID+"/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["reply_count"])

	// locked posts refuse new replies
	require.NoError(t, db.Model(&models.Post{}).
		Where("post_id = ?", postID).
		Update("is_locked", true).Error)
	w, body = doJSON(t, r, http.MethodPost, "/api/v1/forums/posts/"+postID+"/replies/", token, gin.H{
		"content": "too late",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "This post is locked and cannot receive new replies", body["error"])
}

func TestLikeToggle(t *testing.T) {
	r, db := newTestRouter(t)
	token := registerUser(t, r, "brave_skink")
	seedCategory(t, db, "General", "general")
	postID := createPost(t, r, token, "general", "likeable thread", nil)

	w, body := doJSON(t, r, http.MethodPost, "/api/v1/forums/posts/"+postID+"/like/", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Post liked successfully", body["message"])
	assert.Equal(t, true, body["liked"])
	assert.Equal(t, float64(1), body["like_count"])

	w, body = doJSON(t, r, http.MethodPost, "/api/v1/forums/posts/"+postID+"/like/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Post unliked successfully", body["message"])
	assert.Equal(t, false, body["liked"])
	assert.Equal(t, float64(0), body["like_count"])

	w, body = doJSON(t, r, http.MethodPost, "/api/v1/forums/posts/"+postID+"/replies/", token, gin.H{
		"content": "reply to like",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	replyID := body["reply"].(map[string]interface{})["reply_id"].(string)

	w, body = doJSON(t, r, http.MethodPost, "/api/v1/forums/replies/"+replyID+"/like/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Reply liked successfully", body["message"])
	assert.Equal(t, float64(1), body["like_count"])

	w, body = doJSON(t, r, http.MethodPost, "/api/v1/forums/replies/"+replyID+"/like/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Reply unliked successfully", body["message"])
	assert.Equal(t, float64(0), body["like_count"])

	var likes int64
	require.NoError(t, db.Model(&models.Like{}).Count(&likes).Error)
	assert.Equal(t, int64(0), likes)
}

func TestSearch(t *testing.T) {
	r, db := newTestRouter(t)
	token := registerUser(t, r, "soft_lark")
	seedCategory(t, db, "Anxiety Support", "anxiety-support")
	seedCategory(t, db, "Sleep Health", "sleep-health")
	createPost(t, r, token, "anxiety-support", "Panic at night", []string{"panic", "grounding"})
	createPost(t, r, token, "sleep-health", "Trouble falling asleep", []string{"insomnia"})

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/forums/search/", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Search query is required", body["error"])

	// case-insensitive title match
	w, body = doJSON(t, r, http.MethodGet, "/api/v1/forums/search/?q=PANIC", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PANIC", body["query"])
	assert.Len(t, body["posts"], 1)

	// tag match
	w, body = doJSON(t, r, http.MethodGet, "/api/v1/forums/search/?q=insomnia", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["posts"], 1)

	// category narrowing
	w, body = doJSON(t, r, http.MethodGet, "/api/v1/forums/search/?q=night&category=sleep-health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["posts"], 0)

	w, body = doJSON(t, r, http.MethodGet, "/api/v1/forums/search/?q=zzznothing", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["posts"], 0)
	pg := body["pagination"].(map[string]interface{})
	assert.Equal(t, float64(0), pg["total"])
}

func TestAccountDeletionCascades(t *testing.T) {
	r, db := newTestRouter(t)
	author := registerUser(t, r, "lasting_elm")
	admirer := registerUser(t, r, "passing_fox")
	seedCategory(t, db, "General", "general")
	postID := createPost(t, r, author, "general", "a thread that stays", nil)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/forums/posts/"+postID+"/like/", admirer, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// deleting the admirer removes the like and repairs the count
	w, body := doJSON(t, r, http.MethodDelete, "/api/v1/auth/profile/delete/", admirer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Account deleted successfully", body["message"])

	var post models.Post
	require.NoError(t, db.Where("post_id = ?", postID).First(&post).Error)
	assert.Equal(t, 0, post.LikeCount)
	var likes int64
	require.NoError(t, db.Model(&models.Like{}).Count(&likes).Error)
	assert.Equal(t, int64(0), likes)

	// the admirer's token is gone with the account
	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/auth/profile/", admirer, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// deleting the author cascades to their content
	w, _ = doJSON(t, r, http.MethodDelete, "/api/v1/auth/profile/delete/", author, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/forums/posts/"+postID+"/", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(0), users)
}

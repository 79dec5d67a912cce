package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/blogsvc/testutil"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "blogsvc-routes")
	if err != nil {
		panic(err)
	}
	os.Setenv("JWT_SECRET", "routes-test-secret")
	os.Setenv("GIN_MODE", "test")
	os.Setenv("GIN_LOG_PATH", filepath.Join(dir, "gin.log"))
	os.Setenv("RATE_LIMIT_PER_MINUTE", "100000")
	os.Setenv("REDIS_HOST", "")
	os.Setenv("ADMIN_USERNAMES", "root")
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	t      *testing.T
	router *gin.Engine
}

func newClient(t *testing.T) *client {
	return &client{t: t, router: SetupRouter(testutil.NewDB(t))}
}

func (c *client) do(method, path, token string, body interface{}) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v), string(raw))
}

type userJSON struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

type postJSON struct {
	ID           uint     `json:"id"`
	Title        string   `json:"title"`
	Status       string   `json:"status"`
	IsFeatured   bool     `json:"is_featured"`
	Views        int64    `json:"views"`
	AuthorID     uint     `json:"author_id"`
	Tags         []string `json:"tags"`
	CommentCount int64    `json:"comment_count"`
	Comments     []struct {
		ID      uint   `json:"id"`
		Content string `json:"content"`
		Replies []struct {
			Content string `json:"content"`
		} `json:"replies"`
	} `json:"comments"`
}

type listJSON struct {
	Data       []postJSON `json:"data"`
	Pagination struct {
		Total      int64 `json:"total"`
		Page       int   `json:"page"`
		Limit      int   `json:"limit"`
		TotalPages int   `json:"total_pages"`
	} `json:"pagination"`
}

// register signs up and returns the token and account.
func (c *client) register(username string) (string, userJSON) {
	c.t.Helper()
	status, env := c.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username, "password": "secret-" + username, "email": username + "@example.com",
	})
	require.Equal(c.t, http.StatusCreated, status, env.Message)
	var out struct {
		Token string   `json:"token"`
		User  userJSON `json:"user"`
	}
	decode(c.t, env.Data, &out)
	return out.Token, out.User
}

func (c *client) createPost(token string, body map[string]interface{}) postJSON {
	c.t.Helper()
	status, env := c.do(http.MethodPost, "/api/v1/posts", token, body)
	require.Equal(c.t, http.StatusCreated, status, env.Message)
	var p postJSON
	decode(c.t, env.Data, &p)
	return p
}

func TestHealthAndNoRoute(t *testing.T) {
	c := newClient(t)
	status, env := c.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, env.Code)

	status, env = c.do(http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 40400, env.Code)
}

func TestAuthFlow(t *testing.T) {
	c := newClient(t)
	aliceToken, alice := c.register("alice")
	assert.Equal(t, "USER", alice.Role)
	assert.Equal(t, "ACTIVE", alice.Status)
	_, root := c.register("root")
	assert.Equal(t, "ADMIN", root.Role)

	status, _ := c.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "alice", "password": "another-pass"})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = c.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := c.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "secret-alice"})
	require.Equal(t, http.StatusOK, status)
	var login struct {
		Token string `json:"token"`
	}
	decode(t, env.Data, &login)
	assert.NotEmpty(t, login.Token)

	status, env = c.do(http.MethodGet, "/api/v1/auth/me", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	var me userJSON
	decode(t, env.Data, &me)
	assert.Equal(t, alice.ID, me.ID)
	assert.NotContains(t, string(env.Data), "password")

	status, _ = c.do(http.MethodPost, "/api/v1/auth/logout", aliceToken, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = c.do(http.MethodGet, "/api/v1/auth/me", aliceToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = c.do(http.MethodGet, "/api/v1/auth/me", login.Token, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestPostLifecycle(t *testing.T) {
	c := newClient(t)
	aliceToken, alice := c.register("alice")
	bobToken, _ := c.register("bob")
	rootToken, _ := c.register("root")

	status, _ := c.do(http.MethodPost, "/api/v1/posts", "", map[string]interface{}{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusUnauthorized, status)

	post := c.createPost(aliceToken, map[string]interface{}{
		"title": "Hello", "content": "world", "tags": []string{"go", "web"}, "status": "PUBLISHED", "is_featured": true,
	})
	assert.Equal(t, alice.ID, post.AuthorID)
	assert.False(t, post.IsFeatured)
	assert.Equal(t, []string{"go", "web"}, post.Tags)
	c.createPost(aliceToken, map[string]interface{}{"title": "Draft", "content": "later"})

	status, env := c.do(http.MethodGet, "/api/v1/posts?status=PUBLISHED&tags=go,web", "", nil)
	require.Equal(t, http.StatusOK, status)
	var list listJSON
	decode(t, env.Data, &list)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "Hello", list.Data[0].Title)
	assert.Equal(t, int64(1), list.Pagination.Total)

	status, env = c.do(http.MethodGet, fmt.Sprintf("/api/v1/posts?authorId=%d&sortBy=title&sortOrder=asc&limit=1&page=2", alice.ID), "", nil)
	require.Equal(t, http.StatusOK, status)
	decode(t, env.Data, &list)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "Hello", list.Data[0].Title)
	assert.Equal(t, 2, list.Pagination.TotalPages)

	status, _ = c.do(http.MethodGet, "/api/v1/posts?sortBy=password", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = c.do(http.MethodGet, "/api/v1/posts?isFeatured=maybe", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	path := fmt.Sprintf("/api/v1/posts/%d", post.ID)
	status, env = c.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, status)
	var got postJSON
	decode(t, env.Data, &got)
	assert.Equal(t, int64(1), got.Views)

	status, _ = c.do(http.MethodPatch, path, bobToken, map[string]interface{}{"title": "mine now"})
	assert.Equal(t, http.StatusForbidden, status)

	status, env = c.do(http.MethodPatch, path, aliceToken, map[string]interface{}{"title": "Hello again", "is_featured": true})
	require.Equal(t, http.StatusOK, status)
	decode(t, env.Data, &got)
	assert.Equal(t, "Hello again", got.Title)
	assert.False(t, got.IsFeatured)

	status, env = c.do(http.MethodPatch, path, rootToken, map[string]interface{}{"is_featured": true})
	require.Equal(t, http.StatusOK, status)
	decode(t, env.Data, &got)
	assert.True(t, got.IsFeatured)

	status, env = c.do(http.MethodGet, "/api/v1/posts/my-posts", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	var mine struct {
		Data  []postJSON `json:"data"`
		Total int64      `json:"total"`
	}
	decode(t, env.Data, &mine)
	assert.Equal(t, int64(2), mine.Total)

	status, _ = c.do(http.MethodDelete, path, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = c.do(http.MethodDelete, path, aliceToken, nil)
	assert.Equal(t, http.StatusOK, status)
	status, env = c.do(http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 40401, env.Code)

	status, _ = c.do(http.MethodGet, "/api/v1/posts/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCommentEndpoints(t *testing.T) {
	c := newClient(t)
	aliceToken, _ := c.register("alice")
	bobToken, bob := c.register("bob")
	rootToken, _ := c.register("root")
	post := c.createPost(aliceToken, map[string]interface{}{"title": "Talk", "content": "here", "status": "PUBLISHED"})

	type commentJSON struct {
		ID       uint   `json:"id"`
		Content  string `json:"content"`
		Status   string `json:"status"`
		ParentID *uint  `json:"parent_id"`
	}
	createComment := func(token string, body map[string]interface{}) (int, commentJSON) {
		status, env := c.do(http.MethodPost, "/api/v1/comments", token, body)
		var cm commentJSON
		if status == http.StatusCreated {
			decode(t, env.Data, &cm)
		}
		return status, cm
	}

	status, top := createComment(bobToken, map[string]interface{}{"post_id": post.ID, "content": "nice"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "APPROVED", top.Status)

	status, reply := createComment(aliceToken, map[string]interface{}{"post_id": post.ID, "parent_id": top.ID, "content": "thanks"})
	require.Equal(t, http.StatusCreated, status)
	require.NotNil(t, reply.ParentID)

	status, _ = createComment(aliceToken, map[string]interface{}{"post_id": 9999, "content": "lost"})
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = createComment(aliceToken, map[string]interface{}{"post_id": post.ID})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env := c.do(http.MethodGet, fmt.Sprintf("/api/v1/comments/%d", top.ID), "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), "thanks")

	status, env = c.do(http.MethodGet, fmt.Sprintf("/api/v1/comments/author/%d", bob.ID), "", nil)
	require.Equal(t, http.StatusOK, status)
	var byAuthor struct {
		Data  []commentJSON `json:"data"`
		Total int           `json:"total"`
	}
	decode(t, env.Data, &byAuthor)
	assert.Equal(t, 1, byAuthor.Total)

	commentPath := fmt.Sprintf("/api/v1/comments/%d", reply.ID)
	status, _ = c.do(http.MethodPatch, commentPath, bobToken, map[string]interface{}{"content": "hijack"})
	assert.Equal(t, http.StatusForbidden, status)
	status, env = c.do(http.MethodPatch, commentPath, rootToken, map[string]interface{}{"status": "PENDING"})
	require.Equal(t, http.StatusOK, status)
	var moderated commentJSON
	decode(t, env.Data, &moderated)
	assert.Equal(t, "PENDING", moderated.Status)

	status, env = c.do(http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", post.ID), "", nil)
	require.Equal(t, http.StatusOK, status)
	var p postJSON
	decode(t, env.Data, &p)
	require.Len(t, p.Comments, 1)
	assert.Empty(t, p.Comments[0].Replies)
	assert.Equal(t, int64(2), p.CommentCount)

	status, _ = c.do(http.MethodDelete, fmt.Sprintf("/api/v1/comments/%d", top.ID), bobToken, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = c.do(http.MethodGet, commentPath, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStatsAndUserAdministration(t *testing.T) {
	c := newClient(t)
	aliceToken, alice := c.register("alice")
	rootToken, _ := c.register("root")
	c.createPost(aliceToken, map[string]interface{}{"title": "One", "content": "x", "status": "PUBLISHED"})
	c.createPost(aliceToken, map[string]interface{}{"title": "Two", "content": "y"})

	status, _ := c.do(http.MethodGet, "/api/v1/posts/stats", aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = c.do(http.MethodGet, "/api/v1/posts/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := c.do(http.MethodGet, "/api/v1/posts/stats", rootToken, nil)
	require.Equal(t, http.StatusOK, status)
	var st map[string]int64
	decode(t, env.Data, &st)
	assert.Equal(t, int64(2), st["total_posts"])
	assert.Equal(t, int64(1), st["published_posts"])
	assert.Equal(t, int64(1), st["draft_posts"])
	assert.Equal(t, int64(2), st["total_users"])
	assert.Equal(t, int64(1), st["admin_count"])
	assert.Equal(t, int64(2), st["today_posts"])

	status, _ = c.do(http.MethodGet, "/api/v1/users", aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, env = c.do(http.MethodGet, "/api/v1/users?limit=1", rootToken, nil)
	require.Equal(t, http.StatusOK, status)
	var users struct {
		Data       []userJSON `json:"data"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	decode(t, env.Data, &users)
	assert.Len(t, users.Data, 1)
	assert.Equal(t, int64(2), users.Pagination.Total)

	statusPath := fmt.Sprintf("/api/v1/users/%d/status", alice.ID)
	status, _ = c.do(http.MethodPatch, statusPath, rootToken, map[string]string{"status": "FROZEN"})
	assert.Equal(t, http.StatusBadRequest, status)
	status, env = c.do(http.MethodPatch, statusPath, rootToken, map[string]string{"status": "BLOCKED"})
	require.Equal(t, http.StatusOK, status)
	var blocked userJSON
	decode(t, env.Data, &blocked)
	assert.Equal(t, "BLOCKED", blocked.Status)

	status, _ = c.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "secret-alice"})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = c.do(http.MethodGet, "/api/v1/posts/my-posts", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = c.do(http.MethodPost, "/api/v1/posts", aliceToken, map[string]interface{}{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusForbidden, status)
}

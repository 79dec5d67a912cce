package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/blogsvc/models"
	"github.com/cppla/blogsvc/testutil"
)

func postJSON(t *testing.T, handler gin.HandlerFunc, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	r := gin.New()
	r.POST("/", handler)
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w.Code, out
}

func TestRegister_Duplicate(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreateUser(t, db, "taken", models.RoleUser, models.UserActive)
	auth := NewAuthController(db)

	code, body := postJSON(t, auth.Register, gin.H{"username": "taken", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, code)
	assert.EqualValues(t, 40901, body["code"])
}

// The name is claimed between the existence check and the insert.
func TestRegister_ConcurrentDuplicate(t *testing.T) {
	db := testutil.NewDB(t)
	fired := false
	require.NoError(t, db.Callback().Create().Before("gorm:begin_transaction").Register("test:claim_username", func(tx *gorm.DB) {
		if fired || tx.Statement.Schema == nil || tx.Statement.Schema.Table != "users" {
			return
		}
		fired = true
		rival := &models.User{Username: "racer", Email: "rival@example.com"}
		if err := tx.Session(&gorm.Session{NewDB: true}).Create(rival).Error; err != nil {
			_ = tx.AddError(err)
		}
	}))
	auth := NewAuthController(db)

	code, body := postJSON(t, auth.Register, gin.H{"username": "racer", "password": "secret1"})
	require.True(t, fired)
	assert.Equal(t, http.StatusConflict, code)
	assert.EqualValues(t, 40901, body["code"])

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("username = ?", "racer").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRegister_Created(t *testing.T) {
	db := testutil.NewDB(t)
	code, body := postJSON(t, NewAuthController(db).Register, gin.H{"username": "fresh", "password": "secret1"})
	assert.Equal(t, http.StatusCreated, code)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, data["token"])
}

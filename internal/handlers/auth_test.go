package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"isp-crm/internal/database"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRegister(t *testing.T) *gin.Engine {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	database.DB = db

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/register", Register)
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestRegister(t *testing.T) {
	r := setupRegister(t)

	const body = `{"name":"New Rep","email":"rep@example.com","password":"Sales123!"}`

	w := postJSON(r, "/register", body)
	assert.Equal(t, http.StatusCreated, w.Code)

	// a duplicate email is the caller's mistake, not a server failure
	w = postJSON(r, "/register", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")
}

func TestRegisterRoleLimit(t *testing.T) {
	r := setupRegister(t)

	w := postJSON(r, "/register", `{"name":"Boss","email":"boss@example.com","password":"Admin123!","role":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/register", `{"name":"Rep","email":"rep@example.com","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

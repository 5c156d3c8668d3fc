package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firstbit/storage-api/middleware"
	"firstbit/storage-api/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "jwt-test-secret"

func newJWTTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	viper.Set("jwt.secret", testSecret)
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.User{}))

	router := gin.New()
	router.Use(middleware.NewRequestIDMiddleware())

	auth := router.Group("", middleware.NewJWTMiddleware(db))
	auth.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userID": c.GetString("userID")})
	})
	auth.GET("/admin", middleware.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	return router, db
}

func signToken(t *testing.T, userID string, exp time.Time) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     exp.Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	return token
}

func doAuthed(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	}
	router.ServeHTTP(w, req)
	return w
}

func TestJWTMiddleware(t *testing.T) {
	router, db := newJWTTestRouter(t)

	require.NoError(t, db.Create(&model.User{
		ID:    "u1",
		Name:  "ivan",
		Email: "ivan@1cbit.ru",
		Role:  model.RoleUser,
	}).Error)

	// No cookie
	w := doAuthed(router, "/me", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Garbage token
	w = doAuthed(router, "/me", "not.a.token")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Expired
	w = doAuthed(router, "/me", signToken(t, "u1", time.Now().Add(-time.Hour)))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid
	w = doAuthed(router, "/me", signToken(t, "u1", time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "u1")

	// Token for an account that no longer exists
	w = doAuthed(router, "/me", signToken(t, "gone", time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	router, db := newJWTTestRouter(t)

	require.NoError(t, db.Create(&model.User{
		ID:    "u1",
		Name:  "ivan",
		Email: "ivan@1cbit.ru",
		Role:  model.RoleUser,
	}).Error)
	require.NoError(t, db.Create(&model.User{
		ID:    "a1",
		Name:  "admin",
		Email: "admin@1cbit.ru",
		Role:  model.RoleAdmin,
	}).Error)

	w := doAuthed(router, "/admin", signToken(t, "u1", time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doAuthed(router, "/admin", signToken(t, "a1", time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusOK, w.Code)
}

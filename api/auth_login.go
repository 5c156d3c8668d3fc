package api

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"firstbit/storage-api/model"
	"firstbit/storage-api/service"
	"firstbit/storage-api/validators"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type loginBody struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// AuthLogin exchanges an emailed one-time code for the auth cookie. A code
// works exactly once: it is removed from the store the moment it matches.
func (a *API) AuthLogin(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))

	if err := validators.EmailValidator(email); err != nil || body.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Email and code are required",
			"requestID": requestID,
		})
		return
	}

	stored, err := a.Codes.Get(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, service.ErrCodeNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":     "Code expired or never requested",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to read verification code", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	token, err := jwt.Parse(stored, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}

		return []byte(viper.GetString("jwt.secret")), nil
	})
	if err != nil || !token.Valid {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":     "Code expired or never requested",
			"requestID": requestID,
		})
		return
	}

	claims, _ := token.Claims.(jwt.MapClaims)
	wantCode, _ := claims["code"].(string)
	wantEmail, _ := claims["email"].(string)

	if wantEmail != email || subtle.ConstantTimeCompare([]byte(wantCode), []byte(body.Code)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":     "Invalid code",
			"requestID": requestID,
		})
		return
	}

	if err := a.Codes.Delete(c.Request.Context(), email); err != nil {
		zap.L().Error("Failed to delete used verification code", zap.Error(err), zap.String("requestID", requestID))
	}

	var user model.User
	if err := a.DB.Where("email = ?", email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":     "user_not_found",
			"requestID": requestID,
		})
		return
	}

	ttl := time.Duration(viper.GetInt("jwt.token_ttl_hours")) * time.Hour

	authToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"exp":     time.Now().Add(ttl).Unix(),
	}).SignedString([]byte(viper.GetString("jwt.secret")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to sign auth token", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	secure := viper.GetBool("host.ssl.enabled")
	domain := viper.GetString("host.domain")
	maxAge := int(ttl.Seconds())

	c.SetCookie("auth_token", authToken, maxAge, "/", domain, secure, true)

	// Readable by the frontend so it knows a session exists without being
	// able to touch the actual token
	c.SetCookie("logged_in", "true", maxAge, "/", domain, secure, false)

	c.JSON(http.StatusOK, gin.H{
		"user": user,
	})
}

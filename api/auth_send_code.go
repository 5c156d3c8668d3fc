package api

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"firstbit/storage-api/middleware"
	"firstbit/storage-api/model"
	"firstbit/storage-api/validators"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sendCodeBody struct {
	Email string `json:"email"`
}

// AuthSendCode emails a one-time login code to a company address. The code
// travels to redis wrapped in a short-lived signed token, so tampering with
// the stored value invalidates it.
func (a *API) AuthSendCode(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	var body sendCodeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))

	if err := validators.CompanyEmailValidator(email); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, validators.ErrEmailForbidden) {
			status = http.StatusForbidden
		}

		c.JSON(status, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	// The route-level limiter is keyed by IP. A second window keyed by the
	// address itself stops one client from flooding somebody's inbox from
	// many addresses
	if !middleware.Admit(c, a.Limiter, rateCfg("auth-send-code"), email) {
		return
	}

	var user model.User
	err := a.DB.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		local, _, _ := strings.Cut(email, "@")
		user = model.User{
			ID:    uuid.NewString(),
			Name:  local,
			Email: email,
			Role:  model.RoleUser,
		}
		err = a.DB.Create(&user).Error
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to find or create user", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	code, err := makeCode()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to generate verification code", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	ttl := time.Duration(viper.GetInt("auth.code_ttl_minutes")) * time.Minute

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"code":  code,
		"exp":   time.Now().Add(ttl).Unix(),
	}).SignedString([]byte(viper.GetString("jwt.secret")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to sign code token", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if err := a.Codes.Save(c.Request.Context(), email, token, ttl); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to store verification code", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if err := a.Mailer.SendCode(email, code); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Failed to send verification email",
			"requestID": requestID,
		})

		zap.L().Error("Failed to send verification email", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Verification code sent",
	})
}

func makeCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%06d", n.Int64()), nil
}

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"firstbit/storage-api/model"
	"firstbit/storage-api/validators"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminUserList pages through all accounts with an optional name/email search.
func (a *API) AdminUserList(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 50
	}

	q := a.DB.Model(&model.User{})

	if search := c.Query("search"); search != "" {
		pattern := "%" + toLowerLike(search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to count users", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	var users []model.User
	err = q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch users", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"total": total,
	})
}

type adminUserBody struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AdminUserCreate provisions an account ahead of the user's first login.
func (a *API) AdminUserCreate(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	var body adminUserBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))

	if err := validators.CompanyEmailValidator(email); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	if body.Role == "" {
		body.Role = model.RoleUser
	}
	if body.Role != model.RoleUser && body.Role != model.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "role must be USER or ADMIN",
			"requestID": requestID,
		})
		return
	}

	if body.Name == "" {
		body.Name, _, _ = strings.Cut(email, "@")
	}

	user := model.User{
		ID:    uuid.NewString(),
		Name:  body.Name,
		Email: email,
		Role:  body.Role,
	}

	if err := a.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{
				"error":     "A user with this email already exists",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to create user", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user": user,
	})
}

// AdminUserUpdate changes name, email or role. Empty fields stay untouched.
func (a *API) AdminUserUpdate(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.Param("id")

	var body adminUserBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	updates := map[string]any{}

	if body.Name != "" {
		updates["name"] = body.Name
	}

	if body.Email != "" {
		email := strings.ToLower(strings.TrimSpace(body.Email))
		if err := validators.CompanyEmailValidator(email); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     err.Error(),
				"requestID": requestID,
			})
			return
		}
		updates["email"] = email
	}

	if body.Role != "" {
		if body.Role != model.RoleUser && body.Role != model.RoleAdmin {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "role must be USER or ADMIN",
				"requestID": requestID,
			})
			return
		}
		updates["role"] = body.Role
	}

	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Nothing to update",
			"requestID": requestID,
		})
		return
	}

	res := a.DB.Model(&model.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to update user", zap.Error(res.Error), zap.String("requestID", requestID))
		return
	}

	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "User not found",
			"requestID": requestID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User updated",
	})
}

// AdminUserDelete removes an account. Their files stay in place so an admin
// can still reassign or clean them up afterwards.
func (a *API) AdminUserDelete(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.Param("id")

	if userID == c.GetString("userID") {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "You can't delete your own account",
			"requestID": requestID,
		})
		return
	}

	res := a.DB.Delete(&model.User{}, "id = ?", userID)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to delete user", zap.Error(res.Error), zap.String("requestID", requestID))
		return
	}

	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "User not found",
			"requestID": requestID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User deleted",
	})
}

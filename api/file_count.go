package api

import (
	"net/http"

	"firstbit/storage-api/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (a *API) FileCount(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var count int64
	err := a.DB.
		Model(&model.File{}).
		Where("user_id = ? AND is_deleted = ?", userID, false).
		Count(&count).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to count files", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": count,
	})
}

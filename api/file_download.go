package api

import (
	"errors"
	"net/http"
	"time"

	"firstbit/storage-api/model"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FileDownload hands out a time-limited presigned URL for the object. The
// bytes never pass through this server. Owners can fetch their own files,
// admins can fetch anything.
func (a *API) FileDownload(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)
	fileID := c.Param("id")

	var file model.File
	err := a.DB.Where("id = ? AND is_deleted = ?", fileID, false).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "File not found",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch file", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if file.UserID != userID && c.GetString("userRole") != model.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{
			"error":     "You don't own this file",
			"requestID": requestID,
		})
		return
	}

	ttl := time.Duration(viper.GetInt("upload.presign_ttl_seconds")) * time.Second

	url, err := a.S3.Presign(c.Request.Context(), file.Path, ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Failed to generate download link",
			"requestID": requestID,
		})

		zap.L().Error("Failed to presign download",
			zap.String("key", file.Path),
			zap.String("requestID", requestID),
			zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":        url,
		"expires_in": int(ttl.Seconds()),
	})
}

package api

import (
	"errors"
	"net/http"

	"firstbit/storage-api/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FileDelete removes the file for good: first the object, then the record.
// Deleting the object first means a failure leaves a restorable row instead
// of a row pointing at nothing.
func (a *API) FileDelete(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)
	fileID := c.Param("id")

	var file model.File
	err := a.DB.Where("id = ? AND user_id = ?", fileID, userID).First(&file).Error
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

	if err := a.S3.DeleteObject(c.Request.Context(), file.Path); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Failed to delete file from storage",
			"requestID": requestID,
		})

		zap.L().Error("Failed to delete object",
			zap.String("key", file.Path),
			zap.String("requestID", requestID),
			zap.Error(err))
		return
	}

	if err := a.DB.Delete(&file).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to delete file record",
			zap.String("fileID", file.ID),
			zap.String("requestID", requestID),
			zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "File deleted",
	})
}

package api

import (
	"errors"
	"net/http"
	"strconv"

	"firstbit/storage-api/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminFileList pages through every file in the system, any owner, deleted
// ones included. status=active/deleted narrows the listing.
func (a *API) AdminFileList(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 50
	}

	q := a.DB.Model(&model.File{}).Preload("User")

	switch c.DefaultQuery("status", "all") {
	case "all":
	case "active":
		q = q.Where("is_deleted = ?", false)
	case "deleted":
		q = q.Where("is_deleted = ?", true)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "status must be all, active or deleted",
			"requestID": requestID,
		})
		return
	}

	if search := c.Query("search"); search != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+toLowerLike(search)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to count files", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	var files []model.File
	err = q.Order("updated_at DESC").Offset(offset).Limit(limit).Find(&files).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch files", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"files": files,
		"total": total,
	})
}

// AdminFileEdit soft deletes or restores any file regardless of owner.
func (a *API) AdminFileEdit(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	fileID := c.Param("id")

	var body fileActionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	deleted, ok := body.deleted()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "action must be \"delete\" or \"restore\"",
			"requestID": requestID,
		})
		return
	}

	res := a.DB.
		Model(&model.File{}).
		Where("id = ?", fileID).
		Update("is_deleted", deleted)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to update file", zap.Error(res.Error), zap.String("requestID", requestID))
		return
	}

	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "File not found",
			"requestID": requestID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "File updated",
	})
}

// AdminFileDelete hard deletes any file: object first, then the record.
func (a *API) AdminFileDelete(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	fileID := c.Param("id")

	var file model.File
	err := a.DB.Where("id = ?", fileID).First(&file).Error
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

package api

import (
	"net/http"
	"strconv"

	"firstbit/storage-api/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminUploadHistory pages through the upload audit log, newest first. Rows
// are insert-only so this is effectively a read-only view of what happened.
func (a *API) AdminUploadHistory(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 50
	}

	q := a.DB.Model(&model.UploadHistory{}).Preload("User").Preload("File")

	switch c.DefaultQuery("status", "all") {
	case "all":
	case model.UploadStatusSuccess, model.UploadStatusError:
		q = q.Where("status = ?", c.Query("status"))
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "status must be all, SUCCESS or ERROR",
			"requestID": requestID,
		})
		return
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to count history rows", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	var rows []model.UploadHistory
	err = q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&rows).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch upload history", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"history": rows,
		"total":   total,
	})
}

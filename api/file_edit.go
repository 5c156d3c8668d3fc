package api

import (
	"net/http"

	"firstbit/storage-api/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type fileActionBody struct {
	// "delete" soft deletes, "restore" brings the file back
	Action string `json:"action"`
}

func (b fileActionBody) deleted() (bool, bool) {
	switch b.Action {
	case "delete":
		return true, true
	case "restore":
		return false, true
	default:
		return false, false
	}
}

// FileEdit soft deletes or restores one of the caller's files.
func (a *API) FileEdit(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)
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
		Where("id = ? AND user_id = ?", fileID, userID).
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

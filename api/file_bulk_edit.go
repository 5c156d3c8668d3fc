package api

import (
	"net/http"

	"firstbit/storage-api/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type fileBulkEditBody struct {
	FileIDs []string `json:"fileIds"`
	Action  string   `json:"action"`
}

const maxBulkFiles = 200

// FileBulkEdit soft deletes or restores a batch of the caller's files in one
// statement. IDs the caller doesn't own are skipped, not failed.
func (a *API) FileBulkEdit(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var body fileBulkEditBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	if len(body.FileIDs) == 0 || len(body.FileIDs) > maxBulkFiles {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "fileIds must contain between 1 and 200 entries",
			"requestID": requestID,
		})
		return
	}

	deleted, ok := fileActionBody{Action: body.Action}.deleted()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "action must be \"delete\" or \"restore\"",
			"requestID": requestID,
		})
		return
	}

	res := a.DB.
		Model(&model.File{}).
		Where("id IN ? AND user_id = ?", body.FileIDs, userID).
		Update("is_deleted", deleted)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to bulk update files", zap.Error(res.Error), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"updated": res.RowsAffected,
	})
}

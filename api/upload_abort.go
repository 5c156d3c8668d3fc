package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type uploadAbortBody struct {
	UploadID string `json:"uploadId"`
	Key      string `json:"key"`
}

// UploadAbort cancels an in-flight upload session. Aborting twice is a no-op,
// aborting a completed session is a 409.
func (a *API) UploadAbort(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var body uploadAbortBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	if err := a.Registry.Abort(c.Request.Context(), userID, body.UploadID, body.Key); err != nil {
		c.JSON(uploadErrStatus(err), gin.H{
			"error":     "Failed to abort upload",
			"requestID": requestID,
		})

		zap.L().Error("Failed to abort multipart upload",
			zap.String("uploadID", body.UploadID),
			zap.String("userID", userID),
			zap.String("requestID", requestID),
			zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Upload aborted",
	})
}

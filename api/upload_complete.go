package api

import (
	"errors"
	"net/http"

	"firstbit/storage-api/model"
	"firstbit/storage-api/service"
	"firstbit/storage-api/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type uploadCompleteBody struct {
	FileName    string                  `json:"fileName"`
	UploadID    string                  `json:"uploadId"`
	Key         string                  `json:"key"`
	Size        model.ByteSize          `json:"size"`
	ContentType string                  `json:"contentType"`
	Parts       []storage.CompletedPart `json:"parts"`
}

// UploadComplete finalizes the multipart upload and makes the file visible in
// the owner's listing. Completing the same session twice yields a 409.
func (a *API) UploadComplete(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var body uploadCompleteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	file, err := a.Registry.Complete(c.Request.Context(), userID, service.CompleteRequest{
		UploadID:     body.UploadID,
		Key:          body.Key,
		OriginalName: body.FileName,
		ContentType:  body.ContentType,
		TotalSize:    body.Size,
		Parts:        body.Parts,
	})
	if err != nil {
		msg := "Failed to complete upload"
		if errors.Is(err, service.ErrReconcile) {
			// The object is durable but the record is not. Make the client
			// aware this is not a retry situation
			msg = "Upload stored but could not be registered, contact an administrator"
		}

		c.JSON(uploadErrStatus(err), gin.H{
			"error":     msg,
			"requestID": requestID,
		})

		zap.L().Error("Failed to complete multipart upload",
			zap.String("uploadID", body.UploadID),
			zap.String("userID", userID),
			zap.String("requestID", requestID),
			zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"file": file,
	})
}

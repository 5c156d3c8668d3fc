package api

import (
	"net/http"

	"firstbit/storage-api/model"
	"firstbit/storage-api/validators"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type uploadInitBody struct {
	FileName    string `json:"fileName"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// UploadInit opens a multipart upload session for the caller. The returned
// key is already disambiguated against the caller's existing objects, so the
// client never has to worry about overwriting a same-named file.
func (a *API) UploadInit(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var body uploadInitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	if err := validators.UploadValidator(body.FileName, body.Size); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	contentType := validators.ContentTypeOrDetect(body.ContentType, body.FileName, nil)

	uploadID, key, err := a.Registry.Init(c.Request.Context(), userID, body.FileName, contentType, model.ByteSize(body.Size))
	if err != nil {
		c.JSON(uploadErrStatus(err), gin.H{
			"error":     "Failed to initialize upload",
			"requestID": requestID,
		})

		zap.L().Error("Failed to initialize multipart upload",
			zap.String("fileName", body.FileName),
			zap.String("userID", userID),
			zap.String("requestID", requestID),
			zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uploadId":  uploadID,
		"key":       key,
		"chunkSize": viper.GetInt64("upload.chunk_size"),
	})
}

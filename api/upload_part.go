package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UploadPart streams one chunk to the object store and records it in the
// session inventory. Retrying a part number simply overwrites the previous
// attempt, on the store and in the inventory alike.
func (a *API) UploadPart(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	uploadID := c.PostForm("uploadId")
	key := c.PostForm("key")
	partNumber, err := strconv.ParseInt(c.PostForm("partNumber"), 10, 32)
	if err != nil || partNumber < 1 || uploadID == "" || key == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "uploadId, key and a positive partNumber are required",
			"requestID": requestID,
		})
		return
	}

	// Authorize before touching the body so nobody can push bytes into
	// somebody else's session
	sess, err := a.Registry.Session(c.Request.Context(), userID, uploadID)
	if err != nil {
		c.JSON(uploadErrStatus(err), gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	if sess.Key != key {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "key does not match this upload session",
			"requestID": requestID,
		})
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No chunk payload provided",
			"requestID": requestID,
		})
		return
	}

	src, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to open uploaded chunk", zap.Error(err), zap.String("requestID", requestID))
		return
	}
	defer src.Close()

	etag, err := a.S3.UploadPart(c.Request.Context(), key, uploadID, int32(partNumber), src, fh.Size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Failed to upload part",
			"requestID": requestID,
		})

		zap.L().Error("Failed to upload part",
			zap.String("uploadID", uploadID),
			zap.Int64("partNumber", partNumber),
			zap.String("requestID", requestID),
			zap.Error(err))
		return
	}

	if err := a.Registry.SavePart(c.Request.Context(), userID, uploadID, int32(partNumber), fh.Size, etag); err != nil {
		c.JSON(uploadErrStatus(err), gin.H{
			"error":     "Failed to record part",
			"requestID": requestID,
		})

		zap.L().Error("Failed to record uploaded part",
			zap.String("uploadID", uploadID),
			zap.Int64("partNumber", partNumber),
			zap.String("requestID", requestID),
			zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"etag":       etag,
		"partNumber": partNumber,
	})
}

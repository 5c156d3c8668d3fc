package api

import (
	"net/http"
	"strconv"
	"strings"

	"firstbit/storage-api/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileFetchBulk lists the caller's non-deleted files, newest activity first.
// Supports offset/limit paging and a case-insensitive name search.
func (a *API) FileFetchBulk(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 50
	}

	q := a.DB.
		Where("user_id = ? AND is_deleted = ?", userID, false).
		Order("updated_at DESC").
		Offset(offset).
		Limit(limit)

	if search := c.Query("search"); search != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+toLowerLike(search)+"%")
	}

	var files []model.File
	if err := q.Find(&files).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_server_error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch files", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"files": files,
	})
}

// toLowerLike lowercases a search term and escapes the LIKE wildcards so user
// input can't widen the match.
func toLowerLike(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/memorial-diamonds-api/apperrors"
)

func respondSuccess(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError maps a coded error onto the response envelope. Uncoded errors are internal.
func respondError(c *gin.Context, err error) {
	appErr := apperrors.As(err)
	if appErr == nil {
		appErr = apperrors.Wrap(apperrors.CodeInternal, err, "服务器内部错误")
	}
	status := apperrors.MetadataFor(appErr.Code()).HTTPStatus
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    appErr.Code(),
			"message": appErr.Message(),
		},
	})
}

func respondValidation(c *gin.Context, message string, err error) {
	body := gin.H{
		"code":    apperrors.CodeValidation,
		"message": message,
	}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   body,
	})
}

// parseID reads a positive numeric path parameter.
func parseID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		respondValidation(c, "无效的ID："+raw, errors.New("must be a positive integer"))
		return 0, false
	}
	return uint(id), true
}

package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/memorial-diamonds-api/middleware"
	"github.com/kendall-kelly/memorial-diamonds-api/services"
)

// UploadStageMedia handles POST /api/v1/admin/orders/:id/stages/:stage_id/media (multipart "files")
// Files are stored independently; the response lists what was uploaded and what failed.
func UploadStageMedia(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	form, err := parseMultipart(c)
	if err != nil {
		respondValidation(c, "Invalid multipart form", err)
		return
	}

	outcome, err := services.GetOrderService().UploadStageMedia(
		c.Request.Context(),
		orderID,
		c.Param("stage_id"),
		formValue(form, "description"),
		attachments(form),
		middleware.GetCaller(c),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if len(outcome.Uploaded) == 0 {
		status = http.StatusBadRequest
	} else if len(outcome.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{
		"success": len(outcome.Uploaded) > 0,
		"data":    outcome,
	})
}

// DeleteMedia handles DELETE /api/v1/admin/media/:media_id
func DeleteMedia(c *gin.Context) {
	mediaID, ok := parseID(c, "media_id")
	if !ok {
		return
	}
	media, err := services.GetOrderService().DeleteMedia(c.Request.Context(), mediaID, middleware.GetCaller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, media)
}

package controllers

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/memorial-diamonds-api/middleware"
	"github.com/kendall-kelly/memorial-diamonds-api/services"
)

// maxMultipartMemory bounds the in-memory part of a multipart request; larger parts spill to disk.
const maxMultipartMemory = 32 << 20

// GetProgressTimeline handles GET /api/v1/admin/orders/:id/progress
func GetProgressTimeline(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	timeline, err := services.GetProgressService().GetTimeline(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, timeline)
}

// StartStage handles POST /api/v1/admin/orders/:id/stages/:stage_id/start
func StartStage(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	caller := middleware.GetCaller(c)
	result, err := services.GetProgressService().StartStage(c.Request.Context(), orderID, c.Param("stage_id"), caller.Operator)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, result)
}

// CompleteStage handles POST /api/v1/admin/orders/:id/stages/:stage_id/complete
// The body is multipart (notes, description, files) or empty.
func CompleteStage(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	caller := middleware.GetCaller(c)
	req := services.CompleteStageRequest{
		OrderID:     orderID,
		StageID:     c.Param("stage_id"),
		Operator:    caller.Operator,
		Permissions: caller.Permissions,
	}
	if c.ContentType() == "multipart/form-data" {
		form, err := parseMultipart(c)
		if err != nil {
			respondValidation(c, "Invalid multipart form", err)
			return
		}
		req.Notes = formValue(form, "notes")
		req.Description = formValue(form, "description")
		req.Files = attachments(form)
	} else {
		req.Notes = c.PostForm("notes")
	}

	result, err := services.GetProgressService().CompleteStage(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, result)
}

func parseMultipart(c *gin.Context) (*multipart.Form, error) {
	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, err
	}
	return c.Request.MultipartForm, nil
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func attachments(form *multipart.Form) []services.Attachment {
	headers := form.File["files"]
	files := make([]services.Attachment, 0, len(headers))
	for _, fh := range headers {
		files = append(files, services.AttachmentFromFileHeader(fh))
	}
	return files
}

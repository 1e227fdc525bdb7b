package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-noticeboard/internal/dto"
	"github.com/noah-isme/campus-noticeboard/internal/service"
	appErrors "github.com/noah-isme/campus-noticeboard/pkg/errors"
	"github.com/noah-isme/campus-noticeboard/pkg/response"
)

type attachmentOpener interface {
	Open(ctx context.Context, id, token string) (*service.AttachmentDownload, error)
}

type archiveExporter interface {
	Export(ctx context.Context, q dto.ArchiveQuery, format string) (*service.ExportResult, error)
}

// FileHandler streams attachments and archive exports.
type FileHandler struct {
	attachments attachmentOpener
	exporter    archiveExporter
}

// NewFileHandler constructs the handler.
func NewFileHandler(attachments attachmentOpener, exporter archiveExporter) *FileHandler {
	return &FileHandler{attachments: attachments, exporter: exporter}
}

// Download godoc
// @Summary Download an attachment
// @Tags Attachments
// @Param id path string true "Attachment ID"
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attachments/{id}/download [get]
func (h *FileHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.attachments.Open(c.Request.Context(), c.Param("id"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	mimeType := result.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, mimeType, result.File, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", result.Filename),
	})
}

// Export godoc
// @Summary Export the notice archive
// @Tags Notices
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param department query string false "Department code"
// @Param semester query string false "Semester"
// @Param search query string false "Search term"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /notices/archive/export [get]
func (h *FileHandler) Export(c *gin.Context) {
	var q dto.ArchiveQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	result, err := h.exporter.Export(c.Request.Context(), q, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

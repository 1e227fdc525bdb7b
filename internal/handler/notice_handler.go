package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-noticeboard/internal/dto"
	"github.com/noah-isme/campus-noticeboard/internal/middleware"
	"github.com/noah-isme/campus-noticeboard/internal/models"
	"github.com/noah-isme/campus-noticeboard/internal/service"
	appErrors "github.com/noah-isme/campus-noticeboard/pkg/errors"
	"github.com/noah-isme/campus-noticeboard/pkg/response"
)

type noticeWriter interface {
	Create(ctx context.Context, form dto.NoticeForm, uploads []dto.AttachmentUpload, actor *models.JWTClaims, meta service.RequestMeta) (*models.Notice, error)
	Update(ctx context.Context, id string, form dto.NoticeForm, uploads []dto.AttachmentUpload, removeIDs []string, actor *models.JWTClaims, meta service.RequestMeta) (*models.Notice, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims, meta service.RequestMeta) error
}

type noticeReader interface {
	List(ctx context.Context, q dto.NoticeListQuery) (*service.NoticePage, error)
	Archive(ctx context.Context, q dto.ArchiveQuery) (*service.NoticePage, error)
	Mine(ctx context.Context, actor *models.JWTClaims, page, pageSize int) (*service.NoticePage, error)
	Get(ctx context.Context, id string) (*models.Notice, error)
}

type noticeRenderer interface {
	ToResponse(notice *models.Notice) dto.NoticeResponse
	ToResponses(notices []models.Notice) []dto.NoticeResponse
}

// NoticeHandler serves notice publishing and browsing.
type NoticeHandler struct {
	writer   noticeWriter
	reader   noticeReader
	renderer noticeRenderer
	routes   routes
}

// NewNoticeHandler constructs the handler. prefix is the API prefix used for redirects.
func NewNoticeHandler(writer noticeWriter, reader noticeReader, renderer noticeRenderer, prefix string) *NoticeHandler {
	return &NoticeHandler{writer: writer, reader: reader, renderer: renderer, routes: newRoutes(prefix)}
}

// List godoc
// @Summary List notices
// @Description Without department or search only today's notices are returned.
// @Tags Notices
// @Produce json
// @Param department query string false "Department code"
// @Param search query string false "Search title, description or author"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /notices [get]
func (h *NoticeHandler) List(c *gin.Context) {
	var q dto.NoticeListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	page, err := h.reader.List(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	scope := "today"
	if strings.TrimSpace(q.Department) != "" || strings.TrimSpace(q.Search) != "" {
		scope = "filtered"
	}
	h.writePage(c, page, map[string]interface{}{"scope": scope})
}

// Archive godoc
// @Summary Search the notice archive
// @Description Search also matches attachment names and stored paths.
// @Tags Notices
// @Produce json
// @Param department query string false "Department code"
// @Param semester query string false "Semester (ALL for any)"
// @Param search query string false "Search term"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /notices/archive [get]
func (h *NoticeHandler) Archive(c *gin.Context) {
	var q dto.ArchiveQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	page, err := h.reader.Archive(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.writePage(c, page, nil)
}

// Mine godoc
// @Summary List notices posted by the current user
// @Tags Notices
// @Produce json
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /notices/mine [get]
func (h *NoticeHandler) Mine(c *gin.Context) {
	pageNum, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	page, err := h.reader.Mine(c.Request.Context(), claimsFromContext(c), pageNum, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.writePage(c, page, nil)
}

// Detail godoc
// @Summary Get a notice
// @Tags Notices
// @Produce json
// @Param id path string true "Notice ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notices/{id} [get]
func (h *NoticeHandler) Detail(c *gin.Context) {
	notice, err := h.reader.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.renderer.ToResponse(notice), nil)
}

// Create godoc
// @Summary Publish a notice
// @Description Stores the notice with its attachments, notifies subscribers and redirects to the detail view.
// @Tags Notices
// @Accept multipart/form-data
// @Param title formData string true "Title"
// @Param category formData string false "Category"
// @Param department formData string false "Department"
// @Param semester formData string false "Semester"
// @Param description formData string true "Description"
// @Param attachments formData file false "Attachment files"
// @Param attachment_names formData []string false "Display names aligned with attachments"
// @Success 303
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /notices [post]
func (h *NoticeHandler) Create(c *gin.Context) {
	form, uploads, closeAll, err := bindNoticeForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeAll()

	notice, err := h.writer.Create(c.Request.Context(), form, uploads, claimsFromContext(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SeeOther(c, h.routes.detail(notice.ID))
}

// Update godoc
// @Summary Edit a notice
// @Description Only the author may edit. Others are redirected to the listing.
// @Tags Notices
// @Accept multipart/form-data
// @Param id path string true "Notice ID"
// @Param title formData string true "Title"
// @Param category formData string false "Category, unchanged when omitted"
// @Param department formData string false "Department, unchanged when omitted"
// @Param semester formData string false "Semester, unchanged when omitted"
// @Param description formData string true "Description"
// @Param attachments formData file false "New attachment files"
// @Param remove_attachments formData []string false "Attachment IDs to remove"
// @Success 303
// @Failure 400 {object} response.Envelope
// @Router /notices/{id}/edit [post]
func (h *NoticeHandler) Update(c *gin.Context) {
	form, uploads, closeAll, err := bindNoticeForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeAll()

	id := c.Param("id")
	notice, err := h.writer.Update(c.Request.Context(), id, form, uploads, c.PostFormArray("remove_attachments"), claimsFromContext(c), requestMeta(c))
	if err != nil {
		if errors.Is(err, appErrors.ErrForbidden) {
			response.SeeOther(c, h.routes.listing())
			return
		}
		response.Error(c, err)
		return
	}
	response.SeeOther(c, h.routes.detail(notice.ID))
}

// Delete godoc
// @Summary Delete a notice
// @Description Only the author may delete. Always redirects to the listing on success or refusal.
// @Tags Notices
// @Param id path string true "Notice ID"
// @Success 303
// @Failure 404 {object} response.Envelope
// @Router /notices/{id}/delete [post]
func (h *NoticeHandler) Delete(c *gin.Context) {
	err := h.writer.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c), requestMeta(c))
	if err != nil && !errors.Is(err, appErrors.ErrForbidden) {
		response.Error(c, err)
		return
	}
	response.SeeOther(c, h.routes.listing())
}

func (h *NoticeHandler) writePage(c *gin.Context, page *service.NoticePage, extra map[string]interface{}) {
	pagination := page.Pagination
	response.JSON(c, http.StatusOK, h.renderer.ToResponses(page.Notices), &pagination, middleware.ResponseMeta(c, extra))
}

// bindNoticeForm reads the notice fields and attached files. The returned func closes every opened file.
func bindNoticeForm(c *gin.Context) (dto.NoticeForm, []dto.AttachmentUpload, func(), error) {
	noop := func() {}
	var form dto.NoticeForm
	if err := c.ShouldBind(&form); err != nil {
		return form, nil, noop, appErrors.Clone(appErrors.ErrMalformedRequest, "invalid notice form")
	}

	mf, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return form, nil, noop, nil
		}
		return form, nil, noop, appErrors.Clone(appErrors.ErrMalformedRequest, "invalid multipart payload")
	}

	headers := mf.File["attachments"]
	names := mf.Value["attachment_names"]
	opened := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range opened {
			f.Close() //nolint:errcheck
		}
	}

	uploads := make([]dto.AttachmentUpload, 0, len(headers))
	for i, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			closeAll()
			return form, nil, noop, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open upload")
		}
		opened = append(opened, src)
		upload := dto.AttachmentUpload{
			Filename: fh.Filename,
			Size:     fh.Size,
			MimeType: fh.Header.Get("Content-Type"),
			Content:  src,
		}
		if i < len(names) {
			upload.Name = names[i]
		}
		uploads = append(uploads, upload)
	}
	return form, uploads, closeAll, nil
}

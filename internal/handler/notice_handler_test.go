package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-noticeboard/internal/dto"
	"github.com/noah-isme/campus-noticeboard/internal/middleware"
	"github.com/noah-isme/campus-noticeboard/internal/models"
	"github.com/noah-isme/campus-noticeboard/internal/service"
	appErrors "github.com/noah-isme/campus-noticeboard/pkg/errors"
)

type noticeServiceMock struct {
	form      dto.NoticeForm
	uploads   []dto.AttachmentUpload
	contents  []string
	removeIDs []string
	err       error
	listQuery dto.NoticeListQuery
	page      *service.NoticePage
}

func (m *noticeServiceMock) capture(form dto.NoticeForm, uploads []dto.AttachmentUpload) {
	m.form = form
	m.uploads = uploads
	for _, u := range uploads {
		raw, _ := io.ReadAll(u.Content)
		m.contents = append(m.contents, string(raw))
	}
}

func (m *noticeServiceMock) Create(ctx context.Context, form dto.NoticeForm, uploads []dto.AttachmentUpload, actor *models.JWTClaims, meta service.RequestMeta) (*models.Notice, error) {
	m.capture(form, uploads)
	if m.err != nil {
		return nil, m.err
	}
	return &models.Notice{ID: "n1"}, nil
}

func (m *noticeServiceMock) Update(ctx context.Context, id string, form dto.NoticeForm, uploads []dto.AttachmentUpload, removeIDs []string, actor *models.JWTClaims, meta service.RequestMeta) (*models.Notice, error) {
	m.capture(form, uploads)
	m.removeIDs = removeIDs
	if m.err != nil {
		return nil, m.err
	}
	return &models.Notice{ID: id}, nil
}

func (m *noticeServiceMock) Delete(ctx context.Context, id string, actor *models.JWTClaims, meta service.RequestMeta) error {
	return m.err
}

func (m *noticeServiceMock) List(ctx context.Context, q dto.NoticeListQuery) (*service.NoticePage, error) {
	m.listQuery = q
	return m.page, m.err
}

func (m *noticeServiceMock) Archive(ctx context.Context, q dto.ArchiveQuery) (*service.NoticePage, error) {
	return m.page, m.err
}

func (m *noticeServiceMock) Mine(ctx context.Context, actor *models.JWTClaims, page, pageSize int) (*service.NoticePage, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return m.page, m.err
}

func (m *noticeServiceMock) Get(ctx context.Context, id string) (*models.Notice, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Notice{ID: id, Title: "Exam", Department: models.DepartmentCSE}, nil
}

type plainRenderer struct{}

func (plainRenderer) ToResponse(n *models.Notice) dto.NoticeResponse {
	return dto.NoticeResponse{ID: n.ID, Title: n.Title, DepartmentDisplayName: n.Department.DisplayName()}
}

func (r plainRenderer) ToResponses(notices []models.Notice) []dto.NoticeResponse {
	out := make([]dto.NoticeResponse, len(notices))
	for i := range notices {
		out[i] = r.ToResponse(&notices[i])
	}
	return out
}

func newNoticeHandler(mock *noticeServiceMock) *NoticeHandler {
	return NewNoticeHandler(mock, mock, plainRenderer{}, "/api/v1")
}

func multipartNotice(t *testing.T, fields map[string][]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for key, values := range fields {
		for _, v := range values {
			require.NoError(t, w.WriteField(key, v))
		}
	}
	for name, content := range files {
		part, err := w.CreateFormFile("attachments", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func authedContext(method, target string, body io.Reader, contentType string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleStaff})
	return c, w
}

func TestNoticeHandlerCreateRedirectsToDetail(t *testing.T) {
	mock := &noticeServiceMock{}
	h := newNoticeHandler(mock)
	body, ct := multipartNotice(t, map[string][]string{
		"title":            {"Mid-sem exam"},
		"category":         {"Examinations"},
		"department":       {"CSE"},
		"semester":         {"S4"},
		"description":      {"Room 101"},
		"attachment_names": {"Seating plan"},
	}, map[string]string{"plan.txt": "row A"})

	c, w := authedContext(http.MethodPost, "/api/v1/notices", body, ct)
	h.Create(c)

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/api/v1/notices/n1", w.Header().Get("Location"))
	assert.Equal(t, "Mid-sem exam", mock.form.Title)
	assert.Equal(t, "S4", mock.form.Semester)
	require.Len(t, mock.uploads, 1)
	assert.Equal(t, "plan.txt", mock.uploads[0].Filename)
	assert.Equal(t, "Seating plan", mock.uploads[0].Name)
	assert.Equal(t, []string{"row A"}, mock.contents)
}

func TestNoticeHandlerCreateValidationError(t *testing.T) {
	mock := &noticeServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "title is required")}
	h := newNoticeHandler(mock)
	body, ct := multipartNotice(t, map[string][]string{"description": {"x"}}, nil)

	c, w := authedContext(http.MethodPost, "/api/v1/notices", body, ct)
	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "title is required")
}

func TestNoticeHandlerUpdateForbiddenRedirectsToListing(t *testing.T) {
	mock := &noticeServiceMock{err: appErrors.Clone(appErrors.ErrForbidden, "only the author can modify this notice")}
	h := newNoticeHandler(mock)
	body, ct := multipartNotice(t, map[string][]string{"title": {"t"}, "description": {"d"}}, nil)

	c, w := authedContext(http.MethodPost, "/api/v1/notices/n9/edit", body, ct)
	c.Params = gin.Params{{Key: "id", Value: "n9"}}
	h.Update(c)

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/api/v1/notices", w.Header().Get("Location"))
}

func TestNoticeHandlerUpdatePassesRemovals(t *testing.T) {
	mock := &noticeServiceMock{}
	h := newNoticeHandler(mock)
	body, ct := multipartNotice(t, map[string][]string{
		"title": {"t"}, "description": {"d"}, "remove_attachments": {"a1", "a2"},
	}, nil)

	c, w := authedContext(http.MethodPost, "/api/v1/notices/n9/edit", body, ct)
	c.Params = gin.Params{{Key: "id", Value: "n9"}}
	h.Update(c)

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/api/v1/notices/n9", w.Header().Get("Location"))
	assert.Equal(t, []string{"a1", "a2"}, mock.removeIDs)
}

func TestNoticeHandlerDeleteRedirects(t *testing.T) {
	for name, err := range map[string]error{"author": nil, "not author": appErrors.ErrForbidden} {
		t.Run(name, func(t *testing.T) {
			h := newNoticeHandler(&noticeServiceMock{err: err})
			c, w := authedContext(http.MethodPost, "/api/v1/notices/n1/delete", nil, "")
			c.Params = gin.Params{{Key: "id", Value: "n1"}}
			h.Delete(c)

			require.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, "/api/v1/notices", w.Header().Get("Location"))
		})
	}
}

func TestNoticeHandlerDeleteMissing(t *testing.T) {
	h := newNoticeHandler(&noticeServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "notice not found")})
	c, w := authedContext(http.MethodPost, "/api/v1/notices/n1/delete", nil, "")
	h.Delete(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNoticeHandlerListReturnsPage(t *testing.T) {
	mock := &noticeServiceMock{page: &service.NoticePage{
		Notices:    []models.Notice{{ID: "n1", Title: "Exam", Department: models.DepartmentME}},
		Pagination: models.Pagination{Page: 1, PageSize: 50, TotalCount: 1},
	}}
	h := newNoticeHandler(mock)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/notices?department=ME&search=exam", nil)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ME", mock.listQuery.Department)
	assert.Equal(t, "exam", mock.listQuery.Search)

	var payload struct {
		Data       []dto.NoticeResponse   `json:"data"`
		Pagination models.Pagination      `json:"pagination"`
		Meta       map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Len(t, payload.Data, 1)
	assert.Equal(t, "Mechanical Engineering", payload.Data[0].DepartmentDisplayName)
	assert.Equal(t, 1, payload.Pagination.TotalCount)
	assert.Equal(t, "filtered", payload.Meta["scope"])
}

func TestNoticeHandlerDetail(t *testing.T) {
	h := newNoticeHandler(&noticeServiceMock{})
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/notices/n7", nil)
	c.Params = gin.Params{{Key: "id", Value: "n7"}}

	h.Detail(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"n7"`)
}

func TestNoticeHandlerMineRequiresUser(t *testing.T) {
	h := newNoticeHandler(&noticeServiceMock{})
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/notices/mine", nil)

	h.Mine(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

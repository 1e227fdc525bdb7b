package response

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/campus-noticeboard/pkg/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestErrorHidesWrappedCause(t *testing.T) {
	c, w := newContext()
	Error(c, appErrors.Wrap(errors.New("pq: relation notices does not exist"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notices"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"INTERNAL_ERROR"`)
	assert.Contains(t, w.Body.String(), "failed to list notices")
	assert.NotContains(t, w.Body.String(), "relation notices")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestStatusMessage(t *testing.T) {
	c, w := newContext()
	StatusMessage(c, http.StatusBadRequest, "error", "Missing push keys")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"status":"error","message":"Missing push keys"}`, w.Body.String())
}

func TestSeeOther(t *testing.T) {
	c, w := newContext()
	SeeOther(c, "/api/v1/notices/n1")

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/api/v1/notices/n1", w.Header().Get("Location"))
}

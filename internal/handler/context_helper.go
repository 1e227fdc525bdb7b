package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-noticeboard/internal/middleware"
	"github.com/noah-isme/campus-noticeboard/internal/models"
	"github.com/noah-isme/campus-noticeboard/internal/service"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

// routes builds the browser facing locations used by form redirects.
type routes struct {
	prefix string
}

func newRoutes(prefix string) routes {
	return routes{prefix: strings.TrimRight(prefix, "/")}
}

func (r routes) listing() string {
	return r.prefix + "/notices"
}

func (r routes) detail(id string) string {
	return r.prefix + "/notices/" + id
}

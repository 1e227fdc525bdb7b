package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-noticeboard/internal/dto"
	appErrors "github.com/noah-isme/campus-noticeboard/pkg/errors"
	"github.com/noah-isme/campus-noticeboard/pkg/response"
)

type subscriptionService interface {
	Subscribe(ctx context.Context, req dto.SubscribeRequest, userID *string) (*dto.SubscribeResult, error)
}

type vapidKeyProvider interface {
	VAPIDPublicKey() string
}

// SubscriptionHandler registers browser push subscriptions.
type SubscriptionHandler struct {
	service subscriptionService
	keys    vapidKeyProvider
}

// NewSubscriptionHandler constructs the handler.
func NewSubscriptionHandler(svc subscriptionService, keys vapidKeyProvider) *SubscriptionHandler {
	return &SubscriptionHandler{service: svc, keys: keys}
}

// Subscribe godoc
// @Summary Register a push subscription
// @Description Stores the browser PushSubscription. Re-subscribing an endpoint refreshes its keys.
// @Tags Push
// @Accept json
// @Produce json
// @Param payload body dto.SubscribeRequest true "PushSubscription JSON"
// @Success 201 {object} response.StatusBody
// @Failure 400 {object} response.StatusBody
// @Failure 500 {object} response.StatusBody
// @Router /subscribe [post]
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	var req dto.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.StatusMessage(c, http.StatusBadRequest, "error", "Invalid JSON data")
		return
	}

	var userID *string
	if claims := claimsFromContext(c); claims != nil {
		userID = &claims.UserID
	}

	result, err := h.service.Subscribe(c.Request.Context(), req, userID)
	if err != nil {
		if errors.Is(err, appErrors.ErrValidation) {
			response.StatusMessage(c, http.StatusBadRequest, "error", appErrors.FromError(err).Message)
			return
		}
		response.StatusMessage(c, http.StatusInternalServerError, "error", "Server error")
		return
	}
	response.StatusMessage(c, http.StatusCreated, "ok", result.Message)
}

// VAPIDKey godoc
// @Summary Application server key for push subscriptions
// @Tags Push
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /push/vapid-key [get]
func (h *SubscriptionHandler) VAPIDKey(c *gin.Context) {
	key := ""
	if h.keys != nil {
		key = h.keys.VAPIDPublicKey()
	}
	if key == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrServiceUnavailable, "push notifications are not configured"))
		return
	}
	response.JSON(c, http.StatusOK, dto.VAPIDKeyResponse{VAPIDKey: key}, nil)
}

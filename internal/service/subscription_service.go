package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-noticeboard/internal/dto"
	"github.com/noah-isme/campus-noticeboard/internal/models"
	appErrors "github.com/noah-isme/campus-noticeboard/pkg/errors"
)

const (
	msgMissingEndpoint     = "Missing endpoint"
	msgMissingKeys         = "Missing push keys"
	msgSubscriptionCreated = "Subscription created successfully"
	msgSubscriptionUpdated = "Subscription updated successfully"
	msgServerError         = "Server error"
)

type subscriptionStore interface {
	Upsert(ctx context.Context, sub *models.PushSubscription) (bool, error)
}

type subscriptionMetrics interface {
	RecordSubscription(result string)
}

// SubscriptionService registers browser push subscriptions.
type SubscriptionService struct {
	repo    subscriptionStore
	metrics subscriptionMetrics
	logger  *zap.Logger
}

// NewSubscriptionService constructs the registrar.
func NewSubscriptionService(repo subscriptionStore, metrics subscriptionMetrics, logger *zap.Logger) *SubscriptionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionService{repo: repo, metrics: metrics, logger: logger}
}

// Subscribe upserts the subscription keyed by endpoint. New rows get the ALL/ALL filters;
// an existing row only has its keys refreshed. userID links the row to a signed in user when set.
func (s *SubscriptionService) Subscribe(ctx context.Context, req dto.SubscribeRequest, userID *string) (*dto.SubscribeResult, error) {
	endpoint := strings.TrimSpace(req.Endpoint)
	if endpoint == "" {
		s.record("rejected")
		return nil, appErrors.Clone(appErrors.ErrValidation, msgMissingEndpoint)
	}
	if req.Keys == nil || strings.TrimSpace(req.Keys.P256dh) == "" || strings.TrimSpace(req.Keys.Auth) == "" {
		s.record("rejected")
		return nil, appErrors.Clone(appErrors.ErrValidation, msgMissingKeys)
	}

	sub := &models.PushSubscription{
		Endpoint:   endpoint,
		P256dhKey:  strings.TrimSpace(req.Keys.P256dh),
		AuthKey:    strings.TrimSpace(req.Keys.Auth),
		UserID:     userID,
		Department: models.DepartmentAll,
		Semester:   models.SemesterAll,
	}
	created, err := s.repo.Upsert(ctx, sub)
	if err != nil {
		s.logger.Error("subscription upsert failed", zap.String("endpoint", truncateEndpoint(endpoint)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msgServerError)
	}

	result := &dto.SubscribeResult{Created: created, Message: msgSubscriptionUpdated}
	if created {
		result.Message = msgSubscriptionCreated
		s.record("created")
	} else {
		s.record("updated")
	}
	s.logger.Info("push subscription stored", zap.String("endpoint", truncateEndpoint(endpoint)), zap.Bool("created", created))
	return result, nil
}

func (s *SubscriptionService) record(result string) {
	if s.metrics != nil {
		s.metrics.RecordSubscription(result)
	}
}

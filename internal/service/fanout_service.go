package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-noticeboard/internal/models"
	appErrors "github.com/noah-isme/campus-noticeboard/pkg/errors"
	"github.com/noah-isme/campus-noticeboard/pkg/push"
)

const defaultPushTTL = 1000 * time.Second

type pushSender interface {
	Send(ctx context.Context, target push.Target, payload push.Payload, ttl time.Duration) error
}

type subscriptionLister interface {
	ListByDepartments(ctx context.Context, departments []models.Department) ([]models.PushSubscription, error)
}

type fanoutMetrics interface {
	RecordPushDelivery(outcome string)
	ObserveFanout(duration time.Duration)
}

// FanoutConfig controls notification payloads and delivery.
type FanoutConfig struct {
	TTL           time.Duration
	PublicBaseURL string
	APIPrefix     string
}

// FanoutSummary tallies one fan-out run.
type FanoutSummary struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// FanoutService delivers a newly published notice to every matching push subscription.
type FanoutService struct {
	subs    subscriptionLister
	sender  pushSender
	metrics fanoutMetrics
	logger  *zap.Logger
	cfg     FanoutConfig
}

// NewFanoutService constructs the fan-out engine.
func NewFanoutService(subs subscriptionLister, sender pushSender, metrics fanoutMetrics, logger *zap.Logger, cfg FanoutConfig) *FanoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultPushTTL
	}
	return &FanoutService{subs: subs, sender: sender, metrics: metrics, logger: logger, cfg: cfg}
}

// Eligible reports whether sub should be notified about notice.
// Only the department filter is consulted; the semester filter is stored but not applied.
func Eligible(sub models.PushSubscription, notice *models.Notice) bool {
	return sub.Department == models.DepartmentAll || sub.Department == notice.Department
}

// selectEligible filters subs down to eligible ones, keeping the first row per endpoint.
func selectEligible(subs []models.PushSubscription, notice *models.Notice) []models.PushSubscription {
	seen := make(map[string]struct{}, len(subs))
	out := make([]models.PushSubscription, 0, len(subs))
	for _, sub := range subs {
		if !Eligible(sub, notice) {
			continue
		}
		if _, dup := seen[sub.Endpoint]; dup {
			continue
		}
		seen[sub.Endpoint] = struct{}{}
		out = append(out, sub)
	}
	return out
}

// BuildPayload renders the notification shown by the browser.
func (s *FanoutService) BuildPayload(notice *models.Notice) push.Payload {
	return push.Payload{
		Title: "New Notice: " + notice.Department.DisplayName(),
		Body:  notice.Title,
		URL:   s.cfg.PublicBaseURL + s.cfg.APIPrefix + "/notices/" + notice.ID,
	}
}

// Notify attempts delivery to each eligible subscription in turn and returns the tally.
// A failed delivery is logged and counted; it never stops the loop, never deletes the
// subscription and never surfaces as an error.
func (s *FanoutService) Notify(ctx context.Context, notice *models.Notice) FanoutSummary {
	var summary FanoutSummary
	if notice == nil {
		return summary
	}
	start := time.Now()

	candidates, err := s.subs.ListByDepartments(ctx, []models.Department{models.DepartmentAll, notice.Department})
	if err != nil {
		s.logger.Error("load push subscriptions", zap.String("notice_id", notice.ID), zap.Error(err))
		return summary
	}

	payload := s.BuildPayload(notice)
	for _, sub := range selectEligible(candidates, notice) {
		target := push.Target{Endpoint: sub.Endpoint, P256dh: sub.P256dhKey, Auth: sub.AuthKey}
		if err := s.deliver(ctx, target, payload); err != nil {
			summary.Failed++
			s.record(PushOutcomeFailed)
			s.logger.Warn("push delivery failed",
				zap.String("notice_id", notice.ID),
				zap.String("endpoint", sub.Endpoint),
				zap.Bool("expired", errors.Is(err, push.ErrExpired)),
				zap.Error(err),
			)
			continue
		}
		summary.Sent++
		s.record(PushOutcomeSent)
		s.logger.Debug("push delivered", zap.String("notice_id", notice.ID), zap.String("endpoint", truncateEndpoint(sub.Endpoint)))
	}

	if s.metrics != nil {
		s.metrics.ObserveFanout(time.Since(start))
	}
	s.logger.Info("push fan-out summary",
		zap.String("notice_id", notice.ID),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
	)
	return summary
}

// deliver sends one payload; transport failures come back as ErrDelivery wrapping the cause.
func (s *FanoutService) deliver(ctx context.Context, target push.Target, payload push.Payload) error {
	if err := s.sender.Send(ctx, target, payload, s.cfg.TTL); err != nil {
		return appErrors.Wrap(err, appErrors.ErrDelivery.Code, appErrors.ErrDelivery.Status, appErrors.ErrDelivery.Message)
	}
	return nil
}

func (s *FanoutService) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordPushDelivery(outcome)
	}
}

func truncateEndpoint(endpoint string) string {
	if len(endpoint) <= 30 {
		return endpoint
	}
	return endpoint[:30] + "..."
}

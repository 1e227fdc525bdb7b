package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/campus-noticeboard/internal/models"
)

// SubscriptionRepository stores browser push subscriptions keyed by endpoint.
type SubscriptionRepository struct {
	db *sqlx.DB
}

// NewSubscriptionRepository constructs the repository.
func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Upsert inserts the subscription or refreshes the keys of an existing one with the same endpoint.
// Department and semester filters of an existing row are left untouched. The statement is a single
// INSERT .. ON CONFLICT so concurrent calls for one endpoint never produce two rows.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *models.PushSubscription) (created bool, err error) {
	if sub.Department == "" {
		sub.Department = models.DepartmentAll
	}
	if sub.Semester == "" {
		sub.Semester = models.SemesterAll
	}
	if sub.SubscribedAt.IsZero() {
		sub.SubscribedAt = time.Now().UTC()
	}

	const query = `INSERT INTO push_subscriptions (endpoint, p256dh_key, auth_key, user_id, department, semester, subscribed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (endpoint) DO UPDATE SET
    p256dh_key = EXCLUDED.p256dh_key,
    auth_key = EXCLUDED.auth_key,
    user_id = COALESCE(EXCLUDED.user_id, push_subscriptions.user_id)
RETURNING (xmax = 0) AS inserted`
	if err := r.db.GetContext(ctx, &created, query,
		sub.Endpoint, sub.P256dhKey, sub.AuthKey, sub.UserID, sub.Department, sub.Semester, sub.SubscribedAt,
	); err != nil {
		return false, fmt.Errorf("upsert push subscription: %w", err)
	}
	return created, nil
}

// ListByDepartments returns subscriptions whose department filter is one of the given values.
func (r *SubscriptionRepository) ListByDepartments(ctx context.Context, departments []models.Department) ([]models.PushSubscription, error) {
	codes := make([]string, len(departments))
	for i, d := range departments {
		codes[i] = string(d)
	}
	const query = `SELECT endpoint, p256dh_key, auth_key, user_id, department, semester, subscribed_at
FROM push_subscriptions WHERE department = ANY($1)`
	var subs []models.PushSubscription
	if err := r.db.SelectContext(ctx, &subs, query, pq.Array(codes)); err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	return subs, nil
}

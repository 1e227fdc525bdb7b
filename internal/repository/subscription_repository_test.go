package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-noticeboard/internal/models"
)

func TestUpsertSubscriptionCreated(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubscriptionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (endpoint) DO UPDATE SET")).
		WithArgs("https://push.example/abc", "p256", "auth", nil, models.DepartmentAll, models.SemesterAll, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))

	sub := &models.PushSubscription{Endpoint: "https://push.example/abc", P256dhKey: "p256", AuthKey: "auth"}
	created, err := repo.Upsert(context.Background(), sub)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.DepartmentAll, sub.Department)
	assert.Equal(t, models.SemesterAll, sub.Semester)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSubscriptionUpdated(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubscriptionRepository(db)

	mock.ExpectQuery("INSERT INTO push_subscriptions").
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(false))

	created, err := repo.Upsert(context.Background(), &models.PushSubscription{Endpoint: "e", P256dhKey: "k", AuthKey: "a"})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestUpsertSubscriptionDoesNotResetFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubscriptionRepository(db)

	// the conflict branch only refreshes keys and the optional user link
	mock.ExpectQuery(`DO UPDATE SET\s+p256dh_key = EXCLUDED.p256dh_key,\s+auth_key = EXCLUDED.auth_key,\s+user_id = COALESCE\(EXCLUDED.user_id, push_subscriptions.user_id\)\s+RETURNING`).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(false))

	_, err := repo.Upsert(context.Background(), &models.PushSubscription{Endpoint: "e", P256dhKey: "k", AuthKey: "a"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSubscriptionError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubscriptionRepository(db)

	mock.ExpectQuery("INSERT INTO push_subscriptions").WillReturnError(errors.New("connection reset"))

	_, err := repo.Upsert(context.Background(), &models.PushSubscription{Endpoint: "e", P256dhKey: "k", AuthKey: "a"})
	assert.Error(t, err)
}

func TestListSubscriptionsByDepartments(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubscriptionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"endpoint", "p256dh_key", "auth_key", "user_id", "department", "semester", "subscribed_at"}).
		AddRow("e1", "k1", "a1", nil, "ALL", "ALL", now).
		AddRow("e2", "k2", "a2", "u1", "CSE", "S3", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM push_subscriptions WHERE department = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	subs, err := repo.ListByDepartments(context.Background(), []models.Department{models.DepartmentAll, models.DepartmentCSE})
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Nil(t, subs[0].UserID)
	require.NotNil(t, subs[1].UserID)
	assert.Equal(t, "u1", *subs[1].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

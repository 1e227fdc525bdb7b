package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campus-noticeboard/internal/models"
	"github.com/noah-isme/campus-noticeboard/internal/repository"
	appErrors "github.com/noah-isme/campus-noticeboard/pkg/errors"
)

type mockAuthRepo struct {
	users            map[string]*models.User
	created          []*models.User
	lastLoginUpdated bool
	passwordHashes   map[string]string
	createErr        error
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if u, ok := m.users[username]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = "new-id"
	m.created = append(m.created, user)
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.passwordHashes == nil {
		m.passwordHashes = map[string]string{}
	}
	m.passwordHashes[id] = passwordHash
	return nil
}

type mockAudit struct {
	logs []*models.AuditLog
}

func (m *mockAudit) Create(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func newAuthFixture(t *testing.T, active bool) (*AuthService, *mockAuthRepo, *mockAudit) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockAuthRepo{users: map[string]*models.User{
		"prof.rao": {ID: "u1", Username: "prof.rao", FullName: "Prof Rao", PasswordHash: string(hash), Role: models.RoleStaff, Active: active},
	}}
	audit := &mockAudit{}
	svc := NewAuthService(repo, audit, nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "campus-noticeboard"})
	return svc, repo, audit
}

func TestLoginSuccess(t *testing.T) {
	svc, repo, audit := newAuthFixture(t, true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "prof.rao", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "prof.rao", resp.User.Username)
	assert.True(t, repo.lastLoginUpdated)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionLogin, audit.logs[0].Action)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "prof.rao", claims.Username)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newAuthFixture(t, true)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "prof.rao", Password: "nope"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	svc, _, _ := newAuthFixture(t, true)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "ghost", Password: "whatever"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestLoginInactive(t *testing.T) {
	svc, _, _ := newAuthFixture(t, false)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "prof.rao", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}

func TestLoginValidation(t *testing.T) {
	svc, _, _ := newAuthFixture(t, true)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "prof.rao"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestValidateTokenRejectsOtherSecret(t *testing.T) {
	svc, _, _ := newAuthFixture(t, true)
	other := NewAuthService(&mockAuthRepo{}, nil, nil, nil, AuthConfig{AccessTokenSecret: "other", Issuer: "campus-noticeboard"})

	token, err := other.generateAccessToken(&models.User{ID: "u1"}, time.Now())
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc, _, _ := newAuthFixture(t, true)

	token, err := svc.generateAccessToken(&models.User{ID: "u1"}, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestValidateTokenRejectsNoneAlg(t *testing.T) {
	svc, _, _ := newAuthFixture(t, true)

	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JWTClaims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, repo, _ := newAuthFixture(t, true)

	user, err := svc.Register(context.Background(), RegisterUserInput{Username: " dr.iyer ", FullName: "Dr Iyer", Password: "long-enough"})
	require.NoError(t, err)
	assert.Equal(t, "dr.iyer", user.Username)
	assert.Equal(t, models.RoleStaff, user.Role)
	require.Len(t, repo.created, 1)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("long-enough")))
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	svc, _, _ := newAuthFixture(t, true)

	_, err := svc.Register(context.Background(), RegisterUserInput{Username: "prof.rao", Password: "long-enough"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRegisterMapsUniqueViolation(t *testing.T) {
	svc, repo, _ := newAuthFixture(t, true)
	repo.createErr = repository.ErrDuplicateUsername

	_, err := svc.Register(context.Background(), RegisterUserInput{Username: "racing.user", Password: "long-enough"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _, _ := newAuthFixture(t, true)

	_, err := svc.Register(context.Background(), RegisterUserInput{Username: "new", Password: "short"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestResetPassword(t *testing.T) {
	svc, repo, _ := newAuthFixture(t, true)

	require.NoError(t, svc.ResetPassword(context.Background(), "prof.rao", "fresh-password"))
	require.Contains(t, repo.passwordHashes, "u1")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.passwordHashes["u1"]), []byte("fresh-password")))

	assert.ErrorIs(t, svc.ResetPassword(context.Background(), "nobody", "fresh-password"), appErrors.ErrNotFound)
	assert.ErrorIs(t, svc.ResetPassword(context.Background(), "prof.rao", "short"), appErrors.ErrValidation)
}

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/modacart/modacart-backend/internal/users"
	pkgAuth "github.com/modacart/modacart-backend/pkg/auth"
	"github.com/modacart/modacart-backend/pkg/config"
	"github.com/modacart/modacart-backend/pkg/db/models"
	"github.com/modacart/modacart-backend/pkg/enums"
	pkgerrors "github.com/modacart/modacart-backend/pkg/errors"
	"github.com/modacart/modacart-backend/pkg/security"
)

type stubUserRepo struct {
	byEmail map[string]*models.User
	created []users.CreateUserDTO

	createErr error
	lastLogin map[uuid.UUID]time.Time
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		byEmail:   map[string]*models.User{},
		lastLogin: map[uuid.UUID]time.Time{},
	}
}

func (s *stubUserRepo) Create(_ context.Context, dto users.CreateUserDTO) (*models.User, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, dto)
	user := dto.ToModel()
	user.ID = uuid.New()
	s.byEmail[user.Email] = user
	return user, nil
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (s *stubUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	s.lastLogin[id] = at
	return nil
}

type stubSessions struct {
	generated []string
	revoked   []string
}

func (s *stubSessions) Generate(_ context.Context, accessID string) (string, error) {
	s.generated = append(s.generated, accessID)
	return "refresh-" + accessID, nil
}

func (s *stubSessions) Revoke(_ context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	return nil
}

func testPasswordConfig() config.PasswordConfig {
	// fast argon parameters: these tests exercise flow, not hardness
	return config.PasswordConfig{
		ArgonMemoryKB:    8 * 1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func newAuthService(t *testing.T, repo *stubUserRepo, sessions *stubSessions) Service {
	t.Helper()

	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig: config.JWTConfig{
			Secret:            "test-secret",
			Issuer:            "modacart-test",
			ExpirationMinutes: 15,
		},
		PasswordConfig: testPasswordConfig(),
	})
	require.NoError(t, err)
	return svc
}

func seedUser(t *testing.T, repo *stubUserRepo, email, password string, active bool) *models.User {
	t.Helper()

	hash, err := security.HashPassword(password, testPasswordConfig())
	require.NoError(t, err)

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Ada",
		LastName:     "Moreno",
		Role:         enums.UserRoleCustomer,
		IsActive:     active,
	}
	repo.byEmail[email] = user
	return user
}

func requireAuthCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, code, typed.Code())
}

func TestLoginIssuesTokensAndSession(t *testing.T) {
	repo := newStubUserRepo()
	sessions := &stubSessions{}
	svc := newAuthService(t, repo, sessions)
	user := seedUser(t, repo, "ada@example.com", "correct horse battery", true)

	result, err := svc.Login(context.Background(), LoginRequest{
		Email:    "Ada@Example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)

	require.NotEmpty(t, result.AccessToken)
	require.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, user.ID, result.User.ID)
	assert.NotNil(t, result.User.LastLoginAt)
	require.Len(t, sessions.generated, 1)

	claims, err := pkgAuth.ParseAccessToken(config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "modacart-test",
		ExpirationMinutes: 15,
	}, result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, enums.UserRoleCustomer, claims.Role)
	assert.Equal(t, sessions.generated[0], claims.ID, "refresh session must be keyed by the jwt jti")
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	repo := newStubUserRepo()
	svc := newAuthService(t, repo, &stubSessions{})
	seedUser(t, repo, "ada@example.com", "correct horse battery", true)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ada@example.com",
		Password: "wrong",
	})
	requireAuthCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	svc := newAuthService(t, newStubUserRepo(), &stubSessions{})

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	requireAuthCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	repo := newStubUserRepo()
	svc := newAuthService(t, repo, &stubSessions{})
	seedUser(t, repo, "ada@example.com", "correct horse battery", false)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ada@example.com",
		Password: "correct horse battery",
	})
	requireAuthCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestRegisterCreatesCustomer(t *testing.T) {
	repo := newStubUserRepo()
	svc := newAuthService(t, repo, &stubSessions{})

	result, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "New.User@Example.com",
		Password:  "a long password",
		FirstName: " Ada ",
		LastName:  " Moreno ",
	})
	require.NoError(t, err)

	assert.Equal(t, "new.user@example.com", result.User.Email)
	assert.Equal(t, enums.UserRoleCustomer, result.User.Role)
	assert.True(t, result.User.IsActive)

	require.Len(t, repo.created, 1)
	assert.Equal(t, "Ada", repo.created[0].FirstName)
	assert.NotEqual(t, "a long password", repo.created[0].PasswordHash, "password must be stored hashed")

	valid, err := security.VerifyPassword("a long password", repo.created[0].PasswordHash)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	repo := newStubUserRepo()
	repo.createErr = errors.New(`duplicate key value violates unique constraint "idx_users_email"`)
	svc := newAuthService(t, repo, &stubSessions{})

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "taken@example.com",
		Password: "a long password",
	})
	requireAuthCode(t, err, pkgerrors.CodeConflict)
}

func TestLogoutRevokesSession(t *testing.T) {
	sessions := &stubSessions{}
	svc := newAuthService(t, newStubUserRepo(), sessions)

	require.NoError(t, svc.Logout(context.Background(), "access-id"))
	assert.Equal(t, []string{"access-id"}, sessions.revoked)
}

func TestLogoutRequiresAccessID(t *testing.T) {
	svc := newAuthService(t, newStubUserRepo(), &stubSessions{})

	err := svc.Logout(context.Background(), " ")
	requireAuthCode(t, err, pkgerrors.CodeValidation)
}

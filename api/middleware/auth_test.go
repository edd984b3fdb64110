package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgAuth "github.com/modacart/modacart-backend/pkg/auth"
	"github.com/modacart/modacart-backend/pkg/config"
	"github.com/modacart/modacart-backend/pkg/enums"
	"github.com/modacart/modacart-backend/pkg/logger"
)

type stubSessionChecker struct {
	has bool
	err error
}

func (s *stubSessionChecker) HasSession(context.Context, string) (bool, error) {
	return s.has, s.err
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "modacart-test",
		ExpirationMinutes: 15,
	}
}

func mintToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID, role enums.UserRole, jti string) string {
	t.Helper()

	token, err := pkgAuth.MintAccessToken(cfg, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    jti,
	})
	require.NoError(t, err)
	return token
}

func runAuth(t *testing.T, cfg config.JWTConfig, checker *stubSessionChecker, authorization string) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()

	var captured *http.Request
	handler := Auth(cfg, checker, logger.New(logger.Options{ServiceName: "test"}))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = r
			w.WriteHeader(http.StatusNoContent)
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/me", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, captured
}

func TestAuthSeedsContextFromValidToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	jti := uuid.NewString()
	token := mintToken(t, cfg, userID, enums.UserRoleCustomer, jti)

	rec, captured := runAuth(t, cfg, &stubSessionChecker{has: true}, "Bearer "+token)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, userID.String(), UserIDFromContext(captured.Context()))
	assert.Equal(t, enums.UserRoleCustomer.String(), RoleFromContext(captured.Context()))
	assert.Equal(t, jti, AccessIDFromContext(captured.Context()))
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	rec, captured := runAuth(t, testJWTConfig(), &stubSessionChecker{has: true}, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, captured)
}

func TestAuthRejectsGarbageToken(t *testing.T) {
	rec, captured := runAuth(t, testJWTConfig(), &stubSessionChecker{has: true}, "Bearer not-a-jwt")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, captured)
}

func TestAuthRejectsTokenSignedWithOtherSecret(t *testing.T) {
	otherCfg := testJWTConfig()
	otherCfg.Secret = "other-secret"
	token := mintToken(t, otherCfg, uuid.New(), enums.UserRoleCustomer, uuid.NewString())

	rec, captured := runAuth(t, testJWTConfig(), &stubSessionChecker{has: true}, "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, captured)
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	cfg := testJWTConfig()
	token := mintToken(t, cfg, uuid.New(), enums.UserRoleCustomer, uuid.NewString())

	rec, captured := runAuth(t, cfg, &stubSessionChecker{has: false}, "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, captured)
}

func TestRequireRoleGatesAdminRoutes(t *testing.T) {
	handler := RequireRole(enums.UserRoleAdmin.String(), logger.New(logger.Options{ServiceName: "test"}))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/payments/refund/abc", nil)
	req = req.WithContext(WithRole(req.Context(), enums.UserRoleCustomer.String()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/admin/v1/payments/refund/abc", nil)
	req = req.WithContext(WithRole(req.Context(), enums.UserRoleAdmin.String()))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

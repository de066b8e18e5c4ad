package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/hybrid-auth/internal/dto"
	"github.com/prperemyshlev/hybrid-auth/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubAuth answers from fixed values; only the fields a test sets matter
type stubAuth struct {
	service.AuthService

	signupErr   error
	loginResult *service.LoginResult
	loginErr    error
	session     *service.SessionInfo
	loggedOut   []string
	verified    bool
	verifyOK    bool
	resetErr    error
}

func (s *stubAuth) Signup(_ context.Context, username, email, _ string) (*service.SignupResult, error) {
	if s.signupErr != nil {
		return nil, s.signupErr
	}
	return &service.SignupResult{Username: username, Email: email}, nil
}

func (s *stubAuth) Login(context.Context, string, string) (*service.LoginResult, error) {
	return s.loginResult, s.loginErr
}

func (s *stubAuth) Logout(_ context.Context, username, token string) bool {
	s.loggedOut = append(s.loggedOut, username+":"+token)
	return true
}

func (s *stubAuth) Authenticate(_ context.Context, username, token string) (*service.SessionInfo, bool) {
	if s.session == nil || s.session.Username != username || token != "good-token" {
		return nil, false
	}
	return s.session, true
}

func (s *stubAuth) IsVerified(context.Context, string) bool { return s.verified }

func (s *stubAuth) Verify(context.Context, string, string) bool { return s.verifyOK }

func (s *stubAuth) ResetPassword(context.Context, string, string) error { return s.resetErr }

type stubLimiter struct {
	result service.RateLimit
	err    error
}

func (l stubLimiter) Allow(context.Context, string, int, time.Duration) (service.RateLimit, error) {
	return l.result, l.err
}

func newRouter(auth service.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	authHandler := NewAuthHandler(auth)
	verificationHandler := NewVerificationHandler(auth)
	passwordHandler := NewPasswordHandler(auth)

	router.POST("/auth/signup", authHandler.Signup)
	router.POST("/auth/login", authHandler.Login)
	router.POST("/auth/logout", SessionMiddleware(auth), authHandler.Logout)
	router.GET("/auth/session", SessionMiddleware(auth), authHandler.Session)
	router.POST("/verification/verify", verificationHandler.Verify)
	router.POST("/password/reset", passwordHandler.Reset)
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestSignup_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{nil, http.StatusCreated, ""},
		{service.ErrUsernameTaken, http.StatusConflict, CodeUsernameTaken},
		{service.ErrEmailTaken, http.StatusConflict, CodeEmailTaken},
		{service.ErrWeakPassword, http.StatusBadRequest, CodeWeakPassword},
		{service.ErrInvalidEmail, http.StatusBadRequest, CodeInvalidEmail},
		{service.ErrInvalidUsername, http.StatusBadRequest, CodeInvalidUsername},
		{service.ErrStorageUnavailable, http.StatusServiceUnavailable, CodeStorageUnavailable},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		router := newRouter(&stubAuth{signupErr: tt.err})
		rr := doJSON(t, router, http.MethodPost, "/auth/signup",
			dto.SignupRequest{Username: "alice", Email: "alice@x.com", Password: "Secret12"}, nil)

		assert.Equal(t, tt.status, rr.Code)
		if tt.code != "" {
			assert.Equal(t, tt.code, decodeError(t, rr).Error)
		}
	}
}

func TestSignup_MissingFields(t *testing.T) {
	router := newRouter(&stubAuth{})
	rr := doJSON(t, router, http.MethodPost, "/auth/signup", map[string]string{"username": "alice"}, nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, CodeValidation, decodeError(t, rr).Error)
}

func TestLogin(t *testing.T) {
	auth := &stubAuth{loginResult: &service.LoginResult{Username: "Alice", Token: "good-token", ExpiresAt: 42, Verified: true}}
	router := newRouter(auth)

	rr := doJSON(t, router, http.MethodPost, "/auth/login", dto.LoginRequest{Username: "alice", Password: "Secret12"}, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp dto.LoginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, dto.LoginResponse{Username: "Alice", Token: "good-token", ExpiresAt: 42, Verified: true}, resp)
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrUserNotFound, http.StatusNotFound, CodeAccountNotFound},
		{service.ErrWrongPassword, http.StatusUnauthorized, CodeWrongPassword},
		{&service.LockedOutError{Remaining: 1500 * time.Millisecond}, http.StatusTooManyRequests, CodeLockedOut},
	}

	for _, tt := range tests {
		router := newRouter(&stubAuth{loginErr: tt.err})
		rr := doJSON(t, router, http.MethodPost, "/auth/login", dto.LoginRequest{Username: "alice", Password: "x"}, nil)

		assert.Equal(t, tt.status, rr.Code)
		assert.Equal(t, tt.code, decodeError(t, rr).Error)
	}

	router := newRouter(&stubAuth{loginErr: &service.LockedOutError{Remaining: 1500 * time.Millisecond}})
	rr := doJSON(t, router, http.MethodPost, "/auth/login", dto.LoginRequest{Username: "alice", Password: "x"}, nil)
	assert.Equal(t, "2", rr.Header().Get("Retry-After"))
}

func TestSessionMiddleware(t *testing.T) {
	auth := &stubAuth{session: &service.SessionInfo{Username: "alice", ExpiresAt: 100}, verified: true}
	router := newRouter(auth)

	tests := []struct {
		name    string
		headers map[string]string
		status  int
	}{
		{"no header", nil, http.StatusUnauthorized},
		{"not bearer", map[string]string{"Authorization": "Basic abc", HeaderUsername: "alice"}, http.StatusUnauthorized},
		{"no username", map[string]string{"Authorization": "Bearer good-token"}, http.StatusUnauthorized},
		{"wrong token", map[string]string{"Authorization": "Bearer bad-token", HeaderUsername: "alice"}, http.StatusUnauthorized},
		{"valid", map[string]string{"Authorization": "Bearer good-token", HeaderUsername: "alice"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, router, http.MethodGet, "/auth/session", nil, tt.headers)
			assert.Equal(t, tt.status, rr.Code)
		})
	}

	rr := doJSON(t, router, http.MethodGet, "/auth/session", nil,
		map[string]string{"Authorization": "Bearer good-token", HeaderUsername: "alice"})
	var resp dto.SessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, dto.SessionResponse{Username: "alice", ExpiresAt: 100, Verified: true}, resp)
}

func TestLogout_UsesSessionFromMiddleware(t *testing.T) {
	auth := &stubAuth{session: &service.SessionInfo{Username: "alice", ExpiresAt: 100}}
	router := newRouter(auth)

	rr := doJSON(t, router, http.MethodPost, "/auth/logout", nil,
		map[string]string{"Authorization": "Bearer good-token", HeaderUsername: "alice"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"alice:good-token"}, auth.loggedOut)
}

func TestVerify(t *testing.T) {
	router := newRouter(&stubAuth{verifyOK: false})
	rr := doJSON(t, router, http.MethodPost, "/verification/verify", dto.VerifyRequest{Username: "alice", Token: "t"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, CodeInvalidToken, decodeError(t, rr).Error)

	router = newRouter(&stubAuth{verifyOK: true})
	rr = doJSON(t, router, http.MethodPost, "/verification/verify", dto.VerifyRequest{Username: "alice", Token: "t"}, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestResetPassword(t *testing.T) {
	router := newRouter(&stubAuth{resetErr: service.ErrInvalidToken})
	rr := doJSON(t, router, http.MethodPost, "/password/reset", dto.ResetPasswordRequest{Token: "t", Password: "Secret12"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	router = newRouter(&stubAuth{})
	rr = doJSON(t, router, http.MethodPost, "/password/reset", dto.ResetPasswordRequest{Token: "t", Password: "Secret12"}, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAdminMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, tt := range []struct {
		configured string
		presented  string
		status     int
	}{
		{"", "", http.StatusUnauthorized},
		{"secret", "", http.StatusUnauthorized},
		{"secret", "wrong", http.StatusUnauthorized},
		{"secret", "secret", http.StatusOK},
	} {
		router := gin.New()
		router.GET("/admin", AdminMiddleware(tt.configured), func(c *gin.Context) { c.Status(http.StatusOK) })

		rr := doJSON(t, router, http.MethodGet, "/admin", nil, map[string]string{HeaderAdminToken: tt.presented})
		assert.Equal(t, tt.status, rr.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newLimited := func(limiter service.Limiter) *gin.Engine {
		router := gin.New()
		router.POST("/login", RateLimitMiddleware(limiter, 10, time.Minute, IPBasedKey, zap.NewNop()), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return router
	}

	rr := doJSON(t, newLimited(stubLimiter{result: service.RateLimit{Allowed: true, Limit: 10, Remaining: 9}}), http.MethodPost, "/login", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "9", rr.Header().Get("X-RateLimit-Remaining"))

	rr = doJSON(t, newLimited(stubLimiter{result: service.RateLimit{Limit: 10, RetryAfter: 30 * time.Second}}), http.MethodPost, "/login", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "30", rr.Header().Get("Retry-After"))
	assert.Equal(t, CodeRateLimited, decodeError(t, rr).Error)

	rr = doJSON(t, newLimited(stubLimiter{err: errors.New("redis down")}), http.MethodPost, "/login", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code, "limiter failures let requests through")

	rr = doJSON(t, newLimited(nil), http.MethodPost, "/login", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestIPBasedKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")

	assert.Equal(t, "10.0.0.1", IPBasedKey(c))
}

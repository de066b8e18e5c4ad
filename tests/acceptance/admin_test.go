package acceptance

import (
	"net/http"

	"github.com/prperemyshlev/hybrid-auth/internal/domain"
	"github.com/prperemyshlev/hybrid-auth/internal/dto"
	"github.com/prperemyshlev/hybrid-auth/internal/service"
)

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Token": adminToken}
}

func (s *Suite) TestAdmin_RequiresToken() {
	var errResp dto.ErrorResponse
	status := s.do(http.MethodGet, "/api/v1/admin/users", nil, nil, &errResp)
	s.Equal(http.StatusUnauthorized, status)
	s.Equal("unauthorized", errResp.Error)

	status = s.do(http.MethodGet, "/api/v1/admin/users", nil, map[string]string{"X-Admin-Token": "guess"}, nil)
	s.Equal(http.StatusUnauthorized, status)
}

func (s *Suite) TestAdmin_ListAndDeleteUsers() {
	s.signup("heidi", "heidi@example.com", "Secret12")
	s.signup("ivan", "ivan@example.com", "Secret12")
	login := s.login("heidi", "Secret12")

	var users []dto.UserResponse
	status := s.do(http.MethodGet, "/api/v1/admin/users", nil, adminHeaders(), &users)
	s.Equal(http.StatusOK, status)
	s.Len(users, 2)

	status = s.do(http.MethodDelete, "/api/v1/admin/users/heidi", nil, adminHeaders(), nil)
	s.Equal(http.StatusOK, status)

	status = s.do(http.MethodGet, "/api/v1/auth/session", nil, sessionHeaders("heidi", login.Token), nil)
	s.Equal(http.StatusUnauthorized, status, "deleting a user ends the session")
	s.Equal(1, s.Primary.Counts()[domain.KindUsers])

	var errResp dto.ErrorResponse
	status = s.do(http.MethodDelete, "/api/v1/admin/users/heidi", nil, adminHeaders(), &errResp)
	s.Equal(http.StatusNotFound, status)
	s.Equal("account_not_found", errResp.Error)
}

func (s *Suite) TestAdmin_CleanupAndLedgerReset() {
	var report service.CleanupReport
	status := s.do(http.MethodPost, "/api/v1/admin/cleanup", nil, adminHeaders(), &report)
	s.Equal(http.StatusOK, status)
	s.Equal(service.CleanupReport{}, report)

	status = s.do(http.MethodPost, "/api/v1/admin/sync/reset", nil, adminHeaders(), nil)
	s.Equal(http.StatusOK, status)
	s.Zero(s.App.Coordinator().Ledger().LastSync())
}

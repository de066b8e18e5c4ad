package acceptance

import (
	"net/http"

	"github.com/prperemyshlev/hybrid-auth/internal/app"
	"github.com/prperemyshlev/hybrid-auth/internal/domain"
	"github.com/prperemyshlev/hybrid-auth/internal/dto"
	"github.com/prperemyshlev/hybrid-auth/internal/reconcile"
)

func (s *Suite) TestHealthEndpoint() {
	var report app.HealthReport
	status := s.do(http.MethodGet, "/health", nil, nil, &report)
	s.Equal(http.StatusOK, status, "Expected status 200")
	s.Equal(app.HealthPass, report.Status)
	s.Equal("up", report.Primary)
	s.Equal("disabled", report.Redis)

	s.Primary.SetAvailable(false)

	status = s.do(http.MethodGet, "/health", nil, nil, &report)
	s.Equal(http.StatusOK, status, "a degraded service keeps answering")
	s.Equal(app.HealthDegraded, report.Status)
	s.Equal("down", report.Primary)
}

func (s *Suite) TestMetricsEndpoint() {
	resp, err := http.Get(s.BaseURL + "/metrics")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *Suite) TestOfflineSignupIsPushedOnReconnect() {
	s.Primary.SetAvailable(false)

	s.signup("frank", "frank@example.com", "Secret12")
	login := s.login("frank", "Secret12")
	s.Zero(s.Primary.Counts()[domain.KindUsers])

	var syncStatus reconcile.Status
	status := s.do(http.MethodGet, "/api/v1/sync/status", nil, nil, &syncStatus)
	s.Equal(http.StatusOK, status)
	s.False(syncStatus.PrimaryAvailable)
	s.Equal(1, syncStatus.Pending[domain.KindUsers])
	s.Equal(1, syncStatus.Pending[domain.KindSessions])

	s.Primary.SetAvailable(true)

	// the first request after the outage triggers a full pass
	var session dto.SessionResponse
	status = s.do(http.MethodGet, "/api/v1/auth/session", nil, sessionHeaders("frank", login.Token), &session)
	s.Equal(http.StatusOK, status)
	s.Equal("frank", session.Username)

	counts := s.Primary.Counts()
	s.Equal(1, counts[domain.KindUsers])
	s.Equal(1, counts[domain.KindSessions])
	s.Equal(1, counts[domain.KindVerification])

	status = s.do(http.MethodGet, "/api/v1/sync/status", nil, nil, &syncStatus)
	s.Equal(http.StatusOK, status)
	s.True(syncStatus.PrimaryAvailable)
	s.Zero(syncStatus.Pending[domain.KindUsers])
	s.Positive(syncStatus.LastSync)
}

func (s *Suite) TestManualSync() {
	s.Primary.SetAvailable(false)
	s.signup("grace", "grace@example.com", "Secret12")

	var result dto.SyncResponse
	status := s.do(http.MethodPost, "/api/v1/sync", nil, nil, &result)
	s.Equal(http.StatusOK, status)
	s.False(result.Completed, "no pass runs while the primary store is down")

	s.Primary.SetAvailable(true)

	status = s.do(http.MethodPost, "/api/v1/sync", nil, nil, &result)
	s.Equal(http.StatusOK, status)
	s.True(result.Completed)
	s.Equal(1, s.Primary.Counts()[domain.KindUsers])
}

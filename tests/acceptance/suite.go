package acceptance

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/hybrid-auth/internal/app"
	"github.com/prperemyshlev/hybrid-auth/internal/config"
	"github.com/prperemyshlev/hybrid-auth/internal/mail"
	"github.com/prperemyshlev/hybrid-auth/internal/repository"
	"github.com/prperemyshlev/hybrid-auth/internal/repository/memory"
	"github.com/stretchr/testify/suite"
)

const adminToken = "acceptance-admin-token"

// Suite boots the whole application on the in-memory primary store and a
// temporary local storage directory for every test
type Suite struct {
	suite.Suite
	BaseURL string
	Primary *memory.Store
	Repos   *repository.Repositories
	App     *app.App

	cancel context.CancelFunc
	done   chan error
}

func (s *Suite) SetupTest() {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	cfg := s.createTestConfig()

	infra, err := app.NewInfrastructure(ctx, *cfg)
	s.Require().NoError(err, "Failed to initialize infrastructure")

	primary, ok := infra.Probe().(*memory.Store)
	s.Require().True(ok, "memory driver should back the probe")

	application, err := app.NewApp(infra, cfg)
	s.Require().NoError(err, "Failed to build application")

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err, "Failed to create listener")

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- application.Serve(runCtx, listener)
	}()

	s.BaseURL = "http://" + listener.Addr().String()
	s.Primary = primary
	s.Repos = infra.Primary()
	s.App = application
	s.cancel = cancel
	s.done = done
}

func (s *Suite) TearDownTest() {
	if s.cancel == nil {
		return
	}
	s.cancel()

	select {
	case err := <-s.done:
		s.NoError(err)
	case <-time.After(10 * time.Second):
		s.Fail("application did not stop")
	}
}

func (s *Suite) createTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         "0",
			ReadTimeout:  config.Duration{Duration: 15 * time.Second},
			WriteTimeout: config.Duration{Duration: 15 * time.Second},
		},
		PrimaryDriver: config.DriverMemory,
		Redis:         config.RedisConfig{Enabled: false},
		StorageDir:    s.T().TempDir(),
		Sync: config.SyncConfig{
			Interval:        config.Duration{Duration: 300 * time.Second},
			PollInterval:    config.Duration{Duration: time.Hour},
			CleanupInterval: config.Duration{Duration: time.Hour},
			FailedHistory:   50,
		},
		Session: config.SessionConfig{
			Duration: config.Duration{Duration: time.Hour},
			Renewal:  config.Duration{Duration: time.Hour},
		},
		Tokens: config.TokensConfig{
			VerificationTTL: config.Duration{Duration: 24 * time.Hour},
			ResetTTL:        config.Duration{Duration: time.Hour},
		},
		Security: config.SecurityConfig{
			BCryptCost:        4,
			RateLimitRequests: 10,
			RateLimitWindow:   config.Duration{Duration: time.Minute},
			AdminToken:        adminToken,
		},
		Mail: config.MailConfig{
			Driver:    mail.DriverLog,
			From:      "no-reply@localhost",
			AppName:   "Hybrid Auth",
			VerifyURL: "http://localhost:3000/verify",
			ResetURL:  "http://localhost:3000/reset-password",
			LoginURL:  "http://localhost:3000/login",
		},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Username", "X-Admin-Token"},
		},
		Env: "test",
	}
}

// do sends body as JSON and decodes the response into out when out is not nil
func (s *Suite) do(method, path string, body any, headers map[string]string, out any) int {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.BaseURL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err, "Failed to make request")
	defer resp.Body.Close()

	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func sessionHeaders(username, token string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + token,
		"X-Username":    username,
	}
}

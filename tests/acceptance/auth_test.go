package acceptance

import (
	"context"
	"net/http"

	"github.com/prperemyshlev/hybrid-auth/internal/dto"
)

func (s *Suite) signup(username, email, password string) {
	status := s.do(http.MethodPost, "/api/v1/auth/signup", dto.SignupRequest{
		Username: username,
		Email:    email,
		Password: password,
	}, nil, nil)
	s.Require().Equal(http.StatusCreated, status)
}

func (s *Suite) login(username, password string) dto.LoginResponse {
	var resp dto.LoginResponse
	status := s.do(http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Username: username,
		Password: password,
	}, nil, &resp)
	s.Require().Equal(http.StatusOK, status)
	return resp
}

func (s *Suite) TestSignupLoginSessionLogout() {
	var created dto.SignupResponse
	status := s.do(http.MethodPost, "/api/v1/auth/signup", dto.SignupRequest{
		Username: "alice",
		Email:    " Alice@Example.com ",
		Password: "Secret12",
	}, nil, &created)
	s.Require().Equal(http.StatusCreated, status)
	s.Equal("alice", created.Username)
	s.Equal("alice@example.com", created.Email)

	login := s.login("ALICE", "Secret12")
	s.Equal("alice", login.Username)
	s.NotEmpty(login.Token)
	s.False(login.Verified)

	var session dto.SessionResponse
	status = s.do(http.MethodGet, "/api/v1/auth/session", nil, sessionHeaders("alice", login.Token), &session)
	s.Equal(http.StatusOK, status)
	s.Equal("alice", session.Username)
	s.GreaterOrEqual(session.ExpiresAt, login.ExpiresAt)

	status = s.do(http.MethodPost, "/api/v1/auth/logout", nil, sessionHeaders("alice", login.Token), nil)
	s.Equal(http.StatusOK, status)

	var errResp dto.ErrorResponse
	status = s.do(http.MethodGet, "/api/v1/auth/session", nil, sessionHeaders("alice", login.Token), &errResp)
	s.Equal(http.StatusUnauthorized, status)
	s.Equal("unauthorized", errResp.Error)
}

func (s *Suite) TestSignup_Duplicate() {
	s.signup("bob", "bob@example.com", "Secret12")

	var errResp dto.ErrorResponse
	status := s.do(http.MethodPost, "/api/v1/auth/signup", dto.SignupRequest{
		Username: "bob",
		Email:    "other@example.com",
		Password: "Secret12",
	}, nil, &errResp)
	s.Equal(http.StatusConflict, status)
	s.Equal("username_taken", errResp.Error)

	status = s.do(http.MethodPost, "/api/v1/auth/signup", dto.SignupRequest{
		Username: "robert",
		Email:    "BOB@example.com",
		Password: "Secret12",
	}, nil, &errResp)
	s.Equal(http.StatusConflict, status)
	s.Equal("email_taken", errResp.Error)
}

func (s *Suite) TestLogin_Failures() {
	s.signup("carol", "carol@example.com", "Secret12")

	var errResp dto.ErrorResponse
	status := s.do(http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Username: "carol",
		Password: "Wrong123",
	}, nil, &errResp)
	s.Equal(http.StatusUnauthorized, status)
	s.Equal("wrong_password", errResp.Error)

	status = s.do(http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Username: "nobody",
		Password: "Secret12",
	}, nil, &errResp)
	s.Equal(http.StatusNotFound, status)
	s.Equal("account_not_found", errResp.Error)
}

func (s *Suite) TestVerification() {
	s.signup("dave", "dave@example.com", "Secret12")

	record, err := s.Repos.Verification.Get(context.Background(), "dave")
	s.Require().NoError(err)

	var errResp dto.ErrorResponse
	status := s.do(http.MethodPost, "/api/v1/verification/verify", dto.VerifyRequest{
		Username: "dave",
		Token:    "not-the-token",
	}, nil, &errResp)
	s.Equal(http.StatusBadRequest, status)
	s.Equal("invalid_token", errResp.Error)

	status = s.do(http.MethodPost, "/api/v1/verification/verify", dto.VerifyRequest{
		Username: "dave",
		Token:    record.Token,
	}, nil, nil)
	s.Equal(http.StatusOK, status)

	var verified dto.VerificationStatusResponse
	status = s.do(http.MethodGet, "/api/v1/verification/dave", nil, nil, &verified)
	s.Equal(http.StatusOK, status)
	s.True(verified.Verified)

	status = s.do(http.MethodPost, "/api/v1/verification/resend", dto.ResendVerificationRequest{
		Username: "dave",
	}, nil, &errResp)
	s.Equal(http.StatusConflict, status)
	s.Equal("already_verified", errResp.Error)
}

func (s *Suite) TestChangePassword() {
	s.signup("erin", "erin@example.com", "Secret12")
	login := s.login("erin", "Secret12")

	status := s.do(http.MethodPost, "/api/v1/auth/password", dto.ChangePasswordRequest{
		CurrentPassword: "Secret12",
		NewPassword:     "Changed34",
	}, sessionHeaders("erin", login.Token), nil)
	s.Equal(http.StatusOK, status)

	s.login("erin", "Changed34")
}

func (s *Suite) TestPasswordReset_UnknownToken() {
	var tokenStatus dto.TokenStatusResponse
	status := s.do(http.MethodGet, "/api/v1/password/reset/bogus", nil, nil, &tokenStatus)
	s.Equal(http.StatusOK, status)
	s.False(tokenStatus.Valid)

	var errResp dto.ErrorResponse
	status = s.do(http.MethodPost, "/api/v1/password/reset", dto.ResetPasswordRequest{
		Token:    "bogus",
		Password: "Changed34",
	}, nil, &errResp)
	s.Equal(http.StatusBadRequest, status)
	s.Equal("invalid_token", errResp.Error)
}

package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/hybrid-auth/internal/dto"
	"github.com/prperemyshlev/hybrid-auth/internal/service"
)

// Error codes returned in dto.ErrorResponse.Error
const (
	CodeValidation         = "validation_failed"
	CodeUsernameTaken      = "username_taken"
	CodeEmailTaken         = "email_taken"
	CodeWeakPassword       = "weak_password"
	CodeInvalidEmail       = "invalid_email"
	CodeInvalidUsername    = "invalid_username"
	CodeAccountNotFound    = "account_not_found"
	CodeWrongPassword      = "wrong_password"
	CodeInvalidToken       = "invalid_token"
	CodeAlreadyVerified    = "already_verified"
	CodeLockedOut          = "locked_out"
	CodeStorageUnavailable = "storage_unavailable"
	CodeUnauthorized       = "unauthorized"
	CodeRateLimited        = "rate_limited"
	CodeInternal           = "internal_error"
)

var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{service.ErrUsernameTaken, http.StatusConflict, CodeUsernameTaken},
	{service.ErrEmailTaken, http.StatusConflict, CodeEmailTaken},
	{service.ErrWeakPassword, http.StatusBadRequest, CodeWeakPassword},
	{service.ErrInvalidEmail, http.StatusBadRequest, CodeInvalidEmail},
	{service.ErrInvalidUsername, http.StatusBadRequest, CodeInvalidUsername},
	{service.ErrUserNotFound, http.StatusNotFound, CodeAccountNotFound},
	{service.ErrUnknownAccount, http.StatusNotFound, CodeAccountNotFound},
	{service.ErrWrongPassword, http.StatusUnauthorized, CodeWrongPassword},
	{service.ErrInvalidToken, http.StatusBadRequest, CodeInvalidToken},
	{service.ErrAlreadyVerified, http.StatusConflict, CodeAlreadyVerified},
	{service.ErrStorageUnavailable, http.StatusServiceUnavailable, CodeStorageUnavailable},
}

// respondError writes the status and code matching err
func respondError(c *gin.Context, err error) {
	var locked *service.LockedOutError
	if errors.As(err, &locked) {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(locked.Remaining.Seconds()))))
		c.JSON(http.StatusTooManyRequests, dto.ErrorResponse{
			Error:   CodeLockedOut,
			Message: err.Error(),
		})
		return
	}

	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			c.JSON(e.status, dto.ErrorResponse{
				Error:   e.code,
				Message: e.err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
		Error:   CodeInternal,
		Message: "Internal server error",
	})
}

func respondValidation(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   CodeValidation,
		Message: err.Error(),
	})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/hybrid-auth/internal/dto"
	"github.com/prperemyshlev/hybrid-auth/internal/service"
)

// PasswordHandler handles the forgotten password flow
type PasswordHandler struct {
	authService service.AuthService
}

func NewPasswordHandler(authService service.AuthService) *PasswordHandler {
	return &PasswordHandler{authService: authService}
}

// Forgot issues a reset token for a username or email
// @Summary Request a password reset
// @Tags password
// @Accept json
// @Produce json
// @Param request body dto.ForgotPasswordRequest true "Forgot password request"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /password/forgot [post]
func (h *PasswordHandler) Forgot(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), req.Identifier); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Password reset email sent",
	})
}

// CheckToken reports whether a reset token can still be used
// @Summary Check a reset token
// @Tags password
// @Produce json
// @Param token path string true "Reset token"
// @Success 200 {object} dto.TokenStatusResponse
// @Router /password/reset/{token} [get]
func (h *PasswordHandler) CheckToken(c *gin.Context) {
	c.JSON(http.StatusOK, dto.TokenStatusResponse{
		Valid: h.authService.CheckResetToken(c.Request.Context(), c.Param("token")),
	})
}

// Reset sets a new password with a reset token
// @Summary Reset password
// @Tags password
// @Accept json
// @Produce json
// @Param request body dto.ResetPasswordRequest true "Reset password request"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /password/reset [post]
func (h *PasswordHandler) Reset(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Password has been reset",
	})
}

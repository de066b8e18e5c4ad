package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/hybrid-auth/internal/dto"
	"github.com/prperemyshlev/hybrid-auth/internal/service"
)

// VerificationHandler handles email verification requests
type VerificationHandler struct {
	authService service.AuthService
}

func NewVerificationHandler(authService service.AuthService) *VerificationHandler {
	return &VerificationHandler{authService: authService}
}

// Verify completes email verification
// @Summary Verify email
// @Tags verification
// @Accept json
// @Produce json
// @Param request body dto.VerifyRequest true "Verification request"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /verification/verify [post]
func (h *VerificationHandler) Verify(c *gin.Context) {
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	if !h.authService.Verify(c.Request.Context(), req.Username, req.Token) {
		respondError(c, service.ErrInvalidToken)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Email verified",
	})
}

// Resend issues a new verification email
// @Summary Resend verification email
// @Tags verification
// @Accept json
// @Produce json
// @Param request body dto.ResendVerificationRequest true "Resend request"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /verification/resend [post]
func (h *VerificationHandler) Resend(c *gin.Context) {
	var req dto.ResendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	if err := h.authService.ResendVerification(c.Request.Context(), req.Username); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Verification email sent",
	})
}

// Status reports whether an account is verified
// @Summary Verification status
// @Tags verification
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} dto.VerificationStatusResponse
// @Router /verification/{username} [get]
func (h *VerificationHandler) Status(c *gin.Context) {
	username := c.Param("username")

	c.JSON(http.StatusOK, dto.VerificationStatusResponse{
		Username: username,
		Verified: h.authService.IsVerified(c.Request.Context(), username),
	})
}

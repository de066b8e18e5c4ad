package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/hybrid-auth/internal/domain"
	"github.com/prperemyshlev/hybrid-auth/internal/dto"
	"github.com/prperemyshlev/hybrid-auth/internal/service"
)

// AdminService groups the maintenance operations
type AdminService interface {
	ListUsers(ctx context.Context) []domain.User
	DeleteUser(ctx context.Context, username string) error
	Cleanup(ctx context.Context) service.CleanupReport
}

// AdminHandler handles maintenance requests
type AdminHandler struct {
	admin AdminService
}

func NewAdminHandler(admin AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// ListUsers returns every account
// @Summary List users
// @Tags admin
// @Security AdminToken
// @Produce json
// @Success 200 {array} dto.UserResponse
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users := h.admin.ListUsers(c.Request.Context())

	response := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		response = append(response, dto.UserResponse{
			Username: u.Username,
			Email:    u.Email,
		})
	}

	c.JSON(http.StatusOK, response)
}

// DeleteUser removes an account with its session and verification record
// @Summary Delete user
// @Tags admin
// @Security AdminToken
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/users/{username} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.admin.DeleteUser(c.Request.Context(), c.Param("username")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "User deleted",
	})
}

// Cleanup runs the expiry sweeps now
// @Summary Remove expired tokens
// @Tags admin
// @Security AdminToken
// @Produce json
// @Success 200 {object} service.CleanupReport
// @Router /admin/cleanup [post]
func (h *AdminHandler) Cleanup(c *gin.Context) {
	c.JSON(http.StatusOK, h.admin.Cleanup(c.Request.Context()))
}

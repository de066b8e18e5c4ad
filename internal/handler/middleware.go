package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/hybrid-auth/internal/dto"
	"github.com/prperemyshlev/hybrid-auth/internal/service"
)

// Keys set on the gin context by SessionMiddleware
const (
	ContextUsername  = "username"
	ContextToken     = "session_token"
	ContextExpiresAt = "expires_at"
)

// Headers read by the middlewares
const (
	HeaderUsername   = "X-Username"
	HeaderAdminToken = "X-Admin-Token"
)

// SessionMiddleware validates the session token and slides its expiry forward.
// The client sends "Authorization: Bearer <token>" and "X-Username: <username>".
func SessionMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "Authorization header is required")
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			unauthorized(c, "Invalid authorization header format")
			return
		}

		username := strings.TrimSpace(c.GetHeader(HeaderUsername))
		if username == "" {
			unauthorized(c, "X-Username header is required")
			return
		}

		session, ok := authService.Authenticate(c.Request.Context(), username, parts[1])
		if !ok {
			unauthorized(c, "Invalid or expired session")
			return
		}

		c.Set(ContextUsername, session.Username)
		c.Set(ContextToken, parts[1])
		c.Set(ContextExpiresAt, session.ExpiresAt)

		c.Next()
	}
}

// AdminMiddleware admits requests carrying the configured admin token
func AdminMiddleware(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(HeaderAdminToken)
		if adminToken == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(adminToken)) != 1 {
			unauthorized(c, "Admin token is required")
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
		Error:   CodeUnauthorized,
		Message: message,
	})
	c.Abort()
}

// Package accounts exposes the authentication endpoints: login, register, and
// the current-session profile. All three return the same session payload shape
// so the frontend has one code path for establishing identity.
package accounts

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maritime-ai/maritime-ai-backend/internal/api/httpx"
	"github.com/maritime-ai/maritime-ai-backend/internal/auth"
	"github.com/maritime-ai/maritime-ai-backend/internal/middleware"
)

// Handler serves the /api/v1/auth endpoints.
type Handler struct {
	svc *auth.Service
}

// NewHandler creates the accounts handler.
func NewHandler(svc *auth.Service) *Handler {
	return &Handler{svc: svc}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	Name       string `json:"name" binding:"required"`
	TenantName string `json:"tenantName" binding:"required"`
}

type sessionResponse struct {
	Success bool        `json:"success"`
	Token   string      `json:"token"`
	User    userPayload `json:"user"`
}

type userPayload struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	TenantID   int64  `json:"tenantId"`
	TenantName string `json:"tenantName"`
}

// Login verifies credentials and issues a session token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.ValidationError(c, err)
		return
	}

	session, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionPayload(session))
}

// Register creates an account, creating its tenant if the organization name is
// new, and issues a session token.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.ValidationError(c, err)
		return
	}

	session, err := h.svc.Register(c.Request.Context(), req.Email, req.Password, req.Name, req.TenantName)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, sessionPayload(session))
}

// Me returns the profile behind the presented token, re-resolved against the
// database so a deleted account stops working before its token expires.
func (h *Handler) Me(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
		return
	}

	user, tenant, err := h.svc.Me(c.Request.Context(), claims)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": userPayload{
			Email:      user.Email,
			Name:       user.Name,
			TenantID:   tenant.ID,
			TenantName: tenant.Name,
		},
	})
}

func sessionPayload(s *auth.Session) sessionResponse {
	return sessionResponse{
		Success: true,
		Token:   s.Token,
		User: userPayload{
			Email:      s.Email,
			Name:       s.Name,
			TenantID:   s.TenantID,
			TenantName: s.TenantName,
		},
	}
}

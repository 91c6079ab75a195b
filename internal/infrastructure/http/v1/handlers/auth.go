package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tabula/internal/domain/auth"
)

// AuthHandler handles authentication requests.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(base *BaseHandler, service *auth.Service) *AuthHandler {
	return &AuthHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if !h.BindJSON(c, &req) {
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var creds auth.Credentials
	if !h.BindJSON(c, &creds) {
		return
	}

	token, user, err := h.service.Login(c.Request.Context(), creds)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{
		"token": token,
		"user":  user,
	})
}

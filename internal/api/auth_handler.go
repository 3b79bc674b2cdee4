package api

import (
	"net/http"

	"storefront-be/internal/user"

	"github.com/gin-gonic/gin"
)

type authResponse struct {
	Token string     `json:"token"`
	User  *user.User `json:"user"`
}

func setAccessCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("access_token", token, 0, "/", "", c.Request.TLS != nil, true)
}

func (h *Handler) Register(c *gin.Context) {
	var req user.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}

	token, u, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	setAccessCookie(c, token)
	Success(c, authResponse{Token: token, User: u})
}

func (h *Handler) Login(c *gin.Context) {
	var req user.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}

	token, u, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		Fail(c, err)
		return
	}
	setAccessCookie(c, token)
	Success(c, authResponse{Token: token, User: u})
}

// Me returns the caller's own account.
func (h *Handler) Me(c *gin.Context) {
	u, err := h.users.GetByID(c.Request.Context(), currentUser(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, u)
}

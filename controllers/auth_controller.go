package controllers

import (
	"errors"
	"net/http"
	"strings"

	"Gin_postgres_redis_tool_booking/app"
	"Gin_postgres_redis_tool_booking/apperr"
	"Gin_postgres_redis_tool_booking/auth"

	"github.com/gin-gonic/gin"
)

type AuthController struct{ *Srv }

func NewAuthController(s *Srv) *AuthController { return &AuthController{Srv: s} }

// POST /api/login {username, password}
func (ac *AuthController) Login(c *gin.Context) {
	var in struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "username and password are required")
		return
	}
	ctx := c.Request.Context()

	u, err := ac.Repo.FindUserByUsername(ctx, strings.TrimSpace(in.Username))
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		fail(c, err)
		return
	}
	if u == nil || auth.CheckPassword(u.PasswordHash, in.Password) != nil {
		c.JSON(http.StatusUnauthorized, app.H{"error": auth.ErrBadCredentials.Error(), "reason": "unauthorized"})
		return
	}
	role := ""
	if u.Role != nil {
		role = u.Role.Name
	}

	token, claims, err := auth.GenerateToken(ac.Cfg.Auth.JWTSecret, ac.Cfg.Auth.TokenTTL, u.ID, u.Username, role)
	if err != nil {
		fail(c, err)
		return
	}
	if err := ac.Sessions.Create(ctx, claims.ID, u.ID, role); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{
		"token":    token,
		"role":     role,
		"username": u.Username,
		"expires":  claims.ExpiresAt.Time,
	})
}

// GET /api/me
func (ac *AuthController) Me(c *gin.Context) {
	p, err := ac.Booking.Me(c.Request.Context(), app.CallerFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// POST /api/logout
func (ac *AuthController) Logout(c *gin.Context) {
	if tid := app.TokenID(c); tid != "" {
		if err := ac.Sessions.Delete(c.Request.Context(), tid); err != nil {
			fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

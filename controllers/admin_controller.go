package controllers

import (
	"log/slog"
	"net/http"
	"strconv"

	"Gin_postgres_redis_tool_booking/app"
	"Gin_postgres_redis_tool_booking/models"

	"github.com/gin-gonic/gin"
)

type AdminController struct{ *Srv }

func NewAdminController(s *Srv) *AdminController { return &AdminController{Srv: s} }

// GET /api/logs?limit=
func (ac *AdminController) ActivityLog(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := ac.Booking.ActivityLog(c.Request.Context(), app.CallerFrom(c), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// PATCH /api/role-permissions {role, key, value}
func (ac *AdminController) SetRolePermission(c *gin.Context) {
	var in struct {
		Role  string `json:"role" binding:"required"`
		Key   string `json:"key" binding:"required"`
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "role, key and value are required")
		return
	}
	err := ac.Booking.SetRolePermission(c.Request.Context(), app.CallerFrom(c), in.Role, in.Key, models.PermissionValue(in.Value))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// PATCH /api/users/:id/role {role}
// 角色变更后强制该用户重新登录
func (ac *AdminController) SetUserRole(c *gin.Context) {
	var in struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "role is required")
		return
	}
	ctx := c.Request.Context()
	userID := c.Param("id")
	if err := ac.Booking.SetUserRole(ctx, app.CallerFrom(c), userID, in.Role); err != nil {
		fail(c, err)
		return
	}
	if err := ac.Sessions.RevokeAllForUser(ctx, userID); err != nil {
		slog.Warn("revoking sessions after role change failed", "user_id", userID, "error", err)
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

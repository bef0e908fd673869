package routes

import (
	"net/http"

	"Gin_postgres_redis_tool_booking/app"
	"Gin_postgres_redis_tool_booking/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(a)
	authCtl := controllers.NewAuthController(s)
	resCtl := controllers.NewReservationController(s)
	toolCtl := controllers.NewToolController(s)
	adminCtl := controllers.NewAdminController(s)

	// 复用的中间件
	authMW := a.AuthRequired()
	optionalMW := a.OptionalAuth()

	r.GET("/healthz", func(c *app.Ctx) { c.JSON(http.StatusOK, app.H{"ok": true}) })

	api := r.Group("/api")

	// ------------------------------
	// 登录 / 会话
	// ------------------------------
	api.POST("/login", authCtl.Login)
	me := api.Group("", authMW)
	{
		me.GET("/me", authCtl.Me)
		me.POST("/logout", authCtl.Logout)
	}

	// ------------------------------
	// 工具
	// ------------------------------
	api.GET("/tools/info/:code", toolCtl.Info) // 公开：扫码终端
	tools := api.Group("/tools", authMW)
	{
		tools.GET("", toolCtl.Overview)
		tools.GET("/available", toolCtl.Available)
		tools.POST("", toolCtl.Create)
		tools.PATCH("/:id", toolCtl.Update)
		tools.DELETE("/:id", toolCtl.Delete)
	}

	// ------------------------------
	// 预约
	// ------------------------------
	// 匿名访客也可以扫码快速预约
	api.POST("/reservations/quick", optionalMW, resCtl.Quick)
	res := api.Group("/reservations", authMW)
	{
		res.POST("", resCtl.Create)
		res.GET("", resCtl.List)
		res.PUT("/:id", resCtl.Update)
		res.DELETE("/:id", resCtl.Delete)
		res.PATCH("/return-tool", resCtl.ReturnTool)
	}

	// ------------------------------
	// 管理（角色检查在 booking 层）
	// ------------------------------
	admin := api.Group("", authMW)
	{
		admin.GET("/logs", adminCtl.ActivityLog)
		admin.PATCH("/role-permissions", adminCtl.SetRolePermission)
		admin.PATCH("/users/:id/role", adminCtl.SetUserRole)
	}
}

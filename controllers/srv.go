// controllers/srv.go
package controllers

import (
	"log/slog"
	"net/http"

	"Gin_postgres_redis_tool_booking/app"
	"Gin_postgres_redis_tool_booking/apperr"
	"Gin_postgres_redis_tool_booking/booking"
	"Gin_postgres_redis_tool_booking/config"
	"Gin_postgres_redis_tool_booking/db"
	"Gin_postgres_redis_tool_booking/session"

	"github.com/gin-gonic/gin"
)

type Srv struct {
	Repo     *db.Repo
	Booking  *booking.Manager
	Sessions session.Store
	Cfg      *config.Config
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		Repo:     a.Repo,
		Booking:  a.Booking,
		Sessions: a.Sessions(),
		Cfg:      a.Config,
	}
}

// --- helpers ---

// fail writes err as {error, reason} with the status of its class. Internal
// errors are logged and replaced by a generic message.
func fail(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, app.H{"error": apperr.Public(err), "reason": apperr.Reason(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, app.H{"error": msg, "reason": "validation"})
}

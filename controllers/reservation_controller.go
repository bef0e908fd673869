package controllers

import (
	"net/http"

	"Gin_postgres_redis_tool_booking/app"
	"Gin_postgres_redis_tool_booking/booking"

	"github.com/gin-gonic/gin"
)

type ReservationController struct{ *Srv }

func NewReservationController(s *Srv) *ReservationController {
	return &ReservationController{Srv: s}
}

// POST /api/reservations {tool, user?, start, end, note?}
func (rc *ReservationController) Create(c *gin.Context) {
	var in struct {
		Tool  string  `json:"tool" binding:"required"`
		User  string  `json:"user"`
		Start string  `json:"start" binding:"required"`
		End   string  `json:"end" binding:"required"`
		Note  *string `json:"note"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "tool, start and end are required")
		return
	}
	res, err := rc.Booking.Create(c.Request.Context(), app.CallerFrom(c), booking.CreateInput{
		Tool: in.Tool, User: in.User, Start: in.Start, End: in.End, Note: in.Note,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// POST /api/reservations/quick {tool, user, duration}
// 扫码终端：匿名调用时 user 必须是访客码
func (rc *ReservationController) Quick(c *gin.Context) {
	var in struct {
		Tool     string  `json:"tool" binding:"required"`
		User     string  `json:"user"`
		Duration int     `json:"duration" binding:"required"`
		Note     *string `json:"note"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "tool and duration are required")
		return
	}
	res, err := rc.Booking.QuickReserve(c.Request.Context(), app.CallerFrom(c), booking.QuickInput{
		ToolCode: in.Tool, UserCode: in.User, DurationDays: in.Duration, Note: in.Note,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GET /api/reservations?tool=
func (rc *ReservationController) List(c *gin.Context) {
	rows, err := rc.Booking.List(c.Request.Context(), app.CallerFrom(c), booking.ListInput{Tool: c.Query("tool")})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// PUT /api/reservations/:id {tool?, start?, end?, note?}
func (rc *ReservationController) Update(c *gin.Context) {
	var in struct {
		Tool  *string `json:"tool"`
		Start *string `json:"start"`
		End   *string `json:"end"`
		Note  *string `json:"note"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body")
		return
	}
	res, err := rc.Booking.Edit(c.Request.Context(), app.CallerFrom(c), c.Param("id"), booking.EditInput{
		Tool: in.Tool, Start: in.Start, End: in.End, Note: in.Note,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DELETE /api/reservations/:id
func (rc *ReservationController) Delete(c *gin.Context) {
	res, err := rc.Booking.Delete(c.Request.Context(), app.CallerFrom(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"deleted": res.ID})
}

// PATCH /api/reservations/return-tool {tool}
func (rc *ReservationController) ReturnTool(c *gin.Context) {
	var in struct {
		Tool string `json:"tool" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "missing tool code")
		return
	}
	out, err := rc.Booking.ReturnTool(c.Request.Context(), app.CallerFrom(c), in.Tool)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

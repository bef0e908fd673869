package controllers

import (
	"net/http"
	"strconv"

	"Gin_postgres_redis_tool_booking/app"
	"Gin_postgres_redis_tool_booking/booking"
	"Gin_postgres_redis_tool_booking/db"

	"github.com/gin-gonic/gin"
)

type ToolController struct{ *Srv }

func NewToolController(s *Srv) *ToolController { return &ToolController{Srv: s} }

// GET /api/tools?q=&status=borrowed|available&page=&size=
func (tc *ToolController) Overview(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	res, err := tc.Booking.Overview(c.Request.Context(), app.CallerFrom(c), db.ToolsQuery{
		Q: c.Query("q"), Status: c.Query("status"), Page: page, Size: size,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("X-Total-Count", strconv.FormatInt(res.Total, 10))
	c.JSON(http.StatusOK, res)
}

// GET /api/tools/available?start=&end=
func (tc *ToolController) Available(c *gin.Context) {
	tools, err := tc.Booking.AvailableTools(c.Request.Context(), app.CallerFrom(c), c.Query("start"), c.Query("end"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tools)
}

// GET /api/tools/info/:code
func (tc *ToolController) Info(c *gin.Context) {
	info, err := tc.Booking.ToolInfo(c.Request.Context(), c.Param("code"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// POST /api/tools {code, name}
func (tc *ToolController) Create(c *gin.Context) {
	var in struct {
		Code string `json:"code" binding:"required"`
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "code is required")
		return
	}
	t, err := tc.Booking.RegisterTool(c.Request.Context(), app.CallerFrom(c), in.Code, in.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// PATCH /api/tools/:id {name?, code?, categoryId?}
func (tc *ToolController) Update(c *gin.Context) {
	var in struct {
		Name       *string `json:"name"`
		Code       *string `json:"code"`
		CategoryID *uint   `json:"categoryId"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid body")
		return
	}
	t, err := tc.Booking.UpdateTool(c.Request.Context(), app.CallerFrom(c), c.Param("id"), booking.ToolInput{
		Name: in.Name, Code: in.Code, CategoryID: in.CategoryID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// DELETE /api/tools/:id
func (tc *ToolController) Delete(c *gin.Context) {
	t, err := tc.Booking.DeleteTool(c.Request.Context(), app.CallerFrom(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"deleted": t.ID, "qrCode": t.Code})
}

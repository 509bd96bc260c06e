package handler

import (
	"net/http"

	"academy/internal/model"
	"academy/internal/service"
	"academy/pkg/pagination"
	"academy/pkg/response"

	"github.com/gin-gonic/gin"
)

type PositionHandler struct {
	svc   service.PositionService
	guard Guard
}

func NewPositionHandler(svc service.PositionService, guard Guard) *PositionHandler {
	return &PositionHandler{svc: svc, guard: guard}
}

func (h *PositionHandler) RegisterRoutes(router *gin.RouterGroup) {
	positions := h.guard.Group(router, "/api/positions")
	{
		positions.GET("", h.guard.Can(model.PermCatalogRead), h.ListPositions)
		positions.GET("/:id", h.guard.Can(model.PermCatalogRead), h.GetPosition)
		positions.POST("", h.guard.Can(model.PermCatalogWrite), h.CreatePosition)
		positions.PUT("/:id", h.guard.Can(model.PermCatalogWrite), h.UpdatePosition)
		positions.DELETE("/:id", h.guard.Can(model.PermCatalogWrite), h.DeletePosition)
	}
}

// ListPositions godoc
// @Summary      List positions
// @Tags         positions
// @Security     BearerAuth
// @Produce      json
// @Param        department_id  query     string  false  "Department filter"
// @Param        search         query     string  false  "Name contains"
// @Param        page           query     int     false  "Page number (default 1)"
// @Param        limit          query     int     false  "Number of items per page (default 20)"
// @Success      200            {object}  response.Response{data=response.Page{items=[]service.PositionResponse}}
// @Failure      400            {object}  response.Response
// @Router       /api/positions [get]
func (h *PositionHandler) ListPositions(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.svc.ListPositions(c.Request.Context(), c.Query("department_id"), p.Search, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, items, p.Page, p.Limit, total))
}

// GetPosition godoc
// @Summary      Get position
// @Tags         positions
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Position ID"
// @Success      200  {object}  response.Response{data=service.PositionResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/positions/{id} [get]
func (h *PositionHandler) GetPosition(c *gin.Context) {
	pos, err := h.svc.GetPosition(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pos))
}

// CreatePosition godoc
// @Summary      Create position
// @Tags         positions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreatePositionRequest  true  "Position"
// @Success      201      {object}  response.Response{data=service.PositionResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/positions [post]
func (h *PositionHandler) CreatePosition(c *gin.Context) {
	var req service.CreatePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	pos, err := h.svc.CreatePosition(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, pos))
}

// UpdatePosition godoc
// @Summary      Update position
// @Tags         positions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Position ID"
// @Param        payload  body      service.UpdatePositionRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=service.PositionResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/positions/{id} [put]
func (h *PositionHandler) UpdatePosition(c *gin.Context) {
	var req service.UpdatePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	pos, err := h.svc.UpdatePosition(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pos))
}

// DeletePosition godoc
// @Summary      Delete position
// @Tags         positions
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Position ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/positions/{id} [delete]
func (h *PositionHandler) DeletePosition(c *gin.Context) {
	if err := h.svc.DeletePosition(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Position deleted successfully"}))
}

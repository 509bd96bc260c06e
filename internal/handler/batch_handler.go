package handler

import (
	"net/http"

	"academy/internal/model"
	"academy/internal/service"
	"academy/pkg/pagination"
	"academy/pkg/response"

	"github.com/gin-gonic/gin"
)

type BatchHandler struct {
	svc   service.BatchService
	guard Guard
}

func NewBatchHandler(svc service.BatchService, guard Guard) *BatchHandler {
	return &BatchHandler{svc: svc, guard: guard}
}

func (h *BatchHandler) RegisterRoutes(router *gin.RouterGroup) {
	batches := h.guard.Group(router, "/api/batches")
	{
		batches.GET("", h.guard.Can(model.PermCatalogRead), h.ListBatches)
		batches.GET("/active", h.guard.Can(model.PermCatalogRead), h.GetActiveBatch)
		batches.GET("/:id", h.guard.Can(model.PermCatalogRead), h.GetBatch)
		batches.POST("", h.guard.Can(model.PermBatchesWrite), h.CreateBatch)
		batches.PUT("/:id", h.guard.Can(model.PermBatchesWrite), h.UpdateBatch)
		batches.DELETE("/:id", h.guard.Can(model.PermBatchesWrite), h.DeleteBatch)
	}
}

// ListBatches godoc
// @Summary      List intake batches
// @Tags         batches
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page{items=[]service.BatchResponse}}
// @Router       /api/batches [get]
func (h *BatchHandler) ListBatches(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.svc.ListBatches(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, items, p.Page, p.Limit, total))
}

// GetActiveBatch godoc
// @Summary      Get the active batch
// @Tags         batches
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.BatchResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/batches/active [get]
func (h *BatchHandler) GetActiveBatch(c *gin.Context) {
	b, err := h.svc.GetActiveBatch(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, b))
}

// GetBatch godoc
// @Summary      Get batch
// @Tags         batches
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Batch ID"
// @Success      200  {object}  response.Response{data=service.BatchResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/batches/{id} [get]
func (h *BatchHandler) GetBatch(c *gin.Context) {
	b, err := h.svc.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, b))
}

// CreateBatch godoc
// @Summary      Create batch
// @Description  Dates are YYYY-MM-DD. Creating an active batch deactivates the others.
// @Tags         batches
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateBatchRequest  true  "Batch"
// @Success      201      {object}  response.Response{data=service.BatchResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/batches [post]
func (h *BatchHandler) CreateBatch(c *gin.Context) {
	var req service.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	b, err := h.svc.CreateBatch(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, b))
}

// UpdateBatch godoc
// @Summary      Update batch
// @Tags         batches
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Batch ID"
// @Param        payload  body      service.UpdateBatchRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=service.BatchResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/batches/{id} [put]
func (h *BatchHandler) UpdateBatch(c *gin.Context) {
	var req service.UpdateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	b, err := h.svc.UpdateBatch(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, b))
}

// DeleteBatch godoc
// @Summary      Delete batch
// @Tags         batches
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Batch ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/batches/{id} [delete]
func (h *BatchHandler) DeleteBatch(c *gin.Context) {
	if err := h.svc.DeleteBatch(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Batch deleted successfully"}))
}

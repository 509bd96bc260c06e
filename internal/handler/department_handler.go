package handler

import (
	"net/http"

	"academy/internal/model"
	"academy/internal/service"
	"academy/pkg/pagination"
	"academy/pkg/response"

	"github.com/gin-gonic/gin"
)

type DepartmentHandler struct {
	svc   service.DepartmentService
	guard Guard
}

func NewDepartmentHandler(svc service.DepartmentService, guard Guard) *DepartmentHandler {
	return &DepartmentHandler{svc: svc, guard: guard}
}

func (h *DepartmentHandler) RegisterRoutes(router *gin.RouterGroup) {
	departments := h.guard.Group(router, "/api/departments")
	{
		departments.GET("", h.guard.Can(model.PermCatalogRead), h.ListDepartments)
		departments.GET("/:id", h.guard.Can(model.PermCatalogRead), h.GetDepartment)
		departments.POST("", h.guard.Can(model.PermCatalogWrite), h.CreateDepartment)
		departments.PUT("/:id", h.guard.Can(model.PermCatalogWrite), h.UpdateDepartment)
		departments.DELETE("/:id", h.guard.Can(model.PermCatalogWrite), h.DeleteDepartment)
	}
}

// ListDepartments godoc
// @Summary      List departments
// @Tags         departments
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Name contains"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page{items=[]service.DepartmentResponse}}
// @Router       /api/departments [get]
func (h *DepartmentHandler) ListDepartments(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.svc.ListDepartments(c.Request.Context(), p.Search, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, items, p.Page, p.Limit, total))
}

// GetDepartment godoc
// @Summary      Get department
// @Tags         departments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Department ID"
// @Success      200  {object}  response.Response{data=service.DepartmentResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/departments/{id} [get]
func (h *DepartmentHandler) GetDepartment(c *gin.Context) {
	dept, err := h.svc.GetDepartment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, dept))
}

// CreateDepartment godoc
// @Summary      Create department
// @Description  New departments start with an undrafted matrix.
// @Tags         departments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateDepartmentRequest  true  "Department"
// @Success      201      {object}  response.Response{data=service.DepartmentResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/departments [post]
func (h *DepartmentHandler) CreateDepartment(c *gin.Context) {
	var req service.CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	dept, err := h.svc.CreateDepartment(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, dept))
}

// UpdateDepartment godoc
// @Summary      Update department
// @Tags         departments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                           true  "Department ID"
// @Param        payload  body      service.UpdateDepartmentRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=service.DepartmentResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/departments/{id} [put]
func (h *DepartmentHandler) UpdateDepartment(c *gin.Context) {
	var req service.UpdateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	dept, err := h.svc.UpdateDepartment(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, dept))
}

// DeleteDepartment godoc
// @Summary      Delete department
// @Description  Removes the department with its positions and matrix. Fails while applications reference it.
// @Tags         departments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Department ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/departments/{id} [delete]
func (h *DepartmentHandler) DeleteDepartment(c *gin.Context) {
	if err := h.svc.DeleteDepartment(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Department deleted successfully"}))
}

package handler

import (
	"net/http"

	"academy/internal/model"
	"academy/internal/service"
	"academy/pkg/response"

	"github.com/gin-gonic/gin"
)

type MatrixHandler struct {
	svc   service.MatrixService
	guard Guard
}

func NewMatrixHandler(svc service.MatrixService, guard Guard) *MatrixHandler {
	return &MatrixHandler{svc: svc, guard: guard}
}

func (h *MatrixHandler) RegisterRoutes(router *gin.RouterGroup) {
	read := h.guard.Can(model.PermMatrixRead)
	edit := h.guard.Can(model.PermMatrixEdit)
	review := h.guard.Can(model.PermMatrixReview)

	m := h.guard.Group(router, "/api/matrices/:department_id")
	{
		m.GET("", read, h.GetMatrix)
		m.GET("/available-positions", read, h.ListAvailablePositions)
		m.GET("/available-documents", read, h.ListAvailableDocuments)
		m.GET("/export", read, h.ExportPDF)

		m.POST("/rows", edit, h.AddRows)
		m.POST("/columns", edit, h.AddColumns)
		m.DELETE("/rows/:position_id", edit, h.DeleteRow)
		m.DELETE("/columns/:document_id", edit, h.DeleteColumn)
		m.DELETE("/rows", edit, h.DeleteAllRows)
		m.DELETE("/columns", edit, h.DeleteAllColumns)
		m.DELETE("", edit, h.ClearMatrix)

		m.POST("/submit", edit, h.SubmitForReview)
		m.POST("/open-review", review, h.OpenReview)
		m.POST("/approve", review, h.ApproveDepartment)
		m.POST("/reject", review, h.RejectDepartment)
		m.POST("/complete", h.guard.Can(model.PermMatrixComplete), h.CompleteDepartment)
	}

	cells := h.guard.Group(router, "/api/matrix-cells")
	{
		cells.PUT("/:id", edit, h.ToggleCell)
		cells.GET("/:id/rules", read, h.GetCellRules)
	}

	rows := h.guard.Group(router, "/api/matrix-rows")
	{
		rows.POST("/:id/approve", review, h.ApprovePosition)
		rows.POST("/:id/reject", review, h.RejectPosition)
	}
}

// writeMatrix renders a service result that returns the updated matrix.
func writeMatrix(c *gin.Context, m *service.MatrixResponse, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, m))
}

func deleted(c *gin.Context, err error, msg string) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": msg}))
}

// GetMatrix godoc
// @Summary      Get department matrix
// @Description  Rows are positions, columns are documents, cells carry the required flag and rule values.
// @Tags         matrix
// @Security     BearerAuth
// @Produce      json
// @Param        department_id  path      string  true  "Department ID"
// @Success      200            {object}  response.Response{data=service.MatrixResponse}
// @Failure      404            {object}  response.Response
// @Router       /api/matrices/{department_id} [get]
func (h *MatrixHandler) GetMatrix(c *gin.Context) {
	m, err := h.svc.GetMatrix(c.Request.Context(), c.Param("department_id"))
	writeMatrix(c, m, err)
}

// ListAvailablePositions godoc
// @Summary      Positions not yet in the matrix
// @Tags         matrix
// @Security     BearerAuth
// @Produce      json
// @Param        department_id  path      string  true  "Department ID"
// @Success      200            {object}  response.Response{data=[]service.PositionResponse}
// @Router       /api/matrices/{department_id}/available-positions [get]
func (h *MatrixHandler) ListAvailablePositions(c *gin.Context) {
	items, err := h.svc.ListAvailablePositions(c.Request.Context(), c.Param("department_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, items))
}

// ListAvailableDocuments godoc
// @Summary      Documents not yet in the matrix
// @Tags         matrix
// @Security     BearerAuth
// @Produce      json
// @Param        department_id  path      string  true  "Department ID"
// @Success      200            {object}  response.Response{data=[]service.DocumentResponse}
// @Router       /api/matrices/{department_id}/available-documents [get]
func (h *MatrixHandler) ListAvailableDocuments(c *gin.Context) {
	items, err := h.svc.ListAvailableDocuments(c.Request.Context(), c.Param("department_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, items))
}

// ExportPDF godoc
// @Summary      Export matrix as PDF
// @Tags         matrix
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        department_id  path  string  true  "Department ID"
// @Success      200            {file}  file
// @Failure      404            {object}  response.Response
// @Router       /api/matrices/{department_id}/export [get]
func (h *MatrixHandler) ExportPDF(c *gin.Context) {
	pdf, name, err := h.svc.ExportMatrixPDF(c.Request.Context(), c.Param("department_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	sendPDF(c, pdf, name)
}

// AddRows godoc
// @Summary      Add positions as matrix rows
// @Tags         matrix
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        department_id  path      string                  true  "Department ID"
// @Param        payload        body      service.AddRowsRequest  true  "Positions"
// @Success      200            {object}  response.Response{data=service.MatrixResponse}
// @Failure      400            {object}  response.Response
// @Failure      403            {object}  response.Response
// @Failure      409            {object}  response.Response
// @Failure      423            {object}  response.Response
// @Router       /api/matrices/{department_id}/rows [post]
func (h *MatrixHandler) AddRows(c *gin.Context) {
	var req service.AddRowsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	m, err := h.svc.AddRows(c.Request.Context(), actorFrom(c), c.Param("department_id"), req)
	writeMatrix(c, m, err)
}

// AddColumns godoc
// @Summary      Add documents as matrix columns
// @Tags         matrix
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        department_id  path      string                     true  "Department ID"
// @Param        payload        body      service.AddColumnsRequest  true  "Documents"
// @Success      200            {object}  response.Response{data=service.MatrixResponse}
// @Failure      400            {object}  response.Response
// @Failure      409            {object}  response.Response
// @Failure      423            {object}  response.Response
// @Router       /api/matrices/{department_id}/columns [post]
func (h *MatrixHandler) AddColumns(c *gin.Context) {
	var req service.AddColumnsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	m, err := h.svc.AddColumns(c.Request.Context(), actorFrom(c), c.Param("department_id"), req)
	writeMatrix(c, m, err)
}

// DeleteRow godoc
// @Summary      Remove a position row
// @Tags         matrix
// @Security     BearerAuth
// @Produce      json
// @Param        department_id  path      string  true  "Department ID"
// @Param        position_id    path      string  true  "Position ID"
// @Param        confirm        query     bool    true  "Must be true"
// @Success      200            {object}  response.Response
// @Failure      400            {object}  response.Response
// @Failure      423            {object}  response.Response
// @Router       /api/matrices/{department_id}/rows/{position_id} [delete]
func (h *MatrixHandler) DeleteRow(c *gin.Context) {
	err := h.svc.DeleteRow(c.Request.Context(), actorFrom(c), c.Param("department_id"), c.Param("position_id"), confirmed(c))
	deleted(c, err, "Row deleted")
}

// DeleteColumn godoc
// @Summary      Remove a document column
// @Tags         matrix
// @Security     BearerAuth
// @Produce      json
// @Param        department_id  path      string  true  "Department ID"
// @Param        document_id    path      string  true  "Document ID"
// @Param        confirm        query     bool    true  "Must be true"
// @Success      200            {object}  response.Response
// @Failure      400            {object}  response.Response
// @Failure      423            {object}  response.Response
// @Router       /api/matrices/{department_id}/columns/{document_id} [delete]
func (h *MatrixHandler) DeleteColumn(c *gin.Context) {
	err := h.svc.DeleteColumn(c.Request.Context(), actorFrom(c), c.Param("department_id"), c.Param("document_id"), confirmed(c))
	deleted(c, err, "Column deleted")
}

// DeleteAllRows godoc
// @Summary      Remove every row
// @Tags         matrix
// @Security     BearerAuth
// @Produce      json
// @Param        department_id  path      string  true  "Department ID"
// @Param        confirm        query     bool    true  "Must be true"
// @Success      200            {object}  response.Response
// @Router       /api/matrices/{department_id}/rows [delete]
func (h *MatrixHandler) DeleteAllRows(c *gin.Context) {
	err := h.svc.DeleteAllRows(c.Request.Context(), actorFrom(c), c.Param("department_id"), confirmed(c))
	deleted(c, err, "All rows deleted")
}

// DeleteAllColumns godoc
// @Summary      Remove every column
// @Tags         matrix
// @Security     BearerAuth
// @Produce      json
// @Param        department_id  path      string  true  "Department ID"
// @Param        confirm        query     bool    true  "Must be true"
// @Success      200            {object}  response.Response
// @Router       /api/matrices/{department_id}/columns [delete]
func (h *MatrixHandler) DeleteAllColumns(c *gin.Context) {
	err := h.svc.DeleteAllColumns(c.Request.Context(), actorFrom(c), c.Param("department_id"), confirmed(c))
	deleted(c, err, "All columns deleted")
}

// ClearMatrix godoc
// @Summary      Clear the matrix
// @Description  Removes all rows, columns and cells and resets the status to Undrafted.
// @Tags         matrix
// @Security     BearerAuth
// @Produce      json
// @Param        department_id  path      string  true  "Department ID"
// @Param        confirm        query     bool    true  "Must be true"
// @Success      200            {object}  response.Response
// @Router       /api/matrices/{department_id} [delete]
func (h *MatrixHandler) ClearMatrix(c *gin.Context) {
	err := h.svc.ClearMatrix(c.Request.Context(), actorFrom(c), c.Param("department_id"), confirmed(c))
	deleted(c, err, "Matrix cleared")
}

// ToggleCell godoc
// @Summary      Toggle a cell's required flag
// @Description  current_required must match the stored flag. Requiring a cell whose document has rules needs a value per rule.
// @Tags         matrix
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Cell ID"
// @Param        payload  body      service.ToggleCellRequest  true  "Toggle"
// @Success      200      {object}  response.Response{data=service.MatrixCellResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      423      {object}  response.Response
// @Router       /api/matrix-cells/{id} [put]
func (h *MatrixHandler) ToggleCell(c *gin.Context) {
	var req service.ToggleCellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	cell, err := h.svc.ToggleCell(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, cell))
}

// GetCellRules godoc
// @Summary      Rules and values of a cell
// @Tags         matrix
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Cell ID"
// @Success      200  {object}  response.Response{data=service.CellRulesResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/matrix-cells/{id}/rules [get]
func (h *MatrixHandler) GetCellRules(c *gin.Context) {
	res, err := h.svc.GetCellRules(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// SubmitForReview godoc
// @Summary      Submit matrix for review
// @Tags         matrix
// @Security     BearerAuth
// @Produce      json
// @Param        department_id  path      string  true  "Department ID"
// @Success      200            {object}  response.Response{data=service.MatrixResponse}
// @Failure      400            {object}  response.Response
// @Failure      423            {object}  response.Response
// @Router       /api/matrices/{department_id}/submit [post]
func (h *MatrixHandler) SubmitForReview(c *gin.Context) {
	m, err := h.svc.SubmitForReview(c.Request.Context(), actorFrom(c), c.Param("department_id"))
	writeMatrix(c, m, err)
}

// OpenReview godoc
// @Summary      Start reviewing a drafted matrix
// @Tags         matrix
// @Security     BearerAuth
// @Produce      json
// @Param        department_id  path      string  true  "Department ID"
// @Success      200            {object}  response.Response{data=service.MatrixResponse}
// @Failure      409            {object}  response.Response
// @Router       /api/matrices/{department_id}/open-review [post]
func (h *MatrixHandler) OpenReview(c *gin.Context) {
	m, err := h.svc.OpenReview(c.Request.Context(), actorFrom(c), c.Param("department_id"))
	writeMatrix(c, m, err)
}

// ApprovePosition godoc
// @Summary      Approve one position row
// @Tags         matrix
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Row ID"
// @Success      200  {object}  response.Response{data=service.MatrixResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/matrix-rows/{id}/approve [post]
func (h *MatrixHandler) ApprovePosition(c *gin.Context) {
	m, err := h.svc.ApprovePosition(c.Request.Context(), actorFrom(c), c.Param("id"))
	writeMatrix(c, m, err)
}

// RejectPosition godoc
// @Summary      Reject one position row
// @Tags         matrix
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Row ID"
// @Param        payload  body      service.RejectMatrixRequest  true  "Reason"
// @Success      200      {object}  response.Response{data=service.MatrixResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/matrix-rows/{id}/reject [post]
func (h *MatrixHandler) RejectPosition(c *gin.Context) {
	var req service.RejectMatrixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	m, err := h.svc.RejectPosition(c.Request.Context(), actorFrom(c), c.Param("id"), req.Reason)
	writeMatrix(c, m, err)
}

// ApproveDepartment godoc
// @Summary      Approve the whole matrix
// @Tags         matrix
// @Security     BearerAuth
// @Produce      json
// @Param        department_id  path      string  true  "Department ID"
// @Success      200            {object}  response.Response{data=service.MatrixResponse}
// @Failure      409            {object}  response.Response
// @Router       /api/matrices/{department_id}/approve [post]
func (h *MatrixHandler) ApproveDepartment(c *gin.Context) {
	m, err := h.svc.ApproveDepartment(c.Request.Context(), actorFrom(c), c.Param("department_id"))
	writeMatrix(c, m, err)
}

// RejectDepartment godoc
// @Summary      Reject the whole matrix
// @Tags         matrix
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        department_id  path      string                       true  "Department ID"
// @Param        payload        body      service.RejectMatrixRequest  true  "Reason"
// @Success      200            {object}  response.Response{data=service.MatrixResponse}
// @Failure      400            {object}  response.Response
// @Failure      409            {object}  response.Response
// @Router       /api/matrices/{department_id}/reject [post]
func (h *MatrixHandler) RejectDepartment(c *gin.Context) {
	var req service.RejectMatrixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	m, err := h.svc.RejectDepartment(c.Request.Context(), actorFrom(c), c.Param("department_id"), req.Reason)
	writeMatrix(c, m, err)
}

// CompleteDepartment godoc
// @Summary      Mark an approved matrix complete
// @Tags         matrix
// @Security     BearerAuth
// @Produce      json
// @Param        department_id  path      string  true  "Department ID"
// @Success      200            {object}  response.Response{data=service.MatrixResponse}
// @Failure      403            {object}  response.Response
// @Failure      409            {object}  response.Response
// @Router       /api/matrices/{department_id}/complete [post]
func (h *MatrixHandler) CompleteDepartment(c *gin.Context) {
	m, err := h.svc.CompleteDepartment(c.Request.Context(), actorFrom(c), c.Param("department_id"))
	writeMatrix(c, m, err)
}

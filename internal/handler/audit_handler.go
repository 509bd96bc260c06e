package handler

import (
	"net/http"

	"academy/internal/model"
	"academy/internal/service"
	"academy/pkg/pagination"
	"academy/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
	guard        Guard
}

func NewAuditHandler(auditService service.AuditService, guard Guard) *AuditHandler {
	return &AuditHandler{auditService: auditService, guard: guard}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := h.guard.Group(router, "/api/audit-logs")
	group.Use(h.guard.Can(model.PermAuditRead))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs retrieves paginated audit records, newest first
// @Summary      Get audit logs
// @Description  Lists audit entries with the acting user, optionally filtered by action or entity
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        action     query     string  false  "Action filter, e.g. MATRIX_SUBMIT_FOR_REVIEW"
// @Param        entity_id  query     string  false  "Entity ID filter"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Success      200        {object}  response.Response{data=response.Page{items=[]service.AuditLogResponse}}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), c.Query("action"), c.Query("entity_id"), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, logs, p.Page, p.Limit, total))
}

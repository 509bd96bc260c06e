package handler

import (
	"net/http"

	"academy/internal/model"
	"academy/internal/service"
	"academy/pkg/pagination"
	"academy/pkg/response"

	"github.com/gin-gonic/gin"
)

type DocumentHandler struct {
	svc   service.DocumentService
	guard Guard
}

func NewDocumentHandler(svc service.DocumentService, guard Guard) *DocumentHandler {
	return &DocumentHandler{svc: svc, guard: guard}
}

func (h *DocumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	read, write := h.guard.Can(model.PermCatalogRead), h.guard.Can(model.PermCatalogWrite)

	documents := h.guard.Group(router, "/api/documents")
	{
		documents.GET("", read, h.ListDocuments)
		documents.GET("/:id", read, h.GetDocument)
		documents.POST("", write, h.CreateDocument)
		documents.PUT("/:id", write, h.UpdateDocument)
		documents.DELETE("/:id", write, h.DeleteDocument)

		documents.GET("/:id/rules", read, h.ListRules)
		documents.POST("/:id/rules", write, h.AddRule)
	}

	rules := h.guard.Group(router, "/api/document-rules")
	{
		rules.PUT("/:id", write, h.UpdateRule)
		rules.DELETE("/:id", write, h.DeleteRule)
	}
}

// ListDocuments godoc
// @Summary      List documents
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Name contains"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page{items=[]service.DocumentResponse}}
// @Router       /api/documents [get]
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.svc.ListDocuments(c.Request.Context(), p.Search, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, items, p.Page, p.Limit, total))
}

// GetDocument godoc
// @Summary      Get document with its rules
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  response.Response{data=service.DocumentResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/documents/{id} [get]
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	doc, err := h.svc.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, doc))
}

// CreateDocument godoc
// @Summary      Create document
// @Description  Creates a document type, optionally with its rules in one call.
// @Tags         documents
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateDocumentRequest  true  "Document"
// @Success      201      {object}  response.Response{data=service.DocumentResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/documents [post]
func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	var req service.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	doc, err := h.svc.CreateDocument(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, doc))
}

// UpdateDocument godoc
// @Summary      Update document
// @Tags         documents
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Document ID"
// @Param        payload  body      service.UpdateDocumentRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=service.DocumentResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/documents/{id} [put]
func (h *DocumentHandler) UpdateDocument(c *gin.Context) {
	var req service.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	doc, err := h.svc.UpdateDocument(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, doc))
}

// DeleteDocument godoc
// @Summary      Delete document
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/documents/{id} [delete]
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	if err := h.svc.DeleteDocument(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Document deleted successfully"}))
}

// ListRules godoc
// @Summary      List document rules
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  response.Response{data=[]service.RuleResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/documents/{id}/rules [get]
func (h *DocumentHandler) ListRules(c *gin.Context) {
	rules, err := h.svc.ListRules(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rules))
}

// AddRule godoc
// @Summary      Add document rule
// @Description  value_type is TEXT, NUMBER or DATE and defaults to TEXT.
// @Tags         documents
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Document ID"
// @Param        payload  body      service.CreateRuleRequest  true  "Rule"
// @Success      201      {object}  response.Response{data=service.RuleResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      423      {object}  response.Response
// @Router       /api/documents/{id}/rules [post]
func (h *DocumentHandler) AddRule(c *gin.Context) {
	var req service.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	rule, err := h.svc.AddRule(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rule))
}

// UpdateRule godoc
// @Summary      Update document rule
// @Tags         documents
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Rule ID"
// @Param        payload  body      service.UpdateRuleRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=service.RuleResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      423      {object}  response.Response
// @Router       /api/document-rules/{id} [put]
func (h *DocumentHandler) UpdateRule(c *gin.Context) {
	var req service.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	rule, err := h.svc.UpdateRule(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rule))
}

// DeleteRule godoc
// @Summary      Delete document rule
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Rule ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      423  {object}  response.Response
// @Router       /api/document-rules/{id} [delete]
func (h *DocumentHandler) DeleteRule(c *gin.Context) {
	if err := h.svc.DeleteRule(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Rule deleted successfully"}))
}

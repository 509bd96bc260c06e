package handler

import (
	"net/http"

	"academy/internal/model"
	"academy/internal/service"
	"academy/pkg/pagination"
	"academy/pkg/response"

	"github.com/gin-gonic/gin"
)

type ApplicationHandler struct {
	svc   service.ApplicationService
	guard Guard
}

func NewApplicationHandler(svc service.ApplicationService, guard Guard) *ApplicationHandler {
	return &ApplicationHandler{svc: svc, guard: guard}
}

func (h *ApplicationHandler) RegisterRoutes(router *gin.RouterGroup) {
	own := h.guard.Can(model.PermApplicationsOwn)

	apps := h.guard.Group(router, "/api/applications")
	{
		apps.POST("", own, h.CreateApplication)
		apps.GET("/mine", own, h.ListMyApplications)
		apps.GET("", h.guard.Can(model.PermApplicationsRead), h.ListApplications)
		// Access to a single application is checked per caller by the service.
		apps.GET("/:id", h.GetApplication)
		apps.GET("/:id/submissions", h.ListSubmissions)
		apps.GET("/:id/receipt", h.Receipt)
		apps.POST("/:id/documents/:document_id", own, h.UploadDocument)
		apps.POST("/:id/submit", own, h.SubmitApplication)
	}

	subs := h.guard.Group(router, "/api/submissions")
	{
		subs.GET("/:id/file", h.DownloadFile)
		subs.POST("/:id/review", h.guard.Can(model.PermSubmissionReview), h.ReviewSubmission)
	}
}

// CreateApplication godoc
// @Summary      Apply for a position
// @Description  Requires an open batch and an approved or completed matrix for the position's department.
// @Tags         applications
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateApplicationRequest  true  "Application"
// @Success      201      {object}  response.Response{data=service.ApplicationResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/applications [post]
func (h *ApplicationHandler) CreateApplication(c *gin.Context) {
	var req service.CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	app, err := h.svc.CreateApplication(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, app))
}

// ListMyApplications godoc
// @Summary      List the caller's applications
// @Tags         applications
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page{items=[]service.ApplicationResponse}}
// @Router       /api/applications/mine [get]
func (h *ApplicationHandler) ListMyApplications(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.svc.ListMyApplications(c.Request.Context(), actorFrom(c), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, items, p.Page, p.Limit, total))
}

// ListApplications godoc
// @Summary      List applications
// @Description  Heads of department only see their own department.
// @Tags         applications
// @Security     BearerAuth
// @Produce      json
// @Param        department_id  query     string  false  "Department filter"
// @Param        batch_id       query     string  false  "Batch filter"
// @Param        status         query     string  false  "Draft, Submitted, Approved or Rejected"
// @Param        page           query     int     false  "Page number (default 1)"
// @Param        limit          query     int     false  "Number of items per page (default 20)"
// @Success      200            {object}  response.Response{data=response.Page{items=[]service.ApplicationResponse}}
// @Failure      403            {object}  response.Response
// @Router       /api/applications [get]
func (h *ApplicationHandler) ListApplications(c *gin.Context) {
	p := pagination.Parse(c)
	filter := service.ApplicationListFilter{
		DepartmentID: c.Query("department_id"),
		BatchID:      c.Query("batch_id"),
		Status:       c.Query("status"),
		Page:         p.Page,
		Limit:        p.Limit,
	}
	items, total, err := h.svc.ListApplications(c.Request.Context(), actorFrom(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, items, p.Page, p.Limit, total))
}

// GetApplication godoc
// @Summary      Get application with document checklist
// @Tags         applications
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Application ID"
// @Success      200  {object}  response.Response{data=service.ApplicationResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/applications/{id} [get]
func (h *ApplicationHandler) GetApplication(c *gin.Context) {
	app, err := h.svc.GetApplication(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, app))
}

// ListSubmissions godoc
// @Summary      Upload history of an application
// @Tags         applications
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Application ID"
// @Success      200  {object}  response.Response{data=[]service.SubmissionResponse}
// @Failure      403  {object}  response.Response
// @Router       /api/applications/{id}/submissions [get]
func (h *ApplicationHandler) ListSubmissions(c *gin.Context) {
	subs, err := h.svc.ListSubmissions(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, subs))
}

// UploadDocument godoc
// @Summary      Upload a required document
// @Description  multipart/form-data with a "file" part (PDF, PNG or JPEG) and an optional "note".
// @Tags         applications
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id           path      string  true   "Application ID"
// @Param        document_id  path      string  true   "Document ID"
// @Param        file         formData  file    true   "Document file"
// @Param        note         formData  string  false  "Note for the reviewer"
// @Success      201          {object}  response.Response{data=service.SubmissionResponse}
// @Failure      400          {object}  response.Response
// @Failure      409          {object}  response.Response
// @Router       /api/applications/{id}/documents/{document_id} [post]
func (h *ApplicationHandler) UploadDocument(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "file is required: "+err.Error()))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	sub, err := h.svc.CreateSubmission(c.Request.Context(), actorFrom(c), c.Param("id"), c.Param("document_id"), service.UploadInput{
		FileName: fh.Filename,
		Size:     fh.Size,
		Content:  f,
		Note:     c.PostForm("note"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, sub))
}

// SubmitApplication godoc
// @Summary      Submit an application
// @Description  Every required document of the position must have an upload.
// @Tags         applications
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Application ID"
// @Success      200  {object}  response.Response{data=service.ApplicationResponse}
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/applications/{id}/submit [post]
func (h *ApplicationHandler) SubmitApplication(c *gin.Context) {
	app, err := h.svc.SubmitApplication(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, app))
}

// Receipt godoc
// @Summary      Application receipt as PDF
// @Tags         applications
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        id   path  string  true  "Application ID"
// @Success      200  {file}  file
// @Failure      403  {object}  response.Response
// @Router       /api/applications/{id}/receipt [get]
func (h *ApplicationHandler) Receipt(c *gin.Context) {
	pdf, name, err := h.svc.ApplicationReceiptPDF(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	sendPDF(c, pdf, name)
}

// DownloadFile godoc
// @Summary      Download an uploaded file
// @Tags         applications
// @Security     BearerAuth
// @Produce      octet-stream
// @Param        id   path  string  true  "Submission ID"
// @Success      200  {file}  file
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/submissions/{id}/file [get]
func (h *ApplicationHandler) DownloadFile(c *gin.Context) {
	rc, meta, err := h.svc.OpenSubmissionFile(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, meta.Size, meta.ContentType, rc, map[string]string{
		"Content-Disposition": `attachment; filename="` + meta.FileName + `"`,
	})
}

// ReviewSubmission godoc
// @Summary      Approve or reject an uploaded document
// @Description  Rejections need a note. The application status follows its documents.
// @Tags         applications
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                           true  "Submission ID"
// @Param        payload  body      service.ReviewSubmissionRequest  true  "Decision"
// @Success      200      {object}  response.Response{data=service.SubmissionResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/submissions/{id}/review [post]
func (h *ApplicationHandler) ReviewSubmission(c *gin.Context) {
	var req service.ReviewSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	sub, err := h.svc.ReviewSubmission(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, sub))
}

package handler

import (
	"errors"
	"net/http"
	"strconv"

	"academy/internal/middleware"
	"academy/internal/service"
	"academy/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/google/uuid"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("notblank", validators.NotBlank)
	}
}

// Guard bundles the middleware every protected route group runs.
type Guard struct {
	Auth        *middleware.Auth
	Idempotency gin.HandlerFunc // optional
}

// Group opens an authenticated route group.
func (g Guard) Group(router *gin.RouterGroup, path string) *gin.RouterGroup {
	grp := router.Group(path)
	grp.Use(g.Auth.Authenticate())
	if g.Idempotency != nil {
		grp.Use(g.Idempotency)
	}
	return grp
}

// Can requires every listed permission code.
func (g Guard) Can(perms ...string) gin.HandlerFunc {
	return g.Auth.RequirePermission(perms...)
}

// statusOf maps service errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrLocked):
		return http.StatusLocked
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "Internal server error"
	}
	c.JSON(status, response.Error(status, msg))
}

func badPayload(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
}

// actorFrom reads the caller that Authenticate put into the context.
func actorFrom(c *gin.Context) service.Actor {
	actor := service.Actor{Role: c.GetString(middleware.CtxUserRole)}
	if v, ok := c.Get(middleware.CtxUserID); ok {
		actor.UserID, _ = v.(uuid.UUID)
	}
	if v, ok := c.Get(middleware.CtxDepartmentID); ok {
		if id, ok := v.(uuid.UUID); ok {
			actor.DepartmentID = &id
		}
	}
	return actor
}

func confirmed(c *gin.Context) bool {
	ok, _ := strconv.ParseBool(c.Query("confirm"))
	return ok
}

func sendPDF(c *gin.Context, pdf []byte, filename string) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

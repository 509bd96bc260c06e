package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"academy/internal/model"
	"academy/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Sentinel errors. Handlers map them onto HTTP status codes.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
	ErrLocked     = errors.New("matrix is locked")
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID       uuid.UUID
	Role         string
	DepartmentID *uuid.UUID
}

func (a Actor) Is(roles ...string) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// HeadOf reports whether the actor may edit the given department's matrix.
func (a Actor) HeadOf(departmentID uuid.UUID) bool {
	if a.Role == model.RoleAdmin {
		return true
	}
	return a.Role == model.RoleHeadOfDepartment && a.DepartmentID != nil && *a.DepartmentID == departmentID
}

func (a Actor) userRef() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// notFound converts a repository miss into ErrNotFound naming the entity.
func notFound(entity string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s %w", entity, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", entity, err)
}

func parseID(entity, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, validationf("invalid %s id '%s'", entity, raw)
	}
	return id, nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// writeAudit records an audit entry within the transaction carried by ctx.
func writeAudit(ctx context.Context, repo repository.AuditRepository, actor Actor, action, entityID, entityName string, details map[string]interface{}) error {
	var raw datatypes.JSON
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		raw = datatypes.JSON(b)
	}
	entry := &model.AuditLog{
		UserID:     actor.userRef(),
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    raw,
	}
	if err := repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

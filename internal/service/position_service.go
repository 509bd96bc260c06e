package service

import (
	"context"
	"fmt"
	"strings"

	"academy/internal/model"
	"academy/internal/repository"

	"github.com/google/uuid"
)

type CreatePositionRequest struct {
	DepartmentID string `json:"department_id" binding:"required,uuid"`
	Name         string `json:"name" binding:"required,notblank,max=255"`
	Description  string `json:"description"`
	ImageURL     string `json:"image_url" binding:"omitempty,url"`
}

type UpdatePositionRequest struct {
	Name        *string `json:"name" binding:"omitempty,notblank,max=255"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url" binding:"omitempty,url"`
}

type PositionResponse struct {
	ID           string `json:"id"`
	DepartmentID string `json:"department_id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	ImageURL     string `json:"image_url"`
	CreatedAt    string `json:"created_at"`
}

type PositionService interface {
	CreatePosition(ctx context.Context, actor Actor, req CreatePositionRequest) (*PositionResponse, error)
	GetPosition(ctx context.Context, id string) (*PositionResponse, error)
	ListPositions(ctx context.Context, departmentID, search string, page, limit int) ([]PositionResponse, int64, error)
	UpdatePosition(ctx context.Context, actor Actor, id string, req UpdatePositionRequest) (*PositionResponse, error)
	DeletePosition(ctx context.Context, actor Actor, id string) error
}

type positionService struct {
	tx        repository.TransactionManager
	depts     repository.DepartmentRepository
	positions repository.PositionRepository
	matrix    repository.MatrixRepository
	apps      repository.ApplicationRepository
	audit     repository.AuditRepository
}

func NewPositionService(
	tx repository.TransactionManager,
	depts repository.DepartmentRepository,
	positions repository.PositionRepository,
	matrix repository.MatrixRepository,
	apps repository.ApplicationRepository,
	audit repository.AuditRepository,
) PositionService {
	return &positionService{tx: tx, depts: depts, positions: positions, matrix: matrix, apps: apps, audit: audit}
}

func toPositionResponse(p model.Position) PositionResponse {
	return PositionResponse{
		ID:           p.ID.String(),
		DepartmentID: p.DepartmentID.String(),
		Name:         p.Name,
		Description:  p.Description,
		ImageURL:     p.ImageURL,
		CreatedAt:    p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *positionService) CreatePosition(ctx context.Context, actor Actor, req CreatePositionRequest) (*PositionResponse, error) {
	deptID, err := parseID("department", req.DepartmentID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationf("name is required")
	}

	pos := model.Position{DepartmentID: deptID, Name: name, Description: req.Description, ImageURL: req.ImageURL}
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		dept, err := s.depts.FindByID(txCtx, deptID)
		if err != nil {
			return notFound("department", err)
		}
		if err := s.positions.Create(txCtx, &pos); err != nil {
			return fmt.Errorf("failed to create position: %w", err)
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionCreatePosition, pos.ID.String(), pos.Name,
			map[string]interface{}{"department": dept.Name})
	})
	if err != nil {
		return nil, err
	}

	res := toPositionResponse(pos)
	return &res, nil
}

func (s *positionService) GetPosition(ctx context.Context, id string) (*PositionResponse, error) {
	posID, err := parseID("position", id)
	if err != nil {
		return nil, err
	}
	pos, err := s.positions.FindByID(ctx, posID)
	if err != nil {
		return nil, notFound("position", err)
	}
	res := toPositionResponse(*pos)
	return &res, nil
}

func (s *positionService) ListPositions(ctx context.Context, departmentID, search string, page, limit int) ([]PositionResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	var deptFilter *uuid.UUID
	if departmentID != "" {
		id, err := parseID("department", departmentID)
		if err != nil {
			return nil, 0, err
		}
		deptFilter = &id
	}

	positions, total, err := s.positions.List(ctx, deptFilter, strings.TrimSpace(search), page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch positions: %w", err)
	}
	res := make([]PositionResponse, 0, len(positions))
	for _, p := range positions {
		res = append(res, toPositionResponse(p))
	}
	return res, total, nil
}

func (s *positionService) UpdatePosition(ctx context.Context, actor Actor, id string, req UpdatePositionRequest) (*PositionResponse, error) {
	posID, err := parseID("position", id)
	if err != nil {
		return nil, err
	}

	var pos *model.Position
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		pos, err = s.positions.FindByID(txCtx, posID)
		if err != nil {
			return notFound("position", err)
		}
		if req.Name != nil {
			if blank(*req.Name) {
				return validationf("name cannot be blank")
			}
			pos.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			pos.Description = *req.Description
		}
		if req.ImageURL != nil {
			pos.ImageURL = *req.ImageURL
		}
		if err := s.positions.Update(txCtx, pos); err != nil {
			return fmt.Errorf("failed to update position: %w", err)
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionUpdatePosition, pos.ID.String(), pos.Name, nil)
	})
	if err != nil {
		return nil, err
	}

	res := toPositionResponse(*pos)
	return &res, nil
}

// DeletePosition removes the position and its matrix rows.
func (s *positionService) DeletePosition(ctx context.Context, actor Actor, id string) error {
	posID, err := parseID("position", id)
	if err != nil {
		return err
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		pos, err := s.positions.FindByID(txCtx, posID)
		if err != nil {
			return notFound("position", err)
		}
		dept, err := s.depts.FindByIDForUpdate(txCtx, pos.DepartmentID)
		if err != nil {
			return notFound("department", err)
		}
		if !dept.MatrixStatus.Editable() {
			return fmt.Errorf("%w: department matrix is %s", ErrLocked, dept.MatrixStatus)
		}
		n, err := s.apps.CountByPosition(txCtx, pos.ID)
		if err != nil {
			return fmt.Errorf("failed to check applications: %w", err)
		}
		if n > 0 {
			return conflictf("position %s has %d application(s) and cannot be deleted", pos.Name, n)
		}
		if err := s.matrix.DeleteByPosition(txCtx, pos.ID); err != nil {
			return fmt.Errorf("failed to delete matrix rows: %w", err)
		}
		if err := s.positions.Delete(txCtx, pos.ID); err != nil {
			return fmt.Errorf("failed to delete position: %w", err)
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionDeletePosition, pos.ID.String(), pos.Name, nil)
	})
}

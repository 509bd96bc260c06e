package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"academy/internal/model"
	"academy/internal/repository"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreateDepartmentRequest struct {
	Name        string `json:"name" binding:"required,notblank,max=255"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url" binding:"omitempty,url"`
}

type UpdateDepartmentRequest struct {
	Name        *string `json:"name" binding:"omitempty,notblank,max=255"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url" binding:"omitempty,url"`
}

type DepartmentResponse struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Description        string             `json:"description"`
	ImageURL           string             `json:"image_url"`
	MatrixStatus       model.MatrixStatus `json:"matrix_status"`
	MatrixRejectReason *string            `json:"matrix_reject_reason"`
	CreatedAt          string             `json:"created_at"`
	UpdatedAt          string             `json:"updated_at"`
}

// --- Interface ---

type DepartmentService interface {
	CreateDepartment(ctx context.Context, actor Actor, req CreateDepartmentRequest) (*DepartmentResponse, error)
	GetDepartment(ctx context.Context, id string) (*DepartmentResponse, error)
	ListDepartments(ctx context.Context, search string, page, limit int) ([]DepartmentResponse, int64, error)
	UpdateDepartment(ctx context.Context, actor Actor, id string, req UpdateDepartmentRequest) (*DepartmentResponse, error)
	DeleteDepartment(ctx context.Context, actor Actor, id string) error
}

type departmentService struct {
	tx        repository.TransactionManager
	depts     repository.DepartmentRepository
	positions repository.PositionRepository
	matrix    repository.MatrixRepository
	apps      repository.ApplicationRepository
	users     repository.UserRepository
	audit     repository.AuditRepository
}

func NewDepartmentService(
	tx repository.TransactionManager,
	depts repository.DepartmentRepository,
	positions repository.PositionRepository,
	matrix repository.MatrixRepository,
	apps repository.ApplicationRepository,
	users repository.UserRepository,
	audit repository.AuditRepository,
) DepartmentService {
	return &departmentService{
		tx:        tx,
		depts:     depts,
		positions: positions,
		matrix:    matrix,
		apps:      apps,
		users:     users,
		audit:     audit,
	}
}

func toDepartmentResponse(d model.Department) DepartmentResponse {
	return DepartmentResponse{
		ID:                 d.ID.String(),
		Name:               d.Name,
		Description:        d.Description,
		ImageURL:           d.ImageURL,
		MatrixStatus:       d.MatrixStatus,
		MatrixRejectReason: d.MatrixRejectReason,
		CreatedAt:          d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:          d.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *departmentService) ensureNameFree(ctx context.Context, name string, self uuid.UUID) error {
	existing, err := s.depts.FindByName(ctx, name)
	if err == nil && existing.ID != self {
		return conflictf("department '%s' already exists", name)
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to check department name: %w", err)
	}
	return nil
}

func (s *departmentService) CreateDepartment(ctx context.Context, actor Actor, req CreateDepartmentRequest) (*DepartmentResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationf("name is required")
	}

	dept := model.Department{
		Name:         name,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		MatrixStatus: model.MatrixUndrafted,
	}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.ensureNameFree(txCtx, name, uuid.Nil); err != nil {
			return err
		}
		if err := s.depts.Create(txCtx, &dept); err != nil {
			return fmt.Errorf("failed to create department: %w", err)
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionCreateDepartment, dept.ID.String(), dept.Name, nil)
	})
	if err != nil {
		return nil, err
	}

	res := toDepartmentResponse(dept)
	return &res, nil
}

func (s *departmentService) GetDepartment(ctx context.Context, id string) (*DepartmentResponse, error) {
	deptID, err := parseID("department", id)
	if err != nil {
		return nil, err
	}
	dept, err := s.depts.FindByID(ctx, deptID)
	if err != nil {
		return nil, notFound("department", err)
	}
	res := toDepartmentResponse(*dept)
	return &res, nil
}

func (s *departmentService) ListDepartments(ctx context.Context, search string, page, limit int) ([]DepartmentResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	depts, total, err := s.depts.List(ctx, strings.TrimSpace(search), page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch departments: %w", err)
	}

	res := make([]DepartmentResponse, 0, len(depts))
	for _, d := range depts {
		res = append(res, toDepartmentResponse(d))
	}
	return res, total, nil
}

func (s *departmentService) UpdateDepartment(ctx context.Context, actor Actor, id string, req UpdateDepartmentRequest) (*DepartmentResponse, error) {
	deptID, err := parseID("department", id)
	if err != nil {
		return nil, err
	}

	var dept *model.Department
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		dept, err = s.depts.FindByID(txCtx, deptID)
		if err != nil {
			return notFound("department", err)
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return validationf("name cannot be blank")
			}
			if name != dept.Name {
				if err := s.ensureNameFree(txCtx, name, dept.ID); err != nil {
					return err
				}
			}
			dept.Name = name
		}
		if req.Description != nil {
			dept.Description = *req.Description
		}
		if req.ImageURL != nil {
			dept.ImageURL = *req.ImageURL
		}
		if err := s.depts.Update(txCtx, dept); err != nil {
			return fmt.Errorf("failed to update department: %w", err)
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionUpdateDepartment, dept.ID.String(), dept.Name, nil)
	})
	if err != nil {
		return nil, err
	}

	res := toDepartmentResponse(*dept)
	return &res, nil
}

// DeleteDepartment removes the department with its positions and matrix.
// Departments that already received applications are kept.
func (s *departmentService) DeleteDepartment(ctx context.Context, actor Actor, id string) error {
	deptID, err := parseID("department", id)
	if err != nil {
		return err
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		dept, err := s.depts.FindByIDForUpdate(txCtx, deptID)
		if err != nil {
			return notFound("department", err)
		}
		_, apps, err := s.apps.List(txCtx, repository.ApplicationFilter{DepartmentID: &dept.ID, Page: 1, Limit: 1})
		if err != nil {
			return fmt.Errorf("failed to check applications: %w", err)
		}
		if apps > 0 {
			return conflictf("department %s has %d application(s) and cannot be deleted", dept.Name, apps)
		}

		if _, err := s.matrix.DeleteAllColumns(txCtx, dept.ID); err != nil {
			return fmt.Errorf("failed to delete matrix columns: %w", err)
		}
		if _, err := s.matrix.DeleteAllRows(txCtx, dept.ID); err != nil {
			return fmt.Errorf("failed to delete matrix rows: %w", err)
		}
		if err := s.positions.DeleteByDepartment(txCtx, dept.ID); err != nil {
			return fmt.Errorf("failed to delete positions: %w", err)
		}
		if err := s.users.DetachDepartment(txCtx, dept.ID); err != nil {
			return fmt.Errorf("failed to detach users: %w", err)
		}
		if err := s.depts.Delete(txCtx, dept.ID); err != nil {
			return fmt.Errorf("failed to delete department: %w", err)
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionDeleteDepartment, dept.ID.String(), dept.Name, nil)
	})
}

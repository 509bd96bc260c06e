package service

import (
	"context"
	"fmt"
	"strings"

	"academy/internal/model"
	"academy/internal/repository"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name        string   `json:"name" binding:"required,notblank,max=50"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"` // Permission UUIDs
}

type UpdateRoleRequest struct {
	Name        string `json:"name" binding:"required,notblank,max=50"`
	Description string `json:"description"`
}

type UpdateRolePermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids" binding:"required"`
}

type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	IsSystem    bool                 `json:"is_system"`
	Permissions []PermissionResponse `json:"permissions"`
	CreatedAt   string               `json:"created_at"`
}

type PermissionResponse struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, id string) (*RoleResponse, error)
	CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error)
	UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*RoleResponse, error)
	DeleteRole(ctx context.Context, id string) error
	ListPermissions(ctx context.Context) ([]PermissionResponse, error)
	UpdateRolePermissions(ctx context.Context, roleID string, req UpdateRolePermissionsRequest) (*RoleResponse, error)
	GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error)
	SeedDefaultRolesAndPermissions(ctx context.Context) error
}

type roleService struct {
	tx    repository.TransactionManager
	roles repository.RoleRepository
}

func NewRoleService(tx repository.TransactionManager, roles repository.RoleRepository) RoleService {
	return &roleService{tx: tx, roles: roles}
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.roles.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, toRoleResponse(r))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, id string) (*RoleResponse, error) {
	roleID, err := parseID("role", id)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.FindByIDWithPermissions(ctx, roleID)
	if err != nil {
		return nil, notFound("role", err)
	}
	resp := toRoleResponse(*role)
	return &resp, nil
}

func (s *roleService) lookupPermissions(ctx context.Context, raw []string) ([]model.Permission, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, pid := range raw {
		parsed, err := parseID("permission", pid)
		if err != nil {
			return nil, err
		}
		ids = append(ids, parsed)
	}
	perms, err := s.roles.FindPermissionsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}
	if len(perms) != len(ids) {
		return nil, validationf("unknown permission id in %v", raw)
	}
	return perms, nil
}

func (s *roleService) CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error) {
	name := strings.TrimSpace(req.Name)
	role := model.Role{
		Name:        name,
		Description: req.Description,
		IsSystem:    false,
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.roles.FindByName(txCtx, name); err == nil {
			return conflictf("role '%s' already exists", name)
		}
		if err := s.roles.Create(txCtx, &role); err != nil {
			return fmt.Errorf("failed to create role: %w", err)
		}
		if len(req.Permissions) > 0 {
			perms, err := s.lookupPermissions(txCtx, req.Permissions)
			if err != nil {
				return err
			}
			if err := s.roles.ReplacePermissions(txCtx, &role, perms); err != nil {
				return fmt.Errorf("failed to assign permissions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reload with permissions
	return s.GetRole(ctx, role.ID.String())
}

func (s *roleService) UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*RoleResponse, error) {
	roleID, err := parseID("role", id)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.FindByIDWithPermissions(ctx, roleID)
	if err != nil {
		return nil, notFound("role", err)
	}

	name := strings.TrimSpace(req.Name)
	if role.IsSystem && name != role.Name {
		return nil, validationf("cannot rename system role '%s'", role.Name)
	}
	role.Name = name
	role.Description = req.Description

	if err := s.roles.Update(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	return s.GetRole(ctx, id)
}

func (s *roleService) DeleteRole(ctx context.Context, id string) error {
	roleID, err := parseID("role", id)
	if err != nil {
		return err
	}
	role, err := s.roles.FindByIDWithPermissions(ctx, roleID)
	if err != nil {
		return notFound("role", err)
	}
	if role.IsSystem {
		return validationf("cannot delete system role '%s'", role.Name)
	}
	if err := s.roles.Delete(ctx, role); err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	return nil
}

func (s *roleService) ListPermissions(ctx context.Context) ([]PermissionResponse, error) {
	perms, err := s.roles.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}

	res := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		res = append(res, toPermissionResponse(p))
	}
	return res, nil
}

func (s *roleService) UpdateRolePermissions(ctx context.Context, roleID string, req UpdateRolePermissionsRequest) (*RoleResponse, error) {
	id, err := parseID("role", roleID)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		role, err := s.roles.FindByIDWithPermissions(txCtx, id)
		if err != nil {
			return notFound("role", err)
		}
		perms, err := s.lookupPermissions(txCtx, req.PermissionIDs)
		if err != nil {
			return err
		}
		if err := s.roles.ReplacePermissions(txCtx, role, perms); err != nil {
			return fmt.Errorf("failed to update permissions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetRole(ctx, roleID)
}

func (s *roleService) GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error) {
	codes, err := s.roles.GetPermissionsByRoleName(ctx, roleName)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions of role '%s': %w", roleName, err)
	}
	return codes, nil
}

// DefaultPermissions is the permission catalog seeded at startup.
var DefaultPermissions = []model.Permission{
	{Code: model.PermCatalogRead, Name: "View departments, positions, documents and batches", Group: "catalog"},
	{Code: model.PermCatalogWrite, Name: "Manage departments, positions, documents and rules", Group: "catalog"},
	{Code: model.PermBatchesWrite, Name: "Manage admission batches", Group: "catalog"},
	{Code: model.PermUsersRead, Name: "View users", Group: "users"},
	{Code: model.PermUsersWrite, Name: "Manage users", Group: "users"},
	{Code: model.PermRolesManage, Name: "Manage roles and permissions", Group: "roles"},
	{Code: model.PermAuditRead, Name: "View audit trail", Group: "audit"},
	{Code: model.PermMatrixRead, Name: "View document matrices", Group: "matrix"},
	{Code: model.PermMatrixEdit, Name: "Edit a department matrix", Group: "matrix"},
	{Code: model.PermMatrixReview, Name: "Review submitted matrices", Group: "matrix"},
	{Code: model.PermMatrixComplete, Name: "Complete approved matrices", Group: "matrix"},
	{Code: model.PermApplicationsOwn, Name: "Create and submit own applications", Group: "applications"},
	{Code: model.PermApplicationsRead, Name: "View applications", Group: "applications"},
	{Code: model.PermSubmissionReview, Name: "Review uploaded documents", Group: "applications"},
}

// DefaultRolePermissions maps built-in roles to their permission codes.
var DefaultRolePermissions = map[string][]string{
	model.RoleAdmin: {
		model.PermCatalogRead, model.PermCatalogWrite, model.PermBatchesWrite,
		model.PermUsersRead, model.PermUsersWrite, model.PermRolesManage, model.PermAuditRead,
		model.PermMatrixRead, model.PermMatrixEdit, model.PermMatrixComplete,
		model.PermApplicationsRead, model.PermSubmissionReview,
	},
	model.RoleHeadOfDepartment: {
		model.PermCatalogRead, model.PermMatrixRead, model.PermMatrixEdit,
		model.PermApplicationsRead, model.PermSubmissionReview,
	},
	model.RoleTrainingDirector: {
		model.PermCatalogRead, model.PermMatrixRead, model.PermMatrixReview,
		model.PermApplicationsRead, model.PermAuditRead,
	},
	model.RoleTrainee: {
		model.PermCatalogRead, model.PermApplicationsOwn,
	},
	model.RoleStudent: {
		model.PermCatalogRead, model.PermApplicationsOwn,
	},
}

var roleDescriptions = map[string]string{
	model.RoleAdmin:            "Administrator, full access",
	model.RoleHeadOfDepartment: "Head of department, drafts the department matrix",
	model.RoleTrainingDirector: "Training director, reviews submitted matrices",
	model.RoleTrainee:          "Trainee, submits application documents",
	model.RoleStudent:          "Student, submits application documents",
}

// SeedDefaultRolesAndPermissions creates the default permissions and roles if not already present
func (s *roleService) SeedDefaultRolesAndPermissions(ctx context.Context) error {
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		permByCode := make(map[string]model.Permission, len(DefaultPermissions))
		for _, def := range DefaultPermissions {
			p := def
			if err := s.roles.UpsertPermission(txCtx, &p); err != nil {
				return fmt.Errorf("failed to seed permission '%s': %w", p.Code, err)
			}
			permByCode[p.Code] = p
		}

		for _, roleName := range model.AllRoles {
			role, err := s.roles.FindByName(txCtx, roleName)
			if err != nil {
				role = &model.Role{Name: roleName, Description: roleDescriptions[roleName], IsSystem: true}
				if err := s.roles.Create(txCtx, role); err != nil {
					return fmt.Errorf("failed to seed role '%s': %w", roleName, err)
				}
			}

			codes := DefaultRolePermissions[roleName]
			perms := make([]model.Permission, 0, len(codes))
			for _, code := range codes {
				if p, ok := permByCode[code]; ok {
					perms = append(perms, p)
				}
			}
			if err := s.roles.ReplacePermissions(txCtx, role, perms); err != nil {
				return fmt.Errorf("failed to assign permissions to role '%s': %w", roleName, err)
			}
		}
		return nil
	})
}

// --- Helpers ---

func toRoleResponse(r model.Role) RoleResponse {
	perms := make([]PermissionResponse, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, toPermissionResponse(p))
	}

	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		Permissions: perms,
		CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func toPermissionResponse(p model.Permission) PermissionResponse {
	return PermissionResponse{
		ID:    p.ID.String(),
		Code:  p.Code,
		Name:  p.Name,
		Group: p.Group,
	}
}

package repository

import (
	"context"

	"academy/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RoleRepository interface {
	Create(ctx context.Context, role *model.Role) error
	Update(ctx context.Context, role *model.Role) error
	Delete(ctx context.Context, role *model.Role) error
	FindByIDWithPermissions(ctx context.Context, id uuid.UUID) (*model.Role, error)
	FindByName(ctx context.Context, name string) (*model.Role, error)
	ListAll(ctx context.Context) ([]model.Role, error)
	ListPermissions(ctx context.Context) ([]model.Permission, error)
	FindPermissionsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Permission, error)
	ReplacePermissions(ctx context.Context, role *model.Role, perms []model.Permission) error
	GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error)
	UpsertPermission(ctx context.Context, perm *model.Permission) error
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Omit("Permissions").Create(role).Error
}

func (r *roleRepository) Update(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Omit("Permissions").Save(role).Error
}

// Delete clears the role's permission links before removing it.
func (r *roleRepository) Delete(ctx context.Context, role *model.Role) error {
	db := GetDB(ctx, r.db)
	if err := db.Model(role).Association("Permissions").Clear(); err != nil {
		return err
	}
	return db.Delete(role).Error
}

func (r *roleRepository) FindByIDWithPermissions(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Preload("Permissions").First(&role, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &role, nil
}

func (r *roleRepository) FindByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, translate(err)
	}
	return &role, nil
}

func (r *roleRepository) ListAll(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	if err := GetDB(ctx, r.db).Preload("Permissions").Order("name ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	var perms []model.Permission
	if err := GetDB(ctx, r.db).Order("\"group\" ASC, code ASC").Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *roleRepository) FindPermissionsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Permission, error) {
	var perms []model.Permission
	if len(ids) == 0 {
		return perms, nil
	}
	if err := GetDB(ctx, r.db).Where("id IN ?", ids).Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *roleRepository) ReplacePermissions(ctx context.Context, role *model.Role, perms []model.Permission) error {
	return GetDB(ctx, r.db).Model(role).Association("Permissions").Replace(perms)
}

func (r *roleRepository) GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error) {
	var codes []string
	err := GetDB(ctx, r.db).Raw(`
		SELECT p.code FROM permissions p
		INNER JOIN role_permissions rp ON rp.permission_id = p.id
		INNER JOIN roles r ON r.id = rp.role_id
		WHERE r.name = ?
	`, roleName).Scan(&codes).Error
	return codes, err
}

// UpsertPermission creates the permission by code or refreshes name/group of the existing row.
func (r *roleRepository) UpsertPermission(ctx context.Context, perm *model.Permission) error {
	db := GetDB(ctx, r.db)
	var existing model.Permission
	err := db.Where("code = ?", perm.Code).First(&existing).Error
	if err != nil {
		if translate(err) == ErrNotFound {
			return db.Create(perm).Error
		}
		return err
	}
	perm.ID = existing.ID
	return db.Model(&existing).Updates(map[string]interface{}{"name": perm.Name, "group": perm.Group}).Error
}

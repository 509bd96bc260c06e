package repository

import (
	"context"

	"academy/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DepartmentRepository interface {
	Create(ctx context.Context, dept *model.Department) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Department, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Department, error)
	FindByName(ctx context.Context, name string) (*model.Department, error)
	List(ctx context.Context, search string, page, limit int) ([]model.Department, int64, error)
	Update(ctx context.Context, dept *model.Department) error
	UpdateMatrixStatus(ctx context.Context, id uuid.UUID, status model.MatrixStatus, reason *string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type departmentRepository struct {
	db *gorm.DB
}

func NewDepartmentRepository(db *gorm.DB) DepartmentRepository {
	return &departmentRepository{db: db}
}

func (r *departmentRepository) Create(ctx context.Context, dept *model.Department) error {
	return GetDB(ctx, r.db).Create(dept).Error
}

func (r *departmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Department, error) {
	var dept model.Department
	if err := GetDB(ctx, r.db).First(&dept, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &dept, nil
}

// FindByIDForUpdate locks the department row; matrix mutations of one department serialize on it.
func (r *departmentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Department, error) {
	var dept model.Department
	if err := forUpdate(GetDB(ctx, r.db)).First(&dept, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &dept, nil
}

func (r *departmentRepository) FindByName(ctx context.Context, name string) (*model.Department, error) {
	var dept model.Department
	if err := GetDB(ctx, r.db).First(&dept, "name = ?", name).Error; err != nil {
		return nil, translate(err)
	}
	return &dept, nil
}

func (r *departmentRepository) List(ctx context.Context, search string, page, limit int) ([]model.Department, int64, error) {
	var depts []model.Department
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Department{})
	if search != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?)", "%"+search+"%")
	}
	query = query.Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	if err := query.Order("name ASC").Offset(offset).Limit(limit).Find(&depts).Error; err != nil {
		return nil, 0, err
	}
	return depts, total, nil
}

func (r *departmentRepository) Update(ctx context.Context, dept *model.Department) error {
	return GetDB(ctx, r.db).Omit("Positions").Save(dept).Error
}

func (r *departmentRepository) UpdateMatrixStatus(ctx context.Context, id uuid.UUID, status model.MatrixStatus, reason *string) error {
	return GetDB(ctx, r.db).Model(&model.Department{}).Where("id = ?", id).
		Updates(map[string]interface{}{"matrix_status": status, "matrix_reject_reason": reason}).Error
}

func (r *departmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Department{}).Error
}

package repository

import (
	"context"

	"academy/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PositionRepository interface {
	Create(ctx context.Context, pos *model.Position) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Position, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Position, error)
	List(ctx context.Context, departmentID *uuid.UUID, search string, page, limit int) ([]model.Position, int64, error)
	ListByDepartment(ctx context.Context, departmentID uuid.UUID) ([]model.Position, error)
	Update(ctx context.Context, pos *model.Position) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByDepartment(ctx context.Context, departmentID uuid.UUID) error
}

type positionRepository struct {
	db *gorm.DB
}

func NewPositionRepository(db *gorm.DB) PositionRepository {
	return &positionRepository{db: db}
}

func (r *positionRepository) Create(ctx context.Context, pos *model.Position) error {
	return GetDB(ctx, r.db).Create(pos).Error
}

func (r *positionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Position, error) {
	var pos model.Position
	if err := GetDB(ctx, r.db).First(&pos, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &pos, nil
}

func (r *positionRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Position, error) {
	var positions []model.Position
	if len(ids) == 0 {
		return positions, nil
	}
	err := GetDB(ctx, r.db).Where("id IN ?", ids).Find(&positions).Error
	return positions, err
}

func (r *positionRepository) List(ctx context.Context, departmentID *uuid.UUID, search string, page, limit int) ([]model.Position, int64, error) {
	var positions []model.Position
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Position{})
	if departmentID != nil {
		query = query.Where("department_id = ?", *departmentID)
	}
	if search != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?)", "%"+search+"%")
	}
	query = query.Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	if err := query.Order("name ASC").Offset(offset).Limit(limit).Find(&positions).Error; err != nil {
		return nil, 0, err
	}
	return positions, total, nil
}

func (r *positionRepository) ListByDepartment(ctx context.Context, departmentID uuid.UUID) ([]model.Position, error) {
	var positions []model.Position
	err := GetDB(ctx, r.db).Where("department_id = ?", departmentID).Order("name ASC").Find(&positions).Error
	return positions, err
}

func (r *positionRepository) Update(ctx context.Context, pos *model.Position) error {
	return GetDB(ctx, r.db).Save(pos).Error
}

func (r *positionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Position{}).Error
}

func (r *positionRepository) DeleteByDepartment(ctx context.Context, departmentID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("department_id = ?", departmentID).Delete(&model.Position{}).Error
}

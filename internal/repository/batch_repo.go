package repository

import (
	"context"

	"academy/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BatchRepository interface {
	Create(ctx context.Context, batch *model.Batch) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Batch, error)
	FindActive(ctx context.Context) (*model.Batch, error)
	List(ctx context.Context, page, limit int) ([]model.Batch, int64, error)
	Update(ctx context.Context, batch *model.Batch) error
	DeactivateAllExcept(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type batchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) Create(ctx context.Context, batch *model.Batch) error {
	return GetDB(ctx, r.db).Create(batch).Error
}

func (r *batchRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	var batch model.Batch
	if err := GetDB(ctx, r.db).First(&batch, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &batch, nil
}

func (r *batchRepository) FindActive(ctx context.Context) (*model.Batch, error) {
	var batch model.Batch
	if err := GetDB(ctx, r.db).Where("active = ?", true).Order("start_date DESC").First(&batch).Error; err != nil {
		return nil, translate(err)
	}
	return &batch, nil
}

func (r *batchRepository) List(ctx context.Context, page, limit int) ([]model.Batch, int64, error) {
	var batches []model.Batch
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Batch{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	if err := db.Order("start_date DESC").Offset(offset).Limit(limit).Find(&batches).Error; err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

func (r *batchRepository) Update(ctx context.Context, batch *model.Batch) error {
	return GetDB(ctx, r.db).Save(batch).Error
}

func (r *batchRepository) DeactivateAllExcept(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.Batch{}).Where("id <> ? AND active = ?", id, true).Update("active", false).Error
}

func (r *batchRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Batch{}).Error
}

package repository

import (
	"context"

	"academy/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error)
	FindByIDWithRules(ctx context.Context, id uuid.UUID) (*model.Document, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Document, error)
	FindByName(ctx context.Context, name string) (*model.Document, error)
	List(ctx context.Context, search string, page, limit int) ([]model.Document, int64, error)
	Update(ctx context.Context, doc *model.Document) error
	Delete(ctx context.Context, id uuid.UUID) error

	CreateRule(ctx context.Context, rule *model.DocumentRule) error
	FindRuleByID(ctx context.Context, id uuid.UUID) (*model.DocumentRule, error)
	ListRules(ctx context.Context, documentID uuid.UUID) ([]model.DocumentRule, error)
	CountRules(ctx context.Context, documentIDs []uuid.UUID) (map[uuid.UUID]int, error)
	UpdateRule(ctx context.Context, rule *model.DocumentRule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error
}

type documentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *model.Document) error {
	return GetDB(ctx, r.db).Omit("Rules").Create(doc).Error
}

func (r *documentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	if err := GetDB(ctx, r.db).First(&doc, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &doc, nil
}

func (r *documentRepository) FindByIDWithRules(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	err := GetDB(ctx, r.db).
		Preload("Rules", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&doc, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &doc, nil
}

func (r *documentRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Document, error) {
	var docs []model.Document
	if len(ids) == 0 {
		return docs, nil
	}
	err := GetDB(ctx, r.db).Where("id IN ?", ids).Find(&docs).Error
	return docs, err
}

func (r *documentRepository) FindByName(ctx context.Context, name string) (*model.Document, error) {
	var doc model.Document
	if err := GetDB(ctx, r.db).First(&doc, "name = ?", name).Error; err != nil {
		return nil, translate(err)
	}
	return &doc, nil
}

func (r *documentRepository) List(ctx context.Context, search string, page, limit int) ([]model.Document, int64, error) {
	var docs []model.Document
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Document{})
	if search != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?)", "%"+search+"%")
	}
	query = query.Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	if err := query.Preload("Rules").Order("name ASC").Offset(offset).Limit(limit).Find(&docs).Error; err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *documentRepository) Update(ctx context.Context, doc *model.Document) error {
	return GetDB(ctx, r.db).Omit("Rules").Save(doc).Error
}

func (r *documentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("document_id = ?", id).Delete(&model.DocumentRule{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Document{}).Error
}

func (r *documentRepository) CreateRule(ctx context.Context, rule *model.DocumentRule) error {
	return GetDB(ctx, r.db).Create(rule).Error
}

func (r *documentRepository) FindRuleByID(ctx context.Context, id uuid.UUID) (*model.DocumentRule, error) {
	var rule model.DocumentRule
	if err := GetDB(ctx, r.db).First(&rule, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &rule, nil
}

func (r *documentRepository) ListRules(ctx context.Context, documentID uuid.UUID) ([]model.DocumentRule, error) {
	var rules []model.DocumentRule
	err := GetDB(ctx, r.db).Where("document_id = ?", documentID).Order("created_at ASC").Find(&rules).Error
	return rules, err
}

// CountRules returns the number of rules per document.
func (r *documentRepository) CountRules(ctx context.Context, documentIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(documentIDs))
	if len(documentIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		DocumentID uuid.UUID
		N          int
	}
	err := GetDB(ctx, r.db).Model(&model.DocumentRule{}).
		Select("document_id, COUNT(*) AS n").
		Where("document_id IN ?", documentIDs).
		Group("document_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.DocumentID] = row.N
	}
	return counts, nil
}

func (r *documentRepository) UpdateRule(ctx context.Context, rule *model.DocumentRule) error {
	return GetDB(ctx, r.db).Save(rule).Error
}

func (r *documentRepository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("rule_id = ?", id).Delete(&model.MatrixRuleValue{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.DocumentRule{}).Error
}

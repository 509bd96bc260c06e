package repository

import (
	"context"

	"academy/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MatrixRepository persists the rows, columns, cells and rule values of department matrices.
type MatrixRepository interface {
	ListRows(ctx context.Context, departmentID uuid.UUID) ([]model.MatrixRow, error)
	ListColumns(ctx context.Context, departmentID uuid.UUID) ([]model.MatrixColumn, error)
	ListCells(ctx context.Context, departmentID uuid.UUID) ([]model.MatrixCell, error)
	FindRow(ctx context.Context, rowID uuid.UUID) (*model.MatrixRow, error)
	FindRowByPosition(ctx context.Context, departmentID, positionID uuid.UUID) (*model.MatrixRow, error)
	CountRowsAndColumns(ctx context.Context, departmentID uuid.UUID) (rows int64, cols int64, err error)

	CreateRows(ctx context.Context, rows []model.MatrixRow) error
	CreateColumns(ctx context.Context, cols []model.MatrixColumn) error
	CreateCells(ctx context.Context, cells []model.MatrixCell) error

	DeleteRows(ctx context.Context, departmentID uuid.UUID, positionIDs []uuid.UUID) (int64, error)
	DeleteColumns(ctx context.Context, departmentID uuid.UUID, documentIDs []uuid.UUID) (int64, error)
	DeleteAllRows(ctx context.Context, departmentID uuid.UUID) (int64, error)
	DeleteAllColumns(ctx context.Context, departmentID uuid.UUID) (int64, error)
	DeleteByPosition(ctx context.Context, positionID uuid.UUID) error
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) error

	SetRowStatus(ctx context.Context, rowID uuid.UUID, status model.PositionStatus, reason *string) error
	SetAllRowStatus(ctx context.Context, departmentID uuid.UUID, status model.PositionStatus, reason *string) error
	RowStatuses(ctx context.Context, departmentID uuid.UUID) ([]model.PositionStatus, error)

	FindCell(ctx context.Context, cellID uuid.UUID) (*model.MatrixCell, error)
	FindCellForUpdate(ctx context.Context, cellID uuid.UUID) (*model.MatrixCell, error)
	SetCellRequired(ctx context.Context, cellID uuid.UUID, required bool, expectedVersion int) (bool, error)
	UpsertRuleValues(ctx context.Context, values []model.MatrixRuleValue) error
	RequiredDocumentIDs(ctx context.Context, departmentID, positionID uuid.UUID) ([]uuid.UUID, error)

	DepartmentsRequiringDocument(ctx context.Context, documentID uuid.UUID) ([]model.Department, error)
	RequiredCellsByDocument(ctx context.Context, documentID uuid.UUID) ([]model.MatrixCell, error)
	RuleValuesByRule(ctx context.Context, ruleID uuid.UUID) ([]model.MatrixRuleValue, error)
	DeleteRuleValues(ctx context.Context, ids []uuid.UUID) error
}

type matrixRepository struct {
	db *gorm.DB
}

func NewMatrixRepository(db *gorm.DB) MatrixRepository {
	return &matrixRepository{db: db}
}

func (r *matrixRepository) ListRows(ctx context.Context, departmentID uuid.UUID) ([]model.MatrixRow, error) {
	var rows []model.MatrixRow
	err := GetDB(ctx, r.db).
		Preload("Position").
		Where("department_id = ?", departmentID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *matrixRepository) ListColumns(ctx context.Context, departmentID uuid.UUID) ([]model.MatrixColumn, error) {
	var cols []model.MatrixColumn
	err := GetDB(ctx, r.db).
		Preload("Document").
		Where("department_id = ?", departmentID).
		Order("created_at ASC").
		Find(&cols).Error
	return cols, err
}

func (r *matrixRepository) ListCells(ctx context.Context, departmentID uuid.UUID) ([]model.MatrixCell, error) {
	var cells []model.MatrixCell
	err := GetDB(ctx, r.db).
		Preload("RuleValues").
		Where("matrix_row_id IN (?)", r.rowIDs(ctx, departmentID)).
		Find(&cells).Error
	return cells, err
}

func (r *matrixRepository) FindRow(ctx context.Context, rowID uuid.UUID) (*model.MatrixRow, error) {
	var row model.MatrixRow
	if err := GetDB(ctx, r.db).Preload("Position").First(&row, "id = ?", rowID).Error; err != nil {
		return nil, translate(err)
	}
	return &row, nil
}

func (r *matrixRepository) FindRowByPosition(ctx context.Context, departmentID, positionID uuid.UUID) (*model.MatrixRow, error) {
	var row model.MatrixRow
	err := GetDB(ctx, r.db).
		Where("department_id = ? AND position_id = ?", departmentID, positionID).
		First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return &row, nil
}

func (r *matrixRepository) CountRowsAndColumns(ctx context.Context, departmentID uuid.UUID) (int64, int64, error) {
	var rows, cols int64
	db := GetDB(ctx, r.db)
	if err := db.Model(&model.MatrixRow{}).Where("department_id = ?", departmentID).Count(&rows).Error; err != nil {
		return 0, 0, err
	}
	if err := db.Model(&model.MatrixColumn{}).Where("department_id = ?", departmentID).Count(&cols).Error; err != nil {
		return 0, 0, err
	}
	return rows, cols, nil
}

func (r *matrixRepository) CreateRows(ctx context.Context, rows []model.MatrixRow) error {
	if len(rows) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Omit("Position", "Cells").Create(&rows).Error
}

func (r *matrixRepository) CreateColumns(ctx context.Context, cols []model.MatrixColumn) error {
	if len(cols) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Omit("Document").Create(&cols).Error
}

func (r *matrixRepository) CreateCells(ctx context.Context, cells []model.MatrixCell) error {
	if len(cells) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Omit("RuleValues").CreateInBatches(&cells, 200).Error
}

// rowIDs is a subquery selecting the row ids of a department.
func (r *matrixRepository) rowIDs(ctx context.Context, departmentID uuid.UUID) *gorm.DB {
	return GetDB(ctx, r.db).Model(&model.MatrixRow{}).Select("id").Where("department_id = ?", departmentID)
}

// deleteCells removes cells (and their rule values) matched by the given scope.
func (r *matrixRepository) deleteCells(db *gorm.DB, scope func(*gorm.DB) *gorm.DB) error {
	cellIDs := scope(db.Model(&model.MatrixCell{}).Select("id"))
	if err := db.Where("matrix_cell_id IN (?)", cellIDs).Delete(&model.MatrixRuleValue{}).Error; err != nil {
		return err
	}
	return scope(db).Delete(&model.MatrixCell{}).Error
}

func (r *matrixRepository) DeleteRows(ctx context.Context, departmentID uuid.UUID, positionIDs []uuid.UUID) (int64, error) {
	db := GetDB(ctx, r.db)
	rowIDs := db.Model(&model.MatrixRow{}).Select("id").
		Where("department_id = ? AND position_id IN ?", departmentID, positionIDs)
	if err := r.deleteCells(db, func(q *gorm.DB) *gorm.DB {
		return q.Where("matrix_row_id IN (?)", rowIDs)
	}); err != nil {
		return 0, err
	}
	res := db.Where("department_id = ? AND position_id IN ?", departmentID, positionIDs).Delete(&model.MatrixRow{})
	return res.RowsAffected, res.Error
}

func (r *matrixRepository) DeleteColumns(ctx context.Context, departmentID uuid.UUID, documentIDs []uuid.UUID) (int64, error) {
	db := GetDB(ctx, r.db)
	rowIDs := r.rowIDs(ctx, departmentID)
	if err := r.deleteCells(db, func(q *gorm.DB) *gorm.DB {
		return q.Where("matrix_row_id IN (?) AND document_id IN ?", rowIDs, documentIDs)
	}); err != nil {
		return 0, err
	}
	res := db.Where("department_id = ? AND document_id IN ?", departmentID, documentIDs).Delete(&model.MatrixColumn{})
	return res.RowsAffected, res.Error
}

func (r *matrixRepository) DeleteAllRows(ctx context.Context, departmentID uuid.UUID) (int64, error) {
	db := GetDB(ctx, r.db)
	rowIDs := r.rowIDs(ctx, departmentID)
	if err := r.deleteCells(db, func(q *gorm.DB) *gorm.DB {
		return q.Where("matrix_row_id IN (?)", rowIDs)
	}); err != nil {
		return 0, err
	}
	res := db.Where("department_id = ?", departmentID).Delete(&model.MatrixRow{})
	return res.RowsAffected, res.Error
}

func (r *matrixRepository) DeleteAllColumns(ctx context.Context, departmentID uuid.UUID) (int64, error) {
	db := GetDB(ctx, r.db)
	rowIDs := r.rowIDs(ctx, departmentID)
	if err := r.deleteCells(db, func(q *gorm.DB) *gorm.DB {
		return q.Where("matrix_row_id IN (?)", rowIDs)
	}); err != nil {
		return 0, err
	}
	res := db.Where("department_id = ?", departmentID).Delete(&model.MatrixColumn{})
	return res.RowsAffected, res.Error
}

// DeleteByPosition drops every matrix row of a position that is being deleted.
func (r *matrixRepository) DeleteByPosition(ctx context.Context, positionID uuid.UUID) error {
	db := GetDB(ctx, r.db)
	rowIDs := db.Model(&model.MatrixRow{}).Select("id").Where("position_id = ?", positionID)
	if err := r.deleteCells(db, func(q *gorm.DB) *gorm.DB {
		return q.Where("matrix_row_id IN (?)", rowIDs)
	}); err != nil {
		return err
	}
	return db.Where("position_id = ?", positionID).Delete(&model.MatrixRow{}).Error
}

// DeleteByDocument drops every matrix column and cell of a document that is being deleted.
func (r *matrixRepository) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := r.deleteCells(db, func(q *gorm.DB) *gorm.DB {
		return q.Where("document_id = ?", documentID)
	}); err != nil {
		return err
	}
	return db.Where("document_id = ?", documentID).Delete(&model.MatrixColumn{}).Error
}

func (r *matrixRepository) SetRowStatus(ctx context.Context, rowID uuid.UUID, status model.PositionStatus, reason *string) error {
	return GetDB(ctx, r.db).Model(&model.MatrixRow{}).Where("id = ?", rowID).
		Updates(map[string]interface{}{"status": status, "reject_reason": reason}).Error
}

func (r *matrixRepository) SetAllRowStatus(ctx context.Context, departmentID uuid.UUID, status model.PositionStatus, reason *string) error {
	return GetDB(ctx, r.db).Model(&model.MatrixRow{}).Where("department_id = ?", departmentID).
		Updates(map[string]interface{}{"status": status, "reject_reason": reason}).Error
}

func (r *matrixRepository) RowStatuses(ctx context.Context, departmentID uuid.UUID) ([]model.PositionStatus, error) {
	var statuses []model.PositionStatus
	err := GetDB(ctx, r.db).Model(&model.MatrixRow{}).
		Where("department_id = ?", departmentID).
		Pluck("status", &statuses).Error
	return statuses, err
}

func (r *matrixRepository) FindCell(ctx context.Context, cellID uuid.UUID) (*model.MatrixCell, error) {
	var cell model.MatrixCell
	if err := GetDB(ctx, r.db).Preload("RuleValues").First(&cell, "id = ?", cellID).Error; err != nil {
		return nil, translate(err)
	}
	return &cell, nil
}

func (r *matrixRepository) FindCellForUpdate(ctx context.Context, cellID uuid.UUID) (*model.MatrixCell, error) {
	var cell model.MatrixCell
	if err := forUpdate(GetDB(ctx, r.db)).First(&cell, "id = ?", cellID).Error; err != nil {
		return nil, translate(err)
	}
	return &cell, nil
}

// SetCellRequired flips the required flag when the stored version still matches.
// It reports false when another writer got there first.
func (r *matrixRepository) SetCellRequired(ctx context.Context, cellID uuid.UUID, required bool, expectedVersion int) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.MatrixCell{}).
		Where("id = ? AND version = ?", cellID, expectedVersion).
		Updates(map[string]interface{}{
			"required": required,
			"version":  gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *matrixRepository) UpsertRuleValues(ctx context.Context, values []model.MatrixRuleValue) error {
	if len(values) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "matrix_cell_id"}, {Name: "rule_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&values).Error
}

// RequiredDocumentIDs lists the documents marked required for a position in a department matrix.
func (r *matrixRepository) RequiredDocumentIDs(ctx context.Context, departmentID, positionID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := GetDB(ctx, r.db).Model(&model.MatrixCell{}).
		Joins("JOIN matrix_rows ON matrix_rows.id = matrix_cells.matrix_row_id").
		Where("matrix_rows.department_id = ? AND matrix_rows.position_id = ? AND matrix_cells.required = ?", departmentID, positionID, true).
		Pluck("matrix_cells.document_id", &ids).Error
	return ids, err
}

// DepartmentsRequiringDocument locks the departments whose matrix marks the document
// required in at least one cell.
func (r *matrixRepository) DepartmentsRequiringDocument(ctx context.Context, documentID uuid.UUID) ([]model.Department, error) {
	db := GetDB(ctx, r.db)
	deptIDs := db.Model(&model.MatrixRow{}).
		Select("DISTINCT matrix_rows.department_id").
		Joins("JOIN matrix_cells ON matrix_cells.matrix_row_id = matrix_rows.id").
		Where("matrix_cells.document_id = ? AND matrix_cells.required = ?", documentID, true)

	var depts []model.Department
	err := forUpdate(db).
		Where("id IN (?)", deptIDs).
		Order("name ASC").
		Find(&depts).Error
	return depts, err
}

func (r *matrixRepository) RequiredCellsByDocument(ctx context.Context, documentID uuid.UUID) ([]model.MatrixCell, error) {
	var cells []model.MatrixCell
	err := GetDB(ctx, r.db).
		Preload("RuleValues").
		Where("document_id = ? AND required = ?", documentID, true).
		Find(&cells).Error
	return cells, err
}

func (r *matrixRepository) RuleValuesByRule(ctx context.Context, ruleID uuid.UUID) ([]model.MatrixRuleValue, error) {
	var values []model.MatrixRuleValue
	err := GetDB(ctx, r.db).Where("rule_id = ?", ruleID).Find(&values).Error
	return values, err
}

func (r *matrixRepository) DeleteRuleValues(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Where("id IN ?", ids).Delete(&model.MatrixRuleValue{}).Error
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// MatrixRow pairs a department with one of its positions. Its ID is the row-level matrix id
// and it carries the position-level review status.
type MatrixRow struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DepartmentID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:ux_matrix_row" json:"department_id"`
	PositionID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:ux_matrix_row" json:"position_id"`
	Position     *Position      `gorm:"foreignKey:PositionID;constraint:OnDelete:CASCADE" json:"position,omitempty"`
	Status       PositionStatus `gorm:"type:varchar(20);not null;default:'Pending'" json:"status"`
	RejectReason *string        `gorm:"type:text" json:"reject_reason"`
	Cells        []MatrixCell   `gorm:"foreignKey:MatrixRowID;constraint:OnDelete:CASCADE" json:"cells,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// MatrixColumn places a document into a department's matrix.
type MatrixColumn struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DepartmentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_matrix_column" json:"department_id"`
	DocumentID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_matrix_column" json:"document_id"`
	Document     *Document `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"document,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// MatrixCell is the (row, document) intersection.
type MatrixCell struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	MatrixRowID uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:ux_matrix_cell" json:"matrix_row_id"`
	DocumentID  uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:ux_matrix_cell;index" json:"document_id"`
	Required    bool              `gorm:"not null;default:false" json:"required"`
	Version     int               `gorm:"not null;default:1" json:"version"`
	RuleValues  []MatrixRuleValue `gorm:"foreignKey:MatrixCellID;constraint:OnDelete:CASCADE" json:"rule_values"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// MatrixRuleValue is a filled rule for a cell.
type MatrixRuleValue struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MatrixCellID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_matrix_rule_value" json:"matrix_cell_id"`
	RuleID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_matrix_rule_value;index" json:"rule_id"`
	Value        string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt    time.Time `json:"updated_at"`
}

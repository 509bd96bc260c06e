package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ActionCreateDepartment = "CREATE_DEPARTMENT"
	ActionUpdateDepartment = "UPDATE_DEPARTMENT"
	ActionDeleteDepartment = "DELETE_DEPARTMENT"
	ActionCreatePosition   = "CREATE_POSITION"
	ActionUpdatePosition   = "UPDATE_POSITION"
	ActionDeletePosition   = "DELETE_POSITION"
	ActionCreateDocument   = "CREATE_DOCUMENT"
	ActionUpdateDocument   = "UPDATE_DOCUMENT"
	ActionDeleteDocument   = "DELETE_DOCUMENT"
	ActionCreateRule       = "CREATE_DOCUMENT_RULE"
	ActionUpdateRule       = "UPDATE_DOCUMENT_RULE"
	ActionDeleteRule       = "DELETE_DOCUMENT_RULE"
	ActionCreateBatch      = "CREATE_BATCH"
	ActionUpdateBatch      = "UPDATE_BATCH"
	ActionDeleteBatch      = "DELETE_BATCH"

	// Matrix workflow actions
	ActionMatrixAddRows         = "MATRIX_ADD_ROWS"
	ActionMatrixAddColumns      = "MATRIX_ADD_COLUMNS"
	ActionMatrixDeleteRow       = "MATRIX_DELETE_ROW"
	ActionMatrixDeleteColumn    = "MATRIX_DELETE_COLUMN"
	ActionMatrixDeleteAllRows   = "MATRIX_DELETE_ALL_ROWS"
	ActionMatrixDeleteAllCols   = "MATRIX_DELETE_ALL_COLUMNS"
	ActionMatrixClear           = "MATRIX_CLEAR"
	ActionMatrixToggleCell      = "MATRIX_TOGGLE_CELL"
	ActionMatrixSubmit          = "MATRIX_SUBMIT_FOR_REVIEW"
	ActionMatrixOpenReview      = "MATRIX_OPEN_REVIEW"
	ActionMatrixApprovePosition = "MATRIX_APPROVE_POSITION"
	ActionMatrixRejectPosition  = "MATRIX_REJECT_POSITION"
	ActionMatrixApprove         = "MATRIX_APPROVE_DEPARTMENT"
	ActionMatrixReject          = "MATRIX_REJECT_DEPARTMENT"
	ActionMatrixComplete        = "MATRIX_COMPLETE"

	// Trainee flow actions
	ActionCreateApplication = "CREATE_APPLICATION"
	ActionCreateSubmission  = "CREATE_SUBMISSION"
	ActionSubmitApplication = "SUBMIT_APPLICATION"
	ActionReviewSubmission  = "REVIEW_SUBMISSION"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID     `gorm:"type:uuid;index" json:"user_id"` // nil for system actions
	User       *User          `gorm:"foreignKey:UserID" json:"user"`
	Action     string         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string         `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string         `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    datatypes.JSON `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

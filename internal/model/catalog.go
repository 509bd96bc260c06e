package model

import (
	"time"

	"github.com/google/uuid"
)

// Department groups positions and owns one document-requirement matrix.
type Department struct {
	ID                 uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name               string       `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Description        string       `gorm:"type:text" json:"description"`
	ImageURL           string       `gorm:"type:text" json:"image_url"`
	MatrixStatus       MatrixStatus `gorm:"type:varchar(20);not null;default:'Undrafted';index" json:"matrix_status"`
	MatrixRejectReason *string      `gorm:"type:text" json:"matrix_reject_reason"`
	Positions          []Position   `gorm:"foreignKey:DepartmentID;constraint:OnDelete:CASCADE" json:"positions,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// Position belongs to exactly one department
type Position struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DepartmentID uuid.UUID `gorm:"type:uuid;not null;index" json:"department_id"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	Description  string    `gorm:"type:text" json:"description"`
	ImageURL     string    `gorm:"type:text" json:"image_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Rule value types
const (
	RuleValueText   = "TEXT"
	RuleValueNumber = "NUMBER"
	RuleValueDate   = "DATE"
)

// Document is a required-document type referenced by matrix columns.
type Document struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Rules       []DocumentRule `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"rules,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// DocumentRule is a named field that must be filled when its document is marked required.
type DocumentRule struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID  uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	ValueType   string    `gorm:"type:varchar(10);not null;default:'TEXT'" json:"value_type"` // TEXT, NUMBER, DATE
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Batch is an admission round
type Batch struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	StartDate time.Time `gorm:"type:date;not null;index" json:"start_date"`
	EndDate   time.Time `gorm:"type:date;not null;index" json:"end_date"`
	Active    bool      `gorm:"default:false;index" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Open reports whether the batch accepts applications at t. The window is
// compared on calendar days, taking "today" in t's own location.
func (b Batch) Open(t time.Time) bool {
	if !b.Active {
		return false
	}
	day := calendarDay(t)
	return !day.Before(calendarDay(b.StartDate)) && !day.After(calendarDay(b.EndDate))
}

// calendarDay maps t onto UTC midnight of the date it shows in its own location.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

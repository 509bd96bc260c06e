package model

import (
	"time"

	"github.com/google/uuid"
)

// Application status constants
const (
	ApplicationDraft     = "Draft"
	ApplicationSubmitted = "Submitted"
	ApplicationApproved  = "Approved"
	ApplicationRejected  = "Rejected"
)

// Submission / submitted-document status constants
const (
	SubmissionPending  = "Pending"
	SubmissionApproved = "Approved"
	SubmissionRejected = "Rejected"
)

// TraineeApplication is a trainee's document package for one position in one batch.
type TraineeApplication struct {
	ID           uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	TraineeID    uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:ux_application_trainee_batch" json:"trainee_id"`
	Trainee      *User               `gorm:"foreignKey:TraineeID" json:"trainee,omitempty"`
	BatchID      uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:ux_application_trainee_batch" json:"batch_id"`
	PositionID   uuid.UUID           `gorm:"type:uuid;not null;index" json:"position_id"`
	Position     *Position           `gorm:"foreignKey:PositionID" json:"position,omitempty"`
	DepartmentID uuid.UUID           `gorm:"type:uuid;not null;index" json:"department_id"`
	Status       string              `gorm:"type:varchar(20);not null;default:'Draft';index" json:"status"`
	SubmittedAt  *time.Time          `json:"submitted_at"`
	Documents    []SubmittedDocument `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"documents"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// SubmittedDocument tracks one required document of an application.
type SubmittedDocument struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ApplicationID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:ux_submitted_document" json:"application_id"`
	DocumentID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:ux_submitted_document" json:"document_id"`
	Document      *Document  `gorm:"foreignKey:DocumentID" json:"document,omitempty"`
	SubmissionID  *uuid.UUID `gorm:"type:uuid" json:"submission_id"`
	Status        string     `gorm:"type:varchar(20);not null;default:'Pending'" json:"status"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Submission is an uploaded file for a submitted document.
type Submission struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ApplicationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"application_id"`
	DocumentID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"document_id"`
	FileName      string     `gorm:"type:varchar(255);not null" json:"file_name"`
	StoragePath   string     `gorm:"type:text;not null" json:"-"`
	ContentType   string     `gorm:"type:varchar(100);not null" json:"content_type"`
	Size          int64      `gorm:"not null" json:"size"`
	Note          string     `gorm:"type:text" json:"note"`
	Status        string     `gorm:"type:varchar(20);not null;default:'Pending';index" json:"status"`
	ReviewNote    string     `gorm:"type:text" json:"review_note"`
	ReviewedBy    *uuid.UUID `gorm:"type:uuid" json:"reviewed_by"`
	ReviewedAt    *time.Time `json:"reviewed_at"`
	SupersededBy  *uuid.UUID `gorm:"type:uuid" json:"superseded_by"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Allowed upload content types mapped to file extensions.
var AllowedUploadTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

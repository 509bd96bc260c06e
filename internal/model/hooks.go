package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IDs are generated client side so the same models migrate on postgres and sqlite.

func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (m *User) BeforeCreate(*gorm.DB) error               { assignID(&m.ID); return nil }
func (m *RefreshToken) BeforeCreate(*gorm.DB) error       { assignID(&m.ID); return nil }
func (m *Role) BeforeCreate(*gorm.DB) error               { assignID(&m.ID); return nil }
func (m *Permission) BeforeCreate(*gorm.DB) error         { assignID(&m.ID); return nil }
func (m *AuditLog) BeforeCreate(*gorm.DB) error           { assignID(&m.ID); return nil }
func (m *Department) BeforeCreate(*gorm.DB) error         { assignID(&m.ID); return nil }
func (m *Position) BeforeCreate(*gorm.DB) error           { assignID(&m.ID); return nil }
func (m *Document) BeforeCreate(*gorm.DB) error           { assignID(&m.ID); return nil }
func (m *DocumentRule) BeforeCreate(*gorm.DB) error       { assignID(&m.ID); return nil }
func (m *Batch) BeforeCreate(*gorm.DB) error              { assignID(&m.ID); return nil }
func (m *MatrixRow) BeforeCreate(*gorm.DB) error          { assignID(&m.ID); return nil }
func (m *MatrixColumn) BeforeCreate(*gorm.DB) error       { assignID(&m.ID); return nil }
func (m *MatrixCell) BeforeCreate(*gorm.DB) error         { assignID(&m.ID); return nil }
func (m *MatrixRuleValue) BeforeCreate(*gorm.DB) error    { assignID(&m.ID); return nil }
func (m *TraineeApplication) BeforeCreate(*gorm.DB) error { assignID(&m.ID); return nil }
func (m *SubmittedDocument) BeforeCreate(*gorm.DB) error  { assignID(&m.ID); return nil }
func (m *Submission) BeforeCreate(*gorm.DB) error         { assignID(&m.ID); return nil }

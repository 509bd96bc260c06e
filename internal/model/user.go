package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role name constants. Roles are also rows in the roles table (see Role), these are the built-in ones.
const (
	RoleAdmin            = "admin"
	RoleHeadOfDepartment = "head_of_department"
	RoleTrainingDirector = "training_director"
	RoleTrainee          = "trainee"
	RoleStudent          = "student"
)

// AllRoles lists the built-in roles in seeding order.
var AllRoles = []string{RoleAdmin, RoleHeadOfDepartment, RoleTrainingDirector, RoleTrainee, RoleStudent}

// User represents an account of the academy portal
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email        string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password     string         `gorm:"type:varchar(255);not null" json:"-"`
	Role         string         `gorm:"type:varchar(50);not null;index" json:"role"`
	DepartmentID *uuid.UUID     `gorm:"type:uuid;index" json:"department_id"` // required for head_of_department
	Department   *Department    `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// RefreshToken stores long-lived tokens allowing users to request new access tokens
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Token     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ValidRole reports whether name is one of the built-in roles.
func ValidRole(name string) bool {
	for _, r := range AllRoles {
		if r == name {
			return true
		}
	}
	return false
}

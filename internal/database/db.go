package database

import (
	"time"

	"academy/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewConnection opens the postgres pool and migrates the schema.
func NewConnection(dsn string, log gormlogger.Interface) (*gorm.DB, error) {
	return Open(postgres.Open(dsn), log)
}

// Open initializes a gorm connection on any dialector, tunes the pool and runs AutoMigrate.
func Open(dialector gorm.Dialector, log gormlogger.Interface) (*gorm.DB, error) {
	cfg := &gorm.Config{}
	if log != nil {
		cfg.Logger = log
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate auto-migrates every model of the service.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Department{},
		&model.Position{},
		&model.User{},
		&model.RefreshToken{},
		&model.Role{},
		&model.Permission{},
		&model.AuditLog{},
		&model.Document{},
		&model.DocumentRule{},
		&model.Batch{},
		&model.MatrixRow{},
		&model.MatrixColumn{},
		&model.MatrixCell{},
		&model.MatrixRuleValue{},
		&model.TraineeApplication{},
		&model.SubmittedDocument{},
		&model.Submission{},
	)
}

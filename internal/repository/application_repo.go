package repository

import (
	"context"

	"academy/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApplicationFilter narrows the staff application listing
type ApplicationFilter struct {
	DepartmentID *uuid.UUID
	BatchID      *uuid.UUID
	TraineeID    *uuid.UUID
	Status       string
	Page         int
	Limit        int
}

type ApplicationRepository interface {
	Create(ctx context.Context, app *model.TraineeApplication) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.TraineeApplication, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.TraineeApplication, error)
	FindByTraineeAndBatch(ctx context.Context, traineeID, batchID uuid.UUID) (*model.TraineeApplication, error)
	List(ctx context.Context, filter ApplicationFilter) ([]model.TraineeApplication, int64, error)
	UpdateStatus(ctx context.Context, app *model.TraineeApplication) error
	CountByPosition(ctx context.Context, positionID uuid.UUID) (int64, error)
	CountByDocument(ctx context.Context, documentID uuid.UUID) (int64, error)

	CreateDocuments(ctx context.Context, docs []model.SubmittedDocument) error
	FindDocument(ctx context.Context, applicationID, documentID uuid.UUID) (*model.SubmittedDocument, error)
	AttachSubmission(ctx context.Context, submittedDocID, submissionID uuid.UUID) error
	SetDocumentStatus(ctx context.Context, applicationID, documentID uuid.UUID, status string) error
	CountCoverage(ctx context.Context, applicationID uuid.UUID) (submitted int64, total int64, err error)

	CreateSubmission(ctx context.Context, sub *model.Submission) error
	FindSubmission(ctx context.Context, id uuid.UUID) (*model.Submission, error)
	UpdateSubmission(ctx context.Context, sub *model.Submission) error
	SupersedeSubmission(ctx context.Context, id, newID uuid.UUID) error
	ListSubmissions(ctx context.Context, applicationID uuid.UUID) ([]model.Submission, error)
}

type applicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) Create(ctx context.Context, app *model.TraineeApplication) error {
	return GetDB(ctx, r.db).Omit("Trainee", "Position", "Documents").Create(app).Error
}

func (r *applicationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.TraineeApplication, error) {
	var app model.TraineeApplication
	err := GetDB(ctx, r.db).
		Preload("Trainee").
		Preload("Position").
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("updated_at ASC") }).
		Preload("Documents.Document").
		First(&app, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &app, nil
}

func (r *applicationRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.TraineeApplication, error) {
	var app model.TraineeApplication
	if err := forUpdate(GetDB(ctx, r.db)).First(&app, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &app, nil
}

func (r *applicationRepository) FindByTraineeAndBatch(ctx context.Context, traineeID, batchID uuid.UUID) (*model.TraineeApplication, error) {
	var app model.TraineeApplication
	err := GetDB(ctx, r.db).Where("trainee_id = ? AND batch_id = ?", traineeID, batchID).First(&app).Error
	if err != nil {
		return nil, translate(err)
	}
	return &app, nil
}

func (r *applicationRepository) List(ctx context.Context, filter ApplicationFilter) ([]model.TraineeApplication, int64, error) {
	var apps []model.TraineeApplication
	var total int64

	query := GetDB(ctx, r.db).Model(&model.TraineeApplication{})
	if filter.DepartmentID != nil {
		query = query.Where("department_id = ?", *filter.DepartmentID)
	}
	if filter.BatchID != nil {
		query = query.Where("batch_id = ?", *filter.BatchID)
	}
	if filter.TraineeID != nil {
		query = query.Where("trainee_id = ?", *filter.TraineeID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	query = query.Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (filter.Page - 1) * filter.Limit
	err := query.
		Preload("Trainee").
		Preload("Position").
		Preload("Documents").
		Order("created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&apps).Error
	if err != nil {
		return nil, 0, err
	}
	return apps, total, nil
}

func (r *applicationRepository) UpdateStatus(ctx context.Context, app *model.TraineeApplication) error {
	return GetDB(ctx, r.db).Model(&model.TraineeApplication{}).Where("id = ?", app.ID).
		Updates(map[string]interface{}{"status": app.Status, "submitted_at": app.SubmittedAt}).Error
}

func (r *applicationRepository) CountByPosition(ctx context.Context, positionID uuid.UUID) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.TraineeApplication{}).Where("position_id = ?", positionID).Count(&n).Error
	return n, err
}

func (r *applicationRepository) CountByDocument(ctx context.Context, documentID uuid.UUID) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.SubmittedDocument{}).Where("document_id = ?", documentID).Count(&n).Error
	return n, err
}

func (r *applicationRepository) CreateDocuments(ctx context.Context, docs []model.SubmittedDocument) error {
	if len(docs) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Omit("Document").Create(&docs).Error
}

func (r *applicationRepository) FindDocument(ctx context.Context, applicationID, documentID uuid.UUID) (*model.SubmittedDocument, error) {
	var doc model.SubmittedDocument
	err := GetDB(ctx, r.db).Where("application_id = ? AND document_id = ?", applicationID, documentID).First(&doc).Error
	if err != nil {
		return nil, translate(err)
	}
	return &doc, nil
}

func (r *applicationRepository) AttachSubmission(ctx context.Context, submittedDocID, submissionID uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.SubmittedDocument{}).Where("id = ?", submittedDocID).
		Updates(map[string]interface{}{"submission_id": submissionID, "status": model.SubmissionPending}).Error
}

func (r *applicationRepository) SetDocumentStatus(ctx context.Context, applicationID, documentID uuid.UUID, status string) error {
	return GetDB(ctx, r.db).Model(&model.SubmittedDocument{}).
		Where("application_id = ? AND document_id = ?", applicationID, documentID).
		Update("status", status).Error
}

// CountCoverage counts the application's documents that carry a submission against the total.
func (r *applicationRepository) CountCoverage(ctx context.Context, applicationID uuid.UUID) (int64, int64, error) {
	var submitted, total int64
	db := GetDB(ctx, r.db)
	if err := db.Model(&model.SubmittedDocument{}).Where("application_id = ?", applicationID).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err := db.Model(&model.SubmittedDocument{}).
		Where("application_id = ? AND submission_id IS NOT NULL", applicationID).
		Count(&submitted).Error
	if err != nil {
		return 0, 0, err
	}
	return submitted, total, nil
}

func (r *applicationRepository) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	return GetDB(ctx, r.db).Create(sub).Error
}

func (r *applicationRepository) FindSubmission(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	var sub model.Submission
	if err := GetDB(ctx, r.db).First(&sub, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (r *applicationRepository) UpdateSubmission(ctx context.Context, sub *model.Submission) error {
	return GetDB(ctx, r.db).Save(sub).Error
}

// SupersedeSubmission links an older upload to the one that replaced it.
func (r *applicationRepository) SupersedeSubmission(ctx context.Context, id, newID uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.Submission{}).Where("id = ?", id).
		Update("superseded_by", newID).Error
}

func (r *applicationRepository) ListSubmissions(ctx context.Context, applicationID uuid.UUID) ([]model.Submission, error) {
	var subs []model.Submission
	err := GetDB(ctx, r.db).Where("application_id = ?", applicationID).Order("created_at DESC").Find(&subs).Error
	return subs, err
}

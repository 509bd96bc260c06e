package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"academy/internal/export"
	"academy/internal/model"
	"academy/internal/notify"
	"academy/internal/repository"
	"academy/internal/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// --- DTOs ---

type CreateApplicationRequest struct {
	PositionID string `json:"position_id" binding:"required,uuid"`
	BatchID    string `json:"batch_id" binding:"omitempty,uuid"` // defaults to the active batch
}

type ReviewSubmissionRequest struct {
	Approve *bool  `json:"approve" binding:"required"`
	Note    string `json:"note"`
}

// UploadInput is a file received for a submission.
type UploadInput struct {
	FileName string
	Size     int64
	Content  io.Reader
	Note     string
}

type SubmittedDocumentResponse struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	SubmissionID *string `json:"submission_id"`
	Status       string  `json:"status"`
}

type SubmissionResponse struct {
	ID            string  `json:"id"`
	ApplicationID string  `json:"application_id"`
	DocumentID    string  `json:"document_id"`
	FileName      string  `json:"file_name"`
	ContentType   string  `json:"content_type"`
	Size          int64   `json:"size"`
	Note          string  `json:"note"`
	Status        string  `json:"status"`
	ReviewNote    string  `json:"review_note"`
	ReviewedAt    *string `json:"reviewed_at"`
	SupersededBy  *string `json:"superseded_by"`
	CreatedAt     string  `json:"created_at"`
}

type ApplicationResponse struct {
	ID             string                      `json:"id"`
	TraineeID      string                      `json:"trainee_id"`
	TraineeName    string                      `json:"trainee_name"`
	PositionID     string                      `json:"position_id"`
	PositionName   string                      `json:"position_name"`
	DepartmentID   string                      `json:"department_id"`
	BatchID        string                      `json:"batch_id"`
	Status         string                      `json:"status"`
	SubmittedAt    *string                     `json:"submitted_at"`
	SubmittedCount int                         `json:"submitted_count"`
	TotalCount     int                         `json:"total_count"`
	Documents      []SubmittedDocumentResponse `json:"documents"`
	CreatedAt      string                      `json:"created_at"`
}

type ApplicationListFilter struct {
	DepartmentID string
	BatchID      string
	Status       string
	Page         int
	Limit        int
}

// --- Interface ---

type ApplicationService interface {
	CreateApplication(ctx context.Context, actor Actor, req CreateApplicationRequest) (*ApplicationResponse, error)
	GetApplication(ctx context.Context, actor Actor, id string) (*ApplicationResponse, error)
	ListMyApplications(ctx context.Context, actor Actor, page, limit int) ([]ApplicationResponse, int64, error)
	ListApplications(ctx context.Context, actor Actor, filter ApplicationListFilter) ([]ApplicationResponse, int64, error)
	CreateSubmission(ctx context.Context, actor Actor, applicationID, documentID string, in UploadInput) (*SubmissionResponse, error)
	ListSubmissions(ctx context.Context, actor Actor, applicationID string) ([]SubmissionResponse, error)
	OpenSubmissionFile(ctx context.Context, actor Actor, submissionID string) (io.ReadCloser, *SubmissionResponse, error)
	SubmitApplication(ctx context.Context, actor Actor, applicationID string) (*ApplicationResponse, error)
	ReviewSubmission(ctx context.Context, actor Actor, submissionID string, req ReviewSubmissionRequest) (*SubmissionResponse, error)
	ApplicationReceiptPDF(ctx context.Context, actor Actor, applicationID string) ([]byte, string, error)
}

type ApplicationDeps struct {
	Tx             repository.TransactionManager
	Apps           repository.ApplicationRepository
	Batches        repository.BatchRepository
	Depts          repository.DepartmentRepository
	Positions      repository.PositionRepository
	Matrix         repository.MatrixRepository
	Users          repository.UserRepository
	Audit          repository.AuditRepository
	Store          storage.Store
	MaxUploadBytes int64
	PublicBaseURL  string
	Notifier       notify.Notifier
	Log            logrus.FieldLogger
}

type applicationService struct {
	tx        repository.TransactionManager
	apps      repository.ApplicationRepository
	batches   repository.BatchRepository
	depts     repository.DepartmentRepository
	positions repository.PositionRepository
	matrix    repository.MatrixRepository
	users     repository.UserRepository
	audit     repository.AuditRepository
	store     storage.Store
	maxBytes  int64
	baseURL   string
	notifier  notify.Notifier
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewApplicationService(d ApplicationDeps) ApplicationService {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &applicationService{
		tx:        d.Tx,
		apps:      d.Apps,
		batches:   d.Batches,
		depts:     d.Depts,
		positions: d.Positions,
		matrix:    d.Matrix,
		users:     d.Users,
		audit:     d.Audit,
		store:     d.Store,
		maxBytes:  d.MaxUploadBytes,
		baseURL:   strings.TrimRight(d.PublicBaseURL, "/"),
		notifier:  d.Notifier,
		log:       log.WithField("component", "applications"),
		now:       time.Now,
	}
}

func isApplicant(actor Actor) bool {
	return actor.Is(model.RoleTrainee, model.RoleStudent)
}

// canView lets the owner, staff of the application's department, directors and admins read it.
func canView(actor Actor, app *model.TraineeApplication) bool {
	switch {
	case app.TraineeID == actor.UserID:
		return true
	case actor.Is(model.RoleAdmin, model.RoleTrainingDirector):
		return true
	default:
		return actor.HeadOf(app.DepartmentID)
	}
}

// --- Implementation ---

func (s *applicationService) CreateApplication(ctx context.Context, actor Actor, req CreateApplicationRequest) (*ApplicationResponse, error) {
	if !isApplicant(actor) {
		return nil, fmt.Errorf("%w: only trainees and students can apply", ErrForbidden)
	}
	positionID, err := parseID("position", req.PositionID)
	if err != nil {
		return nil, err
	}

	var appID uuid.UUID
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var batch *model.Batch
		if req.BatchID != "" {
			batchID, err := parseID("batch", req.BatchID)
			if err != nil {
				return err
			}
			if batch, err = s.batches.FindByID(txCtx, batchID); err != nil {
				return notFound("batch", err)
			}
		} else if batch, err = s.batches.FindActive(txCtx); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return validationf("no admission batch is open")
			}
			return fmt.Errorf("failed to load active batch: %w", err)
		}
		if !batch.Open(s.now()) {
			return validationf("batch %s is not open for applications", batch.Name)
		}

		pos, err := s.positions.FindByID(txCtx, positionID)
		if err != nil {
			return notFound("position", err)
		}
		dept, err := s.depts.FindByID(txCtx, pos.DepartmentID)
		if err != nil {
			return notFound("department", err)
		}
		if dept.MatrixStatus != model.MatrixApproved && dept.MatrixStatus != model.MatrixComplete {
			return validationf("the document matrix of %s is %s, applications open once it is approved", dept.Name, dept.MatrixStatus)
		}
		if _, err := s.matrix.FindRowByPosition(txCtx, dept.ID, pos.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return validationf("position %s is not part of the %s matrix", pos.Name, dept.Name)
			}
			return fmt.Errorf("failed to load matrix row: %w", err)
		}

		if _, err := s.apps.FindByTraineeAndBatch(txCtx, actor.UserID, batch.ID); err == nil {
			return conflictf("you already applied in batch %s", batch.Name)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to check existing application: %w", err)
		}

		required, err := s.matrix.RequiredDocumentIDs(txCtx, dept.ID, pos.ID)
		if err != nil {
			return fmt.Errorf("failed to resolve required documents: %w", err)
		}

		app := model.TraineeApplication{
			TraineeID:    actor.UserID,
			BatchID:      batch.ID,
			PositionID:   pos.ID,
			DepartmentID: dept.ID,
			Status:       model.ApplicationDraft,
		}
		if err := s.apps.Create(txCtx, &app); err != nil {
			return fmt.Errorf("failed to create application: %w", err)
		}
		docs := make([]model.SubmittedDocument, 0, len(required))
		for _, docID := range required {
			docs = append(docs, model.SubmittedDocument{
				ApplicationID: app.ID,
				DocumentID:    docID,
				Status:        model.SubmissionPending,
			})
		}
		if err := s.apps.CreateDocuments(txCtx, docs); err != nil {
			return fmt.Errorf("failed to create required documents: %w", err)
		}
		appID = app.ID
		return writeAudit(txCtx, s.audit, actor, model.ActionCreateApplication, app.ID.String(), pos.Name,
			map[string]interface{}{"batch": batch.Name, "required_documents": len(docs)})
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, appID)
}

func (s *applicationService) load(ctx context.Context, id uuid.UUID) (*ApplicationResponse, error) {
	app, err := s.apps.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("application", err)
	}
	res := toApplicationResponse(*app)
	return &res, nil
}

func (s *applicationService) GetApplication(ctx context.Context, actor Actor, id string) (*ApplicationResponse, error) {
	appID, err := parseID("application", id)
	if err != nil {
		return nil, err
	}
	app, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		return nil, notFound("application", err)
	}
	if !canView(actor, app) {
		return nil, fmt.Errorf("%w: application belongs to another user", ErrForbidden)
	}
	res := toApplicationResponse(*app)
	return &res, nil
}

func (s *applicationService) ListMyApplications(ctx context.Context, actor Actor, page, limit int) ([]ApplicationResponse, int64, error) {
	traineeID := actor.UserID
	return s.list(ctx, repository.ApplicationFilter{TraineeID: &traineeID, Page: page, Limit: limit})
}

// ListApplications is the staff listing; heads of department only see their own department.
func (s *applicationService) ListApplications(ctx context.Context, actor Actor, filter ApplicationListFilter) ([]ApplicationResponse, int64, error) {
	f := repository.ApplicationFilter{Status: filter.Status, Page: filter.Page, Limit: filter.Limit}
	if filter.DepartmentID != "" {
		id, err := parseID("department", filter.DepartmentID)
		if err != nil {
			return nil, 0, err
		}
		f.DepartmentID = &id
	}
	if filter.BatchID != "" {
		id, err := parseID("batch", filter.BatchID)
		if err != nil {
			return nil, 0, err
		}
		f.BatchID = &id
	}

	switch {
	case actor.Is(model.RoleAdmin, model.RoleTrainingDirector):
	case actor.Is(model.RoleHeadOfDepartment) && actor.DepartmentID != nil:
		if f.DepartmentID != nil && *f.DepartmentID != *actor.DepartmentID {
			return nil, 0, fmt.Errorf("%w: applications of another department", ErrForbidden)
		}
		f.DepartmentID = actor.DepartmentID
	default:
		return nil, 0, fmt.Errorf("%w: staff only", ErrForbidden)
	}
	return s.list(ctx, f)
}

func (s *applicationService) list(ctx context.Context, f repository.ApplicationFilter) ([]ApplicationResponse, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	apps, total, err := s.apps.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch applications: %w", err)
	}
	res := make([]ApplicationResponse, 0, len(apps))
	for _, a := range apps {
		res = append(res, toApplicationResponse(a))
	}
	return res, total, nil
}

// sniffContentType reads the leading bytes of the upload and rejects unsupported types.
func sniffContentType(r io.Reader) (string, io.Reader, error) {
	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(head) == 0 {
		return "", nil, validationf("file is empty")
	}
	ct := http.DetectContentType(head)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	if _, ok := model.AllowedUploadTypes[ct]; !ok {
		return "", nil, validationf("unsupported file type %s, upload a PDF, JPG or PNG", ct)
	}
	return ct, br, nil
}

func (s *applicationService) CreateSubmission(ctx context.Context, actor Actor, applicationID, documentID string, in UploadInput) (*SubmissionResponse, error) {
	appID, err := parseID("application", applicationID)
	if err != nil {
		return nil, err
	}
	docID, err := parseID("document", documentID)
	if err != nil {
		return nil, err
	}
	if s.maxBytes > 0 && in.Size > s.maxBytes {
		return nil, validationf("file is %d bytes, the limit is %d", in.Size, s.maxBytes)
	}
	contentType, content, err := sniffContentType(in.Content)
	if err != nil {
		return nil, err
	}

	sub := model.Submission{
		ID:            uuid.New(),
		ApplicationID: appID,
		DocumentID:    docID,
		FileName:      strings.TrimSpace(in.FileName),
		ContentType:   contentType,
		Note:          in.Note,
		Status:        model.SubmissionPending,
	}
	if sub.FileName == "" {
		sub.FileName = "upload" + model.AllowedUploadTypes[contentType]
	}
	sub.StoragePath = fmt.Sprintf("applications/%s/%s%s", appID, sub.ID, model.AllowedUploadTypes[contentType])

	stored := false
	var replacedPath string
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		app, err := s.apps.FindByIDForUpdate(txCtx, appID)
		if err != nil {
			return notFound("application", err)
		}
		if app.TraineeID != actor.UserID {
			return fmt.Errorf("%w: application belongs to another user", ErrForbidden)
		}
		if app.Status != model.ApplicationDraft && app.Status != model.ApplicationRejected {
			return conflictf("application is %s, uploads are closed", app.Status)
		}
		subDoc, err := s.apps.FindDocument(txCtx, appID, docID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return validationf("document is not required for this application")
			}
			return fmt.Errorf("failed to load required document: %w", err)
		}

		size, err := s.store.Save(txCtx, sub.StoragePath, content)
		if err != nil {
			if errors.Is(err, storage.ErrTooLarge) {
				return validationf("file exceeds the %d byte limit", s.maxBytes)
			}
			return fmt.Errorf("failed to store file: %w", err)
		}
		stored = true
		sub.Size = size

		if err := s.apps.CreateSubmission(txCtx, &sub); err != nil {
			return fmt.Errorf("failed to create submission: %w", err)
		}
		if err := s.apps.AttachSubmission(txCtx, subDoc.ID, sub.ID); err != nil {
			return fmt.Errorf("failed to attach submission: %w", err)
		}
		details := map[string]interface{}{"application_id": appID.String(), "document_id": docID.String(), "size": size}
		if subDoc.SubmissionID != nil {
			old, err := s.apps.FindSubmission(txCtx, *subDoc.SubmissionID)
			if err != nil {
				return notFound("previous submission", err)
			}
			if err := s.apps.SupersedeSubmission(txCtx, old.ID, sub.ID); err != nil {
				return fmt.Errorf("failed to supersede submission: %w", err)
			}
			replacedPath = old.StoragePath
			details["replaces"] = old.ID.String()
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionCreateSubmission, sub.ID.String(), sub.FileName, details)
	})
	if err != nil {
		if stored {
			if rmErr := s.store.Remove(sub.StoragePath); rmErr != nil {
				s.log.WithError(rmErr).WithField("path", sub.StoragePath).Warn("failed to remove orphaned upload")
			}
		}
		return nil, err
	}
	if replacedPath != "" {
		if err := s.store.Remove(replacedPath); err != nil {
			s.log.WithError(err).WithField("path", replacedPath).Warn("failed to remove replaced upload")
		}
	}

	res := toSubmissionResponse(sub)
	return &res, nil
}

func (s *applicationService) ListSubmissions(ctx context.Context, actor Actor, applicationID string) ([]SubmissionResponse, error) {
	appID, err := parseID("application", applicationID)
	if err != nil {
		return nil, err
	}
	app, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		return nil, notFound("application", err)
	}
	if !canView(actor, app) {
		return nil, fmt.Errorf("%w: application belongs to another user", ErrForbidden)
	}
	subs, err := s.apps.ListSubmissions(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch submissions: %w", err)
	}
	res := make([]SubmissionResponse, 0, len(subs))
	for _, sub := range subs {
		res = append(res, toSubmissionResponse(sub))
	}
	return res, nil
}

// OpenSubmissionFile returns the stored file. The caller closes the reader.
func (s *applicationService) OpenSubmissionFile(ctx context.Context, actor Actor, submissionID string) (io.ReadCloser, *SubmissionResponse, error) {
	subID, err := parseID("submission", submissionID)
	if err != nil {
		return nil, nil, err
	}
	sub, err := s.apps.FindSubmission(ctx, subID)
	if err != nil {
		return nil, nil, notFound("submission", err)
	}
	if sub.SupersededBy != nil {
		return nil, nil, fmt.Errorf("%w: submission was replaced by %s", ErrNotFound, sub.SupersededBy)
	}
	app, err := s.apps.FindByID(ctx, sub.ApplicationID)
	if err != nil {
		return nil, nil, notFound("application", err)
	}
	if !canView(actor, app) {
		return nil, nil, fmt.Errorf("%w: application belongs to another user", ErrForbidden)
	}
	rc, err := s.store.Open(sub.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open stored file: %w", err)
	}
	res := toSubmissionResponse(*sub)
	return rc, &res, nil
}

// SubmitApplication succeeds only when every required document has an upload.
func (s *applicationService) SubmitApplication(ctx context.Context, actor Actor, applicationID string) (*ApplicationResponse, error) {
	appID, err := parseID("application", applicationID)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		app, err := s.apps.FindByIDForUpdate(txCtx, appID)
		if err != nil {
			return notFound("application", err)
		}
		if app.TraineeID != actor.UserID {
			return fmt.Errorf("%w: application belongs to another user", ErrForbidden)
		}
		if app.Status != model.ApplicationDraft && app.Status != model.ApplicationRejected {
			return conflictf("application is already %s", app.Status)
		}
		submitted, total, err := s.apps.CountCoverage(txCtx, appID)
		if err != nil {
			return fmt.Errorf("failed to count documents: %w", err)
		}
		if submitted != total {
			return validationf("%d of %d required documents uploaded", submitted, total)
		}

		now := s.now()
		app.Status = model.ApplicationSubmitted
		app.SubmittedAt = &now
		if err := s.apps.UpdateStatus(txCtx, app); err != nil {
			return fmt.Errorf("failed to submit application: %w", err)
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionSubmitApplication, app.ID.String(), "",
			map[string]interface{}{"documents": total})
	})
	if err != nil {
		return nil, err
	}

	res, err := s.load(ctx, appID)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"application": res.ID, "trainee": res.TraineeName}).Info("application submitted")
	s.notifyHeads(ctx, res)
	return res, nil
}

func (s *applicationService) notifyHeads(ctx context.Context, app *ApplicationResponse) {
	if s.notifier == nil || s.users == nil {
		return
	}
	deptID, err := uuid.Parse(app.DepartmentID)
	if err != nil {
		return
	}
	heads, err := s.users.ListByDepartmentAndRole(ctx, deptID, model.RoleHeadOfDepartment)
	if err != nil {
		s.log.WithError(err).Warn("failed to resolve notification recipients")
		return
	}
	to := make([]string, 0, len(heads))
	for _, u := range heads {
		to = append(to, u.Email)
	}
	notify.Dispatch(s.notifier, s.log, notify.Message{
		To:      to,
		Subject: fmt.Sprintf("New application for %s", app.PositionName),
		Text:    fmt.Sprintf("%s submitted %d document(s) for %s.", app.TraineeName, app.TotalCount, app.PositionName),
	})
}

// ReviewSubmission decides a pending upload and rolls the decision up to the application:
// a rejected document sends a submitted application back to Rejected, all documents approved
// approves it.
func (s *applicationService) ReviewSubmission(ctx context.Context, actor Actor, submissionID string, req ReviewSubmissionRequest) (*SubmissionResponse, error) {
	subID, err := parseID("submission", submissionID)
	if err != nil {
		return nil, err
	}
	approve := req.Approve != nil && *req.Approve
	if !approve && blank(req.Note) {
		return nil, validationf("a note is required to reject a document")
	}

	var sub *model.Submission
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		sub, err = s.apps.FindSubmission(txCtx, subID)
		if err != nil {
			return notFound("submission", err)
		}
		app, err := s.apps.FindByIDForUpdate(txCtx, sub.ApplicationID)
		if err != nil {
			return notFound("application", err)
		}
		if !actor.HeadOf(app.DepartmentID) {
			return fmt.Errorf("%w: only the head of the department can review its documents", ErrForbidden)
		}
		if sub.Status != model.SubmissionPending {
			return conflictf("submission is already %s", sub.Status)
		}
		current, err := s.apps.FindDocument(txCtx, app.ID, sub.DocumentID)
		if err != nil {
			return notFound("required document", err)
		}
		if current.SubmissionID == nil || *current.SubmissionID != sub.ID {
			return conflictf("submission was replaced by a newer upload")
		}

		now := s.now()
		sub.Status = model.SubmissionRejected
		if approve {
			sub.Status = model.SubmissionApproved
		}
		sub.ReviewNote = strings.TrimSpace(req.Note)
		sub.ReviewedBy = actor.userRef()
		sub.ReviewedAt = &now
		if err := s.apps.UpdateSubmission(txCtx, sub); err != nil {
			return fmt.Errorf("failed to update submission: %w", err)
		}
		if err := s.apps.SetDocumentStatus(txCtx, app.ID, sub.DocumentID, sub.Status); err != nil {
			return fmt.Errorf("failed to update required document: %w", err)
		}

		if app.Status == model.ApplicationSubmitted {
			next, err := s.rollUp(txCtx, app.ID, sub.Status)
			if err != nil {
				return err
			}
			if next != "" {
				app.Status = next
				if err := s.apps.UpdateStatus(txCtx, app); err != nil {
					return fmt.Errorf("failed to update application: %w", err)
				}
			}
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionReviewSubmission, sub.ID.String(), sub.FileName,
			map[string]interface{}{"status": sub.Status, "note": sub.ReviewNote})
	})
	if err != nil {
		return nil, err
	}
	res := toSubmissionResponse(*sub)
	return &res, nil
}

// rollUp returns the application status implied by its documents, or "" to keep it.
func (s *applicationService) rollUp(ctx context.Context, appID uuid.UUID, decided string) (string, error) {
	if decided == model.SubmissionRejected {
		return model.ApplicationRejected, nil
	}
	app, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		return "", notFound("application", err)
	}
	for _, d := range app.Documents {
		if d.Status != model.SubmissionApproved {
			return "", nil
		}
	}
	return model.ApplicationApproved, nil
}

func (s *applicationService) ApplicationReceiptPDF(ctx context.Context, actor Actor, applicationID string) ([]byte, string, error) {
	appID, err := parseID("application", applicationID)
	if err != nil {
		return nil, "", err
	}
	app, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		return nil, "", notFound("application", err)
	}
	if !canView(actor, app) {
		return nil, "", fmt.Errorf("%w: application belongs to another user", ErrForbidden)
	}
	dept, err := s.depts.FindByID(ctx, app.DepartmentID)
	if err != nil {
		return nil, "", notFound("department", err)
	}

	receipt := export.Receipt{
		ApplicationID: app.ID.String(),
		Department:    dept.Name,
		Status:        app.Status,
		SubmittedAt:   app.SubmittedAt,
		VerifyURL:     fmt.Sprintf("%s/applications/%s", s.baseURL, app.ID),
	}
	if app.Trainee != nil {
		receipt.Trainee = app.Trainee.Username
	}
	if app.Position != nil {
		receipt.Position = app.Position.Name
	}
	for _, d := range app.Documents {
		line := export.ReceiptLine{Status: d.Status, Uploaded: d.SubmissionID != nil}
		if d.Document != nil {
			line.Document = d.Document.Name
		}
		receipt.Documents = append(receipt.Documents, line)
	}

	pdf, err := export.ReceiptPDF(receipt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to render receipt: %w", err)
	}
	return pdf, fmt.Sprintf("application-%s.pdf", app.ID), nil
}

// --- Helpers ---

func toApplicationResponse(a model.TraineeApplication) ApplicationResponse {
	res := ApplicationResponse{
		ID:           a.ID.String(),
		TraineeID:    a.TraineeID.String(),
		PositionID:   a.PositionID.String(),
		DepartmentID: a.DepartmentID.String(),
		BatchID:      a.BatchID.String(),
		Status:       a.Status,
		TotalCount:   len(a.Documents),
		Documents:    make([]SubmittedDocumentResponse, 0, len(a.Documents)),
		CreatedAt:    a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if a.Trainee != nil {
		res.TraineeName = a.Trainee.Username
	}
	if a.Position != nil {
		res.PositionName = a.Position.Name
	}
	if a.SubmittedAt != nil {
		ts := a.SubmittedAt.Format("2006-01-02T15:04:05Z07:00")
		res.SubmittedAt = &ts
	}
	for _, d := range a.Documents {
		item := SubmittedDocumentResponse{DocumentID: d.DocumentID.String(), Status: d.Status}
		if d.Document != nil {
			item.DocumentName = d.Document.Name
		}
		if d.SubmissionID != nil {
			id := d.SubmissionID.String()
			item.SubmissionID = &id
			res.SubmittedCount++
		}
		res.Documents = append(res.Documents, item)
	}
	return res
}

func toSubmissionResponse(s model.Submission) SubmissionResponse {
	res := SubmissionResponse{
		ID:            s.ID.String(),
		ApplicationID: s.ApplicationID.String(),
		DocumentID:    s.DocumentID.String(),
		FileName:      s.FileName,
		ContentType:   s.ContentType,
		Size:          s.Size,
		Note:          s.Note,
		Status:        s.Status,
		ReviewNote:    s.ReviewNote,
		CreatedAt:     s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if s.ReviewedAt != nil {
		ts := s.ReviewedAt.Format("2006-01-02T15:04:05Z07:00")
		res.ReviewedAt = &ts
	}
	if s.SupersededBy != nil {
		id := s.SupersededBy.String()
		res.SupersededBy = &id
	}
	return res
}

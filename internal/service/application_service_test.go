package service

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"academy/internal/model"
	"academy/internal/storage"
)

const samplePDF = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n"

func newApplicationService(t *testing.T, f *fixture) ApplicationService {
	t.Helper()
	store, err := storage.NewLocal(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return NewApplicationService(ApplicationDeps{
		Tx:             f.tx,
		Apps:           f.apps,
		Batches:        f.batches,
		Depts:          f.depts,
		Positions:      f.positions,
		Matrix:         f.matrix,
		Users:          f.users,
		Audit:          f.audit,
		Store:          store,
		MaxUploadBytes: 1 << 20,
		PublicBaseURL:  "https://academy.example/",
	})
}

func (f *fixture) openBatch() *model.Batch {
	f.t.Helper()
	today := time.Now().UTC().Truncate(24 * time.Hour)
	b := &model.Batch{Name: "Autumn intake", StartDate: today.AddDate(0, 0, -1), EndDate: today.AddDate(0, 1, 0), Active: true}
	if err := f.batches.Create(f.ctx, b); err != nil {
		f.t.Fatalf("create batch: %v", err)
	}
	return b
}

func (f *fixture) trainee(name string) Actor {
	f.t.Helper()
	u := &model.User{Username: name, Email: name + "@academy.test", Password: "x", Role: model.RoleTrainee}
	if err := f.users.Create(f.ctx, u); err != nil {
		f.t.Fatalf("create user: %v", err)
	}
	return Actor{UserID: u.ID, Role: u.Role}
}

func pdfUpload() UploadInput {
	return UploadInput{FileName: "medical.pdf", Size: int64(len(samplePDF)), Content: strings.NewReader(samplePDF)}
}

func TestCreateApplicationPreconditions(t *testing.T) {
	f := newFixture(t)
	apps := newApplicationService(t, f)
	dept, p1, _, _ := buildMatrix(t, f)
	trainee := f.trainee("jdoe")
	req := CreateApplicationRequest{PositionID: p1.ID.String()}

	_, err := apps.CreateApplication(f.ctx, trainee, req)
	mustErr(t, err, ErrValidation) // no open batch

	f.openBatch()
	_, err = apps.CreateApplication(f.ctx, trainee, req)
	mustErr(t, err, ErrValidation) // matrix only drafted

	if _, err := f.svc.ApproveDepartment(f.ctx, director(), dept.ID.String()); err != nil {
		t.Fatalf("ApproveDepartment: %v", err)
	}

	_, err = apps.CreateApplication(f.ctx, headOf(dept), req)
	mustErr(t, err, ErrForbidden)

	app, err := apps.CreateApplication(f.ctx, trainee, req)
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	if app.Status != model.ApplicationDraft || app.TotalCount != 1 || app.SubmittedCount != 0 {
		t.Fatalf("application = %+v", app)
	}

	_, err = apps.CreateApplication(f.ctx, trainee, req)
	mustErr(t, err, ErrConflict)
}

func TestCreateApplicationUsesLocalCalendarDay(t *testing.T) {
	f := newFixture(t)
	apps := newApplicationService(t, f)
	dept, p1, _, _ := buildMatrix(t, f)
	if _, err := f.svc.ApproveDepartment(f.ctx, director(), dept.ID.String()); err != nil {
		t.Fatalf("ApproveDepartment: %v", err)
	}
	batch := &model.Batch{
		Name:      "September intake",
		StartDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
		Active:    true,
	}
	if err := f.batches.Create(f.ctx, batch); err != nil {
		t.Fatalf("create batch: %v", err)
	}

	ict := time.FixedZone("ICT", 7*60*60)
	est := time.FixedZone("EST", -5*60*60)
	tests := []struct {
		name string
		now  time.Time
		open bool
	}{
		{"first day early morning east of UTC", time.Date(2026, 9, 1, 3, 0, 0, 0, ict), true},
		{"evening before start east of UTC", time.Date(2026, 8, 31, 23, 0, 0, 0, ict), false},
		{"last day late evening east of UTC", time.Date(2026, 9, 30, 23, 30, 0, 0, ict), true},
		{"day after end early morning east of UTC", time.Date(2026, 10, 1, 5, 0, 0, 0, ict), false},
		{"last day evening west of UTC", time.Date(2026, 9, 30, 20, 0, 0, 0, est), true},
		{"day after end west of UTC", time.Date(2026, 10, 1, 1, 0, 0, 0, est), false},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := tt.now
			apps.(*applicationService).now = func() time.Time { return now }
			trainee := f.trainee(fmt.Sprintf("cadet%d", i))

			_, err := apps.CreateApplication(f.ctx, trainee, CreateApplicationRequest{PositionID: p1.ID.String(), BatchID: batch.ID.String()})
			if tt.open && err != nil {
				t.Fatalf("CreateApplication at %s: %v", now, err)
			}
			if !tt.open {
				mustErr(t, err, ErrValidation)
			}
		})
	}
}

func TestSubmissionFlow(t *testing.T) {
	f := newFixture(t)
	apps := newApplicationService(t, f)
	dept, p1, _, m := buildMatrix(t, f)
	f.svc.ApproveDepartment(f.ctx, director(), dept.ID.String())
	f.openBatch()
	trainee := f.trainee("jdoe")
	docID := m.Columns[0].DocumentID

	app, err := apps.CreateApplication(f.ctx, trainee, CreateApplicationRequest{PositionID: p1.ID.String()})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}

	_, err = apps.SubmitApplication(f.ctx, trainee, app.ID)
	mustErr(t, err, ErrValidation)
	if !strings.Contains(err.Error(), "0 of 1") {
		t.Errorf("coverage error should report both counts, got %q", err)
	}

	_, err = apps.CreateSubmission(f.ctx, trainee, app.ID, docID, UploadInput{
		FileName: "notes.txt", Size: 5, Content: strings.NewReader("hello"),
	})
	mustErr(t, err, ErrValidation)

	other := f.trainee("intruder")
	_, err = apps.CreateSubmission(f.ctx, other, app.ID, docID, pdfUpload())
	mustErr(t, err, ErrForbidden)

	sub, err := apps.CreateSubmission(f.ctx, trainee, app.ID, docID, pdfUpload())
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	if sub.ContentType != "application/pdf" || sub.Status != model.SubmissionPending || sub.Size != int64(len(samplePDF)) {
		t.Fatalf("submission = %+v", sub)
	}

	got, err := apps.SubmitApplication(f.ctx, trainee, app.ID)
	if err != nil {
		t.Fatalf("SubmitApplication: %v", err)
	}
	if got.Status != model.ApplicationSubmitted || got.SubmittedAt == nil || got.SubmittedCount != 1 {
		t.Fatalf("application = %+v", got)
	}

	_, err = apps.CreateSubmission(f.ctx, trainee, app.ID, docID, pdfUpload())
	mustErr(t, err, ErrConflict) // uploads closed once submitted

	head := headOf(dept)
	_, err = apps.ReviewSubmission(f.ctx, head, sub.ID, ReviewSubmissionRequest{Approve: boolPtr(false)})
	mustErr(t, err, ErrValidation)

	_, err = apps.ReviewSubmission(f.ctx, trainee, sub.ID, ReviewSubmissionRequest{Approve: boolPtr(true)})
	mustErr(t, err, ErrForbidden)

	reviewed, err := apps.ReviewSubmission(f.ctx, head, sub.ID, ReviewSubmissionRequest{Approve: boolPtr(true)})
	if err != nil {
		t.Fatalf("ReviewSubmission: %v", err)
	}
	if reviewed.Status != model.SubmissionApproved || reviewed.ReviewedAt == nil {
		t.Fatalf("reviewed = %+v", reviewed)
	}

	final, err := apps.GetApplication(f.ctx, trainee, app.ID)
	if err != nil {
		t.Fatalf("GetApplication: %v", err)
	}
	if final.Status != model.ApplicationApproved {
		t.Fatalf("application status = %s, want Approved", final.Status)
	}
	if final.Documents[0].Status != model.SubmissionApproved {
		t.Errorf("document status = %s", final.Documents[0].Status)
	}

	rc, meta, err := apps.OpenSubmissionFile(f.ctx, head, sub.ID)
	if err != nil {
		t.Fatalf("OpenSubmissionFile: %v", err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	buf.ReadFrom(rc)
	if buf.String() != samplePDF || meta.FileName != "medical.pdf" {
		t.Errorf("stored file mismatch: %q %s", buf.String(), meta.FileName)
	}
}

func TestRejectedDocumentReopensApplication(t *testing.T) {
	f := newFixture(t)
	apps := newApplicationService(t, f)
	dept, p1, _, m := buildMatrix(t, f)
	f.svc.ApproveDepartment(f.ctx, director(), dept.ID.String())
	f.openBatch()
	trainee := f.trainee("jdoe")
	docID := m.Columns[0].DocumentID

	app, _ := apps.CreateApplication(f.ctx, trainee, CreateApplicationRequest{PositionID: p1.ID.String()})
	sub, err := apps.CreateSubmission(f.ctx, trainee, app.ID, docID, pdfUpload())
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	if _, err := apps.SubmitApplication(f.ctx, trainee, app.ID); err != nil {
		t.Fatalf("SubmitApplication: %v", err)
	}

	if _, err := apps.ReviewSubmission(f.ctx, headOf(dept), sub.ID, ReviewSubmissionRequest{Approve: boolPtr(false), Note: "scan is blurry"}); err != nil {
		t.Fatalf("ReviewSubmission: %v", err)
	}
	got, _ := apps.GetApplication(f.ctx, trainee, app.ID)
	if got.Status != model.ApplicationRejected {
		t.Fatalf("status = %s, want Rejected", got.Status)
	}

	if _, err := apps.CreateSubmission(f.ctx, trainee, app.ID, docID, pdfUpload()); err != nil {
		t.Fatalf("re-upload: %v", err)
	}
	_, err = apps.ReviewSubmission(f.ctx, headOf(dept), sub.ID, ReviewSubmissionRequest{Approve: boolPtr(true)})
	mustErr(t, err, ErrConflict) // old upload was already decided

	if _, err := apps.SubmitApplication(f.ctx, trainee, app.ID); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
}

func TestReuploadSupersedesPreviousSubmission(t *testing.T) {
	f := newFixture(t)
	apps := newApplicationService(t, f)
	dept, p1, _, m := buildMatrix(t, f)
	f.svc.ApproveDepartment(f.ctx, director(), dept.ID.String())
	f.openBatch()
	trainee := f.trainee("jdoe")
	docID := m.Columns[0].DocumentID

	app, err := apps.CreateApplication(f.ctx, trainee, CreateApplicationRequest{PositionID: p1.ID.String()})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	first, err := apps.CreateSubmission(f.ctx, trainee, app.ID, docID, pdfUpload())
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	old, err := f.apps.FindSubmission(f.ctx, mustUUID(t, first.ID))
	if err != nil {
		t.Fatalf("FindSubmission: %v", err)
	}

	second, err := apps.CreateSubmission(f.ctx, trainee, app.ID, docID, pdfUpload())
	if err != nil {
		t.Fatalf("re-upload: %v", err)
	}

	subs, err := apps.ListSubmissions(f.ctx, trainee, app.ID)
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("submissions = %d, want the history of 2", len(subs))
	}
	for _, s := range subs {
		switch s.ID {
		case first.ID:
			if s.SupersededBy == nil || *s.SupersededBy != second.ID {
				t.Errorf("old submission superseded_by = %v, want %s", s.SupersededBy, second.ID)
			}
		case second.ID:
			if s.SupersededBy != nil {
				t.Errorf("current submission marked superseded by %s", *s.SupersededBy)
			}
		}
	}

	store := apps.(*applicationService).store
	if rc, err := store.Open(old.StoragePath); err == nil {
		rc.Close()
		t.Fatal("replaced upload is still on disk")
	}
	_, _, err = apps.OpenSubmissionFile(f.ctx, trainee, first.ID)
	mustErr(t, err, ErrNotFound)
	_, err = apps.ReviewSubmission(f.ctx, headOf(dept), first.ID, ReviewSubmissionRequest{Approve: boolPtr(true)})
	mustErr(t, err, ErrConflict)

	rc, _, err := apps.OpenSubmissionFile(f.ctx, trainee, second.ID)
	if err != nil {
		t.Fatalf("OpenSubmissionFile: %v", err)
	}
	rc.Close()
}

func TestListApplicationsScopesHeads(t *testing.T) {
	f := newFixture(t)
	apps := newApplicationService(t, f)
	dept, p1, _, _ := buildMatrix(t, f)
	f.svc.ApproveDepartment(f.ctx, director(), dept.ID.String())
	f.openBatch()
	trainee := f.trainee("jdoe")
	if _, err := apps.CreateApplication(f.ctx, trainee, CreateApplicationRequest{PositionID: p1.ID.String()}); err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}

	list, total, err := apps.ListApplications(f.ctx, headOf(dept), ApplicationListFilter{})
	if err != nil || total != 1 || len(list) != 1 {
		t.Fatalf("head listing = %d/%d, %v", len(list), total, err)
	}

	other := f.department("Cabin Crew")
	_, total, err = apps.ListApplications(f.ctx, headOf(other), ApplicationListFilter{})
	if err != nil || total != 0 {
		t.Fatalf("other head should see nothing, got %d, %v", total, err)
	}

	_, _, err = apps.ListApplications(f.ctx, trainee, ApplicationListFilter{})
	mustErr(t, err, ErrForbidden)

	mine, total, err := apps.ListMyApplications(f.ctx, trainee, 1, 10)
	if err != nil || total != 1 || mine[0].PositionName != "First Officer" {
		t.Fatalf("my applications = %+v, %d, %v", mine, total, err)
	}
}

func TestApplicationReceiptPDF(t *testing.T) {
	f := newFixture(t)
	apps := newApplicationService(t, f)
	dept, p1, _, _ := buildMatrix(t, f)
	f.svc.ApproveDepartment(f.ctx, director(), dept.ID.String())
	f.openBatch()
	trainee := f.trainee("jdoe")
	app, err := apps.CreateApplication(f.ctx, trainee, CreateApplicationRequest{PositionID: p1.ID.String()})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}

	pdf, name, err := apps.ApplicationReceiptPDF(f.ctx, trainee, app.ID)
	if err != nil {
		t.Fatalf("ApplicationReceiptPDF: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Error("receipt is not a PDF")
	}
	if name != "application-"+app.ID+".pdf" {
		t.Errorf("filename = %s", name)
	}

	_, _, err = apps.ApplicationReceiptPDF(f.ctx, f.trainee("someone"), app.ID)
	mustErr(t, err, ErrForbidden)
}

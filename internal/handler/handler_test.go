package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"academy/internal/middleware"
	"academy/internal/model"
	"academy/internal/repository"
	"academy/internal/service"
	"academy/internal/storage"
	"academy/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const samplePDF = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n"

func init() { gin.SetMode(gin.TestMode) }

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
}

type testServer struct {
	t      *testing.T
	ctx    context.Context
	engine *gin.Engine

	users   service.UserService
	depts   service.DepartmentService
	pos     service.PositionService
	docs    service.DocumentService
	batches service.BatchService
	matrix  service.MatrixService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.OpenDB(t)
	ctx := context.Background()
	log := logrus.New()
	log.SetOutput(io.Discard)

	tx := repository.NewTransactionManager(db)
	roleRepo := repository.NewRoleRepository(db)
	userRepo := repository.NewUserRepository(db)
	deptRepo := repository.NewDepartmentRepository(db)
	posRepo := repository.NewPositionRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	matrixRepo := repository.NewMatrixRepository(db)
	appRepo := repository.NewApplicationRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	roles := service.NewRoleService(tx, roleRepo)
	if err := roles.SeedDefaultRolesAndPermissions(ctx); err != nil {
		t.Fatalf("seed roles: %v", err)
	}
	store, err := storage.NewLocal(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}

	s := &testServer{t: t, ctx: ctx}
	secret := []byte("handler-test-secret")
	s.users = service.NewUserService(userRepo, roleRepo, deptRepo, service.TokenConfig{Secret: secret, AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour})
	s.depts = service.NewDepartmentService(tx, deptRepo, posRepo, matrixRepo, appRepo, userRepo, auditRepo)
	s.pos = service.NewPositionService(tx, deptRepo, posRepo, matrixRepo, appRepo, auditRepo)
	s.docs = service.NewDocumentService(tx, docRepo, matrixRepo, appRepo, auditRepo)
	s.batches = service.NewBatchService(tx, batchRepo, appRepo, auditRepo)
	s.matrix = service.NewMatrixService(service.MatrixDeps{
		Tx: tx, Depts: deptRepo, Positions: posRepo, Docs: docRepo, Matrix: matrixRepo, Users: userRepo, Audit: auditRepo, Log: log,
	})
	apps := service.NewApplicationService(service.ApplicationDeps{
		Tx: tx, Apps: appRepo, Batches: batchRepo, Depts: deptRepo, Positions: posRepo, Matrix: matrixRepo,
		Users: userRepo, Audit: auditRepo, Store: store, MaxUploadBytes: 1 << 20, PublicBaseURL: "https://academy.test", Log: log,
	})

	guard := Guard{Auth: middleware.NewAuth(secret, roles, false, time.Hour, 24*time.Hour)}
	r := gin.New()
	root := r.Group("")
	NewUserHandler(s.users, guard, false).RegisterRoutes(root)
	NewRoleHandler(roles, guard).RegisterRoutes(root)
	NewAuditHandler(service.NewAuditService(auditRepo), guard).RegisterRoutes(root)
	NewDepartmentHandler(s.depts, guard).RegisterRoutes(root)
	NewPositionHandler(s.pos, guard).RegisterRoutes(root)
	NewDocumentHandler(s.docs, guard).RegisterRoutes(root)
	NewBatchHandler(s.batches, guard).RegisterRoutes(root)
	NewMatrixHandler(s.matrix, guard).RegisterRoutes(root)
	NewApplicationHandler(apps, guard).RegisterRoutes(root)
	s.engine = r
	return s
}

// account creates a user and logs in over HTTP, returning the access token.
func (s *testServer) account(username, role string, deptID *string) string {
	s.t.Helper()
	req := service.CreateUserRequest{Username: username, Email: username + "@academy.test", Password: "secret123", Role: role, DepartmentID: deptID}
	if _, err := s.users.CreateUser(s.ctx, req); err != nil {
		s.t.Fatalf("create %s: %v", username, err)
	}
	rec := s.do(http.MethodPost, "/api/login", "", map[string]string{"email": req.Email, "password": req.Password})
	if rec.Code != http.StatusOK {
		s.t.Fatalf("login %s: %d %s", username, rec.Code, rec.Body)
	}
	var tok service.TokenResponse
	decode(s.t, rec, &tok)
	return tok.Token
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(path, token, filename, content string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		s.t.Fatalf("form file: %v", err)
	}
	part.Write([]byte(content))
	w.WriteField("note", "class 1 medical")
	w.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("decode data: %v (%s)", err, env.Data)
		}
	}
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d: %s", rec.Code, want, rec.Body)
	}
}

func TestAuthAndPermissions(t *testing.T) {
	s := newTestServer(t)
	admin := s.account("admin", model.RoleAdmin, nil)
	trainee := s.account("jdoe", model.RoleTrainee, nil)

	expect(t, s.do(http.MethodGet, "/api/departments", "", nil), http.StatusUnauthorized)
	expect(t, s.do(http.MethodPost, "/api/login", "", map[string]string{"email": "admin@academy.test", "password": "wrong"}), http.StatusUnauthorized)

	rec := s.do(http.MethodGet, "/api/me", trainee, nil)
	expect(t, rec, http.StatusOK)
	var me struct {
		Role        string   `json:"role"`
		Permissions []string `json:"permissions"`
	}
	decode(t, rec, &me)
	if me.Role != model.RoleTrainee || len(me.Permissions) == 0 {
		t.Fatalf("me = %+v", me)
	}

	expect(t, s.do(http.MethodPost, "/api/departments", trainee, map[string]string{"name": "Flight Operations"}), http.StatusForbidden)
	expect(t, s.do(http.MethodGet, "/api/audit-logs", trainee, nil), http.StatusForbidden)
	expect(t, s.do(http.MethodGet, "/api/departments", trainee, nil), http.StatusOK)

	expect(t, s.do(http.MethodPost, "/api/departments", admin, map[string]string{"name": "   "}), http.StatusBadRequest)
	expect(t, s.do(http.MethodPost, "/api/departments", admin, map[string]string{"name": "Flight Operations"}), http.StatusCreated)
	expect(t, s.do(http.MethodPost, "/api/departments", admin, map[string]string{"name": "Flight Operations"}), http.StatusConflict)

	rec = s.do(http.MethodGet, "/api/departments?search=flight", admin, nil)
	expect(t, rec, http.StatusOK)
	var page struct {
		Items []service.DepartmentResponse `json:"items"`
		Total int64                        `json:"total"`
	}
	decode(t, rec, &page)
	if page.Total != 1 || page.Items[0].MatrixStatus != model.MatrixUndrafted {
		t.Fatalf("departments = %+v", page)
	}

	rec = s.do(http.MethodGet, "/api/audit-logs?action="+model.ActionCreateDepartment, admin, nil)
	expect(t, rec, http.StatusOK)
	var audit struct {
		Items []service.AuditLogResponse `json:"items"`
		Total int64                      `json:"total"`
	}
	decode(t, rec, &audit)
	if audit.Total != 1 || audit.Items[0].Username != "admin" {
		t.Errorf("audit = %+v", audit)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	s := newTestServer(t)
	s.account("admin", model.RoleAdmin, nil)

	rec := s.do(http.MethodPost, "/api/login", "", map[string]string{"email": "admin@academy.test", "password": "secret123"})
	var tok service.TokenResponse
	decode(t, rec, &tok)

	rec = s.do(http.MethodPost, "/api/refresh", "", map[string]string{"refresh_token": tok.RefreshToken})
	expect(t, rec, http.StatusOK)
	var next service.TokenResponse
	decode(t, rec, &next)
	if next.RefreshToken == tok.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	expect(t, s.do(http.MethodPost, "/api/refresh", "", map[string]string{"refresh_token": tok.RefreshToken}), http.StatusUnauthorized)
	expect(t, s.do(http.MethodPost, "/api/logout", "", map[string]string{"refresh_token": next.RefreshToken}), http.StatusOK)
	expect(t, s.do(http.MethodPost, "/api/refresh", "", map[string]string{"refresh_token": next.RefreshToken}), http.StatusUnauthorized)
}

func TestMatrixEndpoints(t *testing.T) {
	s := newTestServer(t)
	admin := s.account("admin", model.RoleAdmin, nil)
	director := s.account("director", model.RoleTrainingDirector, nil)

	rec := s.do(http.MethodPost, "/api/departments", admin, map[string]string{"name": "Cabin Crew"})
	var dept service.DepartmentResponse
	decode(t, rec, &dept)
	rec = s.do(http.MethodPost, "/api/positions", admin, map[string]string{"department_id": dept.ID, "name": "Purser"})
	expect(t, rec, http.StatusCreated)
	var pos service.PositionResponse
	decode(t, rec, &pos)
	rec = s.do(http.MethodPost, "/api/documents", admin, map[string]interface{}{
		"name":  "Passport",
		"rules": []map[string]string{{"name": "Months valid", "value_type": "NUMBER"}},
	})
	expect(t, rec, http.StatusCreated)
	var doc service.DocumentResponse
	decode(t, rec, &doc)

	head := s.account("head", model.RoleHeadOfDepartment, &dept.ID)
	base := "/api/matrices/" + dept.ID

	expect(t, s.do(http.MethodPost, base+"/rows", director, map[string]interface{}{"position_ids": []string{pos.ID}}), http.StatusForbidden)
	expect(t, s.do(http.MethodPost, base+"/rows", head, map[string]interface{}{"position_ids": []string{pos.ID}}), http.StatusOK)
	rec = s.do(http.MethodPost, base+"/columns", head, map[string]interface{}{"document_ids": []string{doc.ID}})
	expect(t, rec, http.StatusOK)
	var m service.MatrixResponse
	decode(t, rec, &m)
	if len(m.Cells) != 1 {
		t.Fatalf("cells = %d, want 1", len(m.Cells))
	}
	cell := m.Cells[0]

	expect(t, s.do(http.MethodPut, "/api/matrix-cells/"+cell.ID, head, map[string]interface{}{"current_required": false}), http.StatusBadRequest)
	rec = s.do(http.MethodPut, "/api/matrix-cells/"+cell.ID, head, map[string]interface{}{
		"current_required": false,
		"rule_values":      []map[string]string{{"rule_id": doc.Rules[0].ID, "value": "6"}},
	})
	expect(t, rec, http.StatusOK)
	expect(t, s.do(http.MethodPut, "/api/matrix-cells/"+cell.ID, head, map[string]interface{}{"current_required": false}), http.StatusConflict)

	expect(t, s.do(http.MethodDelete, base+"/rows/"+pos.ID, head, nil), http.StatusBadRequest)

	rec = s.do(http.MethodPost, base+"/submit", head, nil)
	expect(t, rec, http.StatusOK)
	decode(t, rec, &m)
	if m.Status != model.MatrixDrafted {
		t.Fatalf("status = %s, want Drafted", m.Status)
	}
	expect(t, s.do(http.MethodPost, base+"/columns", head, map[string]interface{}{"document_ids": []string{doc.ID}}), http.StatusLocked)

	expect(t, s.do(http.MethodPost, base+"/reject", director, map[string]string{"reason": ""}), http.StatusBadRequest)
	rec = s.do(http.MethodPost, base+"/approve", director, nil)
	expect(t, rec, http.StatusOK)
	decode(t, rec, &m)
	if m.Status != model.MatrixApproved {
		t.Fatalf("status = %s, want Approved", m.Status)
	}

	rec = s.do(http.MethodGet, base+"/export", director, nil)
	expect(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %s", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Error("export is not a PDF")
	}
}

func TestApplicationUploadFlow(t *testing.T) {
	s := newTestServer(t)
	adminActor := service.Actor{Role: model.RoleAdmin}
	dirActor := service.Actor{Role: model.RoleTrainingDirector}

	dept, err := s.depts.CreateDepartment(s.ctx, adminActor, service.CreateDepartmentRequest{Name: "Flight Operations"})
	if err != nil {
		t.Fatal(err)
	}
	pos, err := s.pos.CreatePosition(s.ctx, adminActor, service.CreatePositionRequest{DepartmentID: dept.ID, Name: "First Officer"})
	if err != nil {
		t.Fatal(err)
	}
	doc, err := s.docs.CreateDocument(s.ctx, adminActor, service.CreateDocumentRequest{Name: "Medical Certificate"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.matrix.AddRows(s.ctx, adminActor, dept.ID, service.AddRowsRequest{PositionIDs: []string{pos.ID}}); err != nil {
		t.Fatal(err)
	}
	m, err := s.matrix.AddColumns(s.ctx, adminActor, dept.ID, service.AddColumnsRequest{DocumentIDs: []string{doc.ID}})
	if err != nil {
		t.Fatal(err)
	}
	no := false
	if _, err := s.matrix.ToggleCell(s.ctx, adminActor, m.Cells[0].ID, service.ToggleCellRequest{CurrentRequired: &no}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.matrix.SubmitForReview(s.ctx, adminActor, dept.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.matrix.ApproveDepartment(s.ctx, dirActor, dept.ID); err != nil {
		t.Fatal(err)
	}
	today := time.Now()
	if _, err := s.batches.CreateBatch(s.ctx, adminActor, service.CreateBatchRequest{
		Name:      "Autumn intake",
		StartDate: today.AddDate(0, 0, -1).Format("2006-01-02"),
		EndDate:   today.AddDate(0, 1, 0).Format("2006-01-02"),
		Active:    true,
	}); err != nil {
		t.Fatal(err)
	}

	trainee := s.account("jdoe", model.RoleTrainee, nil)
	head := s.account("head", model.RoleHeadOfDepartment, &dept.ID)

	rec := s.do(http.MethodPost, "/api/applications", trainee, map[string]string{"position_id": pos.ID})
	expect(t, rec, http.StatusCreated)
	var app service.ApplicationResponse
	decode(t, rec, &app)

	expect(t, s.do(http.MethodPost, "/api/applications/"+app.ID+"/submit", trainee, nil), http.StatusBadRequest)

	uploadPath := "/api/applications/" + app.ID + "/documents/" + doc.ID
	expect(t, s.upload(uploadPath, trainee, "notes.txt", "plain text"), http.StatusBadRequest)
	rec = s.upload(uploadPath, trainee, "medical.pdf", samplePDF)
	expect(t, rec, http.StatusCreated)
	var sub service.SubmissionResponse
	decode(t, rec, &sub)
	if sub.Note != "class 1 medical" || sub.ContentType != "application/pdf" {
		t.Fatalf("submission = %+v", sub)
	}

	expect(t, s.do(http.MethodPost, "/api/applications/"+app.ID+"/submit", trainee, nil), http.StatusOK)

	expect(t, s.do(http.MethodPost, "/api/submissions/"+sub.ID+"/review", trainee, map[string]bool{"approve": true}), http.StatusForbidden)
	expect(t, s.do(http.MethodPost, "/api/submissions/"+sub.ID+"/review", head, map[string]string{}), http.StatusBadRequest)
	expect(t, s.do(http.MethodPost, "/api/submissions/"+sub.ID+"/review", head, map[string]bool{"approve": true}), http.StatusOK)

	rec = s.do(http.MethodGet, "/api/applications/"+app.ID, trainee, nil)
	expect(t, rec, http.StatusOK)
	decode(t, rec, &app)
	if app.Status != model.ApplicationApproved {
		t.Fatalf("application status = %s", app.Status)
	}

	rec = s.do(http.MethodGet, "/api/submissions/"+sub.ID+"/file", head, nil)
	expect(t, rec, http.StatusOK)
	if rec.Body.String() != samplePDF {
		t.Errorf("downloaded file differs: %q", rec.Body.String())
	}

	rec = s.do(http.MethodGet, "/api/applications?status=Approved", head, nil)
	expect(t, rec, http.StatusOK)
	var page struct {
		Total int64 `json:"total"`
	}
	decode(t, rec, &page)
	if page.Total != 1 {
		t.Errorf("head listing total = %d", page.Total)
	}

	rec = s.do(http.MethodGet, "/api/applications/"+app.ID+"/receipt", trainee, nil)
	expect(t, rec, http.StatusOK)
	if rec.Header().Get("Content-Disposition") != `attachment; filename="application-`+app.ID+`.pdf"` {
		t.Errorf("disposition = %s", rec.Header().Get("Content-Disposition"))
	}
}

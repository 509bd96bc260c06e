package service

import (
	"errors"
	"testing"
	"time"

	"academy/internal/model"
	"academy/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestBatchWindowAndActivation(t *testing.T) {
	f := newFixture(t)
	svc := NewBatchService(f.tx, f.batches, f.apps, f.audit)

	_, err := svc.CreateBatch(f.ctx, admin(), CreateBatchRequest{Name: "Bad", StartDate: "2026-09-01", EndDate: "2026-08-01"})
	mustErr(t, err, ErrValidation)
	_, err = svc.CreateBatch(f.ctx, admin(), CreateBatchRequest{Name: "Bad", StartDate: "01/09/2026", EndDate: "2026-12-01"})
	mustErr(t, err, ErrValidation)

	spring, err := svc.CreateBatch(f.ctx, admin(), CreateBatchRequest{Name: "Spring", StartDate: "2026-03-01", EndDate: "2026-06-30", Active: true})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	autumn, err := svc.CreateBatch(f.ctx, admin(), CreateBatchRequest{Name: "Autumn", StartDate: "2026-09-01", EndDate: "2026-12-15", Active: true})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	got, err := svc.GetBatch(f.ctx, spring.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if got.Active {
		t.Fatal("activating a batch must deactivate the others")
	}
	active, err := svc.GetActiveBatch(f.ctx)
	if err != nil {
		t.Fatalf("GetActiveBatch: %v", err)
	}
	if active.ID != autumn.ID {
		t.Fatalf("active batch = %s, want %s", active.Name, autumn.Name)
	}

	end := "2026-08-01"
	_, err = svc.UpdateBatch(f.ctx, admin(), autumn.ID, UpdateBatchRequest{EndDate: &end})
	mustErr(t, err, ErrValidation)

	off := false
	if _, err := svc.UpdateBatch(f.ctx, admin(), autumn.ID, UpdateBatchRequest{Active: &off}); err != nil {
		t.Fatalf("UpdateBatch: %v", err)
	}
	_, err = svc.GetActiveBatch(f.ctx)
	mustErr(t, err, ErrNotFound)

	if err := svc.DeleteBatch(f.ctx, admin(), spring.ID); err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	_, err = svc.GetBatch(f.ctx, spring.ID)
	mustErr(t, err, ErrNotFound)
}

func TestDeleteDepartmentCascadesMatrix(t *testing.T) {
	f := newFixture(t)
	svc := NewDepartmentService(f.tx, f.depts, f.positions, f.matrix, f.apps, f.users, f.audit)

	res, err := svc.CreateDepartment(f.ctx, admin(), CreateDepartmentRequest{Name: "Flight Operations"})
	if err != nil {
		t.Fatalf("CreateDepartment: %v", err)
	}
	if res.MatrixStatus != model.MatrixUndrafted {
		t.Fatalf("new department status = %s", res.MatrixStatus)
	}
	_, err = svc.CreateDepartment(f.ctx, admin(), CreateDepartmentRequest{Name: "  Flight Operations "})
	mustErr(t, err, ErrConflict)

	dept, err := f.depts.FindByID(f.ctx, mustUUID(t, res.ID))
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	pilot := f.position(dept, "First Officer")
	medical, _ := f.document("Medical certificate", model.RuleValueText)
	if _, err := f.svc.AddRows(f.ctx, admin(), res.ID, AddRowsRequest{PositionIDs: []string{pilot.ID.String()}}); err != nil {
		t.Fatalf("AddRows: %v", err)
	}
	if _, err := f.svc.AddColumns(f.ctx, admin(), res.ID, AddColumnsRequest{DocumentIDs: []string{medical.ID.String()}}); err != nil {
		t.Fatalf("AddColumns: %v", err)
	}

	if err := svc.DeleteDepartment(f.ctx, admin(), res.ID); err != nil {
		t.Fatalf("DeleteDepartment: %v", err)
	}
	_, err = f.svc.GetMatrix(f.ctx, res.ID)
	mustErr(t, err, ErrNotFound)
	if _, err := f.positions.FindByID(f.ctx, pilot.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("position survived department delete: %v", err)
	}
	if _, err := f.docs.FindByID(f.ctx, medical.ID); err != nil {
		t.Fatalf("documents are shared and must survive: %v", err)
	}

	logs, total, err := f.audit.List(f.ctx, repository.AuditFilter{Action: model.ActionDeleteDepartment, Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	if total != 1 || len(logs) != 1 {
		t.Fatalf("delete audit rows = %d", total)
	}
}

func TestDeleteDocumentDropsMatrixColumn(t *testing.T) {
	f := newFixture(t)
	svc := NewDocumentService(f.tx, f.docs, f.matrix, f.apps, f.audit)

	doc, err := svc.CreateDocument(f.ctx, admin(), CreateDocumentRequest{
		Name:  "Logbook",
		Rules: []CreateRuleRequest{{Name: "Minimum hours", ValueType: model.RuleValueNumber}},
	})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if len(doc.Rules) != 1 || doc.Rules[0].ValueType != model.RuleValueNumber {
		t.Fatalf("rules = %+v", doc.Rules)
	}
	_, err = svc.AddRule(f.ctx, admin(), doc.ID, CreateRuleRequest{Name: "Signed by", ValueType: "BOOLEAN"})
	mustErr(t, err, ErrValidation)
	rule, err := svc.AddRule(f.ctx, admin(), doc.ID, CreateRuleRequest{Name: "Signed by"})
	if err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	if rule.ValueType != model.RuleValueText {
		t.Fatalf("default value type = %s", rule.ValueType)
	}

	dept := f.department("Maintenance")
	pos := f.position(dept, "Engineer")
	if _, err := f.svc.AddRows(f.ctx, admin(), dept.ID.String(), AddRowsRequest{PositionIDs: []string{pos.ID.String()}}); err != nil {
		t.Fatalf("AddRows: %v", err)
	}
	if _, err := f.svc.AddColumns(f.ctx, admin(), dept.ID.String(), AddColumnsRequest{DocumentIDs: []string{doc.ID}}); err != nil {
		t.Fatalf("AddColumns: %v", err)
	}

	if err := svc.DeleteDocument(f.ctx, admin(), doc.ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	m, err := f.svc.GetMatrix(f.ctx, dept.ID.String())
	if err != nil {
		t.Fatalf("GetMatrix: %v", err)
	}
	if len(m.Columns) != 0 || len(m.Cells) != 0 {
		t.Fatalf("columns=%d cells=%d after document delete", len(m.Columns), len(m.Cells))
	}
	if len(m.Rows) != 1 {
		t.Fatalf("rows = %d, want the row to stay", len(m.Rows))
	}
}

func TestUserLoginAndRefresh(t *testing.T) {
	f := newFixture(t)
	secret := []byte("test-secret")
	svc := NewUserService(f.users, repository.NewRoleRepository(f.db), f.depts, TokenConfig{
		Secret: secret, AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour,
	})
	dept := f.department("Cabin Crew")

	_, err := svc.CreateUser(f.ctx, CreateUserRequest{Username: "hod", Email: "hod@academy.test", Password: "secret1", Role: model.RoleHeadOfDepartment})
	mustErr(t, err, ErrValidation)
	_, err = svc.CreateUser(f.ctx, CreateUserRequest{Username: "ghost", Email: "ghost@academy.test", Password: "secret1", Role: "pilot"})
	mustErr(t, err, ErrValidation)

	deptID := dept.ID.String()
	hod, err := svc.CreateUser(f.ctx, CreateUserRequest{Username: "hod", Email: "HOD@academy.test", Password: "secret1", Role: model.RoleHeadOfDepartment, DepartmentID: &deptID})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	_, err = svc.CreateUser(f.ctx, CreateUserRequest{Username: "hod2", Email: "hod@academy.test", Password: "secret1", Role: model.RoleTrainee})
	mustErr(t, err, ErrConflict)

	_, err = svc.Login(f.ctx, LoginUserRequest{Email: "hod@academy.test", Password: "wrong"})
	mustErr(t, err, ErrInvalidCredentials)

	tokens, err := svc.Login(f.ctx, LoginUserRequest{Email: "hod@academy.test", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(tokens.Token, claims, func(*jwt.Token) (interface{}, error) { return secret, nil }); err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims["sub"] != hod.ID.String() || claims["role"] != model.RoleHeadOfDepartment || claims["department_id"] != deptID {
		t.Fatalf("claims = %v", claims)
	}

	rotated, err := svc.RefreshToken(f.ctx, RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if rotated.RefreshToken == tokens.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	_, err = svc.RefreshToken(f.ctx, RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	mustErr(t, err, ErrInvalidCredentials)

	if err := svc.Logout(f.ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	_, err = svc.RefreshToken(f.ctx, RefreshTokenRequest{RefreshToken: rotated.RefreshToken})
	mustErr(t, err, ErrInvalidCredentials)
}

func TestSeedDefaultRoles(t *testing.T) {
	f := newFixture(t)
	svc := NewRoleService(f.tx, repository.NewRoleRepository(f.db))

	for i := 0; i < 2; i++ {
		if err := svc.SeedDefaultRolesAndPermissions(f.ctx); err != nil {
			t.Fatalf("seed #%d: %v", i+1, err)
		}
	}

	roles, err := svc.ListRoles(f.ctx)
	if err != nil {
		t.Fatalf("ListRoles: %v", err)
	}
	if len(roles) != len(DefaultRolePermissions) {
		t.Fatalf("roles = %d, want %d", len(roles), len(DefaultRolePermissions))
	}

	perms, err := svc.GetPermissionsByRoleName(f.ctx, model.RoleTrainingDirector)
	if err != nil {
		t.Fatalf("GetPermissionsByRoleName: %v", err)
	}
	if !contains(perms, model.PermMatrixReview) || contains(perms, model.PermMatrixEdit) {
		t.Fatalf("training director permissions = %v", perms)
	}

	for _, r := range roles {
		if r.Name == model.RoleAdmin {
			mustErr(t, svc.DeleteRole(f.ctx, r.ID), ErrValidation)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func mustUUID(t *testing.T, raw string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(raw)
	if err != nil {
		t.Fatalf("parse id %q: %v", raw, err)
	}
	return id
}

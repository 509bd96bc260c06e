package service

import (
	"context"
	"errors"
	"testing"

	"academy/internal/model"
	"academy/internal/repository"
	"academy/internal/testutil"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fixture struct {
	t   *testing.T
	ctx context.Context
	db  *gorm.DB

	tx        repository.TransactionManager
	depts     repository.DepartmentRepository
	positions repository.PositionRepository
	docs      repository.DocumentRepository
	matrix    repository.MatrixRepository
	users     repository.UserRepository
	apps      repository.ApplicationRepository
	batches   repository.BatchRepository
	audit     repository.AuditRepository

	svc MatrixService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	f := &fixture{
		t:         t,
		ctx:       context.Background(),
		db:        db,
		tx:        repository.NewTransactionManager(db),
		depts:     repository.NewDepartmentRepository(db),
		positions: repository.NewPositionRepository(db),
		docs:      repository.NewDocumentRepository(db),
		matrix:    repository.NewMatrixRepository(db),
		users:     repository.NewUserRepository(db),
		apps:      repository.NewApplicationRepository(db),
		batches:   repository.NewBatchRepository(db),
		audit:     repository.NewAuditRepository(db),
	}
	f.svc = NewMatrixService(MatrixDeps{
		Tx:        f.tx,
		Depts:     f.depts,
		Positions: f.positions,
		Docs:      f.docs,
		Matrix:    f.matrix,
		Users:     f.users,
		Audit:     f.audit,
	})
	return f
}

func (f *fixture) department(name string) *model.Department {
	f.t.Helper()
	d := &model.Department{Name: name, MatrixStatus: model.MatrixUndrafted}
	if err := f.depts.Create(f.ctx, d); err != nil {
		f.t.Fatalf("create department: %v", err)
	}
	return d
}

func (f *fixture) position(dept *model.Department, name string) *model.Position {
	f.t.Helper()
	p := &model.Position{DepartmentID: dept.ID, Name: name}
	if err := f.positions.Create(f.ctx, p); err != nil {
		f.t.Fatalf("create position: %v", err)
	}
	return p
}

func (f *fixture) document(name string, ruleTypes ...string) (*model.Document, []model.DocumentRule) {
	f.t.Helper()
	d := &model.Document{Name: name}
	if err := f.docs.Create(f.ctx, d); err != nil {
		f.t.Fatalf("create document: %v", err)
	}
	rules := make([]model.DocumentRule, 0, len(ruleTypes))
	for i, vt := range ruleTypes {
		r := model.DocumentRule{DocumentID: d.ID, Name: name + " rule " + string(rune('A'+i)), ValueType: vt}
		if err := f.docs.CreateRule(f.ctx, &r); err != nil {
			f.t.Fatalf("create rule: %v", err)
		}
		rules = append(rules, r)
	}
	return d, rules
}

func headOf(dept *model.Department) Actor {
	id := dept.ID
	return Actor{UserID: uuid.New(), Role: model.RoleHeadOfDepartment, DepartmentID: &id}
}

func director() Actor { return Actor{UserID: uuid.New(), Role: model.RoleTrainingDirector} }

func admin() Actor { return Actor{UserID: uuid.New(), Role: model.RoleAdmin} }

func (f *fixture) status(dept *model.Department) model.MatrixStatus {
	f.t.Helper()
	d, err := f.depts.FindByID(f.ctx, dept.ID)
	if err != nil {
		f.t.Fatalf("reload department: %v", err)
	}
	return d.MatrixStatus
}

// rowFor returns the matrix row id of a position.
func rowFor(t *testing.T, m *MatrixResponse, pos *model.Position) string {
	t.Helper()
	for _, r := range m.Rows {
		if r.PositionID == pos.ID.String() {
			return r.ID
		}
	}
	t.Fatalf("position %s not in matrix", pos.Name)
	return ""
}

// cellFor returns the cell of a position/document pair.
func cellFor(t *testing.T, m *MatrixResponse, pos *model.Position, doc *model.Document) MatrixCellResponse {
	t.Helper()
	rowID := rowFor(t, m, pos)
	for _, c := range m.Cells {
		if c.RowID == rowID && c.DocumentID == doc.ID.String() {
			return c
		}
	}
	t.Fatalf("no cell for %s/%s", pos.Name, doc.Name)
	return MatrixCellResponse{}
}

func mustErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}

func boolPtr(b bool) *bool { return &b }

package service

import (
	"bytes"
	"testing"

	"academy/internal/model"
)

func TestAddRowsAndColumnsBuildCells(t *testing.T) {
	f := newFixture(t)
	dept := f.department("Flight Operations")
	p1 := f.position(dept, "First Officer")
	p2 := f.position(dept, "Captain")
	doc, _ := f.document("Medical Certificate")
	head := headOf(dept)

	if _, err := f.svc.AddRows(f.ctx, head, dept.ID.String(), AddRowsRequest{PositionIDs: []string{p1.ID.String(), p2.ID.String()}}); err != nil {
		t.Fatalf("AddRows: %v", err)
	}
	m, err := f.svc.AddColumns(f.ctx, head, dept.ID.String(), AddColumnsRequest{DocumentIDs: []string{doc.ID.String()}})
	if err != nil {
		t.Fatalf("AddColumns: %v", err)
	}

	if len(m.Rows) != 2 || len(m.Columns) != 1 {
		t.Fatalf("got %d rows, %d columns", len(m.Rows), len(m.Columns))
	}
	if len(m.Cells) != 2 {
		t.Fatalf("got %d cells, want 2", len(m.Cells))
	}
	for _, c := range m.Cells {
		if c.Required {
			t.Errorf("new cell %s should not be required", c.ID)
		}
	}
	if !m.Editable {
		t.Error("undrafted matrix should be editable")
	}
}

func TestAddRowsDuplicateIsConflict(t *testing.T) {
	f := newFixture(t)
	dept := f.department("Cabin Crew")
	p := f.position(dept, "Purser")
	head := headOf(dept)

	req := AddRowsRequest{PositionIDs: []string{p.ID.String()}}
	if _, err := f.svc.AddRows(f.ctx, head, dept.ID.String(), req); err != nil {
		t.Fatalf("AddRows: %v", err)
	}
	_, err := f.svc.AddRows(f.ctx, head, dept.ID.String(), req)
	mustErr(t, err, ErrConflict)
}

func TestAddRowsRejectsForeignPosition(t *testing.T) {
	f := newFixture(t)
	dept := f.department("Maintenance")
	other := f.department("Ground Handling")
	p := f.position(other, "Ramp Agent")

	_, err := f.svc.AddRows(f.ctx, headOf(dept), dept.ID.String(), AddRowsRequest{PositionIDs: []string{p.ID.String()}})
	mustErr(t, err, ErrValidation)
}

func TestOnlyHeadOfDepartmentEdits(t *testing.T) {
	f := newFixture(t)
	dept := f.department("Flight Operations")
	other := f.department("Cabin Crew")
	p := f.position(dept, "First Officer")

	_, err := f.svc.AddRows(f.ctx, headOf(other), dept.ID.String(), AddRowsRequest{PositionIDs: []string{p.ID.String()}})
	mustErr(t, err, ErrForbidden)

	_, err = f.svc.AddRows(f.ctx, director(), dept.ID.String(), AddRowsRequest{PositionIDs: []string{p.ID.String()}})
	mustErr(t, err, ErrForbidden)

	if _, err := f.svc.AddRows(f.ctx, admin(), dept.ID.String(), AddRowsRequest{PositionIDs: []string{p.ID.String()}}); err != nil {
		t.Fatalf("admin AddRows: %v", err)
	}
}

func TestToggleCell(t *testing.T) {
	f := newFixture(t)
	dept := f.department("Flight Operations")
	p := f.position(dept, "First Officer")
	doc, rules := f.document("Licence", model.RuleValueNumber, model.RuleValueDate)
	head := headOf(dept)

	f.svc.AddRows(f.ctx, head, dept.ID.String(), AddRowsRequest{PositionIDs: []string{p.ID.String()}})
	m, err := f.svc.AddColumns(f.ctx, head, dept.ID.String(), AddColumnsRequest{DocumentIDs: []string{doc.ID.String()}})
	if err != nil {
		t.Fatalf("AddColumns: %v", err)
	}
	cell := cellFor(t, m, p, doc)

	t.Run("rules must be filled before requiring", func(t *testing.T) {
		_, err := f.svc.ToggleCell(f.ctx, head, cell.ID, ToggleCellRequest{CurrentRequired: boolPtr(false)})
		mustErr(t, err, ErrValidation)
	})

	t.Run("malformed number is rejected", func(t *testing.T) {
		_, err := f.svc.ToggleCell(f.ctx, head, cell.ID, ToggleCellRequest{
			CurrentRequired: boolPtr(false),
			RuleValues:      []RuleValueInput{{RuleID: rules[0].ID.String(), Value: "many"}},
		})
		mustErr(t, err, ErrValidation)
	})

	t.Run("require with rule values", func(t *testing.T) {
		got, err := f.svc.ToggleCell(f.ctx, head, cell.ID, ToggleCellRequest{
			CurrentRequired: boolPtr(false),
			RuleValues: []RuleValueInput{
				{RuleID: rules[0].ID.String(), Value: " 1500.50 "},
				{RuleID: rules[1].ID.String(), Value: "2027-01-31"},
			},
		})
		if err != nil {
			t.Fatalf("ToggleCell: %v", err)
		}
		if !got.Required || got.Version != 2 {
			t.Fatalf("cell = required %v version %d, want true/2", got.Required, got.Version)
		}
		if len(got.RuleValues) != 2 {
			t.Fatalf("got %d rule values, want 2", len(got.RuleValues))
		}
	})

	t.Run("stale current_required is a conflict", func(t *testing.T) {
		_, err := f.svc.ToggleCell(f.ctx, head, cell.ID, ToggleCellRequest{CurrentRequired: boolPtr(false)})
		mustErr(t, err, ErrConflict)
	})

	t.Run("un-require keeps rule values", func(t *testing.T) {
		got, err := f.svc.ToggleCell(f.ctx, head, cell.ID, ToggleCellRequest{CurrentRequired: boolPtr(true)})
		if err != nil {
			t.Fatalf("ToggleCell: %v", err)
		}
		if got.Required || got.Version != 3 {
			t.Fatalf("cell = required %v version %d, want false/3", got.Required, got.Version)
		}
		if len(got.RuleValues) != 2 {
			t.Errorf("rule values dropped on un-require: %d left", len(got.RuleValues))
		}
	})

	t.Run("cell rules report stored values", func(t *testing.T) {
		res, err := f.svc.GetCellRules(f.ctx, cell.ID)
		if err != nil {
			t.Fatalf("GetCellRules: %v", err)
		}
		if len(res.Rules) != 2 {
			t.Fatalf("rules = %+v", res.Rules)
		}
		want := map[string]string{rules[0].ID.String(): "1500.5", rules[1].ID.String(): "2027-01-31"}
		for _, r := range res.Rules {
			if r.Value != want[r.RuleID] {
				t.Errorf("rule %s value = %q, want %q", r.Name, r.Value, want[r.RuleID])
			}
		}
	})
}

func TestToggleCellWithoutRules(t *testing.T) {
	f := newFixture(t)
	dept := f.department("Cabin Crew")
	p := f.position(dept, "Purser")
	doc, _ := f.document("Passport")
	head := headOf(dept)

	f.svc.AddRows(f.ctx, head, dept.ID.String(), AddRowsRequest{PositionIDs: []string{p.ID.String()}})
	m, _ := f.svc.AddColumns(f.ctx, head, dept.ID.String(), AddColumnsRequest{DocumentIDs: []string{doc.ID.String()}})
	cell := cellFor(t, m, p, doc)

	got, err := f.svc.ToggleCell(f.ctx, head, cell.ID, ToggleCellRequest{CurrentRequired: boolPtr(false)})
	if err != nil {
		t.Fatalf("ToggleCell: %v", err)
	}
	if !got.Required {
		t.Fatal("cell should be required")
	}
}

func TestDestructiveOperationsNeedConfirm(t *testing.T) {
	f := newFixture(t)
	dept := f.department("Flight Operations")
	p := f.position(dept, "First Officer")
	doc, _ := f.document("Logbook")
	head := headOf(dept)
	f.svc.AddRows(f.ctx, head, dept.ID.String(), AddRowsRequest{PositionIDs: []string{p.ID.String()}})
	f.svc.AddColumns(f.ctx, head, dept.ID.String(), AddColumnsRequest{DocumentIDs: []string{doc.ID.String()}})

	mustErr(t, f.svc.DeleteAllRows(f.ctx, head, dept.ID.String(), false), ErrValidation)
	mustErr(t, f.svc.DeleteColumn(f.ctx, head, dept.ID.String(), doc.ID.String(), false), ErrValidation)
	mustErr(t, f.svc.ClearMatrix(f.ctx, head, dept.ID.String(), false), ErrValidation)

	if err := f.svc.DeleteRow(f.ctx, head, dept.ID.String(), p.ID.String(), true); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}
	m, err := f.svc.GetMatrix(f.ctx, dept.ID.String())
	if err != nil {
		t.Fatalf("GetMatrix: %v", err)
	}
	if len(m.Rows) != 0 || len(m.Cells) != 0 || len(m.Columns) != 1 {
		t.Fatalf("after DeleteRow: %d rows, %d cells, %d columns", len(m.Rows), len(m.Cells), len(m.Columns))
	}

	if err := f.svc.ClearMatrix(f.ctx, head, dept.ID.String(), true); err != nil {
		t.Fatalf("ClearMatrix: %v", err)
	}
	if st := f.status(dept); st != model.MatrixUndrafted {
		t.Errorf("status after clear = %s", st)
	}
}

func TestSubmitEmptyMatrixIsValidationError(t *testing.T) {
	f := newFixture(t)
	dept := f.department("Flight Operations")
	_, err := f.svc.SubmitForReview(f.ctx, headOf(dept), dept.ID.String())
	mustErr(t, err, ErrValidation)
}

// buildMatrix creates a two position, one document matrix and submits it.
func buildMatrix(t *testing.T, f *fixture) (*model.Department, *model.Position, *model.Position, *MatrixResponse) {
	t.Helper()
	dept := f.department("Flight Operations")
	p1 := f.position(dept, "First Officer")
	p2 := f.position(dept, "Captain")
	doc, _ := f.document("Medical Certificate")
	head := headOf(dept)

	if _, err := f.svc.AddRows(f.ctx, head, dept.ID.String(), AddRowsRequest{PositionIDs: []string{p1.ID.String(), p2.ID.String()}}); err != nil {
		t.Fatalf("AddRows: %v", err)
	}
	m, err := f.svc.AddColumns(f.ctx, head, dept.ID.String(), AddColumnsRequest{DocumentIDs: []string{doc.ID.String()}})
	if err != nil {
		t.Fatalf("AddColumns: %v", err)
	}
	cell := cellFor(t, m, p1, doc)
	if _, err := f.svc.ToggleCell(f.ctx, head, cell.ID, ToggleCellRequest{CurrentRequired: boolPtr(false)}); err != nil {
		t.Fatalf("ToggleCell: %v", err)
	}
	m, err = f.svc.SubmitForReview(f.ctx, head, dept.ID.String())
	if err != nil {
		t.Fatalf("SubmitForReview: %v", err)
	}
	if m.Status != model.MatrixDrafted || m.Editable {
		t.Fatalf("after submit: status %s editable %v", m.Status, m.Editable)
	}
	return dept, p1, p2, m
}

func TestSubmittedMatrixIsLocked(t *testing.T) {
	f := newFixture(t)
	dept, _, _, m := buildMatrix(t, f)
	head := headOf(dept)

	extra := f.position(dept, "Second Officer")
	_, err := f.svc.AddRows(f.ctx, head, dept.ID.String(), AddRowsRequest{PositionIDs: []string{extra.ID.String()}})
	mustErr(t, err, ErrLocked)

	_, err = f.svc.ToggleCell(f.ctx, head, m.Cells[0].ID, ToggleCellRequest{CurrentRequired: boolPtr(m.Cells[0].Required)})
	mustErr(t, err, ErrLocked)

	_, err = f.svc.SubmitForReview(f.ctx, head, dept.ID.String())
	mustErr(t, err, ErrLocked)
}

func TestReviewApprovesWhenAllPositionsApproved(t *testing.T) {
	f := newFixture(t)
	dept, p1, p2, m := buildMatrix(t, f)
	dir := director()

	_, err := f.svc.ApprovePosition(f.ctx, headOf(dept), rowFor(t, m, p1))
	mustErr(t, err, ErrForbidden)

	m, err = f.svc.OpenReview(f.ctx, dir, dept.ID.String())
	if err != nil {
		t.Fatalf("OpenReview: %v", err)
	}
	if m.Status != model.MatrixPending {
		t.Fatalf("status = %s, want Pending", m.Status)
	}

	m, err = f.svc.ApprovePosition(f.ctx, dir, rowFor(t, m, p1))
	if err != nil {
		t.Fatalf("ApprovePosition p1: %v", err)
	}
	if m.Status != model.MatrixInProgress {
		t.Fatalf("status after first approval = %s, want InProgress", m.Status)
	}

	m, err = f.svc.ApprovePosition(f.ctx, dir, rowFor(t, m, p2))
	if err != nil {
		t.Fatalf("ApprovePosition p2: %v", err)
	}
	if m.Status != model.MatrixApproved {
		t.Fatalf("status after both approvals = %s, want Approved", m.Status)
	}

	_, err = f.svc.CompleteDepartment(f.ctx, dir, dept.ID.String())
	mustErr(t, err, ErrForbidden)
	m, err = f.svc.CompleteDepartment(f.ctx, admin(), dept.ID.String())
	if err != nil {
		t.Fatalf("CompleteDepartment: %v", err)
	}
	if m.Status != model.MatrixComplete {
		t.Fatalf("status = %s, want Complete", m.Status)
	}
}

func TestRejectPosition(t *testing.T) {
	f := newFixture(t)
	dept, p1, _, m := buildMatrix(t, f)
	dir := director()

	_, err := f.svc.RejectPosition(f.ctx, dir, rowFor(t, m, p1), "   ")
	mustErr(t, err, ErrValidation)

	m, err = f.svc.RejectPosition(f.ctx, dir, rowFor(t, m, p1), "missing medical class")
	if err != nil {
		t.Fatalf("RejectPosition: %v", err)
	}
	if m.Status != model.MatrixRejected {
		t.Fatalf("status = %s, want Rejected", m.Status)
	}
	if m.RejectReason == nil || *m.RejectReason != "First Officer: missing medical class" {
		t.Fatalf("reason = %v", m.RejectReason)
	}
	if !m.Editable {
		t.Error("rejected matrix should be editable again")
	}

	// the head fixes the matrix and resubmits
	m, err = f.svc.SubmitForReview(f.ctx, headOf(dept), dept.ID.String())
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	for _, r := range m.Rows {
		if r.Status != model.PositionPending {
			t.Errorf("row %s status = %s after resubmit, want Pending", r.PositionName, r.Status)
		}
	}
}

func TestDepartmentLevelDecision(t *testing.T) {
	f := newFixture(t)
	dept, _, _, _ := buildMatrix(t, f)
	dir := director()

	_, err := f.svc.RejectDepartment(f.ctx, dir, dept.ID.String(), "")
	mustErr(t, err, ErrValidation)

	m, err := f.svc.ApproveDepartment(f.ctx, dir, dept.ID.String())
	if err != nil {
		t.Fatalf("ApproveDepartment: %v", err)
	}
	if m.Status != model.MatrixApproved {
		t.Fatalf("status = %s", m.Status)
	}
	for _, r := range m.Rows {
		if r.Status != model.PositionApproved {
			t.Errorf("row %s = %s, want Approve", r.PositionName, r.Status)
		}
	}

	_, err = f.svc.ApproveDepartment(f.ctx, dir, dept.ID.String())
	mustErr(t, err, ErrConflict)
}

func TestAvailableItemsExcludeMatrixMembers(t *testing.T) {
	f := newFixture(t)
	dept := f.department("Flight Operations")
	p1 := f.position(dept, "First Officer")
	f.position(dept, "Captain")
	d1, _ := f.document("Licence")
	f.document("Passport")
	head := headOf(dept)

	f.svc.AddRows(f.ctx, head, dept.ID.String(), AddRowsRequest{PositionIDs: []string{p1.ID.String()}})
	f.svc.AddColumns(f.ctx, head, dept.ID.String(), AddColumnsRequest{DocumentIDs: []string{d1.ID.String()}})

	positions, err := f.svc.ListAvailablePositions(f.ctx, dept.ID.String())
	if err != nil {
		t.Fatalf("ListAvailablePositions: %v", err)
	}
	if len(positions) != 1 || positions[0].Name != "Captain" {
		t.Fatalf("available positions = %+v", positions)
	}
	docs, err := f.svc.ListAvailableDocuments(f.ctx, dept.ID.String())
	if err != nil {
		t.Fatalf("ListAvailableDocuments: %v", err)
	}
	if len(docs) != 1 || docs[0].Name != "Passport" {
		t.Fatalf("available documents = %+v", docs)
	}
}

func TestExportMatrixPDF(t *testing.T) {
	f := newFixture(t)
	dept, _, _, _ := buildMatrix(t, f)

	pdf, name, err := f.svc.ExportMatrixPDF(f.ctx, dept.ID.String())
	if err != nil {
		t.Fatalf("ExportMatrixPDF: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}
	if name != "matrix-flight-operations.pdf" {
		t.Errorf("filename = %s", name)
	}
}

package service

import (
	"testing"

	"academy/internal/model"
)

func TestRuleChangesReleaseUnbackedCells(t *testing.T) {
	f := newFixture(t)
	svc := NewDocumentService(f.tx, f.docs, f.matrix, f.apps, f.audit)
	dept := f.department("Ground School")
	pos := f.position(dept, "Instructor")
	doc, rules := f.document("Type Rating", model.RuleValueText)
	head := headOf(dept)

	if _, err := f.svc.AddRows(f.ctx, head, dept.ID.String(), AddRowsRequest{PositionIDs: []string{pos.ID.String()}}); err != nil {
		t.Fatalf("AddRows: %v", err)
	}
	m, err := f.svc.AddColumns(f.ctx, head, dept.ID.String(), AddColumnsRequest{DocumentIDs: []string{doc.ID.String()}})
	if err != nil {
		t.Fatalf("AddColumns: %v", err)
	}
	cellID := cellFor(t, m, pos, doc).ID
	require := func(ruleID, value string) {
		t.Helper()
		_, err := f.svc.ToggleCell(f.ctx, head, cellID, ToggleCellRequest{
			CurrentRequired: boolPtr(false),
			RuleValues:      []RuleValueInput{{RuleID: ruleID, Value: value}},
		})
		if err != nil {
			t.Fatalf("ToggleCell: %v", err)
		}
	}
	current := func() MatrixCellResponse {
		t.Helper()
		m, err := f.svc.GetMatrix(f.ctx, dept.ID.String())
		if err != nil {
			t.Fatalf("GetMatrix: %v", err)
		}
		return cellFor(t, m, pos, doc)
	}

	require(rules[0].ID.String(), "A320")

	// no rules left, so the cell stays required without values
	if err := svc.DeleteRule(f.ctx, admin(), rules[0].ID.String()); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}
	if c := current(); !c.Required || len(c.RuleValues) != 0 {
		t.Fatalf("after delete: required=%v values=%d", c.Required, len(c.RuleValues))
	}

	expiry, err := svc.AddRule(f.ctx, admin(), doc.ID.String(), CreateRuleRequest{Name: "Expiry", ValueType: model.RuleValueDate})
	if err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	before := current()
	if before.Required {
		t.Fatal("cell stayed required with a rule it holds no value for")
	}

	require(expiry.ID, "2027-01-31")
	number := model.RuleValueNumber
	if _, err := svc.UpdateRule(f.ctx, admin(), expiry.ID, UpdateRuleRequest{ValueType: &number}); err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}
	if c := current(); c.Required || len(c.RuleValues) != 0 {
		t.Fatalf("after type change: required=%v values=%+v", c.Required, c.RuleValues)
	}
	if c := current(); c.Version <= before.Version {
		t.Fatalf("version %d not bumped past %d", c.Version, before.Version)
	}

	require(expiry.ID, " 12.50 ")
	if _, err := f.svc.SubmitForReview(f.ctx, head, dept.ID.String()); err != nil {
		t.Fatalf("SubmitForReview: %v", err)
	}

	_, err = svc.AddRule(f.ctx, admin(), doc.ID.String(), CreateRuleRequest{Name: "Issuer"})
	mustErr(t, err, ErrLocked)
	mustErr(t, svc.DeleteRule(f.ctx, admin(), expiry.ID), ErrLocked)
	text := model.RuleValueText
	_, err = svc.UpdateRule(f.ctx, admin(), expiry.ID, UpdateRuleRequest{ValueType: &text})
	mustErr(t, err, ErrLocked)

	name := "Expiry (months)"
	renamed, err := svc.UpdateRule(f.ctx, admin(), expiry.ID, UpdateRuleRequest{Name: &name, ValueType: &number})
	if err != nil {
		t.Fatalf("rename in a locked matrix: %v", err)
	}
	if renamed.Name != name {
		t.Fatalf("name = %q", renamed.Name)
	}
	c := current()
	if !c.Required || len(c.RuleValues) != 1 || c.RuleValues[0].Value != "12.5" {
		t.Fatalf("locked cell changed: required=%v values=%+v", c.Required, c.RuleValues)
	}
}

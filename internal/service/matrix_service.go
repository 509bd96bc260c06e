package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"academy/internal/export"
	"academy/internal/model"
	"academy/internal/notify"
	"academy/internal/repository"
	ws "academy/internal/websocket"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// --- DTOs ---

type AddRowsRequest struct {
	PositionIDs []string `json:"position_ids" binding:"required,min=1"`
}

type AddColumnsRequest struct {
	DocumentIDs []string `json:"document_ids" binding:"required,min=1"`
}

type ToggleCellRequest struct {
	CurrentRequired *bool            `json:"current_required" binding:"required"`
	RuleValues      []RuleValueInput `json:"rule_values" binding:"dive"`
}

type RejectMatrixRequest struct {
	Reason string `json:"reason"`
}

type RuleValueResponse struct {
	RuleID string `json:"rule_id"`
	Value  string `json:"value"`
}

type MatrixCellResponse struct {
	ID         string              `json:"id"`
	RowID      string              `json:"row_id"`
	DocumentID string              `json:"document_id"`
	Required   bool                `json:"required"`
	Version    int                 `json:"version"`
	RuleValues []RuleValueResponse `json:"rule_values"`
}

type MatrixRowResponse struct {
	ID           string               `json:"id"`
	PositionID   string               `json:"position_id"`
	PositionName string               `json:"position_name"`
	Status       model.PositionStatus `json:"status"`
	RejectReason *string              `json:"reject_reason"`
}

type MatrixColumnResponse struct {
	ID           string `json:"id"`
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	RuleCount    int    `json:"rule_count"`
}

type MatrixResponse struct {
	DepartmentID   string                 `json:"department_id"`
	DepartmentName string                 `json:"department_name"`
	Status         model.MatrixStatus     `json:"status"`
	RejectReason   *string                `json:"reject_reason"`
	Editable       bool                   `json:"editable"`
	Rows           []MatrixRowResponse    `json:"rows"`
	Columns        []MatrixColumnResponse `json:"columns"`
	Cells          []MatrixCellResponse   `json:"cells"`
}

type CellRuleResponse struct {
	RuleID      string `json:"rule_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ValueType   string `json:"value_type"`
	Value       string `json:"value"`
}

type CellRulesResponse struct {
	Cell  MatrixCellResponse `json:"cell"`
	Rules []CellRuleResponse `json:"rules"`
}

// Event types pushed to websocket clients.
const (
	EventMatrixChanged = "matrix.changed"
	EventCellToggled   = "matrix.cell_toggled"
	EventStatusChanged = "matrix.status_changed"
)

// EventPublisher delivers realtime events. *websocket.Hub implements it.
type EventPublisher interface {
	Publish(ev ws.Event)
}

// --- Interface ---

type MatrixService interface {
	GetMatrix(ctx context.Context, departmentID string) (*MatrixResponse, error)
	ListAvailablePositions(ctx context.Context, departmentID string) ([]PositionResponse, error)
	ListAvailableDocuments(ctx context.Context, departmentID string) ([]DocumentResponse, error)

	AddRows(ctx context.Context, actor Actor, departmentID string, req AddRowsRequest) (*MatrixResponse, error)
	AddColumns(ctx context.Context, actor Actor, departmentID string, req AddColumnsRequest) (*MatrixResponse, error)
	DeleteRow(ctx context.Context, actor Actor, departmentID, positionID string, confirm bool) error
	DeleteColumn(ctx context.Context, actor Actor, departmentID, documentID string, confirm bool) error
	DeleteAllRows(ctx context.Context, actor Actor, departmentID string, confirm bool) error
	DeleteAllColumns(ctx context.Context, actor Actor, departmentID string, confirm bool) error
	ClearMatrix(ctx context.Context, actor Actor, departmentID string, confirm bool) error

	ToggleCell(ctx context.Context, actor Actor, cellID string, req ToggleCellRequest) (*MatrixCellResponse, error)
	GetCellRules(ctx context.Context, cellID string) (*CellRulesResponse, error)

	SubmitForReview(ctx context.Context, actor Actor, departmentID string) (*MatrixResponse, error)
	OpenReview(ctx context.Context, actor Actor, departmentID string) (*MatrixResponse, error)
	ApprovePosition(ctx context.Context, actor Actor, rowID string) (*MatrixResponse, error)
	RejectPosition(ctx context.Context, actor Actor, rowID, reason string) (*MatrixResponse, error)
	ApproveDepartment(ctx context.Context, actor Actor, departmentID string) (*MatrixResponse, error)
	RejectDepartment(ctx context.Context, actor Actor, departmentID, reason string) (*MatrixResponse, error)
	CompleteDepartment(ctx context.Context, actor Actor, departmentID string) (*MatrixResponse, error)

	ExportMatrixPDF(ctx context.Context, departmentID string) ([]byte, string, error)
}

type matrixService struct {
	tx        repository.TransactionManager
	depts     repository.DepartmentRepository
	positions repository.PositionRepository
	docs      repository.DocumentRepository
	matrix    repository.MatrixRepository
	users     repository.UserRepository
	audit     repository.AuditRepository
	events    EventPublisher
	notifier  notify.Notifier
	log       logrus.FieldLogger
}

// MatrixDeps bundles the collaborators of the matrix service
type MatrixDeps struct {
	Tx        repository.TransactionManager
	Depts     repository.DepartmentRepository
	Positions repository.PositionRepository
	Docs      repository.DocumentRepository
	Matrix    repository.MatrixRepository
	Users     repository.UserRepository
	Audit     repository.AuditRepository
	Events    EventPublisher  // optional
	Notifier  notify.Notifier // optional
	Log       logrus.FieldLogger
}

func NewMatrixService(d MatrixDeps) MatrixService {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &matrixService{
		tx:        d.Tx,
		depts:     d.Depts,
		positions: d.Positions,
		docs:      d.Docs,
		matrix:    d.Matrix,
		users:     d.Users,
		audit:     d.Audit,
		events:    d.Events,
		notifier:  d.Notifier,
		log:       log.WithField("service", "matrix"),
	}
}

// --- Reads ---

func (s *matrixService) GetMatrix(ctx context.Context, departmentID string) (*MatrixResponse, error) {
	id, err := parseID("department", departmentID)
	if err != nil {
		return nil, err
	}
	return s.loadMatrix(ctx, id)
}

func (s *matrixService) loadMatrix(ctx context.Context, departmentID uuid.UUID) (*MatrixResponse, error) {
	dept, err := s.depts.FindByID(ctx, departmentID)
	if err != nil {
		return nil, notFound("department", err)
	}
	rows, err := s.matrix.ListRows(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load matrix rows: %w", err)
	}
	cols, err := s.matrix.ListColumns(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load matrix columns: %w", err)
	}
	cells, err := s.matrix.ListCells(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load matrix cells: %w", err)
	}

	docIDs := make([]uuid.UUID, 0, len(cols))
	for _, c := range cols {
		docIDs = append(docIDs, c.DocumentID)
	}
	ruleCounts, err := s.docs.CountRules(ctx, docIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count document rules: %w", err)
	}

	res := &MatrixResponse{
		DepartmentID:   dept.ID.String(),
		DepartmentName: dept.Name,
		Status:         dept.MatrixStatus,
		RejectReason:   dept.MatrixRejectReason,
		Editable:       dept.MatrixStatus.Editable(),
		Rows:           make([]MatrixRowResponse, 0, len(rows)),
		Columns:        make([]MatrixColumnResponse, 0, len(cols)),
		Cells:          make([]MatrixCellResponse, 0, len(cells)),
	}
	for _, r := range rows {
		res.Rows = append(res.Rows, toMatrixRowResponse(r))
	}
	for _, c := range cols {
		col := MatrixColumnResponse{
			ID:         c.ID.String(),
			DocumentID: c.DocumentID.String(),
			RuleCount:  ruleCounts[c.DocumentID],
		}
		if c.Document != nil {
			col.DocumentName = c.Document.Name
		}
		res.Columns = append(res.Columns, col)
	}
	for _, c := range cells {
		res.Cells = append(res.Cells, toMatrixCellResponse(c))
	}
	return res, nil
}

func (s *matrixService) ListAvailablePositions(ctx context.Context, departmentID string) ([]PositionResponse, error) {
	id, err := parseID("department", departmentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.depts.FindByID(ctx, id); err != nil {
		return nil, notFound("department", err)
	}
	positions, err := s.positions.ListByDepartment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	rows, err := s.matrix.ListRows(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load matrix rows: %w", err)
	}
	present := make(map[uuid.UUID]bool, len(rows))
	for _, r := range rows {
		present[r.PositionID] = true
	}

	res := make([]PositionResponse, 0, len(positions))
	for _, p := range positions {
		if !present[p.ID] {
			res = append(res, toPositionResponse(p))
		}
	}
	return res, nil
}

func (s *matrixService) ListAvailableDocuments(ctx context.Context, departmentID string) ([]DocumentResponse, error) {
	id, err := parseID("department", departmentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.depts.FindByID(ctx, id); err != nil {
		return nil, notFound("department", err)
	}
	docs, _, err := s.docs.List(ctx, "", 1, 1000)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	cols, err := s.matrix.ListColumns(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load matrix columns: %w", err)
	}
	present := make(map[uuid.UUID]bool, len(cols))
	for _, c := range cols {
		present[c.DocumentID] = true
	}

	res := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		if !present[d.ID] {
			res = append(res, toDocumentResponse(d))
		}
	}
	return res, nil
}

// --- Row / column management ---

// lockEditable locks the department row and checks the actor may edit its matrix.
func (s *matrixService) lockEditable(ctx context.Context, actor Actor, departmentID uuid.UUID) (*model.Department, error) {
	dept, err := s.depts.FindByIDForUpdate(ctx, departmentID)
	if err != nil {
		return nil, notFound("department", err)
	}
	if !actor.HeadOf(dept.ID) {
		return nil, fmt.Errorf("%w: only the head of %s may edit its matrix", ErrForbidden, dept.Name)
	}
	if !dept.MatrixStatus.Editable() {
		return nil, fmt.Errorf("%w: department matrix is %s", ErrLocked, dept.MatrixStatus)
	}
	return dept, nil
}

func parseIDs(entity string, raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	seen := make(map[uuid.UUID]bool, len(raw))
	for _, r := range raw {
		id, err := parseID(entity, r)
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *matrixService) AddRows(ctx context.Context, actor Actor, departmentID string, req AddRowsRequest) (*MatrixResponse, error) {
	deptID, err := parseID("department", departmentID)
	if err != nil {
		return nil, err
	}
	positionIDs, err := parseIDs("position", req.PositionIDs)
	if err != nil {
		return nil, err
	}

	var added int
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		dept, err := s.lockEditable(txCtx, actor, deptID)
		if err != nil {
			return err
		}

		positions, err := s.positions.FindByIDs(txCtx, positionIDs)
		if err != nil {
			return fmt.Errorf("failed to load positions: %w", err)
		}
		if len(positions) != len(positionIDs) {
			return fmt.Errorf("position %w", ErrNotFound)
		}
		for _, p := range positions {
			if p.DepartmentID != dept.ID {
				return validationf("position %s does not belong to %s", p.Name, dept.Name)
			}
		}

		existing, err := s.matrix.ListRows(txCtx, dept.ID)
		if err != nil {
			return fmt.Errorf("failed to load matrix rows: %w", err)
		}
		present := make(map[uuid.UUID]bool, len(existing))
		for _, r := range existing {
			present[r.PositionID] = true
		}

		rows := make([]model.MatrixRow, 0, len(positionIDs))
		for _, pid := range positionIDs {
			if present[pid] {
				continue
			}
			rows = append(rows, model.MatrixRow{DepartmentID: dept.ID, PositionID: pid, Status: model.PositionPending})
		}
		if len(rows) == 0 {
			return conflictf("position already in matrix")
		}
		if err := s.matrix.CreateRows(txCtx, rows); err != nil {
			return fmt.Errorf("failed to add matrix rows: %w", err)
		}

		cols, err := s.matrix.ListColumns(txCtx, dept.ID)
		if err != nil {
			return fmt.Errorf("failed to load matrix columns: %w", err)
		}
		cells := make([]model.MatrixCell, 0, len(rows)*len(cols))
		for _, r := range rows {
			for _, c := range cols {
				cells = append(cells, model.MatrixCell{MatrixRowID: r.ID, DocumentID: c.DocumentID, Version: 1})
			}
		}
		if err := s.matrix.CreateCells(txCtx, cells); err != nil {
			return fmt.Errorf("failed to create matrix cells: %w", err)
		}

		added = len(rows)
		return writeAudit(txCtx, s.audit, actor, model.ActionMatrixAddRows, dept.ID.String(), dept.Name,
			map[string]interface{}{"added": added, "requested": len(positionIDs)})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ws.Event{Type: EventMatrixChanged, DepartmentID: deptID})
	return s.loadMatrix(ctx, deptID)
}

func (s *matrixService) AddColumns(ctx context.Context, actor Actor, departmentID string, req AddColumnsRequest) (*MatrixResponse, error) {
	deptID, err := parseID("department", departmentID)
	if err != nil {
		return nil, err
	}
	documentIDs, err := parseIDs("document", req.DocumentIDs)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		dept, err := s.lockEditable(txCtx, actor, deptID)
		if err != nil {
			return err
		}

		docs, err := s.docs.FindByIDs(txCtx, documentIDs)
		if err != nil {
			return fmt.Errorf("failed to load documents: %w", err)
		}
		if len(docs) != len(documentIDs) {
			return fmt.Errorf("document %w", ErrNotFound)
		}

		existing, err := s.matrix.ListColumns(txCtx, dept.ID)
		if err != nil {
			return fmt.Errorf("failed to load matrix columns: %w", err)
		}
		present := make(map[uuid.UUID]bool, len(existing))
		for _, c := range existing {
			present[c.DocumentID] = true
		}

		cols := make([]model.MatrixColumn, 0, len(documentIDs))
		for _, did := range documentIDs {
			if present[did] {
				continue
			}
			cols = append(cols, model.MatrixColumn{DepartmentID: dept.ID, DocumentID: did})
		}
		if len(cols) == 0 {
			return conflictf("document already in matrix")
		}
		if err := s.matrix.CreateColumns(txCtx, cols); err != nil {
			return fmt.Errorf("failed to add matrix columns: %w", err)
		}

		rows, err := s.matrix.ListRows(txCtx, dept.ID)
		if err != nil {
			return fmt.Errorf("failed to load matrix rows: %w", err)
		}
		cells := make([]model.MatrixCell, 0, len(rows)*len(cols))
		for _, r := range rows {
			for _, c := range cols {
				cells = append(cells, model.MatrixCell{MatrixRowID: r.ID, DocumentID: c.DocumentID, Version: 1})
			}
		}
		if err := s.matrix.CreateCells(txCtx, cells); err != nil {
			return fmt.Errorf("failed to create matrix cells: %w", err)
		}

		return writeAudit(txCtx, s.audit, actor, model.ActionMatrixAddColumns, dept.ID.String(), dept.Name,
			map[string]interface{}{"added": len(cols), "requested": len(documentIDs)})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ws.Event{Type: EventMatrixChanged, DepartmentID: deptID})
	return s.loadMatrix(ctx, deptID)
}

func requireConfirm(confirm bool) error {
	if !confirm {
		return validationf("destructive operation requires confirm=true")
	}
	return nil
}

// destroy runs a destructive matrix mutation under the department lock.
func (s *matrixService) destroy(ctx context.Context, actor Actor, departmentID string, confirm bool, action string,
	fn func(txCtx context.Context, dept *model.Department) (map[string]interface{}, error)) error {
	if err := requireConfirm(confirm); err != nil {
		return err
	}
	deptID, err := parseID("department", departmentID)
	if err != nil {
		return err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		dept, err := s.lockEditable(txCtx, actor, deptID)
		if err != nil {
			return err
		}
		details, err := fn(txCtx, dept)
		if err != nil {
			return err
		}
		return writeAudit(txCtx, s.audit, actor, action, dept.ID.String(), dept.Name, details)
	})
	if err != nil {
		return err
	}

	s.publish(ws.Event{Type: EventMatrixChanged, DepartmentID: deptID})
	return nil
}

func (s *matrixService) DeleteRow(ctx context.Context, actor Actor, departmentID, positionID string, confirm bool) error {
	posID, err := parseID("position", positionID)
	if err != nil {
		return err
	}
	return s.destroy(ctx, actor, departmentID, confirm, model.ActionMatrixDeleteRow,
		func(txCtx context.Context, dept *model.Department) (map[string]interface{}, error) {
			n, err := s.matrix.DeleteRows(txCtx, dept.ID, []uuid.UUID{posID})
			if err != nil {
				return nil, fmt.Errorf("failed to delete matrix row: %w", err)
			}
			if n == 0 {
				return nil, fmt.Errorf("matrix row %w", ErrNotFound)
			}
			return map[string]interface{}{"position_id": posID.String()}, nil
		})
}

func (s *matrixService) DeleteColumn(ctx context.Context, actor Actor, departmentID, documentID string, confirm bool) error {
	docID, err := parseID("document", documentID)
	if err != nil {
		return err
	}
	return s.destroy(ctx, actor, departmentID, confirm, model.ActionMatrixDeleteColumn,
		func(txCtx context.Context, dept *model.Department) (map[string]interface{}, error) {
			n, err := s.matrix.DeleteColumns(txCtx, dept.ID, []uuid.UUID{docID})
			if err != nil {
				return nil, fmt.Errorf("failed to delete matrix column: %w", err)
			}
			if n == 0 {
				return nil, fmt.Errorf("matrix column %w", ErrNotFound)
			}
			return map[string]interface{}{"document_id": docID.String()}, nil
		})
}

func (s *matrixService) DeleteAllRows(ctx context.Context, actor Actor, departmentID string, confirm bool) error {
	return s.destroy(ctx, actor, departmentID, confirm, model.ActionMatrixDeleteAllRows,
		func(txCtx context.Context, dept *model.Department) (map[string]interface{}, error) {
			n, err := s.matrix.DeleteAllRows(txCtx, dept.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to delete matrix rows: %w", err)
			}
			return map[string]interface{}{"rows": n}, nil
		})
}

func (s *matrixService) DeleteAllColumns(ctx context.Context, actor Actor, departmentID string, confirm bool) error {
	return s.destroy(ctx, actor, departmentID, confirm, model.ActionMatrixDeleteAllCols,
		func(txCtx context.Context, dept *model.Department) (map[string]interface{}, error) {
			n, err := s.matrix.DeleteAllColumns(txCtx, dept.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to delete matrix columns: %w", err)
			}
			return map[string]interface{}{"columns": n}, nil
		})
}

func (s *matrixService) ClearMatrix(ctx context.Context, actor Actor, departmentID string, confirm bool) error {
	return s.destroy(ctx, actor, departmentID, confirm, model.ActionMatrixClear,
		func(txCtx context.Context, dept *model.Department) (map[string]interface{}, error) {
			cols, err := s.matrix.DeleteAllColumns(txCtx, dept.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to delete matrix columns: %w", err)
			}
			rows, err := s.matrix.DeleteAllRows(txCtx, dept.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to delete matrix rows: %w", err)
			}
			if dept.MatrixStatus != model.MatrixUndrafted {
				if err := s.depts.UpdateMatrixStatus(txCtx, dept.ID, model.MatrixUndrafted, nil); err != nil {
					return nil, fmt.Errorf("failed to reset matrix status: %w", err)
				}
			}
			return map[string]interface{}{"rows": rows, "columns": cols}, nil
		})
}

// --- Cells ---

func (s *matrixService) ToggleCell(ctx context.Context, actor Actor, cellID string, req ToggleCellRequest) (*MatrixCellResponse, error) {
	id, err := parseID("cell", cellID)
	if err != nil {
		return nil, err
	}
	if req.CurrentRequired == nil {
		return nil, validationf("current_required is required")
	}

	var deptID uuid.UUID
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		cell, err := s.matrix.FindCell(txCtx, id)
		if err != nil {
			return notFound("cell", err)
		}
		row, err := s.matrix.FindRow(txCtx, cell.MatrixRowID)
		if err != nil {
			return notFound("matrix row", err)
		}
		dept, err := s.lockEditable(txCtx, actor, row.DepartmentID)
		if err != nil {
			return err
		}
		deptID = dept.ID

		// re-read under the department lock
		cell, err = s.matrix.FindCellForUpdate(txCtx, id)
		if err != nil {
			return notFound("cell", err)
		}
		if cell.Required != *req.CurrentRequired {
			return conflictf("cell was changed by someone else, reload the matrix")
		}

		details := map[string]interface{}{"document_id": cell.DocumentID.String(), "row_id": row.ID.String()}
		if cell.Required {
			details["required"] = false
		} else {
			rules, err := s.docs.ListRules(txCtx, cell.DocumentID)
			if err != nil {
				return fmt.Errorf("failed to load document rules: %w", err)
			}
			values, err := buildRuleValues(cell.ID, rules, req.RuleValues)
			if err != nil {
				return err
			}
			if len(rules) > 0 && len(values) == 0 {
				return validationf("at least one rule value is required before the document can be marked required")
			}
			if err := s.matrix.UpsertRuleValues(txCtx, values); err != nil {
				return fmt.Errorf("failed to save rule values: %w", err)
			}
			details["required"] = true
			details["rule_values"] = len(values)
		}

		ok, err := s.matrix.SetCellRequired(txCtx, cell.ID, !cell.Required, cell.Version)
		if err != nil {
			return fmt.Errorf("failed to update cell: %w", err)
		}
		if !ok {
			return conflictf("cell was changed by someone else, reload the matrix")
		}

		return writeAudit(txCtx, s.audit, actor, model.ActionMatrixToggleCell, cell.ID.String(), dept.Name, details)
	})
	if err != nil {
		return nil, err
	}

	cell, err := s.matrix.FindCell(ctx, id)
	if err != nil {
		return nil, notFound("cell", err)
	}
	s.publish(ws.Event{Type: EventCellToggled, DepartmentID: deptID})
	res := toMatrixCellResponse(*cell)
	return &res, nil
}

func (s *matrixService) GetCellRules(ctx context.Context, cellID string) (*CellRulesResponse, error) {
	id, err := parseID("cell", cellID)
	if err != nil {
		return nil, err
	}
	cell, err := s.matrix.FindCell(ctx, id)
	if err != nil {
		return nil, notFound("cell", err)
	}
	rules, err := s.docs.ListRules(ctx, cell.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document rules: %w", err)
	}

	values := make(map[uuid.UUID]string, len(cell.RuleValues))
	for _, v := range cell.RuleValues {
		values[v.RuleID] = v.Value
	}
	res := &CellRulesResponse{
		Cell:  toMatrixCellResponse(*cell),
		Rules: make([]CellRuleResponse, 0, len(rules)),
	}
	for _, r := range rules {
		res.Rules = append(res.Rules, CellRuleResponse{
			RuleID:      r.ID.String(),
			Name:        r.Name,
			Description: r.Description,
			ValueType:   r.ValueType,
			Value:       values[r.ID],
		})
	}
	return res, nil
}

// --- Lifecycle ---

func (s *matrixService) SubmitForReview(ctx context.Context, actor Actor, departmentID string) (*MatrixResponse, error) {
	deptID, err := parseID("department", departmentID)
	if err != nil {
		return nil, err
	}

	var dept *model.Department
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		dept, err = s.lockEditable(txCtx, actor, deptID)
		if err != nil {
			return err
		}
		next, ok := dept.MatrixStatus.Next(model.EventSubmit)
		if !ok {
			return fmt.Errorf("%w: cannot submit a %s matrix", ErrLocked, dept.MatrixStatus)
		}
		rows, cols, err := s.matrix.CountRowsAndColumns(txCtx, dept.ID)
		if err != nil {
			return fmt.Errorf("failed to count matrix: %w", err)
		}
		if rows == 0 || cols == 0 {
			return validationf("matrix needs at least one position and one document before submission")
		}
		if err := s.matrix.SetAllRowStatus(txCtx, dept.ID, model.PositionPending, nil); err != nil {
			return fmt.Errorf("failed to reset position statuses: %w", err)
		}
		if err := s.depts.UpdateMatrixStatus(txCtx, dept.ID, next, nil); err != nil {
			return fmt.Errorf("failed to update matrix status: %w", err)
		}
		dept.MatrixStatus = next
		return writeAudit(txCtx, s.audit, actor, model.ActionMatrixSubmit, dept.ID.String(), dept.Name,
			map[string]interface{}{"status": next})
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, dept, "submitted for review", model.RoleTrainingDirector)
	return s.loadMatrix(ctx, deptID)
}

// lockReviewable locks the department for a training director decision.
func (s *matrixService) lockReviewable(ctx context.Context, actor Actor, departmentID uuid.UUID) (*model.Department, error) {
	if !actor.Is(model.RoleTrainingDirector) {
		return nil, fmt.Errorf("%w: only the training director may review matrices", ErrForbidden)
	}
	dept, err := s.depts.FindByIDForUpdate(ctx, departmentID)
	if err != nil {
		return nil, notFound("department", err)
	}
	if !dept.MatrixStatus.Reviewable() {
		return nil, conflictf("department matrix is %s and cannot be reviewed", dept.MatrixStatus)
	}
	return dept, nil
}

func (s *matrixService) OpenReview(ctx context.Context, actor Actor, departmentID string) (*MatrixResponse, error) {
	deptID, err := parseID("department", departmentID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(model.RoleTrainingDirector) {
		return nil, fmt.Errorf("%w: only the training director may review matrices", ErrForbidden)
	}

	var dept *model.Department
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		dept, err = s.depts.FindByIDForUpdate(txCtx, deptID)
		if err != nil {
			return notFound("department", err)
		}
		next, ok := dept.MatrixStatus.Next(model.EventOpenReview)
		if !ok {
			return conflictf("only a drafted matrix can be opened for review, this one is %s", dept.MatrixStatus)
		}
		if err := s.depts.UpdateMatrixStatus(txCtx, dept.ID, next, nil); err != nil {
			return fmt.Errorf("failed to update matrix status: %w", err)
		}
		dept.MatrixStatus = next
		return writeAudit(txCtx, s.audit, actor, model.ActionMatrixOpenReview, dept.ID.String(), dept.Name, nil)
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, dept, "opened for review", model.RoleHeadOfDepartment)
	return s.loadMatrix(ctx, deptID)
}

func (s *matrixService) ApprovePosition(ctx context.Context, actor Actor, rowID string) (*MatrixResponse, error) {
	return s.decidePosition(ctx, actor, rowID, model.PositionApproved, "")
}

func (s *matrixService) RejectPosition(ctx context.Context, actor Actor, rowID, reason string) (*MatrixResponse, error) {
	if blank(reason) {
		return nil, validationf("reject reason is required")
	}
	return s.decidePosition(ctx, actor, rowID, model.PositionRejected, strings.TrimSpace(reason))
}

func (s *matrixService) decidePosition(ctx context.Context, actor Actor, rowID string, decision model.PositionStatus, reason string) (*MatrixResponse, error) {
	id, err := parseID("matrix row", rowID)
	if err != nil {
		return nil, err
	}

	var dept *model.Department
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		row, err := s.matrix.FindRow(txCtx, id)
		if err != nil {
			return notFound("matrix row", err)
		}
		dept, err = s.lockReviewable(txCtx, actor, row.DepartmentID)
		if err != nil {
			return err
		}

		var rowReason *string
		action := model.ActionMatrixApprovePosition
		if decision == model.PositionRejected {
			rowReason = &reason
			action = model.ActionMatrixRejectPosition
		}
		if err := s.matrix.SetRowStatus(txCtx, row.ID, decision, rowReason); err != nil {
			return fmt.Errorf("failed to update position status: %w", err)
		}

		statuses, err := s.matrix.RowStatuses(txCtx, dept.ID)
		if err != nil {
			return fmt.Errorf("failed to load position statuses: %w", err)
		}
		if next, ok := model.Aggregate(statuses); ok {
			var deptReason *string
			if next == model.MatrixRejected {
				deptReason = dept.MatrixRejectReason
				if rowReason != nil {
					r := positionName(row) + ": " + reason
					deptReason = &r
				}
			}
			if err := s.depts.UpdateMatrixStatus(txCtx, dept.ID, next, deptReason); err != nil {
				return fmt.Errorf("failed to update matrix status: %w", err)
			}
			dept.MatrixStatus = next
		}

		details := map[string]interface{}{"position_id": row.PositionID.String(), "department_status": dept.MatrixStatus}
		if rowReason != nil {
			details["reason"] = reason
		}
		return writeAudit(txCtx, s.audit, actor, action, row.ID.String(), positionName(row), details)
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, dept, "reviewed", model.RoleHeadOfDepartment)
	return s.loadMatrix(ctx, dept.ID)
}

func (s *matrixService) ApproveDepartment(ctx context.Context, actor Actor, departmentID string) (*MatrixResponse, error) {
	return s.decideDepartment(ctx, actor, departmentID, model.EventApprove, "")
}

func (s *matrixService) RejectDepartment(ctx context.Context, actor Actor, departmentID, reason string) (*MatrixResponse, error) {
	if blank(reason) {
		return nil, validationf("reject reason is required")
	}
	return s.decideDepartment(ctx, actor, departmentID, model.EventReject, strings.TrimSpace(reason))
}

func (s *matrixService) decideDepartment(ctx context.Context, actor Actor, departmentID string, ev model.MatrixEvent, reason string) (*MatrixResponse, error) {
	deptID, err := parseID("department", departmentID)
	if err != nil {
		return nil, err
	}

	var dept *model.Department
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		dept, err = s.lockReviewable(txCtx, actor, deptID)
		if err != nil {
			return err
		}
		next, ok := dept.MatrixStatus.Next(ev)
		if !ok {
			return conflictf("cannot %s a %s matrix", ev, dept.MatrixStatus)
		}

		rowStatus := model.PositionApproved
		action := model.ActionMatrixApprove
		var why *string
		if ev == model.EventReject {
			rowStatus = model.PositionRejected
			action = model.ActionMatrixReject
			why = &reason
		}
		if err := s.matrix.SetAllRowStatus(txCtx, dept.ID, rowStatus, why); err != nil {
			return fmt.Errorf("failed to update position statuses: %w", err)
		}
		if err := s.depts.UpdateMatrixStatus(txCtx, dept.ID, next, why); err != nil {
			return fmt.Errorf("failed to update matrix status: %w", err)
		}
		dept.MatrixStatus = next

		details := map[string]interface{}{"status": next}
		if why != nil {
			details["reason"] = reason
		}
		return writeAudit(txCtx, s.audit, actor, action, dept.ID.String(), dept.Name, details)
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, dept, strings.ToLower(string(dept.MatrixStatus)), model.RoleHeadOfDepartment)
	return s.loadMatrix(ctx, deptID)
}

func (s *matrixService) CompleteDepartment(ctx context.Context, actor Actor, departmentID string) (*MatrixResponse, error) {
	deptID, err := parseID("department", departmentID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(model.RoleAdmin) {
		return nil, fmt.Errorf("%w: only an admin may complete a matrix", ErrForbidden)
	}

	var dept *model.Department
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		dept, err = s.depts.FindByIDForUpdate(txCtx, deptID)
		if err != nil {
			return notFound("department", err)
		}
		next, ok := dept.MatrixStatus.Next(model.EventComplete)
		if !ok {
			return conflictf("only an approved matrix can be completed, this one is %s", dept.MatrixStatus)
		}
		if err := s.depts.UpdateMatrixStatus(txCtx, dept.ID, next, nil); err != nil {
			return fmt.Errorf("failed to update matrix status: %w", err)
		}
		dept.MatrixStatus = next
		return writeAudit(txCtx, s.audit, actor, model.ActionMatrixComplete, dept.ID.String(), dept.Name, nil)
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, dept, "completed", model.RoleHeadOfDepartment)
	return s.loadMatrix(ctx, deptID)
}

// --- Export ---

func (s *matrixService) ExportMatrixPDF(ctx context.Context, departmentID string) ([]byte, string, error) {
	m, err := s.GetMatrix(ctx, departmentID)
	if err != nil {
		return nil, "", err
	}

	required := make(map[string]bool, len(m.Cells))
	for _, c := range m.Cells {
		if c.Required {
			required[c.RowID+"/"+c.DocumentID] = true
		}
	}

	sheet := export.MatrixSheet{
		Department:  m.DepartmentName,
		Status:      string(m.Status),
		GeneratedAt: time.Now(),
	}
	if m.RejectReason != nil {
		sheet.RejectReason = *m.RejectReason
	}
	for _, c := range m.Columns {
		sheet.Columns = append(sheet.Columns, c.DocumentName)
	}
	for _, r := range m.Rows {
		line := export.MatrixSheetRow{Position: r.PositionName, Status: string(r.Status), Required: make([]bool, len(m.Columns))}
		for i, c := range m.Columns {
			line.Required[i] = required[r.ID+"/"+c.DocumentID]
		}
		sheet.Rows = append(sheet.Rows, line)
	}

	pdf, err := export.MatrixPDF(sheet)
	if err != nil {
		return nil, "", fmt.Errorf("failed to render matrix pdf: %w", err)
	}
	filename := fmt.Sprintf("matrix-%s.pdf", slug(m.DepartmentName))
	return pdf, filename, nil
}

// --- Helpers ---

func (s *matrixService) publish(ev ws.Event) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}

// afterTransition pushes the status event and mails the users concerned by the new status.
func (s *matrixService) afterTransition(ctx context.Context, dept *model.Department, what string, notifyRole string) {
	s.publish(ws.Event{Type: EventStatusChanged, DepartmentID: dept.ID, Status: dept.MatrixStatus})
	s.log.WithFields(logrus.Fields{
		"department": dept.Name,
		"status":     dept.MatrixStatus,
	}).Info("matrix " + what)

	if s.notifier == nil || s.users == nil {
		return
	}
	var (
		recipients []model.User
		err        error
	)
	if notifyRole == model.RoleHeadOfDepartment {
		recipients, err = s.users.ListByDepartmentAndRole(ctx, dept.ID, notifyRole)
	} else {
		recipients, err = s.users.ListByRole(ctx, notifyRole)
	}
	if err != nil {
		s.log.WithError(err).Warn("failed to resolve notification recipients")
		return
	}
	to := make([]string, 0, len(recipients))
	for _, u := range recipients {
		to = append(to, u.Email)
	}
	notify.Dispatch(s.notifier, s.log, notify.Message{
		To:      to,
		Subject: fmt.Sprintf("%s matrix %s", dept.Name, what),
		Text:    fmt.Sprintf("The document matrix of %s is now %s.", dept.Name, dept.MatrixStatus),
	})
}

func positionName(row *model.MatrixRow) string {
	if row.Position != nil {
		return row.Position.Name
	}
	return row.PositionID.String()
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "-"):
			b.WriteByte('-')
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func toMatrixRowResponse(r model.MatrixRow) MatrixRowResponse {
	res := MatrixRowResponse{
		ID:           r.ID.String(),
		PositionID:   r.PositionID.String(),
		Status:       r.Status,
		RejectReason: r.RejectReason,
	}
	if r.Position != nil {
		res.PositionName = r.Position.Name
	}
	return res
}

func toMatrixCellResponse(c model.MatrixCell) MatrixCellResponse {
	values := make([]RuleValueResponse, 0, len(c.RuleValues))
	for _, v := range c.RuleValues {
		values = append(values, RuleValueResponse{RuleID: v.RuleID.String(), Value: v.Value})
	}
	return MatrixCellResponse{
		ID:         c.ID.String(),
		RowID:      c.MatrixRowID.String(),
		DocumentID: c.DocumentID.String(),
		Required:   c.Required,
		Version:    c.Version,
		RuleValues: values,
	}
}

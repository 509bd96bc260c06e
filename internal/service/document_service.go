package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"academy/internal/model"
	"academy/internal/repository"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreateDocumentRequest struct {
	Name        string              `json:"name" binding:"required,notblank,max=255"`
	Description string              `json:"description"`
	Rules       []CreateRuleRequest `json:"rules" binding:"dive"`
}

type UpdateDocumentRequest struct {
	Name        *string `json:"name" binding:"omitempty,notblank,max=255"`
	Description *string `json:"description"`
}

type CreateRuleRequest struct {
	Name        string `json:"name" binding:"required,notblank,max=255"`
	Description string `json:"description"`
	ValueType   string `json:"value_type" binding:"omitempty,oneof=TEXT NUMBER DATE"`
}

type UpdateRuleRequest struct {
	Name        *string `json:"name" binding:"omitempty,notblank,max=255"`
	Description *string `json:"description"`
	ValueType   *string `json:"value_type" binding:"omitempty,oneof=TEXT NUMBER DATE"`
}

type RuleResponse struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ValueType   string `json:"value_type"`
}

type DocumentResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Rules       []RuleResponse `json:"rules"`
	CreatedAt   string         `json:"created_at"`
}

// --- Interface ---

type DocumentService interface {
	CreateDocument(ctx context.Context, actor Actor, req CreateDocumentRequest) (*DocumentResponse, error)
	GetDocument(ctx context.Context, id string) (*DocumentResponse, error)
	ListDocuments(ctx context.Context, search string, page, limit int) ([]DocumentResponse, int64, error)
	UpdateDocument(ctx context.Context, actor Actor, id string, req UpdateDocumentRequest) (*DocumentResponse, error)
	DeleteDocument(ctx context.Context, actor Actor, id string) error

	AddRule(ctx context.Context, actor Actor, documentID string, req CreateRuleRequest) (*RuleResponse, error)
	ListRules(ctx context.Context, documentID string) ([]RuleResponse, error)
	UpdateRule(ctx context.Context, actor Actor, ruleID string, req UpdateRuleRequest) (*RuleResponse, error)
	DeleteRule(ctx context.Context, actor Actor, ruleID string) error
}

type documentService struct {
	tx     repository.TransactionManager
	docs   repository.DocumentRepository
	matrix repository.MatrixRepository
	apps   repository.ApplicationRepository
	audit  repository.AuditRepository
}

func NewDocumentService(
	tx repository.TransactionManager,
	docs repository.DocumentRepository,
	matrix repository.MatrixRepository,
	apps repository.ApplicationRepository,
	audit repository.AuditRepository,
) DocumentService {
	return &documentService{tx: tx, docs: docs, matrix: matrix, apps: apps, audit: audit}
}

func toRuleResponse(r model.DocumentRule) RuleResponse {
	return RuleResponse{
		ID:          r.ID.String(),
		DocumentID:  r.DocumentID.String(),
		Name:        r.Name,
		Description: r.Description,
		ValueType:   r.ValueType,
	}
}

func toDocumentResponse(d model.Document) DocumentResponse {
	rules := make([]RuleResponse, 0, len(d.Rules))
	for _, r := range d.Rules {
		rules = append(rules, toRuleResponse(r))
	}
	return DocumentResponse{
		ID:          d.ID.String(),
		Name:        d.Name,
		Description: d.Description,
		Rules:       rules,
		CreatedAt:   d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func ruleValueType(raw string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", model.RuleValueText:
		return model.RuleValueText, nil
	case model.RuleValueNumber:
		return model.RuleValueNumber, nil
	case model.RuleValueDate:
		return model.RuleValueDate, nil
	}
	return "", validationf("unknown value type '%s'", raw)
}

func (s *documentService) ensureNameFree(ctx context.Context, name string, self uuid.UUID) error {
	existing, err := s.docs.FindByName(ctx, name)
	if err == nil && existing.ID != self {
		return conflictf("document '%s' already exists", name)
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to check document name: %w", err)
	}
	return nil
}

func (s *documentService) CreateDocument(ctx context.Context, actor Actor, req CreateDocumentRequest) (*DocumentResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationf("name is required")
	}

	doc := model.Document{Name: name, Description: req.Description}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.ensureNameFree(txCtx, name, uuid.Nil); err != nil {
			return err
		}
		if err := s.docs.Create(txCtx, &doc); err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}
		for _, r := range req.Rules {
			rule, err := newRule(doc.ID, r)
			if err != nil {
				return err
			}
			if err := s.docs.CreateRule(txCtx, &rule); err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}
			doc.Rules = append(doc.Rules, rule)
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionCreateDocument, doc.ID.String(), doc.Name,
			map[string]interface{}{"rules": len(doc.Rules)})
	})
	if err != nil {
		return nil, err
	}

	res := toDocumentResponse(doc)
	return &res, nil
}

func newRule(documentID uuid.UUID, req CreateRuleRequest) (model.DocumentRule, error) {
	if blank(req.Name) {
		return model.DocumentRule{}, validationf("rule name is required")
	}
	vt, err := ruleValueType(req.ValueType)
	if err != nil {
		return model.DocumentRule{}, err
	}
	return model.DocumentRule{
		DocumentID:  documentID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		ValueType:   vt,
	}, nil
}

func (s *documentService) GetDocument(ctx context.Context, id string) (*DocumentResponse, error) {
	docID, err := parseID("document", id)
	if err != nil {
		return nil, err
	}
	doc, err := s.docs.FindByIDWithRules(ctx, docID)
	if err != nil {
		return nil, notFound("document", err)
	}
	res := toDocumentResponse(*doc)
	return &res, nil
}

func (s *documentService) ListDocuments(ctx context.Context, search string, page, limit int) ([]DocumentResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	docs, total, err := s.docs.List(ctx, strings.TrimSpace(search), page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch documents: %w", err)
	}
	res := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		res = append(res, toDocumentResponse(d))
	}
	return res, total, nil
}

func (s *documentService) UpdateDocument(ctx context.Context, actor Actor, id string, req UpdateDocumentRequest) (*DocumentResponse, error) {
	docID, err := parseID("document", id)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		doc, err := s.docs.FindByID(txCtx, docID)
		if err != nil {
			return notFound("document", err)
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return validationf("name cannot be blank")
			}
			if name != doc.Name {
				if err := s.ensureNameFree(txCtx, name, doc.ID); err != nil {
					return err
				}
			}
			doc.Name = name
		}
		if req.Description != nil {
			doc.Description = *req.Description
		}
		if err := s.docs.Update(txCtx, doc); err != nil {
			return fmt.Errorf("failed to update document: %w", err)
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionUpdateDocument, doc.ID.String(), doc.Name, nil)
	})
	if err != nil {
		return nil, err
	}
	return s.GetDocument(ctx, id)
}

// DeleteDocument removes the document, its rules and every matrix column that references it.
func (s *documentService) DeleteDocument(ctx context.Context, actor Actor, id string) error {
	docID, err := parseID("document", id)
	if err != nil {
		return err
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		doc, err := s.docs.FindByID(txCtx, docID)
		if err != nil {
			return notFound("document", err)
		}
		n, err := s.apps.CountByDocument(txCtx, doc.ID)
		if err != nil {
			return fmt.Errorf("failed to check applications: %w", err)
		}
		if n > 0 {
			return conflictf("document %s is part of %d application(s) and cannot be deleted", doc.Name, n)
		}
		if err := s.matrix.DeleteByDocument(txCtx, doc.ID); err != nil {
			return fmt.Errorf("failed to delete matrix columns: %w", err)
		}
		if err := s.docs.Delete(txCtx, doc.ID); err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionDeleteDocument, doc.ID.String(), doc.Name, nil)
	})
}

func (s *documentService) AddRule(ctx context.Context, actor Actor, documentID string, req CreateRuleRequest) (*RuleResponse, error) {
	docID, err := parseID("document", documentID)
	if err != nil {
		return nil, err
	}
	rule, err := newRule(docID, req)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		doc, err := s.docs.FindByID(txCtx, docID)
		if err != nil {
			return notFound("document", err)
		}
		if err := s.ensureRulesEditable(txCtx, doc.ID); err != nil {
			return err
		}
		if err := s.docs.CreateRule(txCtx, &rule); err != nil {
			return fmt.Errorf("failed to create rule: %w", err)
		}
		released, err := s.releaseUnbackedCells(txCtx, doc.ID)
		if err != nil {
			return err
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionCreateRule, rule.ID.String(), rule.Name,
			map[string]interface{}{"document": doc.Name, "value_type": rule.ValueType, "cells_released": released})
	})
	if err != nil {
		return nil, err
	}

	res := toRuleResponse(rule)
	return &res, nil
}

func (s *documentService) ListRules(ctx context.Context, documentID string) ([]RuleResponse, error) {
	docID, err := parseID("document", documentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.docs.FindByID(ctx, docID); err != nil {
		return nil, notFound("document", err)
	}
	rules, err := s.docs.ListRules(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rules: %w", err)
	}
	res := make([]RuleResponse, 0, len(rules))
	for _, r := range rules {
		res = append(res, toRuleResponse(r))
	}
	return res, nil
}

func (s *documentService) UpdateRule(ctx context.Context, actor Actor, ruleID string, req UpdateRuleRequest) (*RuleResponse, error) {
	id, err := parseID("rule", ruleID)
	if err != nil {
		return nil, err
	}

	var rule *model.DocumentRule
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		rule, err = s.docs.FindRuleByID(txCtx, id)
		if err != nil {
			return notFound("rule", err)
		}
		if req.Name != nil {
			if blank(*req.Name) {
				return validationf("rule name cannot be blank")
			}
			rule.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			rule.Description = *req.Description
		}
		typeChanged := false
		if req.ValueType != nil {
			vt, err := ruleValueType(*req.ValueType)
			if err != nil {
				return err
			}
			typeChanged = vt != rule.ValueType
			rule.ValueType = vt
		}
		if typeChanged {
			if err := s.ensureRulesEditable(txCtx, rule.DocumentID); err != nil {
				return err
			}
		}
		if err := s.docs.UpdateRule(txCtx, rule); err != nil {
			return fmt.Errorf("failed to update rule: %w", err)
		}
		if !typeChanged {
			return writeAudit(txCtx, s.audit, actor, model.ActionUpdateRule, rule.ID.String(), rule.Name, nil)
		}

		dropped, err := s.renormalizeRuleValues(txCtx, *rule)
		if err != nil {
			return err
		}
		released, err := s.releaseUnbackedCells(txCtx, rule.DocumentID)
		if err != nil {
			return err
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionUpdateRule, rule.ID.String(), rule.Name,
			map[string]interface{}{"value_type": rule.ValueType, "values_dropped": dropped, "cells_released": released})
	})
	if err != nil {
		return nil, err
	}

	res := toRuleResponse(*rule)
	return &res, nil
}

func (s *documentService) DeleteRule(ctx context.Context, actor Actor, ruleID string) error {
	id, err := parseID("rule", ruleID)
	if err != nil {
		return err
	}
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		rule, err := s.docs.FindRuleByID(txCtx, id)
		if err != nil {
			return notFound("rule", err)
		}
		if err := s.ensureRulesEditable(txCtx, rule.DocumentID); err != nil {
			return err
		}
		if err := s.docs.DeleteRule(txCtx, rule.ID); err != nil {
			return fmt.Errorf("failed to delete rule: %w", err)
		}
		released, err := s.releaseUnbackedCells(txCtx, rule.DocumentID)
		if err != nil {
			return err
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionDeleteRule, rule.ID.String(), rule.Name,
			map[string]interface{}{"cells_released": released})
	})
}

// ensureRulesEditable refuses rule changes while the document is required in a matrix
// that is submitted or approved.
func (s *documentService) ensureRulesEditable(txCtx context.Context, documentID uuid.UUID) error {
	depts, err := s.matrix.DepartmentsRequiringDocument(txCtx, documentID)
	if err != nil {
		return fmt.Errorf("failed to check matrices: %w", err)
	}
	for _, d := range depts {
		if !d.MatrixStatus.Editable() {
			return fmt.Errorf("%w: document is required in the %s matrix, which is %s", ErrLocked, d.Name, d.MatrixStatus)
		}
	}
	return nil
}

// renormalizeRuleValues re-validates the stored values of a rule against its current
// value type and removes the ones that no longer parse.
func (s *documentService) renormalizeRuleValues(txCtx context.Context, rule model.DocumentRule) (int, error) {
	values, err := s.matrix.RuleValuesByRule(txCtx, rule.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load rule values: %w", err)
	}
	var keep []model.MatrixRuleValue
	var drop []uuid.UUID
	for _, v := range values {
		normalized, err := normalizeRuleValue(rule.ValueType, v.Value)
		if err != nil {
			drop = append(drop, v.ID)
			continue
		}
		if normalized != v.Value {
			v.Value = normalized
			keep = append(keep, v)
		}
	}
	if err := s.matrix.DeleteRuleValues(txCtx, drop); err != nil {
		return 0, fmt.Errorf("failed to delete rule values: %w", err)
	}
	if err := s.matrix.UpsertRuleValues(txCtx, keep); err != nil {
		return 0, fmt.Errorf("failed to save rule values: %w", err)
	}
	return len(drop), nil
}

// releaseUnbackedCells clears the required flag of cells that no longer hold a value for
// any of the document's rules. A document without rules needs no values.
func (s *documentService) releaseUnbackedCells(txCtx context.Context, documentID uuid.UUID) (int, error) {
	rules, err := s.docs.ListRules(txCtx, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to load document rules: %w", err)
	}
	if len(rules) == 0 {
		return 0, nil
	}
	ruleIDs := make(map[uuid.UUID]bool, len(rules))
	for _, r := range rules {
		ruleIDs[r.ID] = true
	}

	cells, err := s.matrix.RequiredCellsByDocument(txCtx, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to load required cells: %w", err)
	}
	released := 0
	for _, c := range cells {
		if cellBacked(c, ruleIDs) {
			continue
		}
		ok, err := s.matrix.SetCellRequired(txCtx, c.ID, false, c.Version)
		if err != nil {
			return 0, fmt.Errorf("failed to update cell: %w", err)
		}
		if !ok {
			return 0, conflictf("cell was changed by someone else, retry")
		}
		released++
	}
	return released, nil
}

func cellBacked(c model.MatrixCell, ruleIDs map[uuid.UUID]bool) bool {
	for _, v := range c.RuleValues {
		if ruleIDs[v.RuleID] && !blank(v.Value) {
			return true
		}
	}
	return false
}

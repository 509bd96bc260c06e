package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"academy/internal/model"
	"academy/internal/repository"
)

const batchDateLayout = "2006-01-02"

type CreateBatchRequest struct {
	Name      string `json:"name" binding:"required,notblank,max=255"`
	StartDate string `json:"start_date" binding:"required" example:"2026-09-01"`
	EndDate   string `json:"end_date" binding:"required" example:"2026-12-15"`
	Active    bool   `json:"active"`
}

type UpdateBatchRequest struct {
	Name      *string `json:"name" binding:"omitempty,notblank,max=255"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
	Active    *bool   `json:"active"`
}

type BatchResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Active    bool   `json:"active"`
	Open      bool   `json:"open"`
}

type BatchService interface {
	CreateBatch(ctx context.Context, actor Actor, req CreateBatchRequest) (*BatchResponse, error)
	GetBatch(ctx context.Context, id string) (*BatchResponse, error)
	GetActiveBatch(ctx context.Context) (*BatchResponse, error)
	ListBatches(ctx context.Context, page, limit int) ([]BatchResponse, int64, error)
	UpdateBatch(ctx context.Context, actor Actor, id string, req UpdateBatchRequest) (*BatchResponse, error)
	DeleteBatch(ctx context.Context, actor Actor, id string) error
}

type batchService struct {
	tx      repository.TransactionManager
	batches repository.BatchRepository
	apps    repository.ApplicationRepository
	audit   repository.AuditRepository
	now     func() time.Time
}

func NewBatchService(
	tx repository.TransactionManager,
	batches repository.BatchRepository,
	apps repository.ApplicationRepository,
	audit repository.AuditRepository,
) BatchService {
	return &batchService{tx: tx, batches: batches, apps: apps, audit: audit, now: time.Now}
}

func (s *batchService) toResponse(b model.Batch) BatchResponse {
	return BatchResponse{
		ID:        b.ID.String(),
		Name:      b.Name,
		StartDate: b.StartDate.Format(batchDateLayout),
		EndDate:   b.EndDate.Format(batchDateLayout),
		Active:    b.Active,
		Open:      b.Open(s.now()),
	}
}

func parseBatchDate(field, raw string) (time.Time, error) {
	t, err := time.Parse(batchDateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, validationf("%s must be a date (YYYY-MM-DD)", field)
	}
	return t, nil
}

func checkBatchWindow(b model.Batch) error {
	if !b.EndDate.After(b.StartDate) {
		return validationf("end_date must be after start_date")
	}
	return nil
}

func (s *batchService) CreateBatch(ctx context.Context, actor Actor, req CreateBatchRequest) (*BatchResponse, error) {
	start, err := parseBatchDate("start_date", req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseBatchDate("end_date", req.EndDate)
	if err != nil {
		return nil, err
	}
	batch := model.Batch{Name: strings.TrimSpace(req.Name), StartDate: start, EndDate: end, Active: req.Active}
	if batch.Name == "" {
		return nil, validationf("name is required")
	}
	if err := checkBatchWindow(batch); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.batches.Create(txCtx, &batch); err != nil {
			return fmt.Errorf("failed to create batch: %w", err)
		}
		if batch.Active {
			if err := s.batches.DeactivateAllExcept(txCtx, batch.ID); err != nil {
				return fmt.Errorf("failed to deactivate other batches: %w", err)
			}
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionCreateBatch, batch.ID.String(), batch.Name,
			map[string]interface{}{"active": batch.Active})
	})
	if err != nil {
		return nil, err
	}

	res := s.toResponse(batch)
	return &res, nil
}

func (s *batchService) GetBatch(ctx context.Context, id string) (*BatchResponse, error) {
	batchID, err := parseID("batch", id)
	if err != nil {
		return nil, err
	}
	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		return nil, notFound("batch", err)
	}
	res := s.toResponse(*batch)
	return &res, nil
}

func (s *batchService) GetActiveBatch(ctx context.Context) (*BatchResponse, error) {
	batch, err := s.batches.FindActive(ctx)
	if err != nil {
		return nil, notFound("active batch", err)
	}
	res := s.toResponse(*batch)
	return &res, nil
}

func (s *batchService) ListBatches(ctx context.Context, page, limit int) ([]BatchResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	batches, total, err := s.batches.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch batches: %w", err)
	}
	res := make([]BatchResponse, 0, len(batches))
	for _, b := range batches {
		res = append(res, s.toResponse(b))
	}
	return res, total, nil
}

func (s *batchService) UpdateBatch(ctx context.Context, actor Actor, id string, req UpdateBatchRequest) (*BatchResponse, error) {
	batchID, err := parseID("batch", id)
	if err != nil {
		return nil, err
	}

	var batch *model.Batch
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		batch, err = s.batches.FindByID(txCtx, batchID)
		if err != nil {
			return notFound("batch", err)
		}
		if req.Name != nil {
			if blank(*req.Name) {
				return validationf("name cannot be blank")
			}
			batch.Name = strings.TrimSpace(*req.Name)
		}
		if req.StartDate != nil {
			if batch.StartDate, err = parseBatchDate("start_date", *req.StartDate); err != nil {
				return err
			}
		}
		if req.EndDate != nil {
			if batch.EndDate, err = parseBatchDate("end_date", *req.EndDate); err != nil {
				return err
			}
		}
		if err := checkBatchWindow(*batch); err != nil {
			return err
		}
		if req.Active != nil {
			batch.Active = *req.Active
		}
		if err := s.batches.Update(txCtx, batch); err != nil {
			return fmt.Errorf("failed to update batch: %w", err)
		}
		if batch.Active {
			if err := s.batches.DeactivateAllExcept(txCtx, batch.ID); err != nil {
				return fmt.Errorf("failed to deactivate other batches: %w", err)
			}
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionUpdateBatch, batch.ID.String(), batch.Name,
			map[string]interface{}{"active": batch.Active})
	})
	if err != nil {
		return nil, err
	}

	res := s.toResponse(*batch)
	return &res, nil
}

func (s *batchService) DeleteBatch(ctx context.Context, actor Actor, id string) error {
	batchID, err := parseID("batch", id)
	if err != nil {
		return err
	}
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		batch, err := s.batches.FindByID(txCtx, batchID)
		if err != nil {
			return notFound("batch", err)
		}
		_, n, err := s.apps.List(txCtx, repository.ApplicationFilter{BatchID: &batch.ID, Page: 1, Limit: 1})
		if err != nil {
			return fmt.Errorf("failed to check applications: %w", err)
		}
		if n > 0 {
			return conflictf("batch %s has %d application(s) and cannot be deleted", batch.Name, n)
		}
		if err := s.batches.Delete(txCtx, batch.ID); err != nil {
			return fmt.Errorf("failed to delete batch: %w", err)
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionDeleteBatch, batch.ID.String(), batch.Name, nil)
	})
}

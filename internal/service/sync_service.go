package service

import (
	"context"
	"log"
	"strings"

	"church-pos/internal/model"
	"church-pos/internal/repository"
	"church-pos/pkg/apperror"

	"github.com/google/uuid"
)

type SyncService interface {
	PushBatch(ctx context.Context, actor *model.Actor, sales []CreateSaleRequest) (*SyncResult, error)
}

type SyncSuccess struct {
	IdempotencyKey string    `json:"idempotency_key"`
	SaleID         uuid.UUID `json:"sale_id"`
	TicketNumber   int       `json:"ticket_number"`
}

type SyncDuplicate struct {
	IdempotencyKey string    `json:"idempotency_key"`
	SaleID         uuid.UUID `json:"sale_id"`
}

type SyncFailure struct {
	Index          int           `json:"index"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	Error          string        `json:"error"`
	Kind           apperror.Kind `json:"kind"`
}

type SyncResult struct {
	Successes  []SyncSuccess   `json:"successes"`
	Failures   []SyncFailure   `json:"failures"`
	Duplicates []SyncDuplicate `json:"duplicates"`
}

type syncService struct {
	sales    SaleService
	saleRepo repository.SaleRepository
	maxBatch int
}

func NewSyncService(sales SaleService, saleRepo repository.SaleRepository, maxBatch int) SyncService {
	return &syncService{sales: sales, saleRepo: saleRepo, maxBatch: maxBatch}
}

// PushBatch replays offline sales one by one; an item's failure never aborts the batch
func (s *syncService) PushBatch(ctx context.Context, actor *model.Actor, sales []CreateSaleRequest) (*SyncResult, error) {
	if err := requirePrivilege(actor, model.PrivSyncPush); err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return nil, apperror.Validation("sync batch is empty")
	}
	if s.maxBatch > 0 && len(sales) > s.maxBatch {
		return nil, apperror.Validation("sync batch of %d sales exceeds the limit of %d", len(sales), s.maxBatch)
	}

	result := &SyncResult{
		Successes:  []SyncSuccess{},
		Failures:   []SyncFailure{},
		Duplicates: []SyncDuplicate{},
	}

	for i := range sales {
		req := sales[i]
		key := strings.TrimSpace(req.IdempotencyKey)
		if key == "" {
			result.Failures = append(result.Failures, SyncFailure{
				Index: i,
				Error: ErrIdempotencyKey.Error(),
				Kind:  ErrIdempotencyKey.Kind,
			})
			continue
		}

		if existing, err := s.saleRepo.FindByIdempotencyKey(ctx, key); err == nil {
			result.Duplicates = append(result.Duplicates, SyncDuplicate{IdempotencyKey: key, SaleID: existing.ID})
			continue
		}

		res, err := s.sales.CreateSale(ctx, actor, &req)
		if err != nil {
			log.Printf("Sync: sale %s failed: %v", key, err)
			kind := apperror.KindOf(err)
			message := err.Error()
			if kind == apperror.KindInternal {
				message = "internal error"
			}
			result.Failures = append(result.Failures, SyncFailure{
				Index:          i,
				IdempotencyKey: key,
				Error:          message,
				Kind:           kind,
			})
			continue
		}
		if res.Duplicate {
			result.Duplicates = append(result.Duplicates, SyncDuplicate{IdempotencyKey: key, SaleID: res.Sale.ID})
			continue
		}
		result.Successes = append(result.Successes, SyncSuccess{
			IdempotencyKey: key,
			SaleID:         res.Sale.ID,
			TicketNumber:   res.Sale.TicketNumber,
		})
	}

	log.Printf("Sync batch from %s: %d ok, %d duplicate, %d failed",
		actor.Name, len(result.Successes), len(result.Duplicates), len(result.Failures))
	return result, nil
}

package services

import (
	"context"
	"encoding/json"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/bobs-corn/corn_api/dto"
	"github.com/bobs-corn/corn_api/model"
	"github.com/bobs-corn/corn_api/shared"
)

// PurchaseLedger is the durable store of purchase rows. Production
// implementation is PostgresService.
type PurchaseLedger interface {
	CreatePurchase(purchase *model.Purchase) (*model.Purchase, error)
	FindPurchases(filter model.PurchaseFilter, limit, offset int) ([]model.Purchase, error)
	CountPurchases(filter model.PurchaseFilter) (int64, error)
}

// RateLimitChecker is the admission gate in front of the ledger.
type RateLimitChecker interface {
	CheckAndRecord(ctx context.Context, key string) error
}

// PurchaseService orchestrates admission and history reads. Admission
// is check-then-insert with no transaction spanning the two stores: a
// recorded rate-limit entry whose purchase insert then fails is a
// self-healing inconsistency, the window expires on its own.
type PurchaseService struct {
	appContext.DefaultService

	ledger  PurchaseLedger
	limiter RateLimitChecker
}

const PURCHASE_SVC = "purchase_svc"

func (svc PurchaseService) Id() string {
	return PURCHASE_SVC
}

func (svc *PurchaseService) Start() error {
	svc.ledger = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.limiter = svc.Service(RATE_LIMIT_SVC).(*RateLimitService)
	return nil
}

// Purchase admits or rejects one purchase attempt for clientIP. On
// rejection the limiter's error propagates unchanged and nothing is
// persisted. Not idempotent: every admitted call creates a new row.
func (svc *PurchaseService) Purchase(ctx context.Context, clientIP string) (*dto.PurchaseResult, error) {
	start := time.Now()

	if err := svc.limiter.CheckAndRecord(ctx, clientIP); err != nil {
		return nil, err
	}

	purchase := &model.Purchase{
		ClientIP: clientIP,
		Status:   model.PurchaseStatusSuccess,
		Meta:     json.RawMessage("{}"),
	}

	purchase, err := svc.ledger.CreatePurchase(purchase)
	if err != nil {
		log.WithFields(log.Fields{
			"client_ip": clientIP,
			"duration":  time.Since(start).String(),
			"error":     err.Error(),
		}).Error("Error during corn purchase process")
		return nil, err
	}

	log.WithFields(log.Fields{
		"purchase_id": purchase.ID,
		"client_ip":   clientIP,
		"duration":    time.Since(start).String(),
	}).Info("Corn purchased successfully")

	return &dto.PurchaseResult{
		Success:   true,
		Message:   shared.PurchaseSuccessMessage,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// GetPurchases returns one page of the client's history plus the total
// matching count. The total is a second independent read; page and
// total may drift under concurrent writes, acceptable for a read-mostly
// history view.
func (svc *PurchaseService) GetPurchases(ctx context.Context, query dto.PurchaseQuery) (*dto.PurchaseListResponse, error) {
	limit := shared.DefaultQueryLimit
	if query.Limit != nil {
		limit = *query.Limit
		if limit < 1 {
			limit = 1
		}
		if limit > shared.MaxQueryLimit {
			limit = shared.MaxQueryLimit
		}
	}

	offset := 0
	if query.Offset != nil && *query.Offset > 0 {
		offset = *query.Offset
	}

	filter := model.PurchaseFilter{
		ClientIP: query.ClientIP,
		Status:   model.PurchaseStatus(query.Status),
	}

	purchases, err := svc.ledger.FindPurchases(filter, limit, offset)
	if err != nil {
		return nil, err
	}

	total, err := svc.ledger.CountPurchases(filter)
	if err != nil {
		return nil, err
	}

	if purchases == nil {
		purchases = []model.Purchase{}
	}

	return &dto.PurchaseListResponse{
		Purchases: purchases,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	}, nil
}

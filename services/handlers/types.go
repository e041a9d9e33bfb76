package handlers

import (
	"context"

	"github.com/bobs-corn/corn_api/dto"
)

type PurchaseServiceInterface interface {
	Purchase(ctx context.Context, clientIP string) (*dto.PurchaseResult, error)
	GetPurchases(ctx context.Context, query dto.PurchaseQuery) (*dto.PurchaseListResponse, error)
}

type HealthServiceInterface interface {
	Check(ctx context.Context) *dto.HealthResponse
}

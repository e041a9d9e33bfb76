package dto

import "github.com/bobs-corn/corn_api/model"

type PurchaseResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// PurchaseQuery carries the /purchases query parameters. Limit and
// Offset are pointers so an absent parameter (use the default) can be
// told apart from an explicit zero (clamped up to 1).
type PurchaseQuery struct {
	ClientIP string `json:"-" query:"-"`
	Limit    *int   `query:"limit"`
	Offset   *int   `query:"offset"`
	Status   string `query:"status" validate:"omitempty,oneof=success rate_limited failed"`
}

func (q PurchaseQuery) Validate() error {
	return GetValidator().Struct(q)
}

type PurchaseListResponse struct {
	Purchases []model.Purchase `json:"purchases"`
	Total     int64            `json:"total"`
	Limit     int              `json:"limit"`
	Offset    int              `json:"offset"`
}

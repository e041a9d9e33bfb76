package model

import (
	"encoding/json"
	"time"
)

type PurchaseStatus string

const (
	PurchaseStatusSuccess     PurchaseStatus = "success"
	PurchaseStatusRateLimited PurchaseStatus = "rate_limited"
	PurchaseStatusFailed      PurchaseStatus = "failed"
)

// Purchase is an append-only ledger row. There is no update or delete
// path; rows are created once per admitted purchase attempt.
type Purchase struct {
	ID        string          `json:"id" gorm:"primaryKey;type:text;not null"`
	ClientIP  string          `json:"clientIp" gorm:"column:client_ip;not null;index;size:45"`
	Status    PurchaseStatus  `json:"status" gorm:"not null;index;size:20"`
	Meta      json.RawMessage `json:"meta" gorm:"type:jsonb;default:'{}'"`
	CreatedAt time.Time       `json:"createdAt" gorm:"not null;index"`
}

type PurchaseFilter struct {
	ClientIP string
	Status   PurchaseStatus
}

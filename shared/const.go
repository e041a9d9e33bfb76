package shared

import "time"

const (
	RateLimitKeyPrefix    = "rate_limit:purchase:"
	RateLimitExpiryBuffer = 10 * time.Second

	DefaultWindowSeconds = 60
	DefaultMaxRequests   = 1

	DefaultQueryLimit = 50
	MaxQueryLimit     = 100

	UnknownClientIP = "unknown"

	PurchaseSuccessMessage = "Corn purchased successfully from Bob! 🌽"
)

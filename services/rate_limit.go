package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/bobs-corn/corn_api/shared"
)

// RateLimitStore is the external keyed store the limiter coordinates
// through. Production implementation is RedisService; tests use an
// in-memory double.
type RateLimitStore interface {
	PurgeExpired(ctx context.Context, key string, before time.Time) error
	CountCurrent(ctx context.Context, key string) (int64, error)
	AddEntry(ctx context.Context, key string, at time.Time) error
	SetExpiry(ctx context.Context, key string, ttl time.Duration) error
}

// RateLimitWindow is the process-wide limiter policy: at most
// MaxRequests admitted within any trailing Seconds-second interval.
type RateLimitWindow struct {
	Seconds     int
	MaxRequests int
}

func (w RateLimitWindow) Duration() time.Duration {
	return time.Duration(w.Seconds) * time.Second
}

func (w RateLimitWindow) describe() string {
	noun := "purchase"
	if w.MaxRequests != 1 {
		noun = "purchases"
	}

	var span string
	switch {
	case w.Seconds == 60:
		span = "minute"
	case w.Seconds%60 == 0:
		span = fmt.Sprintf("%d minutes", w.Seconds/60)
	default:
		span = fmt.Sprintf("%d seconds", w.Seconds)
	}

	return fmt.Sprintf("%d %s per %s", w.MaxRequests, noun, span)
}

// RateLimitService decides admission over a sliding window of recorded
// request timestamps. The check and the record are two separate store
// round-trips, not one atomic operation: concurrent requests from the
// same key can both pass the check before either records. Accepted as
// soft limiting, not a security boundary.
type RateLimitService struct {
	appContext.DefaultService

	store  RateLimitStore
	window RateLimitWindow
}

const RATE_LIMIT_SVC = "rate_limit_svc"

func (svc RateLimitService) Id() string {
	return RATE_LIMIT_SVC
}

func (svc *RateLimitService) Configure(ctx *appContext.Context) error {
	svc.window = RateLimitWindow{
		Seconds:     shared.DefaultWindowSeconds,
		MaxRequests: shared.DefaultMaxRequests,
	}

	if v := os.Getenv("RATE_LIMIT_WINDOW_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds <= 0 {
			return fmt.Errorf("invalid RATE_LIMIT_WINDOW_SECONDS: %q", v)
		}
		svc.window.Seconds = seconds
	}

	if v := os.Getenv("RATE_LIMIT_MAX_REQUESTS"); v != "" {
		max, err := strconv.Atoi(v)
		if err != nil || max <= 0 {
			return fmt.Errorf("invalid RATE_LIMIT_MAX_REQUESTS: %q", v)
		}
		svc.window.MaxRequests = max
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *RateLimitService) Start() error {
	svc.store = svc.Service(REDIS_SVC).(*RedisService)

	log.WithFields(log.Fields{
		"window_seconds": svc.window.Seconds,
		"max_requests":   svc.window.MaxRequests,
	}).Info("Rate limiter configured")
	return nil
}

func (svc *RateLimitService) Window() RateLimitWindow {
	return svc.window
}

// IsRateLimited purges entries older than the window, counts the rest
// and compares against the policy. Store errors fail open: the request
// is admitted and the error is logged, availability over enforcement.
func (svc *RateLimitService) IsRateLimited(ctx context.Context, key string) bool {
	now := time.Now()
	windowStart := now.Add(-svc.window.Duration())

	if err := svc.store.PurgeExpired(ctx, key, windowStart); err != nil {
		log.WithFields(log.Fields{"key": key, "error": err.Error()}).
			Error("Error checking rate limit, allowing request")
		return false
	}

	count, err := svc.store.CountCurrent(ctx, key)
	if err != nil {
		log.WithFields(log.Fields{"key": key, "error": err.Error()}).
			Error("Error checking rate limit, allowing request")
		return false
	}

	limited := count >= int64(svc.window.MaxRequests)
	if limited {
		log.WithFields(log.Fields{
			"key":            key,
			"count":          count,
			"max_requests":   svc.window.MaxRequests,
			"window_seconds": svc.window.Seconds,
		}).Debug("Rate limit exceeded")
	}

	return limited
}

// RecordRequest adds an entry at now and refreshes the key's TTL to the
// window plus a small buffer for store/clock skew. Recording is best
// effort: errors are logged and swallowed, a lost record only weakens
// future enforcement and must never fail the admitted request.
func (svc *RateLimitService) RecordRequest(ctx context.Context, key string) {
	now := time.Now()

	if err := svc.store.AddEntry(ctx, key, now); err != nil {
		log.WithFields(log.Fields{"key": key, "error": err.Error()}).
			Error("Error recording request for rate limiting")
		return
	}

	if err := svc.store.SetExpiry(ctx, key, svc.window.Duration()+shared.RateLimitExpiryBuffer); err != nil {
		log.WithFields(log.Fields{"key": key, "error": err.Error()}).
			Error("Error setting rate limit key expiry")
	}
}

// CheckAndRecord runs the check first and records only when it passed.
// A rejected request is not recorded again.
func (svc *RateLimitService) CheckAndRecord(ctx context.Context, key string) error {
	if svc.IsRateLimited(ctx, key) {
		log.WithFields(log.Fields{
			"client_ip":      key,
			"window_seconds": svc.window.Seconds,
			"max_requests":   svc.window.MaxRequests,
		}).Warn("Rate limit exceeded for client - blocking request")

		return shared.NewTooManyRequestsError(
			fmt.Sprintf("Too many requests. Maximum %s allowed.", svc.window.describe()))
	}

	svc.RecordRequest(ctx, key)
	return nil
}

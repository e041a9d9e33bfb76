package services

import (
	"context"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/bobs-corn/corn_api/dto"
)

type healthProber interface {
	HealthCheck(ctx context.Context) bool
}

// HealthService probes the two external stores independently. It never
// returns an error; a failing probe is flagged false and the HTTP
// boundary maps the aggregate to 200/503.
type HealthService struct {
	appContext.DefaultService

	db    healthProber
	cache healthProber

	startedAt time.Time
}

const HEALTH_SVC = "health_svc"

func (svc HealthService) Id() string {
	return HEALTH_SVC
}

func (svc *HealthService) Start() error {
	svc.startedAt = time.Now()
	svc.db = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.cache = svc.Service(REDIS_SVC).(*RedisService)
	return nil
}

func (svc *HealthService) Check(ctx context.Context) *dto.HealthResponse {
	res := &dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(svc.startedAt).Seconds(),
	}

	res.Services.Database = svc.probe(ctx, "database", svc.db)
	res.Services.Cache = svc.probe(ctx, "cache", svc.cache)

	if !res.Healthy() {
		log.WithFields(log.Fields{
			"database": res.Services.Database,
			"cache":    res.Services.Cache,
			"uptime":   res.Uptime,
		}).Warn("Some services are unhealthy")
	}

	return res
}

func (svc *HealthService) probe(ctx context.Context, name string, p healthProber) bool {
	if p == nil {
		return false
	}

	ok := p.HealthCheck(ctx)
	if !ok {
		log.WithField("service", name).Warn("Health probe failed")
	}
	return ok
}

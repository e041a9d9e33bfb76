package services

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	log "github.com/sirupsen/logrus"

	"github.com/bobs-corn/corn_api/services/handlers"
	"github.com/bobs-corn/corn_api/shared"
)

type HttpService struct {
	appContext.DefaultService

	purchaseSvc   *PurchaseService
	healthSvc     *HealthService
	monitoringSvc *MonitoringService

	port   int
	server *fiber.App
}

const HTTP_SVC = "http_svc"

func (svc HttpService) Id() string {
	return HTTP_SVC
}

func (svc *HttpService) Configure(ctx *appContext.Context) error {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		var err error
		if svc.port, err = strconv.Atoi(port); err != nil {
			return err
		}
	} else {
		svc.port = 8000
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	svc.purchaseSvc = svc.Service(PURCHASE_SVC).(*PurchaseService)
	svc.healthSvc = svc.Service(HEALTH_SVC).(*HealthService)
	svc.monitoringSvc = svc.Service(MONITORING_SVC).(*MonitoringService)

	svc.server = svc.newApp(
		handlers.NewPurchaseHandler(svc.purchaseSvc),
		handlers.NewHealthHandler(svc.healthSvc),
		svc.monitoringSvc,
	)

	log.WithField("port", svc.port).Info("HTTP server started")
	return svc.server.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) Shutdown() {
	if svc.server != nil {
		_ = svc.server.Shutdown()
	}
}

func (svc *HttpService) newApp(purchases *handlers.PurchaseHandler, health *handlers.HealthHandler, monitoring *MonitoringService) *fiber.App {
	app := fiber.New(fiber.Config{
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	if monitoring != nil {
		app.Use(monitoringMiddleware(monitoring))
	}

	app.Get("/health", health.Check)

	v1 := app.Group("/api/v1")
	v1.Post("/corn", purchases.PurchaseCorn)
	v1.Get("/purchases", purchases.GetPurchases)

	app.Use(func(c *fiber.Ctx) error {
		return shared.NewNotFoundError("Route not found")
	})

	return app
}

// errorHandler renders every error as the API's error body. AppErrors
// carry their own status and code; anything else becomes an opaque 500
// so no internal detail leaks to the client.
func errorHandler(c *fiber.Ctx, err error) error {
	appErr, ok := shared.GetAppError(err)
	if !ok {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			appErr = &shared.AppError{
				Code:       shared.CodeBadRequest,
				Message:    fiberErr.Message,
				StatusCode: fiberErr.Code,
			}
			if fiberErr.Code == fiber.StatusNotFound {
				appErr.Code = shared.CodeNotFound
			}
			if fiberErr.Code >= fiber.StatusInternalServerError {
				appErr = shared.NewInternalError(err)
			}
		} else {
			appErr = shared.NewInternalError(err)
		}
	}

	logEntry := log.WithFields(log.Fields{
		"method":      c.Method(),
		"path":        c.Path(),
		"status_code": appErr.StatusCode,
		"error_code":  appErr.Code,
		"error":       err.Error(),
	})

	switch {
	case appErr.StatusCode >= 500:
		logEntry.Error("Request failed")
	case appErr.StatusCode == fiber.StatusTooManyRequests:
		logEntry.Warn("Request rate limited")
	default:
		logEntry.Warn("Request rejected")
	}

	errBody := fiber.Map{
		"code":    appErr.Code,
		"message": appErr.Message,
	}
	if appErr.Details != nil {
		errBody["details"] = appErr.Details
	}

	return c.Status(appErr.StatusCode).JSON(fiber.Map{
		"error":     errBody,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"path":      c.Path(),
	})
}

func monitoringMiddleware(monitoring *MonitoringService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		// Errors are rendered by the app error handler after this
		// middleware unwinds, so the response status is not set yet.
		status := strconv.Itoa(c.Response().StatusCode())
		if err != nil {
			if appErr, ok := shared.GetAppError(err); ok {
				status = strconv.Itoa(appErr.StatusCode)
			}
		}

		monitoring.RecordRequest(c.Method(), c.Route().Path, status, time.Since(start).Seconds())

		return err
	}
}

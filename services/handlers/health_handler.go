package handlers

import (
	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	healthSvc HealthServiceInterface
}

func NewHealthHandler(healthSvc HealthServiceInterface) *HealthHandler {
	return &HealthHandler{
		healthSvc: healthSvc,
	}
}

// @Summary Health check
// @Description Probes the database and cache; 200 when both are up, 503 otherwise
// @Tags health
// @Accept  json
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Router /health [get]
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	result := h.healthSvc.Check(c.Context())

	status := fiber.StatusOK
	if !result.Healthy() {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(result)
}

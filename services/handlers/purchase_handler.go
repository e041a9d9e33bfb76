package handlers

import (
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/bobs-corn/corn_api/dto"
	"github.com/bobs-corn/corn_api/shared"
)

type PurchaseHandler struct {
	purchaseSvc PurchaseServiceInterface
}

func NewPurchaseHandler(purchaseSvc PurchaseServiceInterface) *PurchaseHandler {
	return &PurchaseHandler{
		purchaseSvc: purchaseSvc,
	}
}

// @Summary Buy corn
// @Description Admits or rejects one purchase for the calling client IP (1 per minute by default)
// @Tags corn
// @Accept  json
// @Produce json
// @Success 200 {object} dto.PurchaseResult
// @Router /api/v1/corn [post]
func (h *PurchaseHandler) PurchaseCorn(c *fiber.Ctx) error {
	clientIP := ClientIP(c)

	log.WithFields(log.Fields{
		"method":    c.Method(),
		"path":      c.Path(),
		"client_ip": clientIP,
	}).Info("Received purchase request")

	result, err := h.purchaseSvc.Purchase(c.Context(), clientIP)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// @Summary Purchase history
// @Description Paginated purchase history for the calling client IP
// @Tags corn
// @Accept  json
// @Produce json
// @Param limit query int false "Page size, clamped to [1,100], default 50"
// @Param offset query int false "Page offset, default 0"
// @Param status query string false "Status filter" Enums(success, rate_limited, failed)
// @Success 200 {object} dto.PurchaseListResponse
// @Router /api/v1/purchases [get]
func (h *PurchaseHandler) GetPurchases(c *fiber.Ctx) error {
	var query dto.PurchaseQuery
	if err := c.QueryParser(&query); err != nil {
		return shared.NewValidationError(err.Error())
	}

	if err := query.Validate(); err != nil {
		return shared.NewValidationError(dto.FormatValidationErrors(err))
	}

	query.ClientIP = ClientIP(c)

	result, err := h.purchaseSvc.GetPurchases(c.Context(), query)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// ClientIP resolves the caller's address: first X-Forwarded-For hop,
// then X-Real-IP, then the connection remote address.
func ClientIP(c *fiber.Ctx) string {
	if forwarded := c.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if ip := strings.TrimSpace(ips[0]); ip != "" {
			return ip
		}
	}

	if realIP := c.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	if ip := c.IP(); ip != "" {
		if host, _, err := net.SplitHostPort(ip); err == nil {
			return host
		}
		return ip
	}

	return shared.UnknownClientIP
}

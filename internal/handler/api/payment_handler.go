package api

import (
	"errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"vlessbot/internal/service"
)

// PaymentHandler exposes the check-payment action: given a payment id the
// user claims to have paid, verify it with the gateway and settle.
type PaymentHandler struct {
	settlement *service.SettlementService
	log        *zap.Logger
}

func NewPaymentHandler(settlement *service.SettlementService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{settlement: settlement, log: log}
}

// Check handles POST /api/payments/:id/check.
func (h *PaymentHandler) Check(c echo.Context) error {
	paymentID := c.Param("id")
	if paymentID == "" {
		return errorResponse(c, "payment id is required")
	}

	result, err := h.settlement.Settle(c.Request().Context(), paymentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			return errorResponse(c, "payment not found")
		case errors.Is(err, service.ErrNotPaid):
			return errorResponse(c, "invoice is not paid yet")
		case errors.Is(err, service.ErrInvoiceExpired):
			return errorResponse(c, "invoice expired")
		case errors.Is(err, service.ErrAlreadySettled):
			return errorResponse(c, "payment already settled")
		case errors.Is(err, service.ErrCheckInProgress):
			return errorResponse(c, "check already in progress, try again in a moment")
		}
		h.log.Error("settlement failed",
			zap.String("payment_id", paymentID), zap.Error(err))
		return errorResponse(c, "settlement failed")
	}

	obj := map[string]interface{}{"kind": result.Intent.Kind}
	if result.Provision != nil {
		obj["subscription_id"] = result.Provision.Subscription.ID
		obj["vless_link"] = result.Provision.VlessLink
		obj["subscription_link"] = result.Provision.SubscriptionLink
	}
	return successResponse(c, "payment settled", obj)
}

package api

import (
	"errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"vlessbot/internal/service"
)

// OrderHandler exposes the purchase-side actions the bot frontend calls:
// invoice creation, promo redemption and trial activation.
type OrderHandler struct {
	orders       *service.OrdersService
	promos       *service.PromoService
	provisioning *service.ProvisioningService
	log          *zap.Logger
}

func NewOrderHandler(orders *service.OrdersService, promos *service.PromoService, provisioning *service.ProvisioningService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, promos: promos, provisioning: provisioning, log: log}
}

type createInvoiceRequest struct {
	UserID string                `json:"user_id"`
	Intent service.PaymentIntent `json:"intent"`
}

// CreateInvoice handles POST /api/invoices.
func (h *OrderHandler) CreateInvoice(c echo.Context) error {
	var req createInvoiceRequest
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return errorResponse(c, "user_id and intent are required")
	}

	invoice, err := h.orders.CreateInvoice(c.Request().Context(), req.UserID, req.Intent)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTariffNotFound):
			return errorResponse(c, "no tariff for this category and duration")
		case errors.Is(err, service.ErrTrialNotRenewable):
			return errorResponse(c, "trial subscriptions cannot be renewed")
		}
		h.log.Error("invoice creation failed",
			zap.String("user", req.UserID), zap.Error(err))
		return errorResponse(c, "invoice creation failed")
	}

	return successResponse(c, "invoice created", map[string]interface{}{
		"payment_id":  invoice.PaymentID,
		"payment_url": invoice.PaymentURL,
		"amount_rub":  invoice.AmountRub,
	})
}

type redeemRequest struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

// RedeemPromo handles POST /api/promocodes/redeem.
func (h *OrderHandler) RedeemPromo(c echo.Context) error {
	var req redeemRequest
	if err := c.Bind(&req); err != nil || req.UserID == "" || req.Code == "" {
		return errorResponse(c, "user_id and code are required")
	}

	promo, err := h.promos.Redeem(req.UserID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPromoNotFound):
			return errorResponse(c, "promocode not found")
		case errors.Is(err, service.ErrPromoExpired):
			return errorResponse(c, "promocode is no longer valid")
		case errors.Is(err, service.ErrPromoExhausted):
			return errorResponse(c, "promocode usage cap reached")
		case errors.Is(err, service.ErrPromoAlreadyUsed):
			return errorResponse(c, "promocode already redeemed")
		}
		h.log.Error("promo redemption failed",
			zap.String("user", req.UserID), zap.Error(err))
		return errorResponse(c, "redemption failed")
	}

	return successResponse(c, "promocode redeemed", map[string]interface{}{
		"discount_type":  promo.DiscountType,
		"discount_value": promo.DiscountValue,
	})
}

type trialRequest struct {
	UserID string `json:"user_id"`
}

// ActivateTrial handles POST /api/trial/activate.
func (h *OrderHandler) ActivateTrial(c echo.Context) error {
	var req trialRequest
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return errorResponse(c, "user_id is required")
	}

	result, err := h.provisioning.ActivateTrial(c.Request().Context(), req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTrialDisabled):
			return errorResponse(c, "trial activation is disabled")
		case errors.Is(err, service.ErrNoTrialDays):
			return errorResponse(c, "no trial days left")
		case errors.Is(err, service.ErrNoActiveServer):
			return errorResponse(c, "no active server available")
		}
		h.log.Error("trial activation failed",
			zap.String("user", req.UserID), zap.Error(err))
		return errorResponse(c, "trial activation failed")
	}

	return successResponse(c, "trial activated", map[string]interface{}{
		"subscription_id":   result.Subscription.ID,
		"expiry":            result.Subscription.Expiry,
		"vless_link":        result.VlessLink,
		"subscription_link": result.SubscriptionLink,
	})
}

type reduceTrafficRequest struct {
	UserID  string `json:"user_id"`
	DeltaGB int    `json:"delta_gb"`
}

// ReduceTraffic handles POST /api/subscriptions/:id/traffic/reduce.
// Lowering a limit is free; extra traffic is bought through an invoice.
func (h *OrderHandler) ReduceTraffic(c echo.Context) error {
	var req reduceTrafficRequest
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return errorResponse(c, "user_id and delta_gb are required")
	}
	if req.DeltaGB >= 0 {
		return errorResponse(c, "delta_gb must be negative, extra traffic requires an invoice")
	}

	err := h.provisioning.ApplyTrafficDelta(c.Request().Context(), req.UserID, c.Param("id"), req.DeltaGB)
	if err != nil {
		if errors.Is(err, service.ErrTrafficFloor) {
			return errorResponse(c, "traffic limit cannot go below the floor")
		}
		h.log.Error("traffic reduction failed",
			zap.String("id", c.Param("id")), zap.Error(err))
		return errorResponse(c, "traffic reduction failed")
	}
	return successResponse(c, "traffic limit updated", nil)
}

type deleteRequest struct {
	UserID string `json:"user_id"`
}

// DeleteSubscription handles POST /api/subscriptions/:id/delete.
func (h *OrderHandler) DeleteSubscription(c echo.Context) error {
	var req deleteRequest
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return errorResponse(c, "user_id is required")
	}

	if err := h.provisioning.Delete(c.Request().Context(), req.UserID, c.Param("id")); err != nil {
		h.log.Error("subscription deletion failed",
			zap.String("id", c.Param("id")), zap.Error(err))
		return errorResponse(c, "deletion failed")
	}
	return successResponse(c, "subscription deleted", nil)
}

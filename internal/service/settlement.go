package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"vlessbot/internal/models"
	"vlessbot/internal/payment"
)

// Provisioner is the slice of the provisioning service the settlement
// dispatcher needs. Narrowed for tests.
type Provisioner interface {
	Create(ctx context.Context, userTgID, serverID string, durationDays, trafficGB int) (*ProvisionResult, error)
	Renew(ctx context.Context, userTgID, subscriptionID string, extraDays int) error
	ApplyTrafficDelta(ctx context.Context, userTgID, subscriptionID string, deltaGB int) error
	ResetTraffic(ctx context.Context, userTgID, subscriptionID string) error
}

// PaymentStore persists and claims pending payments.
type PaymentStore interface {
	FindByID(paymentID string) (*models.PendingPayment, error)
	Claim(paymentID string, at time.Time) (bool, error)
}

// DiscountConsumer clears the pending discount consumed by a settlement.
type DiscountConsumer interface {
	ClearPendingDiscount(tgID string) error
}

// SubmitGuard suppresses rapid duplicate check-payment submissions for
// the same payment id. Durable replay protection is the claim marker on
// the payment row; this only shields the gateway from hammering.
type SubmitGuard interface {
	Acquire(key string) bool
	Release(key string)
}

// SettlementResult tells the interactive path what a paid invoice did.
type SettlementResult struct {
	Intent    PaymentIntent
	Provision *ProvisionResult
}

// SettlementService verifies a pending payment against the gateway,
// claims it exactly once and dispatches its intent to the provisioner.
type SettlementService struct {
	gateway     payment.Gateway
	payments    PaymentStore
	provisioner Provisioner
	discounts   DiscountConsumer
	guard       SubmitGuard
	log         *zap.Logger
}

func NewSettlementService(
	gateway payment.Gateway,
	payments PaymentStore,
	provisioner Provisioner,
	discounts DiscountConsumer,
	guard SubmitGuard,
	log *zap.Logger,
) *SettlementService {
	return &SettlementService{
		gateway:     gateway,
		payments:    payments,
		provisioner: provisioner,
		discounts:   discounts,
		guard:       guard,
		log:         log,
	}
}

// Settle checks the invoice status and, when paid, applies the intent.
// The claim happens before dispatch, so a duplicate confirmation can
// never re-execute the effect; a dispatch failure after a successful
// claim is logged as divergence for manual reconciliation.
func (s *SettlementService) Settle(ctx context.Context, paymentID string) (*SettlementResult, error) {
	if !s.guard.Acquire(paymentID) {
		return nil, ErrCheckInProgress
	}
	defer s.guard.Release(paymentID)

	row, err := s.payments.FindByID(paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	if row.ConsumedAt != nil {
		return nil, ErrAlreadySettled
	}

	invoiceID, err := parseInvoiceID(row.BotInvoiceID)
	if err != nil {
		return nil, err
	}
	status, err := s.gateway.InvoiceStatus(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("check invoice: %w", err)
	}
	switch status {
	case payment.StatusPaid:
	case payment.StatusExpired:
		return nil, ErrInvoiceExpired
	default:
		return nil, ErrNotPaid
	}

	intent, err := DecodeIntent(row.Payload)
	if err != nil {
		return nil, err
	}

	claimed, err := s.payments.Claim(paymentID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("claim payment: %w", err)
	}
	if !claimed {
		return nil, ErrAlreadySettled
	}

	result, err := s.dispatch(ctx, row.UserID, intent)
	if err != nil {
		s.log.Error("payment claimed but effect failed, needs manual reconciliation",
			zap.String("payment_id", paymentID),
			zap.String("user", row.UserID),
			zap.String("kind", intent.Kind),
			zap.Error(err))
		return nil, err
	}

	if err := s.discounts.ClearPendingDiscount(row.UserID); err != nil {
		s.log.Warn("settled but pending discount not cleared",
			zap.String("user", row.UserID), zap.Error(err))
	}

	s.log.Info("payment settled",
		zap.String("payment_id", paymentID),
		zap.String("user", row.UserID),
		zap.String("kind", intent.Kind))
	return &SettlementResult{Intent: intent, Provision: result}, nil
}

func (s *SettlementService) dispatch(ctx context.Context, userTgID string, intent PaymentIntent) (*ProvisionResult, error) {
	switch intent.Kind {
	case IntentNewSubscription:
		return s.provisioner.Create(ctx, userTgID, intent.ServerID, intent.DurationDays, intent.TrafficGB)
	case IntentRenewal:
		return nil, s.provisioner.Renew(ctx, userTgID, intent.SubscriptionID, intent.ExtraDays)
	case IntentTrafficAdd:
		return nil, s.provisioner.ApplyTrafficDelta(ctx, userTgID, intent.SubscriptionID, intent.DeltaGB)
	case IntentTrafficReset:
		return nil, s.provisioner.ResetTraffic(ctx, userTgID, intent.SubscriptionID)
	}
	return nil, fmt.Errorf("unknown payment intent kind %q", intent.Kind)
}

func parseInvoiceID(raw string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(raw, "%d", &id); err != nil {
		return 0, fmt.Errorf("malformed invoice id %q: %w", raw, err)
	}
	return id, nil
}

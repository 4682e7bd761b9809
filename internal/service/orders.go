package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"vlessbot/internal/models"
	"vlessbot/internal/payment"
	"vlessbot/internal/repository"
)

// Pricing for traffic add-ons, per started 100 GB block and per manual
// reset. Tariff rows price everything duration-shaped.
const (
	trafficAddPricePer100GB = 300
	trafficResetPriceRub    = 150

	minInvoiceRub = 10
)

// Invoice is the result handed back to the interactive path: pay here,
// then submit this payment id for checking.
type Invoice struct {
	PaymentID  string
	PaymentURL string
	AmountRub  int
}

// OrdersService prices a payment intent, applies the user's pending
// discount and opens an invoice on the gateway. The intent is frozen on
// the pending payment row; settlement decodes it back.
type OrdersService struct {
	gateway  payment.Gateway
	payments *repository.PaymentRepository
	users    *repository.UserRepository
	tariffs  *repository.TariffRepository
	servers  *repository.ServerRepository
	subs     *repository.SubscriptionRepository
	log      *zap.Logger
}

func NewOrdersService(
	gateway payment.Gateway,
	payments *repository.PaymentRepository,
	users *repository.UserRepository,
	tariffs *repository.TariffRepository,
	servers *repository.ServerRepository,
	subs *repository.SubscriptionRepository,
	log *zap.Logger,
) *OrdersService {
	return &OrdersService{
		gateway:  gateway,
		payments: payments,
		users:    users,
		tariffs:  tariffs,
		servers:  servers,
		subs:     subs,
		log:      log,
	}
}

// CreateInvoice opens a gateway invoice for the intent and records the
// pending payment. The discount is applied to the price here but stays
// pending until settlement consumes it.
func (s *OrdersService) CreateInvoice(ctx context.Context, userTgID string, intent PaymentIntent) (*Invoice, error) {
	payload, err := EncodeIntent(intent)
	if err != nil {
		return nil, err
	}
	user, err := s.users.EnsureExists(userTgID, "", "")
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	price, description, err := s.price(intent)
	if err != nil {
		return nil, err
	}
	price = applyDiscount(price, user)

	paymentID := uuid.NewString()
	result, err := s.gateway.CreateInvoice(ctx, price, description, paymentID)
	if err != nil {
		return nil, fmt.Errorf("create gateway invoice: %w", err)
	}

	row := &models.PendingPayment{
		PaymentID:    paymentID,
		BotInvoiceID: strconv.FormatInt(result.InvoiceID, 10),
		Payload:      payload,
		CreatedAt:    time.Now().UTC(),
		UserID:       userTgID,
	}
	if err := s.payments.Create(row); err != nil {
		return nil, fmt.Errorf("persist pending payment: %w", err)
	}

	s.log.Info("invoice created",
		zap.String("payment_id", paymentID),
		zap.String("user", userTgID),
		zap.String("kind", intent.Kind),
		zap.Int("amount_rub", price))
	return &Invoice{
		PaymentID:  paymentID,
		PaymentURL: result.PaymentURL,
		AmountRub:  price,
	}, nil
}

func (s *OrdersService) price(intent PaymentIntent) (int, string, error) {
	switch intent.Kind {
	case IntentNewSubscription:
		server, err := s.servers.FindByID(intent.ServerID)
		if err != nil {
			return 0, "", fmt.Errorf("find server: %w", err)
		}
		tariff, err := s.findTariff(server.Category(), intent.DurationDays)
		if err != nil {
			return 0, "", err
		}
		desc := fmt.Sprintf("VPN %s, %d days", server.Label(), tariff.DurationDays)
		return tariff.PriceRub, desc, nil

	case IntentRenewal:
		sub, err := s.subs.FindByID(intent.SubscriptionID)
		if err != nil {
			return 0, "", fmt.Errorf("find subscription: %w", err)
		}
		if sub.IsTrial() {
			return 0, "", ErrTrialNotRenewable
		}
		server, err := s.servers.FindByID(sub.ServerID)
		if err != nil {
			return 0, "", fmt.Errorf("find server: %w", err)
		}
		tariff, err := s.findTariff(server.Category(), intent.ExtraDays)
		if err != nil {
			return 0, "", err
		}
		desc := fmt.Sprintf("Renewal %s, %d days", sub.ShortID(), tariff.DurationDays)
		return tariff.PriceRub, desc, nil

	case IntentTrafficAdd:
		if intent.DeltaGB <= 0 {
			return 0, "", fmt.Errorf("traffic purchase requires a positive delta, got %d", intent.DeltaGB)
		}
		blocks := (intent.DeltaGB + 99) / 100
		desc := fmt.Sprintf("Extra traffic +%d GB", intent.DeltaGB)
		return blocks * trafficAddPricePer100GB, desc, nil

	case IntentTrafficReset:
		return trafficResetPriceRub, "Traffic counter reset", nil
	}
	return 0, "", fmt.Errorf("unknown payment intent kind %q", intent.Kind)
}

func (s *OrdersService) findTariff(category string, days int) (*models.Tariff, error) {
	tariffs, err := s.tariffs.FindActiveByCategory(category)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTariffNotFound
		}
		return nil, fmt.Errorf("load tariffs: %w", err)
	}
	for i := range tariffs {
		if tariffs[i].DurationDays == days {
			return &tariffs[i], nil
		}
	}
	return nil, ErrTariffNotFound
}

// applyDiscount reduces the price by the user's pending discount, clamped
// to the gateway's minimum invoice amount.
func applyDiscount(priceRub int, user *models.User) int {
	if user.PendingDiscountType == nil || user.PendingDiscountValue == nil {
		return priceRub
	}
	switch *user.PendingDiscountType {
	case models.DiscountPercent:
		priceRub -= priceRub * *user.PendingDiscountValue / 100
	case models.DiscountFixedRub:
		priceRub -= *user.PendingDiscountValue
	}
	if priceRub < minInvoiceRub {
		priceRub = minInvoiceRub
	}
	return priceRub
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"vlessbot/internal/models"
)

// ActivateTrial consumes the user's entire remaining trial-day balance in
// one activation. An unexpired trial subscription is extended by the full
// balance; otherwise a fresh trial is created on the first active server.
// Either path zeroes the balance together with the grant.
func (s *ProvisioningService) ActivateTrial(ctx context.Context, userTgID string) (*ProvisionResult, error) {
	if !s.trial.Enabled {
		return nil, ErrTrialDisabled
	}
	user, err := s.users.EnsureExists(userTgID, "", "")
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	if user.TrialDaysLeft <= 0 {
		return nil, ErrNoTrialDays
	}

	if existing := s.findUnexpiredTrial(userTgID); existing != nil {
		return s.extendTrial(ctx, user, existing)
	}

	server, err := s.servers.FindFirstActive()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveServer
		}
		return nil, fmt.Errorf("find trial server: %w", err)
	}

	result, err := s.create(ctx, userTgID, server, models.TariffTrial, user.TrialDaysLeft, s.trial.TrafficGB)
	if err != nil {
		return nil, err
	}
	if err := s.users.ZeroTrialDays(userTgID); err != nil {
		s.log.Error("trial granted but balance not zeroed",
			zap.String("user", userTgID), zap.Error(err))
		return nil, fmt.Errorf("consume trial balance: %w", err)
	}

	s.log.Info("trial activated",
		zap.String("user", userTgID),
		zap.Int("days", user.TrialDaysLeft),
		zap.String("id", result.Subscription.ID))
	return result, nil
}

func (s *ProvisioningService) findUnexpiredTrial(userTgID string) *models.Subscription {
	trials, err := s.subs.FindTrialsByUser(userTgID)
	if err != nil {
		return nil
	}
	now := time.Now().UTC()
	for i := range trials {
		if trials[i].Expiry.After(now) {
			return &trials[i]
		}
	}
	return nil
}

func (s *ProvisioningService) extendTrial(ctx context.Context, user *models.User, sub *models.Subscription) (*ProvisionResult, error) {
	server, err := s.servers.FindByID(sub.ServerID)
	if err != nil {
		return nil, fmt.Errorf("find server: %w", err)
	}

	unlock := s.locker.Lock(server.ID, server.InboundID)
	defer unlock()

	client := s.panels(server)
	defer client.Close()
	if err := client.ExtendClientExpiry(ctx, server.InboundID, sub.ClientEmail, user.TrialDaysLeft); err != nil {
		return nil, fmt.Errorf("extend trial expiry: %w", err)
	}

	newExpiry := sub.Expiry.Add(time.Duration(user.TrialDaysLeft) * 24 * time.Hour)
	if err := s.subs.Update(sub.ID, map[string]interface{}{
		"expiry":             newExpiry,
		"notify_expiry_sent": false,
	}); err != nil {
		s.log.Error("remote trial extended but local update failed",
			zap.String("id", sub.ID), zap.Error(err))
		return nil, fmt.Errorf("persist trial extension: %w", err)
	}
	if err := s.users.ZeroTrialDays(user.TgID); err != nil {
		s.log.Error("trial extended but balance not zeroed",
			zap.String("user", user.TgID), zap.Error(err))
		return nil, fmt.Errorf("consume trial balance: %w", err)
	}

	sub.Expiry = newExpiry
	s.log.Info("trial extended",
		zap.String("user", user.TgID),
		zap.Int("days", user.TrialDaysLeft),
		zap.String("id", sub.ID))
	return &ProvisionResult{
		Subscription:     sub,
		VlessLink:        sub.VlessLink,
		SubscriptionLink: sub.SubscriptionLink,
	}, nil
}

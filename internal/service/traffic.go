package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vlessbot/internal/models"
)

// NewTrafficLimit applies a GB delta to a current limit, enforcing the
// absolute floor. Kept as a pure function so the policy is testable
// without a store or a panel.
func NewTrafficLimit(currentGB, deltaGB, floorGB int) (int, error) {
	next := currentGB + deltaGB
	if next < floorGB {
		return currentGB, fmt.Errorf("%w: %d GB < %d GB", ErrTrafficFloor, next, floorGB)
	}
	return next, nil
}

// ApplyTrafficDelta moves a subscription's traffic ceiling by deltaGB.
// The remote quota is pushed first; the local limit, the cumulative
// extra-traffic counter and the stale threshold flags follow.
func (s *ProvisioningService) ApplyTrafficDelta(ctx context.Context, userTgID, subscriptionID string, deltaGB int) error {
	sub, err := s.subs.FindByIDAndOwner(subscriptionID, userTgID)
	if err != nil {
		return fmt.Errorf("find subscription: %w", err)
	}
	newLimit, err := NewTrafficLimit(sub.TrafficLimitGB, deltaGB, s.traffic.FloorGB)
	if err != nil {
		return err
	}
	server, err := s.servers.FindByID(sub.ServerID)
	if err != nil {
		return fmt.Errorf("find server: %w", err)
	}

	unlock := s.locker.Lock(server.ID, server.InboundID)
	defer unlock()

	client := s.panels(server)
	defer client.Close()
	if err := client.UpdateClientTrafficLimit(ctx, server.InboundID, sub.ClientEmail, newLimit); err != nil {
		return fmt.Errorf("update remote traffic limit: %w", err)
	}

	addons := sub.DecodeAddons()
	addons.ExtraTrafficGB += deltaGB
	if err := s.subs.Update(sub.ID, map[string]interface{}{
		"traffic_limit_gb":       newLimit,
		"addons":                 models.EncodeAddons(addons),
		"notify_traffic_80_sent": false,
		"notify_traffic_95_sent": false,
	}); err != nil {
		s.log.Error("remote limit updated but local update failed",
			zap.String("id", sub.ID), zap.Error(err))
		return fmt.Errorf("persist traffic limit: %w", err)
	}

	s.log.Info("traffic limit changed",
		zap.String("id", sub.ID),
		zap.String("user", userTgID),
		zap.Int("delta_gb", deltaGB),
		zap.Int("new_limit_gb", newLimit))
	return nil
}

// ResetTraffic zeroes the panel-side counter and the cached local usage,
// bumps the manual reset counter and clears the threshold flags. The
// monthly-reset anchor is untouched; a paid reset is not a billing cycle.
func (s *ProvisioningService) ResetTraffic(ctx context.Context, userTgID, subscriptionID string) error {
	sub, err := s.subs.FindByIDAndOwner(subscriptionID, userTgID)
	if err != nil {
		return fmt.Errorf("find subscription: %w", err)
	}
	server, err := s.servers.FindByID(sub.ServerID)
	if err != nil {
		return fmt.Errorf("find server: %w", err)
	}

	client := s.panels(server)
	defer client.Close()
	if _, err := client.ResetClientTraffic(ctx, server.InboundID, sub.ClientEmail); err != nil {
		return fmt.Errorf("reset remote traffic: %w", err)
	}

	addons := sub.DecodeAddons()
	addons.TrafficResetCount++
	if err := s.subs.Update(sub.ID, map[string]interface{}{
		"traffic_used_bytes":     0,
		"addons":                 models.EncodeAddons(addons),
		"notify_traffic_80_sent": false,
		"notify_traffic_95_sent": false,
	}); err != nil {
		s.log.Error("remote traffic reset but local update failed",
			zap.String("id", sub.ID), zap.Error(err))
		return fmt.Errorf("persist traffic reset: %w", err)
	}

	s.log.Info("traffic reset",
		zap.String("id", sub.ID),
		zap.String("user", userTgID),
		zap.Int("reset_count", addons.TrafficResetCount))
	return nil
}

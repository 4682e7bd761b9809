package cron

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vlessbot/internal/models"
)

// purgeExpired deletes subscriptions whose expiry lies further in the
// past than the grace window. The remote client is removed first; when
// that fails the local row stays for the next cycle, so a still
// provisioned client is never lost track of.
func (s *Scheduler) purgeExpired(ctx context.Context) {
	defer s.recoverFromPanic("purgeExpired")

	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.Jobs.ExpiryGraceDays)
	subs, err := s.repos.Subscription.FindExpiredBefore(cutoff)
	if err != nil {
		s.log.Error("load expired subscriptions failed", zap.Error(err))
		return
	}
	if len(subs) == 0 {
		return
	}

	byServer := make(map[string][]models.Subscription)
	serverIDs := make([]string, 0, 8)
	for _, sub := range subs {
		if _, ok := byServer[sub.ServerID]; !ok {
			serverIDs = append(serverIDs, sub.ServerID)
		}
		byServer[sub.ServerID] = append(byServer[sub.ServerID], sub)
	}
	servers, err := s.repos.Server.FindByIDs(serverIDs)
	if err != nil {
		s.log.Error("load servers failed", zap.Error(err))
		return
	}

	for serverID, group := range byServer {
		if ctx.Err() != nil {
			return
		}
		server, ok := servers[serverID]
		if !ok {
			s.log.Warn("expired subscriptions reference missing server, skipping",
				zap.String("server_id", serverID),
				zap.Int("count", len(group)))
			continue
		}

		client := s.panels(&server)
		for _, sub := range group {
			if _, err := client.DeleteClientByEmail(ctx, server.InboundID, sub.ClientEmail); err != nil {
				s.log.Warn("remote delete failed, keeping local row for retry",
					zap.String("id", sub.ID),
					zap.String("server_id", serverID),
					zap.Error(err))
				continue
			}
			if err := s.repos.Subscription.Delete(sub.ID); err != nil {
				s.log.Error("remote client deleted but local delete failed",
					zap.String("id", sub.ID), zap.Error(err))
				continue
			}
			s.log.Info("expired subscription purged",
				zap.String("id", sub.ID),
				zap.String("user", sub.UserTgID),
				zap.Time("expiry", sub.Expiry))
		}
		client.Close()
	}
}

// monthlyTrafficReset realizes the rolling monthly quota for plans longer
// than a month: once a calendar month has elapsed since the anchor (last
// reset, or creation if never reset), the remote counter is zeroed and
// the anchor advances. Trials and short tariffs never qualify.
func (s *Scheduler) monthlyTrafficReset(ctx context.Context) {
	defer s.recoverFromPanic("monthlyTrafficReset")

	subs, err := s.repos.Subscription.FindActive()
	if err != nil {
		s.log.Error("load active subscriptions failed", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	due := make([]models.Subscription, 0, 8)
	for _, sub := range subs {
		if sub.IsTrial() || sub.TariffDays() <= s.cfg.Jobs.MonthlyResetMinDays {
			continue
		}
		anchor := sub.CreatedAt
		if sub.LastTrafficReset != nil {
			anchor = *sub.LastTrafficReset
		}
		if !now.Before(addCalendarMonth(anchor)) {
			due = append(due, sub)
		}
	}
	if len(due) == 0 {
		return
	}

	byServer := make(map[string][]models.Subscription)
	serverIDs := make([]string, 0, 8)
	for _, sub := range due {
		if _, ok := byServer[sub.ServerID]; !ok {
			serverIDs = append(serverIDs, sub.ServerID)
		}
		byServer[sub.ServerID] = append(byServer[sub.ServerID], sub)
	}
	servers, err := s.repos.Server.FindByIDs(serverIDs)
	if err != nil {
		s.log.Error("load servers failed", zap.Error(err))
		return
	}

	for serverID, group := range byServer {
		if ctx.Err() != nil {
			return
		}
		server, ok := servers[serverID]
		if !ok {
			s.log.Warn("reset-due subscriptions reference missing server, skipping",
				zap.String("server_id", serverID),
				zap.Int("count", len(group)))
			continue
		}

		client := s.panels(&server)
		for _, sub := range group {
			if _, err := client.ResetClientTraffic(ctx, server.InboundID, sub.ClientEmail); err != nil {
				s.log.Warn("remote traffic reset failed",
					zap.String("id", sub.ID),
					zap.String("server_id", serverID),
					zap.Error(err))
				continue
			}
			if err := s.repos.Subscription.ResetUsage(sub.ID, now); err != nil {
				s.log.Error("remote traffic reset but local anchor not advanced",
					zap.String("id", sub.ID), zap.Error(err))
				continue
			}
			s.log.Info("monthly traffic reset",
				zap.String("id", sub.ID),
				zap.String("user", sub.UserTgID))
		}
		client.Close()
	}
}

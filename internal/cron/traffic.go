package cron

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"vlessbot/internal/models"
	"vlessbot/internal/panel"
)

// reconcileTraffic refreshes the cached traffic_used_bytes for every
// active subscription. Subscriptions are grouped per server so each cycle
// costs one login per server; a per-email failure counts as zero bytes
// for the cycle rather than aborting the batch, and a failing server does
// not block the others.
func (s *Scheduler) reconcileTraffic(ctx context.Context) {
	defer s.recoverFromPanic("reconcileTraffic")

	subs, err := s.repos.Subscription.FindActive()
	if err != nil {
		s.log.Error("load active subscriptions failed", zap.Error(err))
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
			s.log.Warn("subscriptions reference missing server, skipping",
				zap.String("server_id", serverID),
				zap.Int("count", len(group)))
			continue
		}
		s.reconcileServer(ctx, &server, group)
	}
}

func (s *Scheduler) reconcileServer(ctx context.Context, server *models.Server, subs []models.Subscription) {
	client := s.panels(server)
	defer client.Close()

	usage := make(map[string]int64, len(subs))
	for _, sub := range subs {
		used, err := client.GetClientTraffic(ctx, sub.ClientEmail)
		if err != nil {
			if errors.Is(err, panel.ErrAuthentication) {
				s.log.Error("panel login failed, skipping server",
					zap.String("server_id", server.ID), zap.Error(err))
				return
			}
			if errors.Is(err, panel.ErrClientNotFound) {
				s.log.Warn("local subscription has no remote client",
					zap.String("id", sub.ID),
					zap.String("server_id", server.ID),
					zap.String("email", sub.ClientEmail))
			} else {
				s.log.Warn("traffic query failed",
					zap.String("id", sub.ID),
					zap.String("email", sub.ClientEmail),
					zap.Error(err))
			}
			used = 0
		}
		usage[sub.ID] = used
	}

	if err := s.repos.Subscription.UpdateTrafficUsedBatch(usage); err != nil {
		s.log.Error("persist traffic usage failed",
			zap.String("server_id", server.ID), zap.Error(err))
		return
	}
	s.log.Debug("traffic reconciled",
		zap.String("server_id", server.ID),
		zap.Int("subscriptions", len(usage)))
}

package cron

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vlessbot/internal/models"
	"vlessbot/internal/notify"
)

// Traffic alert tiers returned by trafficAlertLevel.
const (
	alertNone     = 0
	alertWarning  = 80
	alertCritical = 95
)

// trafficAlertLevel decides which alert, if any, a subscription's cached
// usage warrants given its already-sent flags. The critical tier implies
// the warning tier, so it fires even when the 80% alert went out earlier.
func trafficAlertLevel(usedBytes, limitBytes int64, sent80, sent95 bool) int {
	if limitBytes <= 0 {
		return alertNone
	}
	percent := usedBytes * 100 / limitBytes
	if percent >= 95 && !sent95 {
		return alertCritical
	}
	if percent >= 80 && percent < 95 && !sent80 {
		return alertWarning
	}
	return alertNone
}

// notifyExpiry sends the edge-triggered expiry alerts: one for
// subscriptions entering the warning horizon and one for those that
// lapsed within the lookback window. The sent-flag is only re-armed by a
// renewal.
func (s *Scheduler) notifyExpiry(ctx context.Context) {
	if s.sender == nil {
		return
	}

	now := time.Now().UTC()
	warnUntil := now.AddDate(0, 0, s.cfg.Jobs.ExpiryWarnDays)

	expiring, err := s.repos.Subscription.FindExpiringBetween(now, warnUntil)
	if err != nil {
		s.log.Error("load expiring subscriptions failed", zap.Error(err))
		return
	}
	lapsed, err := s.repos.Subscription.FindExpiringBetween(now.AddDate(0, 0, -s.cfg.Jobs.ExpiredLookbackDays), now)
	if err != nil {
		s.log.Error("load lapsed subscriptions failed", zap.Error(err))
		return
	}

	for _, sub := range expiring {
		if ctx.Err() != nil {
			return
		}
		s.sendExpiryAlert(sub, false)
	}
	for _, sub := range lapsed {
		if ctx.Err() != nil {
			return
		}
		s.sendExpiryAlert(sub, true)
	}
}

func (s *Scheduler) sendExpiryAlert(sub models.Subscription, lapsed bool) {
	user, err := s.repos.User.FindByID(sub.UserTgID)
	if err != nil {
		s.log.Warn("subscription owner not found",
			zap.String("id", sub.ID), zap.String("user", sub.UserTgID))
		return
	}

	serverLabel := sub.ServerID
	if server, err := s.repos.Server.FindByID(sub.ServerID); err == nil {
		serverLabel = server.Label()
	}

	// Opted-out users stay unflagged, so the alert still fires if they
	// opt back in while the condition holds.
	if !user.NotifyExpiry {
		return
	}

	text := notify.ExpiryWarning(sub.ShortID(), serverLabel, sub.Expiry)
	if lapsed {
		text = notify.ExpiredNotice(sub.ShortID(), serverLabel)
	}
	if err := s.sender.Send(sub.UserTgID, text); err != nil {
		// Unsent means unflagged; the next cycle retries.
		s.log.Warn("expiry alert send failed",
			zap.String("id", sub.ID), zap.Error(err))
		return
	}

	if err := s.repos.Subscription.MarkExpiryNotified(sub.ID); err != nil {
		s.log.Error("mark expiry notified failed",
			zap.String("id", sub.ID), zap.Error(err))
	}
}

// notifyTraffic scans cached usage against the 80% and 95% thresholds
// and sends at most one alert per threshold crossing.
func (s *Scheduler) notifyTraffic(ctx context.Context) {
	if s.sender == nil {
		return
	}

	subs, err := s.repos.Subscription.FindActive()
	if err != nil {
		s.log.Error("load active subscriptions failed", zap.Error(err))
		return
	}

	for _, sub := range subs {
		if ctx.Err() != nil {
			return
		}

		level := trafficAlertLevel(sub.TrafficUsedBytes, sub.TrafficLimitBytes(),
			sub.NotifyTraffic80Sent, sub.NotifyTraffic95Sent)
		if level == alertNone {
			continue
		}

		user, err := s.repos.User.FindByID(sub.UserTgID)
		if err != nil {
			s.log.Warn("subscription owner not found",
				zap.String("id", sub.ID), zap.String("user", sub.UserTgID))
			continue
		}

		if !user.NotifyTraffic {
			continue
		}

		percent := int(sub.TrafficUsedBytes * 100 / sub.TrafficLimitBytes())
		text := notify.TrafficWarning(sub.ShortID(), percent)
		if level == alertCritical {
			text = notify.TrafficCritical(sub.ShortID(), percent)
		}
		if err := s.sender.Send(sub.UserTgID, text); err != nil {
			s.log.Warn("traffic alert send failed",
				zap.String("id", sub.ID), zap.Error(err))
			continue
		}

		if err := s.repos.Subscription.MarkTrafficNotified(sub.ID, level == alertCritical); err != nil {
			s.log.Error("mark traffic notified failed",
				zap.String("id", sub.ID), zap.Error(err))
		}
	}
}

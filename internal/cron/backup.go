package cron

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// backupPanels downloads each active panel's full configuration and
// delivers it to the admin chat as a document.
func (s *Scheduler) backupPanels(ctx context.Context) {
	defer s.recoverFromPanic("backupPanels")

	if s.botAPI == nil || s.cfg.Bot.AdminID == 0 {
		return
	}

	servers, err := s.repos.Server.FindActive()
	if err != nil {
		s.log.Error("load servers failed", zap.Error(err))
		return
	}

	adminChat := strconv.FormatInt(s.cfg.Bot.AdminID, 10)
	stamp := time.Now().UTC().Format("2006-01-02")

	for _, server := range servers {
		if ctx.Err() != nil {
			return
		}

		client := s.panels(&server)
		blob, err := client.Backup(ctx)
		client.Close()
		if err != nil {
			s.log.Warn("panel backup failed",
				zap.String("server_id", server.ID), zap.Error(err))
			continue
		}

		filename := fmt.Sprintf("panel-%s-%s.json", server.ID, stamp)
		caption := fmt.Sprintf("📦 Panel backup: %s", server.Label())
		if _, err := s.botAPI.SendDocument(adminChat, blob, filename, caption); err != nil {
			s.log.Warn("backup delivery failed",
				zap.String("server_id", server.ID), zap.Error(err))
			continue
		}
		s.log.Info("panel backup delivered", zap.String("server_id", server.ID))
	}
}

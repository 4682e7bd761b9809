package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"vlessbot/internal/repository"
	"vlessbot/internal/service"
)

// ServerHandler exposes operator actions against remote panels.
type ServerHandler struct {
	servers *repository.ServerRepository
	panels  service.PanelFactory
	log     *zap.Logger
}

func NewServerHandler(servers *repository.ServerRepository, panels service.PanelFactory, log *zap.Logger) *ServerHandler {
	return &ServerHandler{servers: servers, panels: panels, log: log}
}

// Backup handles GET /api/servers/:id/backup, streaming the panel's full
// configuration as a JSON download.
func (h *ServerHandler) Backup(c echo.Context) error {
	server, err := h.servers.FindByID(c.Param("id"))
	if err != nil {
		return errorResponse(c, "server not found")
	}

	client := h.panels(server)
	defer client.Close()
	blob, err := client.Backup(c.Request().Context())
	if err != nil {
		h.log.Error("panel backup failed",
			zap.String("server_id", server.ID), zap.Error(err))
		return errorResponse(c, "backup failed")
	}

	filename := fmt.Sprintf("panel-%s-%s.json", server.ID, time.Now().UTC().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, blob)
}

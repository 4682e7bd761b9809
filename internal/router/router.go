package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"vlessbot/internal/handler/api"
	"vlessbot/internal/middleware"
	"vlessbot/internal/repository"
	"vlessbot/internal/service"
)

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	settlement *service.SettlementService,
	orders *service.OrdersService,
	promos *service.PromoService,
	provisioning *service.ProvisioningService,
	servers *repository.ServerRepository,
	panels service.PanelFactory,
	apiKey string,
	logger *zap.Logger,
) {
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	paymentHandler := api.NewPaymentHandler(settlement, logger)
	serverHandler := api.NewServerHandler(servers, panels, logger)
	orderHandler := api.NewOrderHandler(orders, promos, provisioning, logger)

	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.APIAuth(apiKey))

	apiGroup.POST("/invoices", orderHandler.CreateInvoice)
	apiGroup.POST("/payments/:id/check", paymentHandler.Check)
	apiGroup.POST("/promocodes/redeem", orderHandler.RedeemPromo)
	apiGroup.POST("/trial/activate", orderHandler.ActivateTrial)
	apiGroup.POST("/subscriptions/:id/traffic/reduce", orderHandler.ReduceTraffic)
	apiGroup.POST("/subscriptions/:id/delete", orderHandler.DeleteSubscription)
	apiGroup.GET("/servers/:id/backup", serverHandler.Backup)
}

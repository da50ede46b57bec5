package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"adstudio-backend-go/internal/core"
	"adstudio-backend-go/internal/middleware"
)

// Services bundles the core services the routes dispatch to.
type Services struct {
	Ledger       core.LedgerService
	Provisioning core.ProvisioningService
	Billing      core.BillingService
}

// SetupRoutes registers the API on router. Global middleware (request id,
// logging, recovery, CORS) is applied by the caller. gatherer may be nil to
// skip /metrics.
func SetupRoutes(
	router *gin.Engine,
	logger *zap.Logger,
	authMW *middleware.AuthMiddleware,
	svc Services,
	gatherer prometheus.Gatherer,
) {
	authHandler := NewAuthHandler(svc.Provisioning, logger)
	userHandler := NewUserHandler(svc.Ledger, logger)
	exportHandler := NewExportHandler(svc.Ledger, logger)
	billingHandler := NewBillingHandler(svc.Billing, logger)

	apiV1 := router.Group("/api/v1")
	{
		users := apiV1.Group("/users", authMW.VerifyToken())
		{
			users.POST("/initialize", authHandler.InitializeUserProfile)
			users.GET("/me", userHandler.GetCurrentUserProfile)
			users.GET("/me/purchases", userHandler.ListPurchases)
		}

		apiV1.GET("/credits", authMW.VerifyToken(), userHandler.GetCredits)
		apiV1.POST("/exports/authorize", authMW.VerifyToken(), exportHandler.AuthorizeExport)

		// Stripe authenticates by signature, not by ID token.
		apiV1.POST("/billing/webhooks/stripe", billingHandler.HandleStripeWebhook)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	logger.Info("API routes configured under /api/v1")
}

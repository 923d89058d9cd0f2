// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/javajoker/bookshop-backend/internal/config"
	"github.com/javajoker/bookshop-backend/internal/handlers"
	"github.com/javajoker/bookshop-backend/internal/middleware"
	"github.com/javajoker/bookshop-backend/internal/services"
	"github.com/javajoker/bookshop-backend/internal/utils"
)

// Services are the application services the routes dispatch to.
type Services struct {
	Entitlements *services.EntitlementService
	Orders       *services.OrderService
}

func Initialize(cfg *config.Config, svc Services) *gin.Engine {
	// Initialize handlers
	downloadHandler := handlers.NewDownloadHandler(svc.Entitlements)
	webhookHandler := handlers.NewWebhookHandler(svc.Orders, svc.Entitlements, cfg.Payment.StripeWebhookSecret)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	downloadLimiter := middleware.PerMinute(cfg.Downloads.RateLimitPerMinute, cfg.Downloads.RateLimitBurst)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		// Public download links
		api.GET("/download/:token", downloadLimiter.Middleware(), downloadHandler.ServeDownload)

		// Customer routes
		orders := api.Group("/orders")
		orders.Use(middleware.AuthRequired())
		{
			orders.GET("/:id/downloads", downloadHandler.GetOrderDownloads)
		}

		// Admin routes
		admin := api.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.POST("/orders/:id/entitlements", downloadHandler.IssueEntitlements)
			admin.POST("/orders/:id/downloads/resend", downloadHandler.ResendDeliveryEmail)
			admin.POST("/downloads/:id/regenerate", downloadHandler.RegenerateToken)
			admin.POST("/entitlements/backfill", downloadHandler.Backfill)
		}

		// Payment provider callbacks
		webhooks := api.Group("/webhooks")
		{
			webhooks.POST("/stripe", webhookHandler.HandleStripe)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		utils.ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", http.StatusText(http.StatusNotFound), nil)
	})

	return r
}

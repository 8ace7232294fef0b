package api_gateway

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/systems-marketplace-payments/internal/api_gateway/handler"
	"github.com/systems-marketplace-payments/internal/api_gateway/middleware"
	"github.com/systems-marketplace-payments/internal/config"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	auth config.AuthConfig,
	purchaseHandler *handler.PurchaseHandler,
	connectHandler *handler.ConnectHandler,
	healthHandler *handler.HealthHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// Every API call acts on behalf of the token's subject
	v1 := r.Group("/api/v1")
	v1.Use(middleware.Auth([]byte(auth.JWTSecret), auth.JWTIssuer))
	{
		purchases := v1.Group("/purchases")
		{
			purchases.POST("", purchaseHandler.Create)
			purchases.GET("/:id", purchaseHandler.GetByID)
			purchases.GET("/:id/status", purchaseHandler.GetStatus)
			purchases.POST("/:id/cancel", purchaseHandler.Cancel)
		}

		v1.GET("/systems/:systemId/access", purchaseHandler.GetAccess)

		connect := v1.Group("/creators/me/connect")
		{
			connect.POST("", connectHandler.Connect)
			connect.GET("/link", connectHandler.GetLink)
			connect.GET("/status", connectHandler.GetStatus)
			connect.DELETE("", connectHandler.Disconnect)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", healthHandler.Check)
}

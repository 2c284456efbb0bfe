// internal/app/router.go
package app

import (
	billingHandler "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/handlers/billing"
	subscriptionHandler "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/handlers/subscription"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	SubscriptionHandler *subscriptionHandler.SubscriptionHandler
	BillingHandler      *billingHandler.BillingHandler
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Tenant-scoped routes ====================
	tenant := api.Group("/tenants/:tenant_id")
	tenant.Use(middleware.TenantMiddleware())

	// ==================== Subscriptions ====================
	subscriptions := tenant.Group("/subscriptions")
	{
		subscriptions.POST("", h.SubscriptionHandler.CreateSubscription)
		subscriptions.GET("", h.SubscriptionHandler.ListSubscriptions)
		subscriptions.GET("/:id", h.SubscriptionHandler.GetSubscription)
		subscriptions.POST("/:id/pause", h.SubscriptionHandler.PauseSubscription)
		subscriptions.POST("/:id/resume", h.SubscriptionHandler.ResumeSubscription)
		subscriptions.POST("/:id/cancel", h.SubscriptionHandler.CancelSubscription)
		subscriptions.GET("/:id/invoices", h.BillingHandler.ListSubscriptionInvoices)
	}

	// ==================== Billing engines ====================
	billing := tenant.Group("/billing")
	{
		billing.POST("/run", h.BillingHandler.RunBilling)
		billing.POST("/reminders/run", h.BillingHandler.RunReminders)
		billing.POST("/retries/run", h.BillingHandler.RunRetries)
		billing.GET("/stats", h.BillingHandler.Stats)
		billing.GET("/invoices", h.BillingHandler.ListInvoices)
	}
}

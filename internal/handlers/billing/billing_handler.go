// internal/handlers/billing/billing_handler.go
package billing

import (
	"net/http"
	"strconv"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/middleware"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/response"
	billingsvc "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/service/billing"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/service/metrics"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/service/payment"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/service/reminder"

	"github.com/gin-gonic/gin"
)

// BillingHandler exposes the batch engines and the invoice read API over
// HTTP so operators can trigger runs outside the cron schedule.
type BillingHandler struct {
	billingService  *billingsvc.BillingService
	reminderService *reminder.ReminderService
	retryService    *payment.RetryService
	metricsService  *metrics.MetricsService
}

func NewBillingHandler(
	billingService *billingsvc.BillingService,
	reminderService *reminder.ReminderService,
	retryService *payment.RetryService,
	metricsService *metrics.MetricsService,
) *BillingHandler {
	return &BillingHandler{
		billingService:  billingService,
		reminderService: reminderService,
		retryService:    retryService,
		metricsService:  metricsService,
	}
}

// RunBilling processes all due subscriptions for the tenant
func (h *BillingHandler) RunBilling(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	result, err := h.billingService.ProcessDueSubscriptions(c.Request.Context(), tenantID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "billing run failed", err)
		return
	}

	response.Success(c, http.StatusOK, "billing run completed", result)
}

// RunReminders sends upcoming-renewal reminders for the tenant
func (h *BillingHandler) RunReminders(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	daysBefore := reminder.DefaultDaysBefore
	if raw := c.Query("days_before"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, http.StatusBadRequest, "invalid days_before", err)
			return
		}
		daysBefore = parsed
	}

	result, err := h.reminderService.Run(c.Request.Context(), tenantID, daysBefore)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "reminder run failed", err)
		return
	}

	response.Success(c, http.StatusOK, "reminder run completed", result)
}

// RunRetries retries payments for subscriptions with unresolved charges
func (h *BillingHandler) RunRetries(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	result, err := h.retryService.RunPending(c.Request.Context(), tenantID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "retry run failed", err)
		return
	}

	response.Success(c, http.StatusOK, "retry run completed", result)
}

// Stats returns subscription counts, MRR and upcoming renewals
func (h *BillingHandler) Stats(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	result, err := h.metricsService.Stats(c.Request.Context(), tenantID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to compute stats", err)
		return
	}

	response.Success(c, http.StatusOK, "stats computed", result)
}

// ListInvoices lists the tenant's most recent invoices
func (h *BillingHandler) ListInvoices(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = parsed
	}

	result, err := h.billingService.ListInvoices(c.Request.Context(), tenantID, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list invoices", err)
		return
	}

	response.Success(c, http.StatusOK, "invoices retrieved", result)
}

// ListSubscriptionInvoices lists invoices generated for one subscription
func (h *BillingHandler) ListSubscriptionInvoices(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	subscriptionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid subscription ID", err)
		return
	}

	result, err := h.billingService.ListSubscriptionInvoices(c.Request.Context(), tenantID, subscriptionID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list invoices", err)
		return
	}

	response.Success(c, http.StatusOK, "invoices retrieved", result)
}

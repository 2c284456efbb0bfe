// internal/handlers/subscription/subscription_handler.go
package subscription

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/domain/subscription"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/middleware"
	xerrors "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/errors"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/response"
	service "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/service/subscription"

	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	lifecycleService *service.LifecycleService
}

func NewSubscriptionHandler(lifecycleService *service.LifecycleService) *SubscriptionHandler {
	return &SubscriptionHandler{
		lifecycleService: lifecycleService,
	}
}

// CreateSubscription creates a new recurring subscription
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	var req subscription.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}
	req.TenantID = tenantID

	result, err := h.lifecycleService.CreateSubscription(c.Request.Context(), &req)
	if err != nil {
		writeServiceError(c, "failed to create subscription", err)
		return
	}

	response.Success(c, http.StatusCreated, "subscription created successfully", result)
}

// GetSubscription retrieves a subscription by ID
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	subscriptionID, err := parseID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid subscription ID", err)
		return
	}

	result, err := h.lifecycleService.GetSubscription(c.Request.Context(), tenantID, subscriptionID)
	if err != nil {
		writeServiceError(c, "failed to get subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription retrieved", result)
}

// ListSubscriptions retrieves subscriptions with filters
func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	var filters subscription.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	result, err := h.lifecycleService.ListSubscriptions(c.Request.Context(), tenantID, &filters)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list subscriptions", err)
		return
	}

	response.Success(c, http.StatusOK, "subscriptions retrieved", result)
}

// PauseSubscription pauses an active subscription
func (h *SubscriptionHandler) PauseSubscription(c *gin.Context) {
	h.transition(c, h.lifecycleService.PauseSubscription, "subscription paused")
}

// ResumeSubscription resumes a paused subscription
func (h *SubscriptionHandler) ResumeSubscription(c *gin.Context) {
	h.transition(c, h.lifecycleService.ResumeSubscription, "subscription resumed")
}

func (h *SubscriptionHandler) transition(c *gin.Context, op func(ctx context.Context, tenantID, id int64) (*subscription.Subscription, error), message string) {
	tenantID := middleware.MustGetTenantID(c)

	subscriptionID, err := parseID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid subscription ID", err)
		return
	}

	result, err := op(c.Request.Context(), tenantID, subscriptionID)
	if err != nil {
		writeServiceError(c, "failed to update subscription", err)
		return
	}

	response.Success(c, http.StatusOK, message, result)
}

// CancelSubscription cancels a subscription, immediately or at period end
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	tenantID := middleware.MustGetTenantID(c)

	subscriptionID, err := parseID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid subscription ID", err)
		return
	}

	var req subscription.CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.lifecycleService.CancelSubscription(c.Request.Context(), tenantID, subscriptionID, &req)
	if err != nil {
		writeServiceError(c, "failed to cancel subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription cancelled", result)
}

func parseID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func writeServiceError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		response.NotFound(c, message)
	case errors.Is(err, xerrors.ErrInvalidState):
		response.Conflict(c, message, err)
	case errors.Is(err, xerrors.ErrInvalidInput):
		response.ValidationError(c, message, err)
	default:
		response.Error(c, http.StatusInternalServerError, message, err)
	}
}

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"adstudio-backend-go/internal/core"
)

// maxWebhookBodyBytes matches the limit Stripe documents for event payloads.
const maxWebhookBodyBytes = 65536

// BillingHandler receives payment processor webhooks.
type BillingHandler struct {
	billing core.BillingService
	logger  *zap.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(bs core.BillingService, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{billing: bs, logger: logger}
}

// mapBillingErrorToStatus picks the status Stripe sees. 4xx stops redelivery, 5xx
// asks for a retry.
func mapBillingErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, core.ErrWebhookSignature):
		logger.Warn("Stripe webhook signature rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Webhook signature verification failed"})
	case errors.Is(err, core.ErrWebhookPayload), errors.Is(err, core.ErrInvalidEvent):
		logger.Warn("Stripe webhook payload rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Webhook processing error", Details: err.Error()})
	case errors.Is(err, core.ErrTransient):
		logger.Warn("Stripe webhook deferred, ledger unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Ledger temporarily unavailable"})
	default:
		logger.Error("Stripe webhook failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "An unexpected internal server error occurred."})
	}
}

// HandleStripeWebhook handles POST /api/v1/billing/webhooks/stripe. It is public;
// Stripe authenticates with the Stripe-Signature header.
func (h *BillingHandler) HandleStripeWebhook(c *gin.Context) {
	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing Stripe-Signature header"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Webhook payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to read webhook payload"})
		return
	}

	outcome, err := h.billing.HandleStripeWebhook(c.Request.Context(), signature, payload)
	if err != nil {
		mapBillingErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, WebhookResponse{Received: true, Outcome: string(outcome)})
}

package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"adstudio-backend-go/internal/core"
)

const (
	defaultPurchaseLimit = 20
	maxPurchaseLimit     = 100
)

// UserHandler serves the caller's account and balance.
type UserHandler struct {
	ledger core.LedgerService
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(ls core.LedgerService, logger *zap.Logger) *UserHandler {
	return &UserHandler{ledger: ls, logger: logger}
}

// GetCurrentUserProfile handles GET /api/v1/users/me.
func (h *UserHandler) GetCurrentUserProfile(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	acct, err := h.ledger.GetAccount(c.Request.Context(), uid)
	if err != nil {
		mapLedgerErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, AccountResponse{Account: acct, Role: core.ClaimsFor(acct).Role})
}

// ListPurchases handles GET /api/v1/users/me/purchases?limit=N.
func (h *UserHandler) ListPurchases(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	limit := defaultPurchaseLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxPurchaseLimit)
	}

	purchases, err := h.ledger.ListPurchases(c.Request.Context(), uid, limit)
	if err != nil {
		mapLedgerErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, PurchasesResponse{Purchases: purchases})
}

// GetCredits handles GET /api/v1/credits. The value may lag a concurrent export.
func (h *UserHandler) GetCredits(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	balance, err := h.ledger.Peek(c.Request.Context(), uid)
	if err != nil {
		mapLedgerErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, CreditsResponse{Credits: balance.Credits, SubscriptionActive: balance.SubscriptionActive})
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"adstudio-backend-go/internal/core"
	"adstudio-backend-go/internal/middleware"
)

// AuthHandler handles the post-login initialization endpoint.
type AuthHandler struct {
	provisioning core.ProvisioningService
	logger       *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(ps core.ProvisioningService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{provisioning: ps, logger: logger}
}

// InitializeUserProfile handles POST /api/v1/users/initialize. The first call for
// a user creates the ledger account with the signup bonus (201); later calls
// refresh lastLogin and token claims (200).
func (h *AuthHandler) InitializeUserProfile(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	email := c.GetString(middleware.ContextUserEmail)
	name := c.GetString(middleware.ContextUserDisplayName)

	res, err := h.provisioning.GrantSignupBonus(c.Request.Context(), uid, email, name)
	if err != nil {
		mapLedgerErrorToStatus(c, h.logger, err)
		return
	}

	body := AccountResponse{Account: res.Account, Role: core.ClaimsFor(res.Account).Role}
	if res.Created {
		c.JSON(http.StatusCreated, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"adstudio-backend-go/internal/core"
	"adstudio-backend-go/internal/middleware"
)

// mapLedgerErrorToStatus maps ledger and provisioning errors to HTTP responses.
func mapLedgerErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, core.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Account not found"})
	case errors.Is(err, core.ErrTransient):
		logger.Warn("Ledger unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Ledger temporarily unavailable, retry later"})
	case errors.Is(err, core.ErrInvalidEvent):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Details: err.Error()})
	default:
		logger.Error("Unhandled ledger error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "An unexpected internal server error occurred."})
	}
}

// currentUserID reads the UID placed in the context by the auth middleware.
func currentUserID(c *gin.Context) (string, bool) {
	uid := c.GetString(middleware.ContextUserID)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication error: User ID not found in context"})
		return "", false
	}
	return uid, true
}

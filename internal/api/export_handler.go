package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"adstudio-backend-go/internal/core"
	"adstudio-backend-go/internal/entitlement"
)

// ExportHandler gates exports on the ledger.
type ExportHandler struct {
	ledger core.LedgerService
	logger *zap.Logger
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(ls core.LedgerService, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{ledger: ls, logger: logger}
}

// AuthorizeExport handles POST /api/v1/exports/authorize. A 200 response means
// the credit, if any, is already spent and the client may export.
func (h *ExportHandler) AuthorizeExport(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	d, err := h.ledger.CheckAndConsume(c.Request.Context(), uid)
	if err != nil {
		mapLedgerErrorToStatus(c, h.logger, err)
		return
	}

	switch {
	case d.Allowed:
		c.JSON(http.StatusOK, ExportDecisionResponse{
			Allowed:   true,
			Credits:   d.CreditsAfter,
			Unlimited: d.CreditsAfter == entitlement.Unlimited,
		})
	case d.Reason == entitlement.ReasonAccountNotFound:
		c.JSON(http.StatusNotFound, ExportDecisionResponse{Allowed: false, Reason: string(d.Reason)})
	default:
		c.JSON(http.StatusPaymentRequired, ExportDecisionResponse{Allowed: false, Credits: 0, Reason: string(d.Reason)})
	}
}

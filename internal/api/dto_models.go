package api

import "adstudio-backend-go/internal/models"

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AccountResponse is the caller's ledger record plus the role derived from it.
type AccountResponse struct {
	*models.Account
	Role string `json:"role"`
}

// CreditsResponse is returned by GET /credits.
type CreditsResponse struct {
	Credits            int64 `json:"credits"`
	SubscriptionActive bool  `json:"subscriptionActive"`
}

// ExportDecisionResponse is returned by POST /exports/authorize. Credits is the
// balance left after the export; -1 with Unlimited set for subscribers.
type ExportDecisionResponse struct {
	Allowed   bool   `json:"allowed"`
	Credits   int64  `json:"credits"`
	Unlimited bool   `json:"unlimited,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// PurchasesResponse lists recorded purchases, newest first.
type PurchasesResponse struct {
	Purchases []*models.Purchase `json:"purchases"`
}

// WebhookResponse acknowledges a processed webhook.
type WebhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome"`
}

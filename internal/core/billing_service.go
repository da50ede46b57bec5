package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
	"go.uber.org/zap"
)

// Stripe event types handled by the billing service.
const (
	stripeCheckoutSessionCompleted = "checkout.session.completed"
	stripeSubscriptionUpdated      = "customer.subscription.updated"
	stripeSubscriptionDeleted      = "customer.subscription.deleted"
)

// productMetadataKey is the checkout session metadata key carrying the catalog product id.
const productMetadataKey = "productId"

type billingService struct {
	provisioning  ProvisioningService
	webhookSecret string
	logger        *zap.Logger
}

// NewBillingService creates a BillingService that verifies webhooks with webhookSecret.
func NewBillingService(provisioning ProvisioningService, webhookSecret string, logger *zap.Logger) (BillingService, error) {
	if provisioning == nil {
		return nil, errors.New("ProvisioningService is required for BillingService")
	}
	if webhookSecret == "" {
		return nil, errors.New("stripe webhook secret is required for BillingService")
	}
	return &billingService{
		provisioning:  provisioning,
		webhookSecret: webhookSecret,
		logger:        logger.Named("billing"),
	}, nil
}

// HandleStripeWebhook verifies the signature, converts the Stripe event into a
// provisioning event and dispatches it. Event types the ledger does not track are
// acknowledged and ignored.
func (s *billingService) HandleStripeWebhook(ctx context.Context, signature string, payload []byte) (Outcome, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}

	prov, err := toProvisioningEvent(event)
	if err != nil {
		return "", err
	}
	if prov == nil {
		s.logger.Debug("Ignoring Stripe event", zap.String("event_id", event.ID), zap.String("type", string(event.Type)))
		return OutcomeIgnored, nil
	}

	s.logger.Info("Processing Stripe event", zap.String("event_id", event.ID), zap.String("type", string(event.Type)))
	return s.provisioning.Handle(ctx, prov)
}

func toProvisioningEvent(event stripe.Event) (ProvisioningEvent, error) {
	switch string(event.Type) {
	case stripeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("%w: decode checkout session: %v", ErrWebhookPayload, err)
		}
		ev := PurchaseCompleted{
			EventID:       event.ID,
			SessionID:     session.ID,
			ProductID:     session.Metadata[productMetadataKey],
			CustomerEmail: session.CustomerEmail,
			AmountTotal:   session.AmountTotal,
			Currency:      string(session.Currency),
			PaymentStatus: string(session.PaymentStatus),
		}
		if d := session.CustomerDetails; d != nil {
			if d.Email != "" {
				ev.CustomerEmail = d.Email
			}
			ev.CustomerName = d.Name
		}
		if session.Customer != nil {
			ev.CustomerID = session.Customer.ID
		}
		if session.Subscription != nil {
			ev.SubscriptionID = session.Subscription.ID
		}
		return ev, nil

	case stripeSubscriptionUpdated, stripeSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: decode subscription: %v", ErrWebhookPayload, err)
		}
		var customerID string
		if sub.Customer != nil {
			customerID = sub.Customer.ID
		}
		if string(event.Type) == stripeSubscriptionDeleted {
			return SubscriptionCancelled{EventID: event.ID, CustomerID: customerID}, nil
		}
		return SubscriptionUpdated{EventID: event.ID, CustomerID: customerID, Status: string(sub.Status)}, nil
	}
	return nil, nil
}

package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"adstudio-backend-go/internal/config"
	"adstudio-backend-go/internal/db"
	"adstudio-backend-go/internal/events"
	"adstudio-backend-go/internal/mailer"
	"adstudio-backend-go/internal/models"
)

// ProvisioningDeps groups the collaborators of the provisioning service.
type ProvisioningDeps struct {
	Repo        db.AccountRepository
	Catalog     *config.Catalog
	Directory   IdentityDirectory
	Mailer      mailer.Mailer
	SignupBonus int64
	FollowUps   *FollowUps
}

const mailTimeout = 10 * time.Second

type provisioningService struct {
	repo        db.AccountRepository
	catalog     *config.Catalog
	directory   IdentityDirectory
	mailer      mailer.Mailer
	signupBonus int64
	follow      *FollowUps
	logger      *zap.Logger
	now         func() time.Time
}

// NewProvisioningService creates a ProvisioningService.
func NewProvisioningService(deps ProvisioningDeps) (ProvisioningService, error) {
	if deps.Repo == nil {
		return nil, errors.New("AccountRepository is required for ProvisioningService")
	}
	if deps.Directory == nil {
		return nil, errors.New("IdentityDirectory is required for ProvisioningService")
	}
	if deps.Catalog == nil {
		deps.Catalog = config.DefaultCatalog()
	}
	if deps.Mailer == nil {
		deps.Mailer = mailer.Noop{}
	}
	f := deps.FollowUps
	if f == nil {
		f = &FollowUps{}
	}
	f = f.withDefaults()
	return &provisioningService{
		repo:        deps.Repo,
		catalog:     deps.Catalog,
		directory:   deps.Directory,
		mailer:      deps.Mailer,
		signupBonus: deps.SignupBonus,
		follow:      f,
		logger:      f.Logger.Named("provisioning"),
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *provisioningService) GrantSignupBonus(ctx context.Context, userID, email, name string) (GrantResult, error) {
	if userID == "" {
		return GrantResult{}, fmt.Errorf("%w: empty user id", ErrInvalidEvent)
	}
	now := s.now()
	acct := &models.Account{
		ID:        userID,
		Email:     email,
		Name:      name,
		Credits:   s.signupBonus,
		CreatedAt: now,
		LastLogin: now,
		UpdatedAt: now,
	}

	err := s.repo.Create(ctx, acct)
	if err == nil {
		s.logger.Info("Granted signup bonus", zap.String("user_id", userID), zap.Int64("credits", acct.Credits))
		s.follow.Metrics.IncProvisioning("signup_bonus", string(OutcomeApplied))
		s.follow.afterCommit(ctx, acct, commit{
			eventType:   events.TypeSignupBonus,
			auditAction: models.AuditActionSignupBonus,
			syncClaims:  true,
		})
		return GrantResult{Account: acct, Created: true}, nil
	}
	if !errors.Is(err, db.ErrAlreadyExists) {
		s.follow.Metrics.IncProvisioning("signup_bonus", "error")
		return GrantResult{}, storeErr("grant signup bonus", err)
	}

	// Returning user: no bonus, only a login refresh.
	existing, err := s.repo.Mutate(ctx, userID, db.Mutation{
		Apply: func(a *models.Account) (bool, error) {
			a.LastLogin = now
			if a.Email == "" {
				a.Email = email
			}
			if a.Name == "" {
				a.Name = name
			}
			return true, nil
		},
	})
	if err != nil {
		return GrantResult{}, storeErr("refresh login", err)
	}
	s.follow.Metrics.IncProvisioning("signup_bonus", string(OutcomeDuplicate))
	if s.follow.Claims != nil {
		if _, err := s.follow.Claims.Sync(ctx, existing); err != nil {
			s.follow.Metrics.IncSideEffectFailure("claims")
			s.logger.Warn("Failed to refresh token claims on login", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return GrantResult{Account: existing, Created: false}, nil
}

// Handle dispatches event to its variant handler.
func (s *provisioningService) Handle(ctx context.Context, event ProvisioningEvent) (Outcome, error) {
	event, ok := derefEvent(event)
	if !ok {
		return "", fmt.Errorf("%w: nil %T", ErrInvalidEvent, event)
	}

	var (
		outcome Outcome
		err     error
	)
	switch ev := event.(type) {
	case PurchaseCompleted:
		outcome, err = s.handlePurchaseCompleted(ctx, ev)
	case SubscriptionUpdated:
		outcome, err = s.handleSubscriptionUpdated(ctx, ev)
	case SubscriptionCancelled:
		outcome, err = s.handleSubscriptionCancelled(ctx, ev)
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownEvent, event)
	}

	if err != nil {
		s.follow.Metrics.IncProvisioning(event.Kind(), "error")
		return "", err
	}
	s.follow.Metrics.IncProvisioning(event.Kind(), string(outcome))
	return outcome, nil
}

// derefEvent turns pointer variants into values. ok is false for nil pointers.
func derefEvent(event ProvisioningEvent) (ProvisioningEvent, bool) {
	switch ev := event.(type) {
	case *PurchaseCompleted:
		if ev == nil {
			return event, false
		}
		return *ev, true
	case *SubscriptionUpdated:
		if ev == nil {
			return event, false
		}
		return *ev, true
	case *SubscriptionCancelled:
		if ev == nil {
			return event, false
		}
		return *ev, true
	}
	return event, true
}

func (s *provisioningService) handlePurchaseCompleted(ctx context.Context, ev PurchaseCompleted) (Outcome, error) {
	log := s.logger.With(zap.String("event_id", ev.EventID), zap.String("session_id", ev.SessionID))
	if ev.SessionID == "" {
		return "", fmt.Errorf("%w: checkout session id is empty", ErrInvalidEvent)
	}
	if ev.CustomerEmail == "" {
		return "", fmt.Errorf("%w: checkout session %s has no customer email", ErrInvalidEvent, ev.SessionID)
	}

	acct, identityCreated, err := s.resolvePurchaser(ctx, ev)
	if err != nil {
		return "", err
	}
	log = log.With(zap.String("user_id", acct.ID))

	product, known := s.catalog.Lookup(ev.ProductID)
	if !known {
		log.Warn("Unknown product in completed checkout, recording purchase without grant", zap.String("product_id", ev.ProductID))
	}

	updated, err := s.repo.Mutate(ctx, acct.ID, db.Mutation{
		EventKey: checkoutEventKey(ev.SessionID),
		Event: models.ProcessedEvent{
			Provider:  "stripe",
			EventID:   ev.EventID,
			EventType: "checkout.session.completed",
		},
		Purchase: &models.Purchase{
			SessionID: ev.SessionID,
			ProductID: ev.ProductID,
			Amount:    ev.AmountTotal,
			Currency:  ev.Currency,
			Status:    ev.PaymentStatus,
		},
		Apply: func(a *models.Account) (bool, error) {
			changed := false
			if known {
				if product.Credits > 0 {
					a.Credits += product.Credits
					changed = true
				}
				if product.Subscription {
					a.SubscriptionActive = true
					a.SubscriptionStatus = models.SubscriptionStatusActive
					a.SubscriptionCancelledAt = nil
					if ev.SubscriptionID != "" {
						a.SubscriptionID = ev.SubscriptionID
					}
					changed = true
				}
			}
			// Subscription checkouts mint a new Stripe customer, and lifecycle
			// events are looked up by it, so the latest one must win.
			if ev.CustomerID != "" && ev.CustomerID != a.StripeCustomerID &&
				(a.StripeCustomerID == "" || (known && product.Subscription)) {
				a.StripeCustomerID = ev.CustomerID
				changed = true
			}
			return changed, nil
		},
	})
	if err != nil {
		if errors.Is(err, db.ErrDuplicateEvent) {
			log.Info("Checkout session already applied, skipping")
			return OutcomeDuplicate, nil
		}
		return "", storeErr("apply purchase", err)
	}

	log.Info("Applied purchase",
		zap.String("product_id", ev.ProductID),
		zap.Int64("credits", updated.Credits),
		zap.Bool("subscription_active", updated.SubscriptionActive))
	s.follow.afterCommit(ctx, updated, commit{
		eventType:     events.TypePurchaseGranted,
		auditAction:   models.AuditActionPurchaseGranted,
		sourceEventID: ev.EventID,
		syncClaims:    true,
		details: map[string]interface{}{
			"productId": ev.ProductID,
			"sessionId": ev.SessionID,
		},
	})
	if identityCreated {
		s.sendAccountClaimMail(ctx, updated)
	}
	return OutcomeApplied, nil
}

// resolvePurchaser finds or creates the ledger account for the buyer's email.
// Accounts created here start with zero credits; the signup bonus does not apply.
func (s *provisioningService) resolvePurchaser(ctx context.Context, ev PurchaseCompleted) (*models.Account, bool, error) {
	uid, identityCreated, err := s.directory.LookupOrCreateByEmail(ctx, ev.CustomerEmail, ev.CustomerName)
	if err != nil {
		return nil, false, fmt.Errorf("%w: resolve purchaser: %v", ErrTransient, err)
	}

	acct, err := s.repo.GetByID(ctx, uid)
	if err == nil {
		return acct, identityCreated, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, false, storeErr("resolve purchaser", err)
	}

	now := s.now()
	acct = &models.Account{
		ID:               uid,
		Email:            ev.CustomerEmail,
		Name:             ev.CustomerName,
		Credits:          0,
		StripeCustomerID: ev.CustomerID,
		CreatedAt:        now,
		LastLogin:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, acct); err != nil && !errors.Is(err, db.ErrAlreadyExists) {
		return nil, false, storeErr("create purchaser account", err)
	}
	s.logger.Info("Created ledger account for purchaser", zap.String("user_id", uid))
	return acct, identityCreated, nil
}

func (s *provisioningService) sendAccountClaimMail(ctx context.Context, acct *models.Account) {
	link, err := s.directory.PasswordResetLink(ctx, acct.Email)
	if err != nil {
		s.follow.Metrics.IncSideEffectFailure("mail")
		s.logger.Warn("Failed to generate password reset link", zap.String("user_id", acct.ID), zap.Error(err))
		return
	}
	msg := mailer.Message{
		To:      acct.Email,
		Subject: "Your purchase is ready",
		Body: fmt.Sprintf("<html><body><p>Thanks for your purchase.</p>"+
			"<p>Set a password to sign in and start exporting: <a href=\"%s\">%s</a></p></body></html>", link, link),
	}
	// The webhook response waits on this; a slow relay must not hold it open.
	mailCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailTimeout)
	defer cancel()
	if err := s.mailer.Send(mailCtx, msg); err != nil {
		s.follow.Metrics.IncSideEffectFailure("mail")
		s.logger.Warn("Failed to send account claim email", zap.String("user_id", acct.ID), zap.Error(err))
	}
}

func (s *provisioningService) handleSubscriptionUpdated(ctx context.Context, ev SubscriptionUpdated) (Outcome, error) {
	return s.applySubscriptionChange(ctx, ev.EventID, ev.CustomerID, "customer.subscription.updated", commit{
		eventType:     events.TypeSubscriptionUpdated,
		auditAction:   models.AuditActionSubscriptionUpdated,
		sourceEventID: ev.EventID,
		syncClaims:    true,
		details:       map[string]interface{}{"status": ev.Status},
	}, func(a *models.Account) {
		a.SubscriptionStatus = ev.Status
		a.SubscriptionActive = ev.Status == models.SubscriptionStatusActive
	})
}

func (s *provisioningService) handleSubscriptionCancelled(ctx context.Context, ev SubscriptionCancelled) (Outcome, error) {
	now := s.now()
	return s.applySubscriptionChange(ctx, ev.EventID, ev.CustomerID, "customer.subscription.deleted", commit{
		eventType:     events.TypeSubscriptionCancelled,
		auditAction:   models.AuditActionSubscriptionCanceled,
		sourceEventID: ev.EventID,
		syncClaims:    true,
	}, func(a *models.Account) {
		a.SubscriptionActive = false
		a.SubscriptionStatus = models.SubscriptionStatusCancelled
		a.SubscriptionCancelledAt = &now
	})
}

// applySubscriptionChange locates the account by processor customer id and applies
// change. Events are applied in arrival order; the last write wins.
func (s *provisioningService) applySubscriptionChange(
	ctx context.Context,
	eventID, customerID, eventType string,
	c commit,
	change func(a *models.Account),
) (Outcome, error) {
	log := s.logger.With(zap.String("event_id", eventID), zap.String("customer_id", customerID))
	if customerID == "" {
		return "", fmt.Errorf("%w: subscription event %s has no customer id", ErrInvalidEvent, eventID)
	}

	acct, err := s.repo.GetByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			log.Warn("No account for subscription event customer, dropping event")
			return OutcomeOrphan, nil
		}
		return "", storeErr("find subscription owner", err)
	}

	m := db.Mutation{
		Apply: func(a *models.Account) (bool, error) {
			change(a)
			return true, nil
		},
	}
	if eventID != "" {
		m.EventKey = stripeEventKey(eventID)
		m.Event = models.ProcessedEvent{Provider: "stripe", EventID: eventID, EventType: eventType}
	}

	updated, err := s.repo.Mutate(ctx, acct.ID, m)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrDuplicateEvent):
			log.Info("Subscription event already applied, skipping")
			return OutcomeDuplicate, nil
		case errors.Is(err, db.ErrNotFound):
			log.Warn("Subscription owner disappeared before update, dropping event")
			return OutcomeOrphan, nil
		}
		return "", storeErr("apply subscription change", err)
	}

	log.Info("Applied subscription change",
		zap.String("user_id", updated.ID),
		zap.String("status", updated.SubscriptionStatus),
		zap.Bool("subscription_active", updated.SubscriptionActive))
	s.follow.afterCommit(ctx, updated, c)
	return OutcomeApplied, nil
}

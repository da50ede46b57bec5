package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"adstudio-backend-go/internal/models"
)

const (
	usersCollection           = "users"
	purchasesCollection       = "purchases"
	processedEventsCollection = "processed_events"
)

// firestoreAccountRepository implements AccountRepository using Firestore.
type firestoreAccountRepository struct {
	client *firestore.Client
	now    func() time.Time
}

// NewFirestoreAccountRepository creates a new instance of firestoreAccountRepository.
func NewFirestoreAccountRepository(client *firestore.Client) (AccountRepository, error) {
	if client == nil {
		return nil, errors.New("firestore client is not initialized for AccountRepository")
	}
	return &firestoreAccountRepository{client: client, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (r *firestoreAccountRepository) GetByID(ctx context.Context, userID string) (*models.Account, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("account '%s' not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account '%s': %w", userID, classifyFirestoreErr(err))
	}
	return decodeAccount(docSnap)
}

func (r *firestoreAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if email == "" {
		return nil, errors.New("email cannot be empty for GetByEmail operation")
	}
	return r.firstWhere(ctx, "email", email)
}

func (r *firestoreAccountRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*models.Account, error) {
	if customerID == "" {
		return nil, errors.New("customerID cannot be empty for GetByStripeCustomerID operation")
	}
	return r.firstWhere(ctx, "stripeCustomerId", customerID)
}

func (r *firestoreAccountRepository) firstWhere(ctx context.Context, field, value string) (*models.Account, error) {
	iter := r.client.Collection(usersCollection).Where(field, "==", value).Limit(1).Documents(ctx)
	defer iter.Stop()

	docSnap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, fmt.Errorf("account with %s '%s' not found: %w", field, value, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts by %s: %w", field, classifyFirestoreErr(err))
	}
	return decodeAccount(docSnap)
}

// Create adds a new account document keyed by the Firebase Auth UID.
func (r *firestoreAccountRepository) Create(ctx context.Context, acct *models.Account) error {
	if acct == nil || acct.ID == "" {
		return errors.New("account ID cannot be empty for Create operation")
	}
	_, err := r.client.Collection(usersCollection).Doc(acct.ID).Create(ctx, acct)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("account '%s': %w", acct.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create account '%s': %w", acct.ID, classifyFirestoreErr(err))
	}
	return nil
}

// Mutate runs the mutation inside a Firestore transaction. All reads happen before
// any write, as Firestore transactions require.
func (r *firestoreAccountRepository) Mutate(ctx context.Context, userID string, m Mutation) (*models.Account, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for Mutate operation")
	}
	if m.Apply == nil {
		return nil, errors.New("mutation has no Apply function")
	}

	userRef := r.client.Collection(usersCollection).Doc(userID)
	var result *models.Account

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		result = nil

		docSnap, err := tx.Get(userRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("account '%s' not found: %w", userID, ErrNotFound)
			}
			return err
		}
		acct, err := decodeAccount(docSnap)
		if err != nil {
			return err
		}

		var eventRef *firestore.DocumentRef
		if m.EventKey != "" {
			eventRef = r.client.Collection(processedEventsCollection).Doc(m.EventKey)
			evSnap, err := tx.Get(eventRef)
			switch {
			case err == nil && evSnap.Exists():
				return fmt.Errorf("event '%s': %w", m.EventKey, ErrDuplicateEvent)
			case err != nil && status.Code(err) != codes.NotFound:
				return err
			}
		}

		changed, err := m.Apply(acct)
		if err != nil {
			return err
		}
		now := r.now()
		if changed {
			acct.UpdatedAt = now
			if err := tx.Set(userRef, acct); err != nil {
				return err
			}
		}
		if m.Purchase != nil {
			p := *m.Purchase
			if p.CreatedAt.IsZero() {
				p.CreatedAt = now
			}
			purchaseRef := userRef.Collection(purchasesCollection).NewDoc()
			if p.ID != "" {
				purchaseRef = userRef.Collection(purchasesCollection).Doc(p.ID)
			}
			if err := tx.Create(purchaseRef, p); err != nil {
				return err
			}
		}
		if eventRef != nil {
			ev := m.Event
			ev.UserID = userID
			if ev.ProcessedAt.IsZero() {
				ev.ProcessedAt = now
			}
			if err := tx.Create(eventRef, ev); err != nil {
				return err
			}
		}
		result = acct
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateEvent) {
			return nil, err
		}
		return nil, fmt.Errorf("transaction on account '%s' failed: %w", userID, classifyFirestoreErr(err))
	}
	return result, nil
}

func (r *firestoreAccountRepository) ListPurchases(ctx context.Context, userID string, limit int) ([]*models.Purchase, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for ListPurchases operation")
	}
	q := r.client.Collection(usersCollection).Doc(userID).Collection(purchasesCollection).
		OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	purchases := make([]*models.Purchase, 0)
	for {
		docSnap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list purchases for '%s': %w", userID, classifyFirestoreErr(err))
		}
		var p models.Purchase
		if err := docSnap.DataTo(&p); err != nil {
			return nil, fmt.Errorf("failed to decode purchase '%s': %w", docSnap.Ref.ID, err)
		}
		p.ID = docSnap.Ref.ID
		purchases = append(purchases, &p)
	}
	return purchases, nil
}

func decodeAccount(docSnap *firestore.DocumentSnapshot) (*models.Account, error) {
	var acct models.Account
	if err := docSnap.DataTo(&acct); err != nil {
		return nil, fmt.Errorf("failed to decode account '%s': %w", docSnap.Ref.ID, err)
	}
	acct.ID = docSnap.Ref.ID
	return &acct, nil
}

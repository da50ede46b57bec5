package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"adstudio-backend-go/internal/models"
)

// MemoryStore keeps accounts, purchases, processed events and audit logs in process
// memory. A single mutex serializes every Mutate, which gives the same per-account
// atomicity as the transactional stores. Used for local development and tests.
type MemoryStore struct {
	mu        sync.Mutex
	accounts  map[string]*models.Account
	purchases map[string][]models.Purchase
	events    map[string]models.ProcessedEvent
	audit     []models.AuditLog
	now       func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[string]*models.Account),
		purchases: make(map[string][]models.Purchase),
		events:    make(map[string]models.ProcessedEvent),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) GetByID(ctx context.Context, userID string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("account '%s' not found: %w", userID, ErrNotFound)
	}
	return acct.Clone(), nil
}

func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.first(ctx, func(a *models.Account) bool { return a.Email == email }, "email", email)
}

func (s *MemoryStore) GetByStripeCustomerID(ctx context.Context, customerID string) (*models.Account, error) {
	return s.first(ctx, func(a *models.Account) bool { return a.StripeCustomerID == customerID }, "stripeCustomerId", customerID)
}

// first scans accounts in creation order so repeated lookups are stable.
func (s *MemoryStore) first(ctx context.Context, match func(*models.Account) bool, field, value string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if value == "" {
		return nil, fmt.Errorf("%s cannot be empty", field)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *models.Account
	for _, acct := range s.accounts {
		if !match(acct) {
			continue
		}
		if found == nil || acct.CreatedAt.Before(found.CreatedAt) ||
			(acct.CreatedAt.Equal(found.CreatedAt) && acct.ID < found.ID) {
			found = acct
		}
	}
	if found == nil {
		return nil, fmt.Errorf("account with %s '%s' not found: %w", field, value, ErrNotFound)
	}
	return found.Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, acct *models.Account) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if acct == nil || acct.ID == "" {
		return errors.New("account ID cannot be empty for Create operation")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[acct.ID]; ok {
		return fmt.Errorf("account '%s': %w", acct.ID, ErrAlreadyExists)
	}
	s.accounts[acct.ID] = acct.Clone()
	return nil
}

func (s *MemoryStore) Mutate(ctx context.Context, userID string, m Mutation) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if m.Apply == nil {
		return nil, errors.New("mutation has no Apply function")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("account '%s' not found: %w", userID, ErrNotFound)
	}
	if m.EventKey != "" {
		if _, seen := s.events[m.EventKey]; seen {
			return nil, fmt.Errorf("event '%s': %w", m.EventKey, ErrDuplicateEvent)
		}
	}

	// Apply works on a copy so an error leaves the stored account untouched.
	acct := stored.Clone()
	changed, err := m.Apply(acct)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if changed {
		acct.UpdatedAt = now
		s.accounts[userID] = acct.Clone()
	}
	if m.Purchase != nil {
		p := *m.Purchase
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		s.purchases[userID] = append(s.purchases[userID], p)
	}
	if m.EventKey != "" {
		ev := m.Event
		ev.Key = m.EventKey
		ev.UserID = userID
		if ev.ProcessedAt.IsZero() {
			ev.ProcessedAt = now
		}
		s.events[m.EventKey] = ev
	}
	return acct, nil
}

func (s *MemoryStore) ListPurchases(ctx context.Context, userID string, limit int) ([]*models.Purchase, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.purchases[userID]
	out := make([]*models.Purchase, 0, len(src))
	for i := range src {
		p := src[i]
		out = append(out, &p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ProcessedEvent reports whether key has been recorded.
func (s *MemoryStore) ProcessedEvent(key string) (models.ProcessedEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[key]
	return ev, ok
}

// MemoryAuditRepository adapts a MemoryStore to AuditRepository.
type MemoryAuditRepository struct {
	store *MemoryStore
}

// AuditRepository returns the audit view of the store.
func (s *MemoryStore) AuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{store: s}
}

func (r *MemoryAuditRepository) Create(ctx context.Context, logEntry models.AuditLog) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if logEntry.ID == "" {
		logEntry.ID = uuid.NewString()
	}
	r.store.audit = append(r.store.audit, logEntry)
	return nil
}

// Entries returns a copy of the recorded audit logs in insertion order.
func (r *MemoryAuditRepository) Entries() []models.AuditLog {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]models.AuditLog, len(r.store.audit))
	copy(out, r.store.audit)
	return out
}

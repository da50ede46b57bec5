package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"adstudio-backend-go/internal/cache"
	"adstudio-backend-go/internal/config"
	"adstudio-backend-go/internal/db"
	"adstudio-backend-go/internal/events"
	"adstudio-backend-go/internal/mailer"
	"adstudio-backend-go/internal/models"
)

type fakeDirectory struct {
	mu      sync.Mutex
	users   map[string]string
	created []string
	err     error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: make(map[string]string)}
}

func (d *fakeDirectory) LookupOrCreateByEmail(_ context.Context, email, _ string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return "", false, d.err
	}
	if uid, ok := d.users[email]; ok {
		return uid, false, nil
	}
	uid := "uid-" + email
	d.users[email] = uid
	d.created = append(d.created, uid)
	return uid, true, nil
}

func (d *fakeDirectory) PasswordResetLink(_ context.Context, email string) (string, error) {
	return "https://auth.example.com/reset?email=" + email, nil
}

type fakeClaimsStore struct {
	mu     sync.Mutex
	claims map[string]models.Claims
	err    error
}

func newFakeClaimsStore() *fakeClaimsStore {
	return &fakeClaimsStore{claims: make(map[string]models.Claims)}
}

func (f *fakeClaimsStore) SetClaims(_ context.Context, userID string, claims models.Claims) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.claims[userID] = claims
	return nil
}

func (f *fakeClaimsStore) get(userID string) (models.Claims, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.claims[userID]
	return c, ok
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.LedgerEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// unavailableRepo fails every call with a transient store error.
type unavailableRepo struct {
	db.AccountRepository
}

var errStoreDown = errors.New("firestore: unavailable")

func (unavailableRepo) GetByID(context.Context, string) (*models.Account, error) {
	return nil, errors.Join(db.ErrUnavailable, errStoreDown)
}

func (unavailableRepo) Mutate(context.Context, string, db.Mutation) (*models.Account, error) {
	return nil, errors.Join(db.ErrUnavailable, errStoreDown)
}

type harness struct {
	store        *db.MemoryStore
	audit        *db.MemoryAuditRepository
	cache        *cache.MemoryCache
	claims       *fakeClaimsStore
	directory    *fakeDirectory
	publisher    *recordingPublisher
	mail         *recordingMailer
	ledger       LedgerService
	provisioning ProvisioningService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     db.NewMemoryStore(),
		cache:     cache.NewMemoryCache(),
		claims:    newFakeClaimsStore(),
		directory: newFakeDirectory(),
		publisher: &recordingPublisher{},
		mail:      &recordingMailer{},
	}
	h.audit = h.store.AuditRepository()
	follow := &FollowUps{
		Claims:    NewClaimsService(h.claims),
		Cache:     h.cache,
		Publisher: h.publisher,
		Audit:     NewAuditService(h.audit),
		Logger:    zap.NewNop(),
	}
	h.ledger = NewLedgerService(h.store, follow)

	prov, err := NewProvisioningService(ProvisioningDeps{
		Repo:        h.store,
		Catalog:     config.DefaultCatalog(),
		Directory:   h.directory,
		Mailer:      h.mail,
		SignupBonus: 1,
		FollowUps:   follow,
	})
	if err != nil {
		t.Fatalf("NewProvisioningService: %v", err)
	}
	h.provisioning = prov
	return h
}

func (h *harness) account(t *testing.T, userID string) *models.Account {
	t.Helper()
	acct, err := h.store.GetByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetByID(%s): %v", userID, err)
	}
	return acct
}

func (h *harness) seed(t *testing.T, acct *models.Account) {
	t.Helper()
	if err := h.store.Create(context.Background(), acct); err != nil {
		t.Fatalf("seed %s: %v", acct.ID, err)
	}
}

package account

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

/*
Fakes for ports
*/

type fakeStore struct {
	mu sync.Mutex

	byID map[string]domain.Account

	// injected errors (if set, method returns error)
	findErr   error
	createErr error
	saveErr   error

	// beforeSave runs once per Save call before the CAS check; tests use it to
	// simulate a concurrent writer.
	beforeSave   func(f *fakeStore, a domain.Account)
	beforeCreate func(f *fakeStore, a domain.Account)

	saves int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: map[string]domain.Account{}}
}

func (f *fakeStore) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErr != nil {
		return domain.Account{}, f.findErr
	}
	email = domain.NormalizeEmail(email)
	for _, a := range f.byID {
		if a.Email == email {
			return a, nil
		}
	}
	return domain.Account{}, domain.ErrAccountNotFound()
}

func (f *fakeStore) FindByID(ctx context.Context, id string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErr != nil {
		return domain.Account{}, f.findErr
	}
	a, ok := f.byID[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound()
	}
	return a, nil
}

func (f *fakeStore) Create(ctx context.Context, a domain.Account) (domain.Account, error) {
	f.mu.Lock()
	hook := f.beforeCreate
	f.beforeCreate = nil
	f.mu.Unlock()
	if hook != nil {
		hook(f, a)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return domain.Account{}, f.createErr
	}
	if f.emailTakenLocked(a.Email, a.ID) {
		return domain.Account{}, domain.ErrEmailInUse()
	}
	a.Version = 1
	f.byID[a.ID] = a
	return a, nil
}

func (f *fakeStore) Save(ctx context.Context, a domain.Account) (domain.Account, error) {
	f.mu.Lock()
	hook := f.beforeSave
	f.beforeSave = nil
	f.mu.Unlock()
	if hook != nil {
		hook(f, a)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.saves++
	if f.saveErr != nil {
		return domain.Account{}, f.saveErr
	}
	cur, ok := f.byID[a.ID]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound()
	}
	if cur.Version != a.Version {
		return domain.Account{}, domain.ErrVersionConflict()
	}
	if f.emailTakenLocked(a.Email, a.ID) {
		return domain.Account{}, domain.ErrEmailInUse()
	}
	a.Version++
	f.byID[a.ID] = a
	return a, nil
}

func (f *fakeStore) List(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]domain.Account, 0, len(f.byID))
	for _, a := range f.byID {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	if offset >= len(out) {
		return []domain.Account{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, a := range f.byID {
		if a.Role == role {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) emailTakenLocked(email, exceptID string) bool {
	for id, a := range f.byID {
		if id != exceptID && a.Email == email {
			return true
		}
	}
	return false
}

// put stores a record directly, bypassing CAS.
func (f *fakeStore) put(a domain.Account) domain.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.Version == 0 {
		a.Version = 1
	}
	f.byID[a.ID] = a
	return a
}

func (f *fakeStore) get(id string) domain.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id]
}

func (f *fakeStore) all() []domain.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Account, 0, len(f.byID))
	for _, a := range f.byID {
		out = append(out, a)
	}
	return out
}

type fakeHasher struct {
	hashErr error
}

func (h *fakeHasher) Hash(pw string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "hash:" + pw, nil
}

func (h *fakeHasher) Compare(hash, pw string) error {
	if hash != "hash:"+pw {
		return errors.New("mismatch")
	}
	return nil
}

// fakeClock is a settable clock shared by the service and the OTP fake.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// fakeOTPs hands out sequential codes: 100001, 100002, ...
type fakeOTPs struct {
	mu    sync.Mutex
	clock *fakeClock
	n     int
	err   error
}

func (g *fakeOTPs) Generate(purpose domain.OTPPurpose) (domain.OTP, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return domain.OTP{}, g.err
	}
	g.n++
	return domain.OTP{
		Code:      fmt.Sprintf("%06d", 100000+g.n),
		ExpiresAt: g.clock.Now().Add(domain.OTPTTL),
		Purpose:   purpose,
	}, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []CodeMessage
	err  error
}

func (n *fakeNotifier) SendCode(ctx context.Context, msg CodeMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *fakeNotifier) last() CodeMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return CodeMessage{}
	}
	return n.sent[len(n.sent)-1]
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fakeSigner struct {
	signErr error
}

func (s *fakeSigner) SignAccessToken(accountID, role string, ttl time.Duration) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	return fmt.Sprintf("tok:%s:%s:%s", accountID, role, ttl), nil
}

func (s *fakeSigner) VerifyAccessToken(token string) (TokenClaims, error) {
	parts := strings.Split(token, ":")
	if len(parts) < 3 || parts[0] != "tok" {
		return TokenClaims{}, domain.ErrTokenInvalid()
	}
	return TokenClaims{AccountID: parts[1], Role: parts[2]}, nil
}

type auditEntry struct {
	action string
	fields map[string]string
}

/*
Service harness
*/

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type harness struct {
	svc      *Service
	store    *fakeStore
	hasher   *fakeHasher
	otps     *fakeOTPs
	notifier *fakeNotifier
	signer   *fakeSigner
	clock    *fakeClock

	auditMu sync.Mutex
	audits  []auditEntry
}

func newHarness() *harness {
	clock := &fakeClock{t: testNow}
	h := &harness{
		store:    newFakeStore(),
		hasher:   &fakeHasher{},
		otps:     &fakeOTPs{clock: clock},
		notifier: &fakeNotifier{},
		signer:   &fakeSigner{},
		clock:    clock,
	}
	h.svc = NewService(h.store, h.hasher, h.otps, h.notifier, h.signer, Config{}).
		WithClock(clock.Now).
		WithAudit(func(action string, fields map[string]string) {
			h.auditMu.Lock()
			defer h.auditMu.Unlock()
			h.audits = append(h.audits, auditEntry{action: action, fields: fields})
		})
	return h
}

func (h *harness) lastAudit() auditEntry {
	h.auditMu.Lock()
	defer h.auditMu.Unlock()
	if len(h.audits) == 0 {
		return auditEntry{}
	}
	return h.audits[len(h.audits)-1]
}

const strongPassword = "Str0ng!pass"

// activeAccount runs the full three-step signup and returns the stored record.
func (h *harness) activeAccount(t *testing.T, name, email string) domain.Account {
	t.Helper()
	ctx := context.Background()
	res, err := h.svc.StartSignup(ctx, name, email)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	code := h.notifier.last().Code
	if _, err := h.svc.VerifyInitialOtp(ctx, email, code); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := h.svc.CompleteRegistration(ctx, email, strongPassword); err != nil {
		t.Fatalf("complete: %v", err)
	}
	return h.store.get(res.Account.ID)
}

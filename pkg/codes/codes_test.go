package codes

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"skyroute/pkg/config"
	"skyroute/pkg/db"
	"skyroute/pkg/model"
	"skyroute/pkg/store"
)

// auditSpy records history events on their way to the real store.
type auditSpy struct {
	store.CodeStore
	events []string
}

func (a *auditSpy) AppendCodeHistory(ctx context.Context, c *model.DeliveryCode, event string) error {
	a.events = append(a.events, event)
	return a.CodeStore.AppendCodeHistory(ctx, c, event)
}

func (a *auditSpy) last() string {
	if len(a.events) == 0 {
		return ""
	}
	return a.events[len(a.events)-1]
}

func newTestManager(t *testing.T, ttl time.Duration) (*Manager, *auditSpy) {
	t.Helper()

	d, err := db.Init(filepath.Join(t.TempDir(), "codes.db"))
	if err != nil {
		t.Fatalf("Failed to init DB: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	cfg := config.DefaultConfig()
	cfg.Codes.TTL = config.Duration(ttl)
	cfg.Codes.MaxAttempts = 3

	spy := &auditSpy{CodeStore: store.NewSQLiteStore(d)}
	return NewManager(spy, config.NewProvider(cfg, nil)), spy
}

func TestIssueAndVerify(t *testing.T) {
	m, spy := newTestManager(t, 5*time.Minute)
	ctx := context.Background()

	c, err := m.Issue(ctx, "ORD-a1b2c3d4")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if !regexp.MustCompile(`^\d{6}$`).MatchString(c.Code) {
		t.Errorf("code %q is not 6 digits", c.Code)
	}
	if c.Status != model.CodeActive {
		t.Errorf("Status = %q, want active", c.Status)
	}
	if spy.last() != EventGenerated {
		t.Errorf("audit = %q, want %q", spy.last(), EventGenerated)
	}

	if err := m.Verify(ctx, "ORD-a1b2c3d4", c.Code, "10.1.2.3"); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !strings.HasPrefix(spy.last(), EventVerified) {
		t.Errorf("audit = %q, want %q prefix", spy.last(), EventVerified)
	}
	if !strings.Contains(spy.last(), "ip=10.1.2.3") {
		t.Errorf("audit %q missing caller ip", spy.last())
	}

	stored, err := spy.GetActiveCode(ctx, "ORD-a1b2c3d4")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != model.CodeUsed || stored.VerifiedAt == nil || stored.Attempts != 1 {
		t.Errorf("verified code state wrong: %+v", stored)
	}
}

func TestReissueReplaces(t *testing.T) {
	m, spy := newTestManager(t, 5*time.Minute)
	ctx := context.Background()

	first, err := m.Issue(ctx, "ORD-a1b2c3d4")
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.Issue(ctx, "ORD-a1b2c3d4")
	if err != nil {
		t.Fatal(err)
	}
	if first.Code == second.Code {
		t.Fatalf("reissue produced the same code %q", first.Code)
	}

	active, err := spy.GetActiveCode(ctx, "ORD-a1b2c3d4")
	if err != nil {
		t.Fatal(err)
	}
	if active.Code != second.Code {
		t.Errorf("active code = %q, want the reissued %q", active.Code, second.Code)
	}

	if err := m.Verify(ctx, "ORD-a1b2c3d4", first.Code, ""); !errors.Is(err, ErrMismatch) {
		t.Errorf("stale code should mismatch, got %v", err)
	}
}

func TestVerifyUnknownOrder(t *testing.T) {
	m, spy := newTestManager(t, 5*time.Minute)

	if err := m.Verify(context.Background(), "ORD-missing", "123456", ""); !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
	if !strings.Contains(spy.last(), "no active code") {
		t.Errorf("audit = %q", spy.last())
	}
}

func TestVerifyLocksAfterMaxAttempts(t *testing.T) {
	m, spy := newTestManager(t, 5*time.Minute)
	ctx := context.Background()

	c, err := m.Issue(ctx, "ORD-a1b2c3d4")
	if err != nil {
		t.Fatal(err)
	}
	wrong := "000000"
	if wrong == c.Code {
		wrong = "000001"
	}

	for i := 0; i < 2; i++ {
		if err := m.Verify(ctx, "ORD-a1b2c3d4", wrong, ""); !errors.Is(err, ErrMismatch) {
			t.Fatalf("attempt %d: err = %v, want ErrMismatch", i+1, err)
		}
	}

	// Third strike locks
	if err := m.Verify(ctx, "ORD-a1b2c3d4", wrong, "10.9.9.9"); !errors.Is(err, ErrLocked) {
		t.Fatalf("err = %v, want ErrLocked", err)
	}
	if !strings.HasPrefix(spy.last(), EventLocked) {
		t.Errorf("audit = %q, want %q prefix", spy.last(), EventLocked)
	}

	// Even the correct code is refused now
	if err := m.Verify(ctx, "ORD-a1b2c3d4", c.Code, ""); !errors.Is(err, ErrLocked) {
		t.Errorf("locked code accepted: %v", err)
	}

	stored, err := spy.GetActiveCode(ctx, "ORD-a1b2c3d4")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != model.CodeLocked || stored.Attempts != 3 {
		t.Errorf("locked state wrong: %+v", stored)
	}
}

func TestVerifyExpired(t *testing.T) {
	m, spy := newTestManager(t, -1*time.Minute) // already expired on issue
	ctx := context.Background()

	c, err := m.Issue(ctx, "ORD-a1b2c3d4")
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Verify(ctx, "ORD-a1b2c3d4", c.Code, ""); !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want ErrExpired", err)
	}

	// Expired codes are removed on sight
	stored, err := spy.GetActiveCode(ctx, "ORD-a1b2c3d4")
	if err != nil {
		t.Fatal(err)
	}
	if stored != nil {
		t.Errorf("expired code still active: %+v", stored)
	}
}

func TestCompleteDelivery(t *testing.T) {
	m, spy := newTestManager(t, 5*time.Minute)
	ctx := context.Background()

	c, err := m.Issue(ctx, "ORD-a1b2c3d4")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Verify(ctx, "ORD-a1b2c3d4", c.Code, ""); err != nil {
		t.Fatal(err)
	}

	if err := m.CompleteDelivery(ctx, "ORD-a1b2c3d4", true); err != nil {
		t.Fatalf("CompleteDelivery failed: %v", err)
	}
	if !strings.Contains(spy.last(), "delivery successful") {
		t.Errorf("audit = %q", spy.last())
	}

	stored, err := spy.GetActiveCode(ctx, "ORD-a1b2c3d4")
	if err != nil {
		t.Fatal(err)
	}
	if stored != nil {
		t.Errorf("retired code still active: %+v", stored)
	}

	// Idempotent
	if err := m.CompleteDelivery(ctx, "ORD-a1b2c3d4", true); err != nil {
		t.Errorf("second CompleteDelivery errored: %v", err)
	}
}

func TestCleanupExpired(t *testing.T) {
	m, spy := newTestManager(t, -1*time.Minute)
	ctx := context.Background()

	if _, err := m.Issue(ctx, "ORD-00000001"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Issue(ctx, "ORD-00000002"); err != nil {
		t.Fatal(err)
	}

	// One fresh code that must survive
	fresh := &model.DeliveryCode{
		Code:      "424242",
		OrderID:   "ORD-00000003",
		Status:    model.CodeActive,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := spy.SaveActiveCode(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	n, err := m.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}
	if n != 2 {
		t.Errorf("cleaned = %d, want 2", n)
	}

	stored, err := spy.GetActiveCode(ctx, "ORD-00000003")
	if err != nil {
		t.Fatal(err)
	}
	if stored == nil {
		t.Error("fresh code swept up by cleanup")
	}

	// Nothing left to clean
	n, err = m.CleanupExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second cleanup = %d, want 0", n)
	}
}

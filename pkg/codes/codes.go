// Package codes manages delivery confirmation codes. A code is issued
// when a mission is assigned, verified by the drone at handoff, and
// retired on completion or expiry. Every lifecycle branch lands in the
// audit history.
package codes

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"skyroute/pkg/config"
	"skyroute/pkg/model"
	"skyroute/pkg/store"
)

// Verification rejections. The API maps these to client errors; anything
// else coming out of Verify is a storage failure.
var (
	ErrInvalid  = errors.New("invalid code")
	ErrExpired  = errors.New("code expired")
	ErrLocked   = errors.New("code locked due to too many attempts")
	ErrMismatch = errors.New("code does not match order")
)

// Audit event names recorded to the code history.
const (
	EventGenerated = "GENERATED"
	EventVerified  = "VERIFIED"
	EventFailed    = "VERIFY_FAILED"
	EventLocked    = "LOCKED"
	EventCompleted = "COMPLETED"
	EventExpired   = "EXPIRED"
)

// Manager drives the delivery code lifecycle on top of the code store.
type Manager struct {
	store store.CodeStore
	cfg   config.Provider
}

// NewManager creates a code manager.
func NewManager(st store.CodeStore, cfg config.Provider) *Manager {
	return &Manager{store: st, cfg: cfg}
}

// Issue creates and stores a confirmation code for an order. Reissuing
// for the same order replaces the previous code.
func (m *Manager) Issue(ctx context.Context, orderID string) (*model.DeliveryCode, error) {
	code, err := generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	now := time.Now()
	c := &model.DeliveryCode{
		Code:      code,
		OrderID:   orderID,
		Status:    model.CodeActive,
		CreatedAt: now,
		ExpiresAt: now.Add(m.cfg.CodeTTL(ctx)),
	}
	if err := m.store.SaveActiveCode(ctx, c); err != nil {
		return nil, err
	}
	m.audit(ctx, c, EventGenerated, "", "")

	slog.Info("Delivery code issued", "order", orderID, "expires", c.ExpiresAt.Format(time.RFC3339))
	return c, nil
}

// Verify checks a presented code against the order's active code. Nil
// means the handoff may proceed.
func (m *Manager) Verify(ctx context.Context, orderID, code, ip string) error {
	c, err := m.store.GetActiveCode(ctx, orderID)
	if err != nil {
		return err
	}

	if c == nil {
		m.audit(ctx, &model.DeliveryCode{Code: code, OrderID: orderID}, EventFailed, "no active code", ip)
		slog.Warn("Code verify failed", "order", orderID, "reason", "no active code")
		return ErrInvalid
	}

	now := time.Now()
	if c.Expired(now) {
		c.Status = model.CodeExpired
		m.audit(ctx, c, EventExpired, "expired before verification", ip)
		if err := m.store.DeleteActiveCode(ctx, c.Code); err != nil {
			slog.Error("Failed to delete expired code", "order", orderID, "error", err)
		}
		slog.Warn("Code verify failed", "order", orderID, "reason", "expired")
		return ErrExpired
	}

	if c.Status == model.CodeLocked {
		m.audit(ctx, c, EventFailed, "code locked", ip)
		slog.Warn("Code verify failed", "order", orderID, "reason", "locked")
		return ErrLocked
	}

	if c.Code != code {
		c.Attempts++
		if c.Attempts >= m.maxAttempts() {
			c.Status = model.CodeLocked
			if err := m.store.SaveActiveCode(ctx, c); err != nil {
				return err
			}
			m.audit(ctx, c, EventLocked, "max attempts exceeded", ip)
			slog.Warn("Code locked", "order", orderID, "attempts", c.Attempts)
			return ErrLocked
		}
		if err := m.store.SaveActiveCode(ctx, c); err != nil {
			return err
		}
		m.audit(ctx, c, EventFailed, "code mismatch", ip)
		slog.Warn("Code verify failed", "order", orderID, "reason", "mismatch", "attempts", c.Attempts)
		return ErrMismatch
	}

	c.Attempts++
	c.Status = model.CodeUsed
	c.VerifiedAt = &now
	if err := m.store.SaveActiveCode(ctx, c); err != nil {
		return err
	}
	m.audit(ctx, c, EventVerified, "", ip)

	slog.Info("Delivery code verified", "order", orderID)
	return nil
}

// CompleteDelivery retires the order's code after the handoff finishes.
// Retiring an already retired order is a no-op.
func (m *Manager) CompleteDelivery(ctx context.Context, orderID string, success bool) error {
	c, err := m.store.GetActiveCode(ctx, orderID)
	if err != nil {
		return err
	}
	if c == nil {
		return nil
	}

	detail := "delivery failed"
	if success {
		detail = "delivery successful"
	}
	m.audit(ctx, c, EventCompleted, detail, "")
	if err := m.store.DeleteActiveCode(ctx, c.Code); err != nil {
		return err
	}

	slog.Info("Delivery code retired", "order", orderID, "success", success)
	return nil
}

// CleanupExpired removes codes past their expiry, auditing each one. The
// scheduler runs this periodically.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	expired, err := m.store.ListExpiredCodes(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	cleaned := 0
	for _, c := range expired {
		c.Status = model.CodeExpired
		m.audit(ctx, c, EventExpired, "cleanup", "")
		if err := m.store.DeleteActiveCode(ctx, c.Code); err != nil {
			return cleaned, err
		}
		cleaned++
	}

	if cleaned > 0 {
		slog.Info("Cleaned up expired codes", "count", cleaned)
	}
	return cleaned, nil
}

func (m *Manager) maxAttempts() int {
	if n := m.cfg.AppConfig().Codes.MaxAttempts; n > 0 {
		return n
	}
	return 3
}

// audit appends a history row. Audit failures are logged, never fatal;
// the delivery flow must not stall on bookkeeping.
func (m *Manager) audit(ctx context.Context, c *model.DeliveryCode, event, detail, ip string) {
	e := event
	if detail != "" {
		e += " " + detail
	}
	if ip != "" {
		e += " ip=" + ip
	}
	if err := m.store.AppendCodeHistory(ctx, c, e); err != nil {
		slog.Error("Failed to append code history", "code", c.Code, "error", err)
	}
}

// generate draws a uniform 6-digit code from crypto/rand.
func generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

package initiator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/domain/entity"
)

// ErrNoRecovery is returned when no pending payment was saved.
var ErrNoRecovery = errors.New("initiator: no pending payment to recover")

// PendingPayment is what the buyer's session remembers about an order handed
// to the gateway, enough to put the cart back if the payment fails.
type PendingPayment struct {
	OrderID   string                  `json:"orderId"`
	Source    Source                  `json:"source"`
	Customer  entity.CustomerSnapshot `json:"customer"`
	Items     []entity.LineItem       `json:"items"`
	Total     decimal.Decimal         `json:"total"`
	CreatedAt time.Time               `json:"createdAt"`
}

// RecoveryStore holds at most one pending payment per browsing session.
type RecoveryStore interface {
	Save(ctx context.Context, p PendingPayment) error
	Load(ctx context.Context) (*PendingPayment, error)
	Clear(ctx context.Context) error
}

type MemoryRecovery struct {
	mu sync.Mutex
	p  *PendingPayment
}

func NewMemoryRecovery() *MemoryRecovery { return &MemoryRecovery{} }

func (m *MemoryRecovery) Save(_ context.Context, p PendingPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Items = slices.Clone(p.Items)
	m.p = &p
	return nil
}

func (m *MemoryRecovery) Load(context.Context) (*PendingPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.p == nil {
		return nil, ErrNoRecovery
	}
	cp := *m.p
	cp.Items = slices.Clone(m.p.Items)
	return &cp, nil
}

func (m *MemoryRecovery) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.p = nil
	return nil
}

// FileRecovery keeps the pending payment as a JSON file, one per session
// directory.
type FileRecovery struct {
	mu   sync.Mutex
	path string
}

func NewFileRecovery(sessionDir string) *FileRecovery {
	return &FileRecovery{path: filepath.Join(sessionDir, "pending-payment.json")}
}

func (f *FileRecovery) Save(_ context.Context, p PendingPayment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("initiator: encode pending payment: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("initiator: create session dir: %w", err)
	}
	if err := writeFileAtomic(f.path, data); err != nil {
		return fmt.Errorf("initiator: save pending payment: %w", err)
	}
	return nil
}

func (f *FileRecovery) Load(context.Context) (*PendingPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoRecovery
	}
	if err != nil {
		return nil, fmt.Errorf("initiator: read pending payment: %w", err)
	}
	var p PendingPayment
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("initiator: decode pending payment: %w", err)
	}
	return &p, nil
}

func (f *FileRecovery) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("initiator: clear pending payment: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/layer-3/tapnotify/core"
	"github.com/layer-3/tapnotify/ports"
)

// MemoryLedger is an in-memory implementation of the Ledger interface.
// It accepts every transfer and is meant for development and tests.
type MemoryLedger struct {
	receipts []core.TransferReceipt
	mu       sync.RWMutex
}

// NewMemoryLedger creates a new in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

var _ ports.Ledger = (*MemoryLedger)(nil)

// Transfer records the transfer and returns its receipt
func (l *MemoryLedger) Transfer(ctx context.Context, t core.Transfer) (*core.TransferReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.ErrLedgerUnavailable
	}

	receipt := core.TransferReceipt{
		ID:      uuid.New().String(),
		Status:  "pending",
		PayerID: t.PayerID,
		PayeeID: t.PayeeID,
		Amount:  t.Amount,
		Medium:  t.Medium,
		Date:    t.Date.Format(DateLayout),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.receipts = append(l.receipts, receipt)
	return &receipt, nil
}

// Receipts returns every transfer recorded so far
func (l *MemoryLedger) Receipts() []core.TransferReceipt {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]core.TransferReceipt(nil), l.receipts...)
}

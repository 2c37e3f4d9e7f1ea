package ports

import (
	"context"

	"github.com/layer-3/tapnotify/core"
)

// Ledger moves money between accounts in the external account ledger
type Ledger interface {
	Transfer(ctx context.Context, transfer core.Transfer) (*core.TransferReceipt, error)
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/layer-3/tapnotify/core"
	"github.com/layer-3/tapnotify/internal/metrics"
	"github.com/layer-3/tapnotify/ports"
	"github.com/rs/zerolog"
)

// TransferService authorizes transfers against a signed challenge, books
// them in the ledger and notifies the payee
type TransferService struct {
	tokens   *TokenService
	ledger   ports.Ledger
	notifier ports.Notifier

	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewTransferService creates a new transfer service
func NewTransferService(
	tokens *TokenService,
	ledger ports.Ledger,
	notifier ports.Notifier,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *TransferService {
	if m == nil {
		m = metrics.Nop()
	}
	return &TransferService{
		tokens:   tokens,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Authorize verifies the signed challenge of req, performs the transfer
// and pushes a transfer-received event to the payee's channel.
// Nothing is booked or broadcast when verification fails, and nothing is
// broadcast when the ledger does not accept the transfer.
func (s *TransferService) Authorize(ctx context.Context, req core.TransferRequest) (*core.TransferReceipt, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.metrics.Transfers.WithLabelValues("invalid").Inc()
		return nil, err
	}

	if err := s.tokens.VerifyToken(req.Token); err != nil {
		s.metrics.Transfers.WithLabelValues("unauthorized").Inc()
		return nil, err
	}

	transfer := req.Transfer(s.now())
	receipt, err := s.ledger.Transfer(ctx, transfer)
	if err != nil {
		s.metrics.Transfers.WithLabelValues("ledger_error").Inc()
		return nil, fmt.Errorf("ledger transfer failed: %w", err)
	}

	payload, err := json.Marshal(core.NewTransferEvent(transfer))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	// the transfer is booked at this point, a failed notification must not undo it
	channel := core.SingleChannel(transfer.PayeeID)
	if err := s.notifier.Notify(ctx, channel, payload); err != nil {
		s.logger.Warn().Err(err).Str("channel", channel).Msg("failed to notify payee")
	}

	s.metrics.Transfers.WithLabelValues("ok").Inc()
	s.logger.Info().
		Str("receipt", receipt.ID).
		Str("payer", transfer.PayerID).
		Str("payee", transfer.PayeeID).
		Msg("transfer authorized")
	return receipt, nil
}

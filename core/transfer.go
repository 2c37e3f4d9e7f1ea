package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// EventTransferReceived is the type of the event pushed to a payee
	EventTransferReceived = "transfer-received"

	DefaultMedium  = "balance"
	DefaultConcept = "Bluetooth transfer"
)

// TransferRequest is a transfer submitted together with a signed challenge
type TransferRequest struct {
	Token   SecureToken     `json:"secureToken" binding:"required"`
	PayerID string          `json:"payer_id" binding:"required"`
	PayeeID string          `json:"payee_id" binding:"required"`
	Amount  decimal.Decimal `json:"amount"`
	Concept string          `json:"concept"`
	Medium  string          `json:"medium"`
}

// Normalize fills in defaults and trims identifiers
func (r *TransferRequest) Normalize() {
	r.PayerID = strings.TrimSpace(r.PayerID)
	r.PayeeID = strings.TrimSpace(r.PayeeID)
	if r.Medium == "" {
		r.Medium = DefaultMedium
	}
	if r.Concept == "" {
		r.Concept = DefaultConcept
	}
}

// Validate checks the fields the ledger cannot do without
func (r TransferRequest) Validate() error {
	if r.PayerID == "" {
		return fmt.Errorf("payer_id is required: %w", ErrInvalidTransfer)
	}
	if r.PayeeID == "" {
		return fmt.Errorf("payee_id is required: %w", ErrInvalidTransfer)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive: %w", ErrInvalidTransfer)
	}
	return nil
}

// Transfer is the ledger-facing part of a transfer request
type Transfer struct {
	PayerID string
	PayeeID string
	Amount  decimal.Decimal
	Medium  string
	Concept string
	Date    time.Time
}

// Transfer returns the ledger view of the request
func (r TransferRequest) Transfer(now time.Time) Transfer {
	return Transfer{
		PayerID: r.PayerID,
		PayeeID: r.PayeeID,
		Amount:  r.Amount,
		Medium:  r.Medium,
		Concept: r.Concept,
		Date:    now,
	}
}

// TransferReceipt is what the ledger reports back for an accepted transfer
type TransferReceipt struct {
	ID      string          `json:"id"`
	Status  string          `json:"status"`
	PayerID string          `json:"payer_id"`
	PayeeID string          `json:"payee_id"`
	Amount  decimal.Decimal `json:"amount"`
	Medium  string          `json:"medium"`
	Date    string          `json:"transaction_date"`
}

// TransferEvent is pushed to the payee's channel after a transfer
type TransferEvent struct {
	Type string            `json:"type"`
	Data TransferEventData `json:"data"`
}

type TransferEventData struct {
	Amount  float64 `json:"amount"`
	Concept string  `json:"concept"`
	Payer   string  `json:"payer"`
}

// NewTransferEvent builds the transfer-received event for t
func NewTransferEvent(t Transfer) TransferEvent {
	return TransferEvent{
		Type: EventTransferReceived,
		Data: TransferEventData{
			Amount:  t.Amount.InexactFloat64(),
			Concept: t.Concept,
			Payer:   t.PayerID,
		},
	}
}

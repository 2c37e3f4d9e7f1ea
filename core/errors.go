package core

import (
	"errors"
	"fmt"
)

var (
	ErrVerificationFailed = errors.New("signature verification failed")
	ErrKeyMaterialMissing = errors.New("key material missing")

	ErrChannelEmpty     = errors.New("channel has no subscribers")
	ErrConnectionFault  = errors.New("connection fault")
	ErrConnectionClosed = errors.New("connection closed")

	ErrInvalidTransfer   = errors.New("invalid transfer")
	ErrLedgerRejected    = errors.New("ledger rejected transfer")
	ErrLedgerUnavailable = errors.New("ledger unavailable")
)

// LedgerRejection is returned when the ledger answers but refuses a transfer
type LedgerRejection struct {
	StatusCode int
	Body       string
}

func (e *LedgerRejection) Error() string {
	return fmt.Sprintf("ledger returned status %d: %s", e.StatusCode, e.Body)
}

func (e *LedgerRejection) Unwrap() error {
	return ErrLedgerRejected
}

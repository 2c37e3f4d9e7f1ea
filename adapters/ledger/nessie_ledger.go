package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/layer-3/tapnotify/core"
	"github.com/layer-3/tapnotify/ports"
	"github.com/shopspring/decimal"
)

// DateLayout is the transaction date format of the ledger API
const DateLayout = "2006-01-02"

// maxErrorBody bounds how much of an error response is kept
const maxErrorBody = 4 << 10

// NessieLedger books transfers through the Nessie account API
type NessieLedger struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewNessieLedger creates a ledger client. A nil client gets one with timeout.
func NewNessieLedger(baseURL, apiKey string, timeout time.Duration, client *http.Client) *NessieLedger {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &NessieLedger{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  client,
	}
}

var _ ports.Ledger = (*NessieLedger)(nil)

type transferPayload struct {
	Medium          string  `json:"medium"`
	PayeeID         string  `json:"payee_id"`
	Amount          float64 `json:"amount"`
	TransactionDate string  `json:"transaction_date"`
	Status          string  `json:"status"`
	Description     string  `json:"description"`
}

type transferResponse struct {
	Code          int    `json:"code"`
	Message       string `json:"message"`
	ObjectCreated struct {
		ID              string          `json:"_id"`
		Medium          string          `json:"medium"`
		PayerID         string          `json:"payer_id"`
		PayeeID         string          `json:"payee_id"`
		Amount          decimal.Decimal `json:"amount"`
		TransactionDate string          `json:"transaction_date"`
		Status          string          `json:"status"`
	} `json:"objectCreated"`
}

// Transfer posts the transfer to /accounts/{payer}/transfers
func (l *NessieLedger) Transfer(ctx context.Context, t core.Transfer) (*core.TransferReceipt, error) {
	payload, err := json.Marshal(transferPayload{
		Medium:          t.Medium,
		PayeeID:         t.PayeeID,
		Amount:          t.Amount.InexactFloat64(),
		TransactionDate: t.Date.Format(DateLayout),
		Status:          "pending",
		Description:     t.Concept,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transfer: %w", err)
	}

	endpoint := fmt.Sprintf("%s/accounts/%s/transfers?key=%s",
		l.baseURL, url.PathEscape(t.PayerID), url.QueryEscape(l.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrLedgerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &core.LedgerRejection{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", core.ErrLedgerUnavailable, err)
	}

	receipt := &core.TransferReceipt{
		ID:      out.ObjectCreated.ID,
		Status:  out.ObjectCreated.Status,
		PayerID: out.ObjectCreated.PayerID,
		PayeeID: out.ObjectCreated.PayeeID,
		Amount:  out.ObjectCreated.Amount,
		Medium:  out.ObjectCreated.Medium,
		Date:    out.ObjectCreated.TransactionDate,
	}
	if receipt.PayerID == "" {
		receipt.PayerID = t.PayerID
	}
	if receipt.PayeeID == "" {
		receipt.PayeeID = t.PayeeID
	}
	if receipt.Amount.IsZero() {
		receipt.Amount = t.Amount
	}
	return receipt, nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/tapnotify/core"
	"github.com/layer-3/tapnotify/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLedger struct {
	mu        sync.Mutex
	err       error
	transfers []core.Transfer
}

func (l *stubLedger) Transfer(ctx context.Context, t core.Transfer) (*core.TransferReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.transfers = append(l.transfers, t)
	return &core.TransferReceipt{
		ID:      "tx-1",
		Status:  "pending",
		PayerID: t.PayerID,
		PayeeID: t.PayeeID,
		Amount:  t.Amount,
		Medium:  t.Medium,
		Date:    t.Date.Format("2006-01-02"),
	}, nil
}

type notification struct {
	channel string
	payload []byte
}

type stubNotifier struct {
	mu   sync.Mutex
	err  error
	sent []notification
}

func (n *stubNotifier) Notify(ctx context.Context, channel string, payload []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{channel: channel, payload: payload})
	return n.err
}

func newTestTransferService(t *testing.T) (*TransferService, *TokenService, *stubLedger, *stubNotifier) {
	t.Helper()
	tokens, _ := newTestTokenService(t)
	l := &stubLedger{}
	n := &stubNotifier{}
	svc := NewTransferService(tokens, l, n, zerolog.Nop(), metrics.Nop())
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC) }
	return svc, tokens, l, n
}

func validRequest(t *testing.T, tokens *TokenService) core.TransferRequest {
	t.Helper()
	tok, err := tokens.IssueChallenge()
	require.NoError(t, err)
	return core.TransferRequest{
		Token:   tok,
		PayerID: " payer-1 ",
		PayeeID: "payee-2",
		Amount:  decimal.RequireFromString("7.25"),
	}
}

func TestTransferService_Authorize(t *testing.T) {
	svc, tokens, l, n := newTestTransferService(t)

	receipt, err := svc.Authorize(context.Background(), validRequest(t, tokens))
	require.NoError(t, err)
	assert.Equal(t, "tx-1", receipt.ID)
	assert.Equal(t, "2026-10-19", receipt.Date)

	require.Len(t, l.transfers, 1)
	booked := l.transfers[0]
	assert.Equal(t, "payer-1", booked.PayerID)
	assert.Equal(t, core.DefaultMedium, booked.Medium)
	assert.Equal(t, core.DefaultConcept, booked.Concept)

	require.Len(t, n.sent, 1)
	assert.Equal(t, "single/payee-2", n.sent[0].channel)

	var event core.TransferEvent
	require.NoError(t, json.Unmarshal(n.sent[0].payload, &event))
	assert.Equal(t, core.EventTransferReceived, event.Type)
	assert.Equal(t, 7.25, event.Data.Amount)
	assert.Equal(t, core.DefaultConcept, event.Data.Concept)
	assert.Equal(t, "payer-1", event.Data.Payer)

	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.Transfers.WithLabelValues("ok")))
}

func TestTransferService_RejectsBadSignature(t *testing.T) {
	svc, tokens, l, n := newTestTransferService(t)

	req := validRequest(t, tokens)
	other, err := tokens.IssueChallenge()
	require.NoError(t, err)
	req.Token.Signature = other.Signature

	_, err = svc.Authorize(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrVerificationFailed)
	assert.Empty(t, l.transfers)
	assert.Empty(t, n.sent)
}

func TestTransferService_Invalid(t *testing.T) {
	svc, tokens, l, n := newTestTransferService(t)

	cases := map[string]func(r *core.TransferRequest){
		"no payer":    func(r *core.TransferRequest) { r.PayerID = "  " },
		"no payee":    func(r *core.TransferRequest) { r.PayeeID = "" },
		"zero amount": func(r *core.TransferRequest) { r.Amount = decimal.Zero },
		"negative":    func(r *core.TransferRequest) { r.Amount = decimal.NewFromInt(-1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validRequest(t, tokens)
			mutate(&req)
			_, err := svc.Authorize(context.Background(), req)
			assert.ErrorIs(t, err, core.ErrInvalidTransfer)
		})
	}
	assert.Empty(t, l.transfers)
	assert.Empty(t, n.sent)
}

func TestTransferService_LedgerFailureSkipsNotification(t *testing.T) {
	svc, tokens, l, n := newTestTransferService(t)
	l.err = &core.LedgerRejection{StatusCode: 404, Body: "Invalid ID"}

	_, err := svc.Authorize(context.Background(), validRequest(t, tokens))
	assert.ErrorIs(t, err, core.ErrLedgerRejected)
	assert.Empty(t, n.sent)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.Transfers.WithLabelValues("ledger_error")))
}

func TestTransferService_NotifyFailureKeepsTransfer(t *testing.T) {
	svc, tokens, l, n := newTestTransferService(t)
	n.err = errors.New("redis down")

	receipt, err := svc.Authorize(context.Background(), validRequest(t, tokens))
	require.NoError(t, err)
	assert.NotNil(t, receipt)
	assert.Len(t, l.transfers, 1)
}

func TestTransferService_BroadcastsToRegistry(t *testing.T) {
	tokens, _ := newTestTokenService(t)
	registry := newTestRegistry(time.Second)
	defer registry.Close()

	payee := newFakeConn()
	require.NoError(t, registry.Connect(context.Background(), "single/payee-2", payee))

	svc := NewTransferService(tokens, &stubLedger{}, registryNotifier{registry}, zerolog.Nop(), nil)
	_, err := svc.Authorize(context.Background(), validRequest(t, tokens))
	require.NoError(t, err)

	require.Len(t, payee.messages(), 1)
	assert.Contains(t, payee.messages()[0], `"type":"transfer-received"`)
}

// registryNotifier pushes straight into a registry, without the events adapters
type registryNotifier struct {
	registry *ChannelRegistry
}

func (n registryNotifier) Notify(ctx context.Context, channel string, payload []byte) error {
	d := n.registry.Broadcast(ctx, channel, string(payload))
	if d.Empty() {
		return nil
	}
	return d.Err()
}

package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/layer-3/tapnotify/adapters/ws"
	"github.com/layer-3/tapnotify/core"
	"github.com/layer-3/tapnotify/service"
	"github.com/rs/zerolog"
)

func success(c *gin.Context, result any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

func failure(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// TokenHandlers serves challenge issuance
type TokenHandlers struct {
	tokens *service.TokenService
}

// NewTokenHandlers creates new token handlers
func NewTokenHandlers(tokens *service.TokenService) *TokenHandlers {
	return &TokenHandlers{tokens: tokens}
}

// Challenge issues a fresh signed challenge
func (h *TokenHandlers) Challenge(c *gin.Context) {
	token, err := h.tokens.IssueChallenge()
	if err != nil {
		failure(c, http.StatusInternalServerError, "failed to create challenge")
		return
	}

	success(c, token)
}

// PaymentHandlers serves transfer authorization
type PaymentHandlers struct {
	transfers *service.TransferService
	logger    zerolog.Logger
}

// NewPaymentHandlers creates new payment handlers
func NewPaymentHandlers(transfers *service.TransferService, logger zerolog.Logger) *PaymentHandlers {
	return &PaymentHandlers{
		transfers: transfers,
		logger:    logger,
	}
}

// Transfer verifies the signed challenge in the body and performs the transfer
func (h *PaymentHandlers) Transfer(c *gin.Context) {
	var req core.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "invalid request")
		return
	}

	receipt, err := h.transfers.Authorize(c.Request.Context(), req)
	if err != nil {
		statusCode, errorMsg := transferStatus(err)
		if statusCode >= http.StatusInternalServerError {
			h.logger.Error().Err(err).Str("request_id", c.GetString(requestIDKey)).Msg("transfer failed")
		}
		failure(c, statusCode, errorMsg)
		return
	}

	success(c, receipt)
}

// transferStatus maps an Authorize error to a status code and client message.
// A ledger rejection keeps the upstream status when it is an error status.
func transferStatus(err error) (int, string) {
	var rejection *core.LedgerRejection

	switch {
	case errors.Is(err, core.ErrInvalidTransfer):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrVerificationFailed):
		return http.StatusUnauthorized, "invalid signature"
	case errors.As(err, &rejection):
		if rejection.StatusCode >= http.StatusBadRequest && rejection.StatusCode <= 599 {
			return rejection.StatusCode, "transfer rejected by ledger"
		}
		return http.StatusBadGateway, "transfer rejected by ledger"
	case errors.Is(err, core.ErrLedgerRejected):
		return http.StatusBadGateway, "transfer rejected by ledger"
	case errors.Is(err, core.ErrLedgerUnavailable):
		return http.StatusBadGateway, "ledger unavailable"
	default:
		return http.StatusInternalServerError, "transfer failed"
	}
}

// ChannelHandlers serves live channel subscriptions
type ChannelHandlers struct {
	registry *service.ChannelRegistry
	upgrader *websocket.Upgrader
	logger   zerolog.Logger
}

// NewChannelHandlers creates new channel handlers
func NewChannelHandlers(registry *service.ChannelRegistry, upgrader *websocket.Upgrader, logger zerolog.Logger) *ChannelHandlers {
	if upgrader == nil {
		upgrader = ws.NewUpgrader(nil)
	}
	return &ChannelHandlers{
		registry: registry,
		upgrader: upgrader,
		logger:   logger,
	}
}

// Subscribe upgrades the request to a websocket on single/<payee_id> and
// keeps it registered until the peer goes away
func (h *ChannelHandlers) Subscribe(c *gin.Context) {
	payeeID := strings.TrimSpace(c.Param("payee_id"))
	if payeeID == "" {
		failure(c, http.StatusBadRequest, "payee_id is required")
		return
	}
	channel := core.SingleChannel(payeeID)

	conn := ws.NewConn(h.upgrader, c.Writer, c.Request)
	if err := h.registry.Connect(c.Request.Context(), channel, conn); err != nil {
		// the upgrader has already answered the request
		h.logger.Debug().Err(err).Str("channel", channel).Msg("subscription rejected")
		_ = conn.Close()
		return
	}
	defer h.registry.Disconnect(channel, conn)

	// inbound payloads are ignored, the loop only detects the peer leaving
	for {
		if _, err := conn.Receive(context.Background()); err != nil {
			return
		}
	}
}

// Health reports liveness and the number of active channels
func Health(registry *service.ChannelRegistry, ready func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ready != nil {
			if err := ready(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"channels": len(registry.Channels()),
		})
	}
}

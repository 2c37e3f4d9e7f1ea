package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/layer-3/tapnotify/internal/metrics"
	"github.com/layer-3/tapnotify/internal/ratelimit"
	"github.com/layer-3/tapnotify/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps are the services the router exposes
type Deps struct {
	Tokens    *service.TokenService
	Transfers *service.TransferService
	Registry  *service.ChannelRegistry
	Upgrader  *websocket.Upgrader

	ChallengeLimiter *ratelimit.KeyLimiter
	Metrics          *metrics.Metrics
	Gatherer         prometheus.Gatherer
	Logger           zerolog.Logger

	// Ready reports the state of external dependencies, it may be nil
	Ready func(ctx context.Context) error
}

// SetupRouter sets up the Gin router
func SetupRouter(deps Deps) *gin.Engine {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop()
	}

	router := gin.New()
	router.Use(
		RequestID(),
		RequestLogger(deps.Logger),
		gin.Recovery(),
		RequestMetrics(deps.Metrics),
	)

	tokens := NewTokenHandlers(deps.Tokens)
	payments := NewPaymentHandlers(deps.Transfers, deps.Logger)
	channels := NewChannelHandlers(deps.Registry, deps.Upgrader, deps.Logger)

	token := router.Group("/api/token")
	token.Use(RateLimit(deps.ChallengeLimiter))
	{
		token.POST("", tokens.Challenge)
		token.POST("/", tokens.Challenge)
	}

	router.POST("/payments/transfer", payments.Transfer)

	ws := router.Group("/ws")
	{
		ws.GET("/single/:payee_id", channels.Subscribe)
	}

	router.GET("/healthz", Health(deps.Registry, deps.Ready))
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	return router
}

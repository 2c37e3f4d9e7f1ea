package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/tapnotify/adapters/events"
	"github.com/layer-3/tapnotify/adapters/ledger"
	"github.com/layer-3/tapnotify/adapters/tokenizer"
	"github.com/layer-3/tapnotify/adapters/ws"
	"github.com/layer-3/tapnotify/internal/config"
	"github.com/layer-3/tapnotify/internal/log"
	"github.com/layer-3/tapnotify/internal/metrics"
	"github.com/layer-3/tapnotify/internal/ratelimit"
	"github.com/layer-3/tapnotify/ports"
	"github.com/layer-3/tapnotify/service"
	"github.com/layer-3/tapnotify/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func serve(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if err := log.Setup(cfg.Log); err != nil {
		return err
	}
	logger := log.New("main")
	if cfg.Log.Level != "debug" && cfg.Log.Level != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}

	// the service cannot sign or verify anything without its keys
	keys, err := tokenizer.LoadKeyPair(cfg.Keys.PrivateKeyPath, cfg.Keys.PublicKeyPath)
	if err != nil {
		return err
	}
	tk, err := tokenizer.NewRSATokenizer(keys)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	tokens := service.NewTokenService(tk, m)
	registry := service.NewChannelRegistry(cfg.Registry, log.New("registry"), m)

	var l ports.Ledger
	switch cfg.Ledger.Driver {
	case config.LedgerNessie:
		l = ledger.NewNessieLedger(cfg.Ledger.BaseURL, cfg.Ledger.APIKey, cfg.Ledger.Timeout, nil)
	default:
		l = ledger.NewMemoryLedger()
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	var (
		notifier ports.Notifier
		ready    func(ctx context.Context) error
	)
	switch cfg.Events.Driver {
	case config.EventsRedis:
		opts, err := redis.ParseURL(cfg.Events.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		publisher, subscriber, err := events.NewRedisPubSub(client, log.NewWatermillAdapter(log.New("watermill")))
		if err != nil {
			return err
		}
		defer closeAll(publisher, subscriber)

		notifier = events.NewWatermillNotifier(publisher, cfg.Events.Topic)
		relay := events.NewRelay(subscriber, cfg.Events.Topic, registry, log.New("relay"))
		g.Go(func() error { return relay.Run(ctx) })

		ready = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	default:
		notifier = events.NewDirectNotifier(registry, log.New("notifier"))
	}

	transfers := service.NewTransferService(tokens, l, notifier, log.New("transfers"), m)

	router := http.SetupRouter(http.Deps{
		Tokens:           tokens,
		Transfers:        transfers,
		Registry:         registry,
		Upgrader:         ws.NewUpgrader(cfg.HTTP.AllowedOrigins),
		ChallengeLimiter: ratelimit.New(cfg.HTTP.ChallengeRate, cfg.HTTP.ChallengeBurst, 10*time.Minute),
		Metrics:          m,
		Gatherer:         reg,
		Logger:           log.New("http"),
		Ready:            ready,
	})

	srv := &nethttp.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info().
			Str("addr", cfg.HTTP.Addr).
			Str("ledger", cfg.Ledger.Driver).
			Str("events", cfg.Events.Driver).
			Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, nethttp.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		// websocket handlers are hijacked and not tracked by Shutdown
		registry.Close()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func closeAll(publisher message.Publisher, subscriber message.Subscriber) {
	_ = subscriber.Close()
	_ = publisher.Close()
}

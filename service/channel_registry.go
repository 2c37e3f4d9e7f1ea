package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/layer-3/tapnotify/core"
	"github.com/layer-3/tapnotify/internal/config"
	"github.com/layer-3/tapnotify/internal/metrics"
	"github.com/layer-3/tapnotify/ports"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// subscriberSet is never mutated once stored in the registry; every change
// stores a fresh copy, so a loaded set is a stable broadcast snapshot.
type subscriberSet map[ports.Conn]struct{}

// ChannelRegistry tracks the live connections subscribed to each channel
// and fans messages out to them. A channel exists only while it has at
// least one subscriber.
type ChannelRegistry struct {
	channels *xsync.MapOf[string, subscriberSet]

	sendTimeout time.Duration
	concurrency int

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewChannelRegistry creates an empty registry
func NewChannelRegistry(cfg config.RegistryConfig, logger zerolog.Logger, m *metrics.Metrics) *ChannelRegistry {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = config.Default().Registry.SendTimeout
	}
	if cfg.BroadcastConcurrency <= 0 {
		cfg.BroadcastConcurrency = config.Default().Registry.BroadcastConcurrency
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &ChannelRegistry{
		channels:    xsync.NewMapOf[string, subscriberSet](),
		sendTimeout: cfg.SendTimeout,
		concurrency: cfg.BroadcastConcurrency,
		logger:      logger,
		metrics:     m,
	}
}

// Connect accepts conn and subscribes it to channel. Subscribing the same
// connection twice leaves a single membership.
func (r *ChannelRegistry) Connect(ctx context.Context, channel string, conn ports.Conn) error {
	if err := conn.Accept(ctx); err != nil {
		return fmt.Errorf("failed to accept connection: %w", err)
	}

	var added, created bool
	r.channels.Compute(channel, func(old subscriberSet, loaded bool) (subscriberSet, bool) {
		if _, ok := old[conn]; ok {
			return old, false
		}
		next := make(subscriberSet, len(old)+1)
		for c := range old {
			next[c] = struct{}{}
		}
		next[conn] = struct{}{}
		added, created = true, !loaded
		return next, false
	})

	if added {
		r.metrics.Subscribers.Inc()
		if created {
			r.metrics.Channels.Inc()
		}
		r.logger.Debug().Str("channel", channel).Msg("subscriber connected")
	}
	return nil
}

// Disconnect unsubscribes conn from channel and closes it. Unknown
// channels and connections are ignored.
func (r *ChannelRegistry) Disconnect(channel string, conn ports.Conn) {
	var removed, emptied bool
	r.channels.Compute(channel, func(old subscriberSet, loaded bool) (subscriberSet, bool) {
		if !loaded {
			return old, true
		}
		if _, ok := old[conn]; !ok {
			return old, false
		}
		removed = true
		if len(old) == 1 {
			emptied = true
			return nil, true
		}
		next := make(subscriberSet, len(old)-1)
		for c := range old {
			if c != conn {
				next[c] = struct{}{}
			}
		}
		return next, false
	})

	if !removed {
		return
	}
	if err := conn.Close(); err != nil {
		r.logger.Debug().Err(err).Str("channel", channel).Msg("close after disconnect")
	}
	r.metrics.Subscribers.Dec()
	if emptied {
		r.metrics.Channels.Dec()
	}
	r.logger.Debug().Str("channel", channel).Msg("subscriber disconnected")
}

// Broadcast sends message to every current subscriber of channel.
// Subscribers whose send fails or exceeds the send timeout are evicted.
// Faults are reported in the returned Delivery, never as an error.
func (r *ChannelRegistry) Broadcast(ctx context.Context, channel, message string) core.Delivery {
	delivery := core.Delivery{Channel: channel}

	subs, ok := r.channels.Load(channel)
	if !ok || len(subs) == 0 {
		return delivery
	}

	// sends outlive a cancelled caller; only the per-send timeout applies
	sendCtx := context.WithoutCancel(ctx)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for conn := range subs {
		conn := conn
		g.Go(func() error {
			err := r.send(sendCtx, conn, message)

			mu.Lock()
			if err == nil {
				delivery.Delivered++
			} else {
				delivery.Faults = append(delivery.Faults, core.ConnectionFault(err))
			}
			mu.Unlock()

			if err != nil {
				r.logger.Warn().Err(err).Str("channel", channel).Msg("evicting subscriber")
				r.metrics.Evictions.Inc()
				r.Disconnect(channel, conn)
			} else {
				r.metrics.Deliveries.Inc()
			}
			return nil
		})
	}
	_ = g.Wait()

	return delivery
}

// send bounds a single send by the send timeout even when the connection
// ignores its context
func (r *ChannelRegistry) send(ctx context.Context, conn ports.Conn, message string) error {
	ctx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- conn.Send(ctx, message)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return fmt.Errorf("send timed out: %w", ctx.Err())
	}
}

// Subscribers returns the connections currently subscribed to channel
func (r *ChannelRegistry) Subscribers(channel string) []ports.Conn {
	subs, ok := r.channels.Load(channel)
	if !ok {
		return nil
	}
	conns := make([]ports.Conn, 0, len(subs))
	for c := range subs {
		conns = append(conns, c)
	}
	return conns
}

// Has reports whether channel has at least one subscriber
func (r *ChannelRegistry) Has(channel string) bool {
	_, ok := r.channels.Load(channel)
	return ok
}

// Channels returns the names of all channels with subscribers
func (r *ChannelRegistry) Channels() []string {
	names := make([]string, 0, r.channels.Size())
	r.channels.Range(func(name string, _ subscriberSet) bool {
		names = append(names, name)
		return true
	})
	return names
}

// Close disconnects every subscriber of every channel
func (r *ChannelRegistry) Close() {
	r.channels.Range(func(name string, subs subscriberSet) bool {
		for c := range subs {
			r.Disconnect(name, c)
		}
		return true
	})
}

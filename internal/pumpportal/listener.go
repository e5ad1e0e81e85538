package pumpportal

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gradwatch/gradwatch/internal/observability"
	"github.com/gradwatch/gradwatch/internal/publish"
)

// ---------------------------------------------------------------------------
// Live Listener — PumpPortal WebSocket feed with reconnect & dedup
// ---------------------------------------------------------------------------

// RaydiumMigrationAccount is the account pump.fun migrates graduated tokens
// through; trades touching it are graduation signals.
const RaydiumMigrationAccount = "39azUYFWPz3VHgKCf3VChUwbpURdCHRxjWVowf5jUJjg"

// ListenerConfig configures the live feed listener.
type ListenerConfig struct {
	Endpoint         string `yaml:"endpoint"`
	MigrationAccount string `yaml:"migration_account"`
	ReconnectDelayMs int    `yaml:"reconnect_delay_ms"`
	PingIntervalS    int    `yaml:"ping_interval_s"`

	// Dedup set cap. Mints are evicted in insertion order above this size so
	// a long-running listener doesn't grow without bound.
	DedupCap int `yaml:"dedup_cap"`
}

// DefaultListenerConfig returns defaults for the public PumpPortal feed.
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		Endpoint:         "wss://pumpportal.fun/api/data",
		MigrationAccount: RaydiumMigrationAccount,
		ReconnectDelayMs: 1000,
		PingIntervalS:    30,
		DedupCap:         50_000,
	}
}

// Listener consumes the push feed, classifies graduations, deduplicates by
// mint and publishes immediately.
type Listener struct {
	config    ListenerConfig
	publisher publish.Publisher
	metrics   *observability.MetricsRegistry

	mu   sync.RWMutex
	conn *websocket.Conn

	// Dedup set with insertion-order eviction.
	seen      map[string]bool
	seenOrder []string

	// Stats.
	messagesRecv atomic.Int64
	graduations  atomic.Int64
	published    atomic.Int64
	duplicates   atomic.Int64
	reconnects   atomic.Int64
	connected    atomic.Bool
}

// NewListener creates a live feed listener. metrics may be nil.
func NewListener(config ListenerConfig, publisher publish.Publisher, metrics *observability.MetricsRegistry) *Listener {
	return &Listener{
		config:    config,
		publisher: publisher,
		metrics:   metrics,
		seen:      make(map[string]bool),
	}
}

// Run connects and consumes the feed until ctx is cancelled, reconnecting
// forever with bounded exponential backoff.
func (l *Listener) Run(ctx context.Context) {
	initialDelay := time.Duration(l.config.ReconnectDelayMs) * time.Millisecond
	maxDelay := 30 * time.Second
	reconnectDelay := initialDelay

	for {
		select {
		case <-ctx.Done():
			l.disconnect()
			return
		default:
		}

		if err := l.connect(ctx); err != nil {
			log.Warn().Err(err).Dur("retry_in", reconnectDelay).Msg("live: connection failed")
			l.reconnects.Add(1)
			if l.metrics != nil {
				l.metrics.WSReconnects.Inc()
			}
			select {
			case <-time.After(reconnectDelay):
				reconnectDelay *= 2
				if reconnectDelay > maxDelay {
					reconnectDelay = maxDelay
				}
			case <-ctx.Done():
				return
			}
			continue
		}

		// Successful open resets the backoff.
		reconnectDelay = initialDelay

		if err := l.subscribe(); err != nil {
			log.Warn().Err(err).Msg("live: subscribe failed")
		}

		l.readLoop(ctx)
		l.disconnect()
	}
}

func (l *Listener) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, l.config.Endpoint, http.Header{})
	if err != nil {
		return fmt.Errorf("live: dial: %w", err)
	}

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	l.connected.Store(true)

	log.Info().Str("endpoint", l.config.Endpoint).Msg("live: connected")
	return nil
}

func (l *Listener) disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
	l.connected.Store(false)
}

// subscribe requests the new-token-trade stream and trades on the migration
// account.
func (l *Listener) subscribe() error {
	l.mu.RLock()
	conn := l.conn
	l.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("live: not connected")
	}

	reqs := []map[string]any{
		{"method": "subscribeNewToken"},
		{"method": "subscribeAccountTrade", "keys": []string{l.config.MigrationAccount}},
	}
	for _, req := range reqs {
		l.mu.Lock()
		err := l.conn.WriteJSON(req)
		l.mu.Unlock()
		if err != nil {
			return fmt.Errorf("live: write subscribe: %w", err)
		}
	}

	log.Info().Str("account", l.config.MigrationAccount).Msg("live: subscriptions active")
	return nil
}

// readLoop consumes messages until the connection drops. The keep-alive ping
// runs only while the connection is open and dies with the loop.
func (l *Listener) readLoop(ctx context.Context) {
	pingInterval := time.Duration(l.config.PingIntervalS) * time.Second
	if pingInterval == 0 {
		pingInterval = 30 * time.Second
	}

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go l.pingLoop(pingCtx, pingInterval)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		l.mu.RLock()
		conn := l.conn
		l.mu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(90 * time.Second))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Info().Msg("live: connection closed normally")
			} else {
				log.Warn().Err(err).Msg("live: read error, reconnecting")
			}
			l.connected.Store(false)
			return
		}

		l.messagesRecv.Add(1)
		if l.metrics != nil {
			l.metrics.WSMessages.Inc()
		}
		l.handleMessage(ctx, message)
	}
}

func (l *Listener) pingLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			conn := l.conn
			var err error
			if conn != nil {
				err = conn.WriteMessage(websocket.PingMessage, nil)
			}
			l.mu.Unlock()
			if conn == nil || err != nil {
				return
			}
		}
	}
}

func (l *Listener) handleMessage(ctx context.Context, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("live: handleMessage panic recovered")
		}
	}()

	grad, ok := Classify(data)
	if !ok {
		return
	}

	l.graduations.Add(1)
	if l.metrics != nil {
		l.metrics.Graduations.Inc()
	}

	if l.markSeen(grad.Mint) {
		l.duplicates.Add(1)
		log.Debug().Str("mint", grad.Mint).Msg("live: duplicate graduation, skipping")
		return
	}

	log.Info().
		Str("mint", grad.Mint).
		Str("symbol", grad.Symbol).
		Str("market_cap", grad.MarketCap.String()).
		Msg("live: GRADUATION DETECTED")

	if l.publisher == nil {
		return
	}

	payload := publish.GraduationPayload{
		CA:           grad.Mint,
		Symbol:       grad.Symbol,
		Name:         grad.Name,
		LiquidityUSD: grad.LiquidityUSD,
		MarketCap:    grad.MarketCap,
		EventType:    "graduation",
		DEX:          "raydium",
		Source:       publish.SourceLive,
		ReceivedAt:   publish.ISOTime(grad.ReceivedAt),
		RawEvent:     grad.Raw,
	}
	if l.publisher.Publish(ctx, payload) {
		l.published.Add(1)
	}
}

// markSeen records a mint in the dedup set. Returns true when the mint was
// already present. Evicts the oldest entries above DedupCap.
func (l *Listener) markSeen(mint string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.seen[mint] {
		return true
	}
	l.seen[mint] = true
	l.seenOrder = append(l.seenOrder, mint)

	if l.config.DedupCap > 0 && len(l.seenOrder) > l.config.DedupCap {
		evict := l.seenOrder[0]
		l.seenOrder = l.seenOrder[1:]
		delete(l.seen, evict)
	}
	return false
}

// ListenerStats is a snapshot of listener counters.
type ListenerStats struct {
	Connected    bool  `json:"connected"`
	MessagesRecv int64 `json:"messages_recv"`
	Graduations  int64 `json:"graduations"`
	Published    int64 `json:"published"`
	Duplicates   int64 `json:"duplicates"`
	Reconnects   int64 `json:"reconnects"`
}

func (l *Listener) Stats() ListenerStats {
	return ListenerStats{
		Connected:    l.connected.Load(),
		MessagesRecv: l.messagesRecv.Load(),
		Graduations:  l.graduations.Load(),
		Published:    l.published.Load(),
		Duplicates:   l.duplicates.Load(),
		Reconnects:   l.reconnects.Load(),
	}
}

package scanner

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gradwatch/gradwatch/internal/helius"
	"github.com/gradwatch/gradwatch/internal/observability"
	"github.com/gradwatch/gradwatch/internal/publish"
)

// ---------------------------------------------------------------------------
// Poll Scheduler — drives discover -> enrich -> rank -> publish on a cadence
// ---------------------------------------------------------------------------

// PollerConfig configures the survivor scan cadence and thresholds.
type PollerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	MinAge     time.Duration `yaml:"min_age"`
	MinHolders int           `yaml:"min_holders"`
	TopK       int           `yaml:"top_k"`
}

// DefaultPollerConfig returns production defaults: 10-minute cadence,
// 30-minute age floor, 100 holders, top 5.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:   10 * time.Minute,
		MinAge:     30 * time.Minute,
		MinHolders: 100,
		TopK:       5,
	}
}

// Poller runs the survivor pipeline on a fixed interval. Cycles never
// overlap: a slow cycle just delays the next tick.
type Poller struct {
	config     PollerConfig
	discoverer *Discoverer
	enricher   *Enricher
	rpc        helius.RPCClient
	publisher  publish.Publisher // nil = publish step is a no-op
	metrics    *observability.MetricsRegistry

	running atomic.Bool

	// Stats.
	cycleCount     atomic.Int64
	failedCycles   atomic.Int64
	survivorsTotal atomic.Int64
	publishedTotal atomic.Int64
	lastSurvivors  atomic.Int64
}

// NewPoller wires the pipeline stages together. publisher and metrics may be
// nil.
func NewPoller(config PollerConfig, discoverer *Discoverer, enricher *Enricher,
	rpc helius.RPCClient, publisher publish.Publisher, metrics *observability.MetricsRegistry) *Poller {
	return &Poller{
		config:     config,
		discoverer: discoverer,
		enricher:   enricher,
		rpc:        rpc,
		publisher:  publisher,
		metrics:    metrics,
	}
}

// Run triggers one cycle immediately, then one per interval. Blocks until
// ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if p.running.Load() {
		return fmt.Errorf("poller already running")
	}
	p.running.Store(true)
	defer p.running.Store(false)

	log.Info().
		Dur("interval", p.config.Interval).
		Dur("min_age", p.config.MinAge).
		Int("min_holders", p.config.MinHolders).
		Int("top_k", p.config.TopK).
		Msg("poller: starting survivor scan")

	p.runCycle(ctx)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Int64("cycles", p.cycleCount.Load()).
				Int64("credits_used", p.rpc.Credits()).
				Msg("poller: stopped")
			return nil
		case <-ticker.C:
			p.runCycle(ctx)
		}
	}
}

// runCycle executes one full pipeline pass. Any failure is contained here;
// the scheduler itself never dies.
func (p *Poller) runCycle(ctx context.Context) {
	cycleID := uuid.NewString()[:8]
	start := time.Now()
	p.cycleCount.Add(1)

	ok := true
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("cycle", cycleID).
					Msg("poller: cycle panic recovered")
				ok = false
			}
		}()
		if err := p.cycle(ctx, cycleID); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Str("cycle", cycleID).Msg("poller: cycle failed")
			ok = false
		}
	}()

	result := "success"
	if !ok {
		result = "failed"
		p.failedCycles.Add(1)
	}
	if p.metrics != nil {
		p.metrics.CyclesTotal.WithLabelValues(result).Inc()
		p.metrics.CreditsUsed.Set(float64(p.rpc.Credits()))
	}

	log.Info().
		Str("cycle", cycleID).
		Str("result", result).
		Dur("took", time.Since(start)).
		Int64("survivors", p.lastSurvivors.Load()).
		Int64("credits_used", p.rpc.Credits()).
		Msg("poller: cycle complete")
}

// cycle is the pipeline body: discover -> enrich -> rank -> publish.
func (p *Poller) cycle(ctx context.Context, cycleID string) error {
	candidates, err := p.discoverer.Discover(ctx, p.config.MinAge)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}

	survivors := p.enricher.EnrichAll(ctx, candidates)
	top := Rank(survivors, p.config.TopK)

	p.lastSurvivors.Store(int64(len(top)))
	p.survivorsTotal.Add(int64(len(top)))
	if p.metrics != nil {
		p.metrics.SurvivorsFound.Set(float64(len(top)))
	}

	if len(top) == 0 {
		log.Info().Str("cycle", cycleID).Int("candidates", len(candidates)).
			Msg("poller: no survivors")
		return nil
	}

	for _, s := range top {
		log.Info().
			Str("cycle", cycleID).
			Str("mint", string(s.Mint)).
			Str("symbol", s.Symbol).
			Int("holders", s.Holders).
			Int("age_min", s.AgeMinutes).
			Msg("poller: SURVIVOR")

		if p.publisher == nil {
			continue
		}
		payload := publish.SurvivorPayload{
			Mint:       string(s.Mint),
			Symbol:     s.Symbol,
			Name:       s.Name,
			Holders:    s.Holders,
			AgeMinutes: s.AgeMinutes,
			Links:      s.Links,
			Source:     publish.SourceScanner,
			DetectedAt: publish.ISOTime(s.DetectedAt),
		}
		if p.publisher.Publish(ctx, payload) {
			p.publishedTotal.Add(1)
			if p.metrics != nil {
				p.metrics.SurvivorsPublished.Inc()
			}
		}
	}

	return nil
}

// PollerStats is a snapshot of scheduler counters.
type PollerStats struct {
	CycleCount     int64 `json:"cycle_count"`
	FailedCycles   int64 `json:"failed_cycles"`
	SurvivorsTotal int64 `json:"survivors_total"`
	PublishedTotal int64 `json:"published_total"`
	LastSurvivors  int64 `json:"last_survivors"`
	CreditsUsed    int64 `json:"credits_used"`
}

func (p *Poller) Stats() PollerStats {
	return PollerStats{
		CycleCount:     p.cycleCount.Load(),
		FailedCycles:   p.failedCycles.Load(),
		SurvivorsTotal: p.survivorsTotal.Load(),
		PublishedTotal: p.publishedTotal.Load(),
		LastSurvivors:  p.lastSurvivors.Load(),
		CreditsUsed:    p.rpc.Credits(),
	}
}

package scanner

import (
	"context"
	"time"

	"github.com/gradwatch/gradwatch/internal/helius"
	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// Graduation Discoverer — walks pump.fun AMM history for aged graduations
// ---------------------------------------------------------------------------

// DiscoverConfig configures the history walk.
type DiscoverConfig struct {
	// Program whose transaction history is scanned.
	Program helius.Pubkey `yaml:"program"`

	// Signatures fetched per page.
	PageSize int `yaml:"page_size"`

	// Transactions inspected per page (prefix sample, not the full page).
	TxSamplePerPage int `yaml:"tx_sample_per_page"`

	// Hard cap on pages walked per pass.
	MaxPages int `yaml:"max_pages"`

	// Delay between individual transaction lookups.
	TxLookupDelay time.Duration `yaml:"tx_lookup_delay"`
}

// DefaultDiscoverConfig returns defaults sized for a 10-minute poll cadence.
func DefaultDiscoverConfig() DiscoverConfig {
	return DiscoverConfig{
		Program:         helius.PumpAMMProgram,
		PageSize:        100,
		TxSamplePerPage: 20,
		MaxPages:        5,
		TxLookupDelay:   100 * time.Millisecond,
	}
}

// Discoverer pages program history and extracts candidate mints.
type Discoverer struct {
	config DiscoverConfig
	rpc    helius.RPCClient
}

// NewDiscoverer creates a graduation discoverer.
func NewDiscoverer(config DiscoverConfig, rpc helius.RPCClient) *Discoverer {
	return &Discoverer{config: config, rpc: rpc}
}

// Discover walks program history newest-first and returns candidates whose
// age is at least minAge. The walk stops after MaxPages, once the oldest
// transaction in the current page is 2x minAge old (margin so the age-filtered
// window is fully covered), or when a page comes back empty.
func (d *Discoverer) Discover(ctx context.Context, minAge time.Duration) ([]Candidate, error) {
	var (
		candidates []Candidate
		cursor     helius.Pubkey
		seen       = map[helius.Pubkey]bool{helius.WSOLMint: true}
	)

	coverageCutoff := time.Now().Add(-2 * minAge).Unix()

	for page := 0; page < d.config.MaxPages; page++ {
		sigs, err := d.rpc.GetSignatures(ctx, d.config.Program, cursor, d.config.PageSize)
		if err != nil {
			return candidates, err
		}
		if len(sigs) == 0 {
			log.Debug().Int("page", page).Msg("discover: history exhausted")
			break
		}

		sample := sigs
		if len(sample) > d.config.TxSamplePerPage {
			sample = sample[:d.config.TxSamplePerPage]
		}

		for _, sig := range sample {
			if ctx.Err() != nil {
				return candidates, ctx.Err()
			}
			if sig.Failed {
				continue
			}

			tx, err := d.rpc.GetTransaction(ctx, sig.Signature)
			if err != nil {
				log.Debug().Err(err).Str("sig", truncate(string(sig.Signature), 12)).
					Msg("discover: tx lookup failed, skipping")
				continue
			}

			age := time.Since(time.Unix(tx.BlockTime, 0))
			if age < minAge {
				continue
			}

			for _, mint := range tx.Mints {
				if mint == "" || seen[mint] {
					continue
				}
				seen[mint] = true
				candidates = append(candidates, Candidate{
					Mint:       mint,
					Signature:  sig.Signature,
					BlockTime:  tx.BlockTime,
					AgeMinutes: int(age.Minutes()),
				})
			}

			if d.config.TxLookupDelay > 0 {
				select {
				case <-time.After(d.config.TxLookupDelay):
				case <-ctx.Done():
					return candidates, ctx.Err()
				}
			}
		}

		oldest := sigs[len(sigs)-1]
		if oldest.BlockTime > 0 && oldest.BlockTime <= coverageCutoff {
			log.Debug().
				Int("page", page).
				Int64("oldest_block_time", oldest.BlockTime).
				Msg("discover: age window covered, stopping")
			break
		}

		cursor = oldest.Signature
	}

	log.Info().
		Int("candidates", len(candidates)).
		Dur("min_age", minAge).
		Msg("discover: pass complete")

	return candidates, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

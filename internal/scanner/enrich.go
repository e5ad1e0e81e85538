package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/gradwatch/gradwatch/internal/helius"
	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// Enrichment & Filter Stage — concurrent holder + metadata lookup
// ---------------------------------------------------------------------------

// Enricher turns candidates into survivors. One RPC failure drops that
// candidate only; the batch as a whole always completes.
type Enricher struct {
	rpc        helius.RPCClient
	minHolders int
}

// NewEnricher creates an enricher with a holder-count floor.
func NewEnricher(rpc helius.RPCClient, minHolders int) *Enricher {
	return &Enricher{rpc: rpc, minHolders: minHolders}
}

// EnrichAll fans out over all candidates concurrently and collects the
// survivors. Output order follows completion order; the ranker imposes the
// final ordering.
func (e *Enricher) EnrichAll(ctx context.Context, candidates []Candidate) []Survivor {
	var (
		mu        sync.Mutex
		survivors []Survivor
		wg        sync.WaitGroup
	)

	for _, cand := range candidates {
		wg.Add(1)
		go func(cand Candidate) {
			defer wg.Done()
			if s := e.enrich(ctx, cand); s != nil {
				mu.Lock()
				survivors = append(survivors, *s)
				mu.Unlock()
			}
		}(cand)
	}
	wg.Wait()

	return survivors
}

// enrich resolves one candidate. Returns nil when the candidate is filtered
// out or its holder lookup fails. Holder count is checked first so metadata
// credits are never spent on rejected candidates.
func (e *Enricher) enrich(ctx context.Context, cand Candidate) *Survivor {
	holders, err := e.rpc.GetHolderCount(ctx, cand.Mint)
	if err != nil {
		log.Debug().Err(err).Str("mint", string(cand.Mint)).
			Msg("enrich: holder lookup failed, dropping candidate")
		return nil
	}
	if holders < e.minHolders {
		return nil
	}

	symbol, name := "UNKNOWN", ""
	if asset, err := e.rpc.GetAsset(ctx, cand.Mint); err != nil {
		// Non-fatal: survivor keeps placeholder metadata.
		log.Debug().Err(err).Str("mint", string(cand.Mint)).
			Msg("enrich: asset lookup failed, using placeholders")
	} else if asset != nil {
		if asset.Symbol != "" {
			symbol = asset.Symbol
		}
		name = asset.Name
	}

	return &Survivor{
		Mint:       cand.Mint,
		Symbol:     symbol,
		Name:       name,
		Holders:    holders,
		AgeMinutes: cand.AgeMinutes,
		Links:      TokenLinks(cand.Mint),
		DetectedAt: time.Now().UTC(),
	}
}

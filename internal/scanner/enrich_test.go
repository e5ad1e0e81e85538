package scanner

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradwatch/gradwatch/internal/helius"
)

// ---------------------------------------------------------------------------
// Enricher Tests
// ---------------------------------------------------------------------------

func candidate(mint string) Candidate {
	return Candidate{
		Mint:       helius.Pubkey(mint),
		Signature:  helius.Pubkey("sig-" + mint),
		AgeMinutes: 45,
	}
}

func TestEnrich_FiltersBelowHolderThreshold(t *testing.T) {
	rpc := helius.NewStubClient()
	rpc.SetHolderCount("mint-small", 50)
	rpc.SetHolderCount("mint-big", 500)
	rpc.AddAsset(helius.AssetInfo{Mint: "mint-big", Symbol: "BIG", Name: "Big Token"})

	e := NewEnricher(rpc, 100)
	survivors := e.EnrichAll(context.Background(), []Candidate{
		candidate("mint-small"),
		candidate("mint-big"),
	})

	require.Len(t, survivors, 1)
	assert.Equal(t, helius.Pubkey("mint-big"), survivors[0].Mint)
	assert.Equal(t, "BIG", survivors[0].Symbol)
	assert.Equal(t, 500, survivors[0].Holders)
}

func TestEnrich_ShortCircuitSavesMetadataCredits(t *testing.T) {
	rpc := helius.NewStubClient()
	rpc.SetHolderCount("mint-rejected", 10)

	e := NewEnricher(rpc, 100)
	survivors := e.EnrichAll(context.Background(), []Candidate{candidate("mint-rejected")})

	assert.Empty(t, survivors)
	assert.Zero(t, rpc.AssetCalls(), "metadata must not be fetched for rejected candidates")
}

func TestEnrich_AssetFailureYieldsPlaceholders(t *testing.T) {
	rpc := helius.NewStubClient()
	rpc.SetHolderCount("mint-x", 200)
	rpc.FailAsset("mint-x")

	e := NewEnricher(rpc, 100)
	survivors := e.EnrichAll(context.Background(), []Candidate{candidate("mint-x")})

	require.Len(t, survivors, 1)
	assert.Equal(t, "UNKNOWN", survivors[0].Symbol)
	assert.Empty(t, survivors[0].Name)
	assert.Equal(t, 200, survivors[0].Holders)
}

func TestEnrich_NilAssetYieldsPlaceholders(t *testing.T) {
	rpc := helius.NewStubClient()
	rpc.SetHolderCount("mint-y", 150)
	// No asset registered: GetAsset returns nil, nil.

	e := NewEnricher(rpc, 100)
	survivors := e.EnrichAll(context.Background(), []Candidate{candidate("mint-y")})

	require.Len(t, survivors, 1)
	assert.Equal(t, "UNKNOWN", survivors[0].Symbol)
}

func TestEnrich_PartialFailuresDoNotAbortBatch(t *testing.T) {
	rpc := helius.NewStubClient()

	candidates := make([]Candidate, 10)
	for i := 0; i < 10; i++ {
		mint := helius.Pubkey(fmt.Sprintf("mint-%d", i))
		candidates[i] = candidate(string(mint))
		if i < 2 {
			rpc.FailHolderCount(mint)
		} else {
			rpc.SetHolderCount(mint, 100+i)
		}
	}

	e := NewEnricher(rpc, 100)
	survivors := e.EnrichAll(context.Background(), candidates)

	assert.Len(t, survivors, 8, "two failed holder lookups drop only those candidates")
	for _, s := range survivors {
		assert.GreaterOrEqual(t, s.Holders, 100)
	}
}

func TestEnrich_SurvivorCarriesLinks(t *testing.T) {
	rpc := helius.NewStubClient()
	rpc.SetHolderCount("mint-l", 300)

	e := NewEnricher(rpc, 100)
	survivors := e.EnrichAll(context.Background(), []Candidate{candidate("mint-l")})

	require.Len(t, survivors, 1)
	assert.Equal(t, TokenLinks("mint-l"), survivors[0].Links)
}

func TestTokenLinks_Deterministic(t *testing.T) {
	a := TokenLinks("SomeMintAddress111")
	b := TokenLinks("SomeMintAddress111")

	assert.Equal(t, a, b)
	require.Len(t, a, 4)
	assert.Contains(t, a["dexscreener"], "SomeMintAddress111")
	assert.Contains(t, a["birdeye"], "SomeMintAddress111")
	assert.Contains(t, a["rugcheck"], "SomeMintAddress111")
	assert.Contains(t, a["gmgn"], "SomeMintAddress111")
}

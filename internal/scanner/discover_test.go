package scanner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradwatch/gradwatch/internal/helius"
)

// ---------------------------------------------------------------------------
// Discoverer Tests
// ---------------------------------------------------------------------------

func fastDiscoverConfig() DiscoverConfig {
	cfg := DefaultDiscoverConfig()
	cfg.TxLookupDelay = 0
	return cfg
}

// addTx registers a signature+transaction pair carrying the given mints.
func addTx(rpc *helius.StubClient, sig string, minutesAgo int, mints ...string) helius.SignatureInfo {
	pks := make([]helius.Pubkey, len(mints))
	for i, m := range mints {
		pks[i] = helius.Pubkey(m)
	}
	rpc.AddTransaction(helius.TransactionDetail{
		Signature: helius.Pubkey(sig),
		BlockTime: helius.Stamp(minutesAgo),
		Mints:     pks,
	})
	return helius.SignatureInfo{
		Signature: helius.Pubkey(sig),
		BlockTime: helius.Stamp(minutesAgo),
	}
}

func TestDiscover_FiltersYoungTokens(t *testing.T) {
	rpc := helius.NewStubClient()

	young := addTx(rpc, "sig-young", 10, "mint-young")
	old := addTx(rpc, "sig-old", 45, "mint-old")
	rpc.AddPage("", []helius.SignatureInfo{young, old})

	d := NewDiscoverer(fastDiscoverConfig(), rpc)
	candidates, err := d.Discover(context.Background(), 30*time.Minute)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, helius.Pubkey("mint-old"), candidates[0].Mint)
	assert.GreaterOrEqual(t, candidates[0].AgeMinutes, 30)
}

func TestDiscover_DeduplicatesMints(t *testing.T) {
	rpc := helius.NewStubClient()

	first := addTx(rpc, "sig-1", 40, "mint-a", "mint-b")
	second := addTx(rpc, "sig-2", 45, "mint-a") // mint-a again
	rpc.AddPage("", []helius.SignatureInfo{first, second})

	d := NewDiscoverer(fastDiscoverConfig(), rpc)
	candidates, err := d.Discover(context.Background(), 30*time.Minute)
	require.NoError(t, err)

	seen := make(map[helius.Pubkey]int)
	for _, c := range candidates {
		seen[c.Mint]++
	}
	assert.Equal(t, 1, seen["mint-a"], "mint must appear at most once per pass")
	assert.Equal(t, 1, seen["mint-b"])
	assert.Len(t, candidates, 2)
}

func TestDiscover_ExcludesWrappedSOL(t *testing.T) {
	rpc := helius.NewStubClient()

	sig := addTx(rpc, "sig-1", 60, string(helius.WSOLMint), "mint-real")
	rpc.AddPage("", []helius.SignatureInfo{sig})

	d := NewDiscoverer(fastDiscoverConfig(), rpc)
	candidates, err := d.Discover(context.Background(), 30*time.Minute)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, helius.Pubkey("mint-real"), candidates[0].Mint)
}

func TestDiscover_EmptyPageStopsImmediately(t *testing.T) {
	rpc := helius.NewStubClient()
	// No pages registered: first fetch returns an empty page.

	d := NewDiscoverer(fastDiscoverConfig(), rpc)
	candidates, err := d.Discover(context.Background(), 30*time.Minute)
	require.NoError(t, err)

	assert.Empty(t, candidates)
	assert.Equal(t, int64(1), rpc.SigCalls())
	assert.Zero(t, rpc.TxCalls())
}

func TestDiscover_StopsOnceWindowCovered(t *testing.T) {
	rpc := helius.NewStubClient()
	minAge := 30 * time.Minute

	// Three pages of 100 signatures. Pages 1 and 2 end shy of the 2x margin;
	// page 3's oldest entry is beyond it.
	buildPage := func(page int, oldestAgeMinutes int) []helius.SignatureInfo {
		sigs := make([]helius.SignatureInfo, 100)
		for i := range sigs {
			name := fmt.Sprintf("sig-%d-%d", page, i)
			age := 35 + page // sampled prefix: old enough to qualify
			if i == 99 {
				age = oldestAgeMinutes
			}
			sigs[i] = addTx(rpc, name, age, fmt.Sprintf("mint-%d-%d", page, i))
		}
		return sigs
	}

	page1 := buildPage(1, 40)
	page2 := buildPage(2, 50)
	page3 := buildPage(3, 65) // >= 2 x 30min
	rpc.AddPage("", page1)
	rpc.AddPage(page1[99].Signature, page2)
	rpc.AddPage(page2[99].Signature, page3)

	cfg := fastDiscoverConfig()
	cfg.MaxPages = 10
	d := NewDiscoverer(cfg, rpc)

	_, err := d.Discover(context.Background(), minAge)
	require.NoError(t, err)

	assert.Equal(t, int64(3), rpc.SigCalls(), "must stop after page 3 without a 4th fetch")
	// 20-per-page sample, not the full page.
	assert.Equal(t, int64(60), rpc.TxCalls())
}

func TestDiscover_RespectsMaxPages(t *testing.T) {
	rpc := helius.NewStubClient()

	// Every page is recent, so only MaxPages limits the walk.
	var cursor helius.Pubkey
	for page := 0; page < 8; page++ {
		sigs := make([]helius.SignatureInfo, 100)
		for i := range sigs {
			sigs[i] = addTx(rpc, fmt.Sprintf("sig-%d-%d", page, i), 35, fmt.Sprintf("mint-%d-%d", page, i))
		}
		rpc.AddPage(cursor, sigs)
		cursor = sigs[99].Signature
	}

	cfg := fastDiscoverConfig()
	cfg.MaxPages = 3
	d := NewDiscoverer(cfg, rpc)

	_, err := d.Discover(context.Background(), 30*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, int64(3), rpc.SigCalls())
}

func TestDiscover_SkipsFailedTxLookups(t *testing.T) {
	rpc := helius.NewStubClient()

	good := addTx(rpc, "sig-good", 45, "mint-good")
	// sig-missing has no registered transaction: lookup fails.
	missing := helius.SignatureInfo{Signature: "sig-missing", BlockTime: helius.Stamp(45)}
	rpc.AddPage("", []helius.SignatureInfo{missing, good})

	d := NewDiscoverer(fastDiscoverConfig(), rpc)
	candidates, err := d.Discover(context.Background(), 30*time.Minute)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, helius.Pubkey("mint-good"), candidates[0].Mint)
}

func TestDiscover_SkipsFailedTransactions(t *testing.T) {
	rpc := helius.NewStubClient()

	failed := addTx(rpc, "sig-failed", 45, "mint-failed")
	failed.Failed = true
	good := addTx(rpc, "sig-ok", 45, "mint-ok")
	rpc.AddPage("", []helius.SignatureInfo{failed, good})

	d := NewDiscoverer(fastDiscoverConfig(), rpc)
	candidates, err := d.Discover(context.Background(), 30*time.Minute)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, helius.Pubkey("mint-ok"), candidates[0].Mint)
}

package scanner

import (
	"fmt"
	"time"

	"github.com/gradwatch/gradwatch/internal/helius"
)

// ---------------------------------------------------------------------------
// Pipeline types
// ---------------------------------------------------------------------------

// Candidate is a token mint observed during a discovery pass. Created once
// per mint per pass, never mutated.
type Candidate struct {
	Mint       helius.Pubkey `json:"mint"`
	Signature  helius.Pubkey `json:"signature"` // transaction it was first seen in
	BlockTime  int64         `json:"block_time"`
	AgeMinutes int           `json:"age_minutes"` // computed at discovery time
}

// Survivor is an enriched, filter-passing candidate. Holders is always at or
// above the configured minimum at creation time.
type Survivor struct {
	Mint       helius.Pubkey     `json:"mint"`
	Symbol     string            `json:"symbol"`
	Name       string            `json:"name"`
	Holders    int               `json:"holders"`
	AgeMinutes int               `json:"age_minutes"`
	Links      map[string]string `json:"links"`
	DetectedAt time.Time         `json:"detected_at"`
}

// TokenLinks builds the external reference links for a mint. Pure function:
// the same mint always yields the same four URLs.
func TokenLinks(mint helius.Pubkey) map[string]string {
	return map[string]string{
		"dexscreener": fmt.Sprintf("https://dexscreener.com/solana/%s", mint),
		"birdeye":     fmt.Sprintf("https://birdeye.so/token/%s?chain=solana", mint),
		"rugcheck":    fmt.Sprintf("https://rugcheck.xyz/tokens/%s", mint),
		"gmgn":        fmt.Sprintf("https://gmgn.ai/sol/token/%s", mint),
	}
}

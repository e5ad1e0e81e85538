package helius

import (
	"context"
	"time"
)

// ---------------------------------------------------------------------------
// RPC Client Interface
// ---------------------------------------------------------------------------

// RPCClient is the interface for Helius RPC interactions.
// Implementations: Client (real endpoint), StubClient (testing).
type RPCClient interface {
	// GetSignatures pages transaction signatures for an address, newest first.
	// A non-empty before cursor resumes the page after that signature.
	GetSignatures(ctx context.Context, addr Pubkey, before Pubkey, limit int) ([]SignatureInfo, error)

	// GetTransaction fetches one parsed transaction and extracts its token mints.
	GetTransaction(ctx context.Context, sig Pubkey) (*TransactionDetail, error)

	// GetHolderCount counts distinct owners with a non-zero balance of a mint.
	GetHolderCount(ctx context.Context, mint Pubkey) (int, error)

	// GetAsset fetches token metadata via DAS. Returns nil when unresolvable.
	GetAsset(ctx context.Context, mint Pubkey) (*AssetInfo, error)

	// Health checks the endpoint.
	Health(ctx context.Context) error

	// Credits returns cumulative credit units consumed so far.
	Credits() int64
}

// Config configures the Helius RPC client.
type Config struct {
	Endpoint     string        `yaml:"endpoint"`       // https://mainnet.helius-rpc.com/?api-key=...
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RateLimitRPS float64       `yaml:"rate_limit_rps"`
}

// DefaultConfig returns development defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      10 * time.Second,
		MaxRetries:   3,
		RateLimitRPS: 10,
	}
}

// Approximate Helius credit cost per RPC method. Used to track quota burn;
// the numbers mirror the published pricing tiers, not billed amounts.
var methodCredits = map[string]int64{
	"getSignaturesForAddress": 1,
	"getTransaction":          1,
	"getTokenAccounts":        1,
	"getAsset":                10,
	"getHealth":               1,
}

func creditCost(method string) int64 {
	if c, ok := methodCredits[method]; ok {
		return c
	}
	return 1
}

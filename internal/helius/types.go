package helius

import "time"

// Pubkey is a Solana base58 address. Transaction signatures share the same
// string representation and reuse this type.
type Pubkey string

// WSOLMint is wrapped SOL. It shows up in the balance set of virtually every
// swap transaction and is never a discovery candidate.
const WSOLMint Pubkey = "So11111111111111111111111111111111111111112"

// PumpAMMProgram is the pump.fun AMM program that graduated tokens trade on.
// Signatures for this address are the discovery source for the scanner.
const PumpAMMProgram Pubkey = "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA"

// ---------------------------------------------------------------------------
// RPC result types
// ---------------------------------------------------------------------------

// SignatureInfo is one entry from getSignaturesForAddress.
type SignatureInfo struct {
	Signature Pubkey `json:"signature"`
	Slot      uint64 `json:"slot"`
	BlockTime int64  `json:"blockTime"` // unix seconds, 0 if unknown
	Failed    bool   `json:"failed"`
}

// TransactionDetail is the subset of a parsed transaction the scanner needs:
// when it landed and which token mints appear in its balance changes.
type TransactionDetail struct {
	Signature Pubkey    `json:"signature"`
	BlockTime int64     `json:"block_time"`
	Mints     []Pubkey  `json:"mints"`
	FetchedAt time.Time `json:"fetched_at"`
}

// AssetInfo is descriptive token metadata from the DAS getAsset method.
type AssetInfo struct {
	Mint   Pubkey `json:"mint"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

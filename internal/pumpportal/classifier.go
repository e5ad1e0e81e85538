package pumpportal

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Graduation Classifier — multi-predicate rule over loosely-typed feed events
// ---------------------------------------------------------------------------

// Graduation is a classified push-feed message.
type Graduation struct {
	Mint         string          `json:"mint"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	LiquidityUSD decimal.Decimal `json:"liquidity_usd"`
	MarketCap    decimal.Decimal `json:"market_cap"`
	Raw          json.RawMessage `json:"raw"`
	ReceivedAt   time.Time       `json:"received_at"`
}

// graduationTypes are explicit type tags that mean a token left the curve.
var graduationTypes = map[string]bool{
	"migrate":      true,
	"migration":    true,
	"graduate":     true,
	"graduated":    true,
	"raydium_pool": true,
}

// tradeTypes are trade-shaped events; they only count as graduations when the
// originating bonding curve is flagged complete.
var tradeTypes = map[string]bool{
	"buy":   true,
	"sell":  true,
	"trade": true,
}

// mintFields is the ordered fallback chain for extracting the token
// identifier. The feed has drifted between these names over time.
var mintFields = []string{"mint", "ca", "tokenAddress", "address", "token"}

// Classify decides whether a raw feed message is a graduation event.
// Non-JSON input is silently ignored. Returns nil, false for anything that
// is not a graduation.
func Classify(raw []byte) (*Graduation, bool) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}

	txType := stringField(fields, "txType")
	isGraduation := graduationTypes[txType] ||
		(txType == "create" && fields["pool"] != nil) ||
		boolField(fields, "migrated") ||
		(tradeTypes[txType] && boolField(fields, "bondingCurveComplete"))

	if !isGraduation {
		return nil, false
	}

	mint := firstString(fields, mintFields...)
	if mint == "" {
		log.Warn().Str("tx_type", txType).Msg("classify: graduation without token identifier, dropping")
		return nil, false
	}

	symbol := firstString(fields, "symbol", "ticker")
	if symbol == "" {
		symbol = "UNKNOWN"
	}

	return &Graduation{
		Mint:         mint,
		Symbol:       symbol,
		Name:         stringField(fields, "name"),
		LiquidityUSD: firstNumber(fields, "liquidity", "liquidityUsd", "vSolInBondingCurve"),
		MarketCap:    firstNumber(fields, "marketCap", "market_cap", "marketCapSol"),
		Raw:          json.RawMessage(raw),
		ReceivedAt:   time.Now().UTC(),
	}, true
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func boolField(fields map[string]any, key string) bool {
	v, _ := fields[key].(bool)
	return v
}

// firstString returns the first non-empty string among the given keys.
func firstString(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := stringField(fields, k); v != "" {
			return v
		}
	}
	return ""
}

// firstNumber returns the first numeric value among the given keys, zero if
// none is present.
func firstNumber(fields map[string]any, keys ...string) decimal.Decimal {
	for _, k := range keys {
		if v, ok := fields[k].(float64); ok {
			return decimal.NewFromFloat(v)
		}
	}
	return decimal.Zero
}

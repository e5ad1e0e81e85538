package publish

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Payload schemas for the downstream automation webhook
// ---------------------------------------------------------------------------

// Payload sources identifying which pipeline produced a document.
const (
	SourceScanner = "helius_pump_scanner"
	SourceLive    = "pumpportal_websocket"
)

// SurvivorPayload is one poll-mode survivor document.
type SurvivorPayload struct {
	Mint       string            `json:"mint"`
	Symbol     string            `json:"symbol"`
	Name       string            `json:"name"`
	Holders    int               `json:"holders"`
	AgeMinutes int               `json:"ageMinutes"`
	Links      map[string]string `json:"links"`
	Source     string            `json:"source"`
	DetectedAt string            `json:"detected_at"` // ISO-8601
}

// GraduationPayload is one live-mode graduation document.
type GraduationPayload struct {
	CA           string          `json:"ca"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	LiquidityUSD decimal.Decimal `json:"liquidity_usd"`
	MarketCap    decimal.Decimal `json:"market_cap"`
	EventType    string          `json:"event_type"` // always "graduation"
	DEX          string          `json:"dex"`        // always "raydium"
	Source       string          `json:"source"`
	ReceivedAt   string          `json:"received_at"` // ISO-8601
	RawEvent     json.RawMessage `json:"raw_event"`
}

// ISOTime formats a timestamp the way the downstream pipeline expects.
func ISOTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

package helius

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ---------------------------------------------------------------------------
// Live Client — Helius JSON-RPC with rate limiting, retry & circuit breaker
// ---------------------------------------------------------------------------

// Client connects to a real Helius RPC endpoint.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker

	// Unique request ID generator.
	nextID atomic.Int64

	// Credit meter — cumulative quota units for the process lifetime.
	credits atomic.Int64

	// Stats.
	requestCount  atomic.Int64
	errorCount    atomic.Int64
	latencySum    atomic.Int64 // cumulative microseconds
	lastRequestAt atomic.Int64
}

// holderPageLimit bounds getTokenAccounts paging. Three pages of 1000
// accounts is plenty of resolution above any sane holder threshold.
const (
	holderPageSize  = 1000
	holderPageLimit = 3
)

// NewClient creates a live Helius RPC client.
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RateLimitRPS == 0 {
		config.RateLimitRPS = 10
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "helius-rpc",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 10
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// 429s mean the endpoint is alive, just throttling us.
			var rl *rateLimitedError
			return errors.As(err, &rl)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			log.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("rpc: circuit breaker state change")
		},
	})

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimitRPS), int(config.RateLimitRPS)+1),
		breaker: breaker,
	}
}

// rpcRequest is a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call makes a rate-limited, retried JSON-RPC call and charges its credit cost.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal request: %w", err)
	}

	c.credits.Add(creditCost(method))

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second // 1s, 2s, 4s
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		start := time.Now()

		result, err := c.breaker.Execute(func() (any, error) {
			return c.roundTrip(ctx, method, body)
		})

		latency := time.Since(start)
		c.requestCount.Add(1)
		c.latencySum.Add(latency.Microseconds())
		c.lastRequestAt.Store(time.Now().UnixMilli())

		if err == nil {
			return result.(json.RawMessage), nil
		}

		c.errorCount.Add(1)

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("rpc: %s rejected by circuit breaker: %w", method, err)
		}
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) {
			// The node answered; retrying the same request won't help.
			return nil, fmt.Errorf("rpc: %s error %d: %s", method, rpcErr.Code, rpcErr.Message)
		}
		var rl *rateLimitedError
		if errors.As(err, &rl) {
			// Longer backoff on 429 before the next attempt.
			select {
			case <-time.After(time.Duration(2<<uint(attempt)) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		lastErr = err
	}

	return nil, fmt.Errorf("rpc: %s failed after %d attempts: %w", method, c.config.MaxRetries+1, lastErr)
}

// rateLimitedError marks an HTTP 429 so the retry loop can slow down harder.
type rateLimitedError struct{ method string }

func (e *rateLimitedError) Error() string { return fmt.Sprintf("rpc: %s rate limited (429)", e.method) }

func (e *rpcError) Error() string { return fmt.Sprintf("code %d: %s", e.Code, e.Message) }

// roundTrip performs one HTTP exchange. Runs inside the circuit breaker.
func (c *Client) roundTrip(ctx context.Context, method string, body []byte) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rpc: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rpc: %s http error: %w", method, err)
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("rpc: %s read response: %w", method, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &rateLimitedError{method: method}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rpc: %s HTTP %d: %s", method, resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("rpc: %s unmarshal response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

// ---------------------------------------------------------------------------
// RPCClient interface implementation
// ---------------------------------------------------------------------------

// GetSignatures pages transaction signatures for an address, newest first.
func (c *Client) GetSignatures(ctx context.Context, addr Pubkey, before Pubkey, limit int) ([]SignatureInfo, error) {
	opts := map[string]any{"limit": limit}
	if before != "" {
		opts["before"] = string(before)
	}

	result, err := c.call(ctx, "getSignaturesForAddress", []any{string(addr), opts})
	if err != nil {
		return nil, err
	}

	var raw []struct {
		Signature string `json:"signature"`
		Slot      uint64 `json:"slot"`
		BlockTime int64  `json:"blockTime"`
		Err       any    `json:"err"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("rpc: parse signatures: %w", err)
	}

	sigs := make([]SignatureInfo, 0, len(raw))
	for _, s := range raw {
		sigs = append(sigs, SignatureInfo{
			Signature: Pubkey(s.Signature),
			Slot:      s.Slot,
			BlockTime: s.BlockTime,
			Failed:    s.Err != nil,
		})
	}
	return sigs, nil
}

// GetTransaction fetches a parsed transaction and extracts token mints from
// its post-transaction token balances.
func (c *Client) GetTransaction(ctx context.Context, sig Pubkey) (*TransactionDetail, error) {
	result, err := c.call(ctx, "getTransaction", []any{
		string(sig),
		map[string]any{
			"encoding":                       "jsonParsed",
			"maxSupportedTransactionVersion": 0,
		},
	})
	if err != nil {
		return nil, err
	}

	var tx struct {
		BlockTime int64 `json:"blockTime"`
		Meta      *struct {
			PostTokenBalances []struct {
				Mint string `json:"mint"`
			} `json:"postTokenBalances"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(result, &tx); err != nil {
		return nil, fmt.Errorf("rpc: parse transaction: %w", err)
	}
	if tx.BlockTime == 0 {
		return nil, fmt.Errorf("rpc: transaction %s not found", sig)
	}

	detail := &TransactionDetail{
		Signature: sig,
		BlockTime: tx.BlockTime,
		FetchedAt: time.Now(),
	}
	if tx.Meta != nil {
		seen := make(map[string]bool, len(tx.Meta.PostTokenBalances))
		for _, b := range tx.Meta.PostTokenBalances {
			if b.Mint == "" || seen[b.Mint] {
				continue
			}
			seen[b.Mint] = true
			detail.Mints = append(detail.Mints, Pubkey(b.Mint))
		}
	}
	return detail, nil
}

// GetHolderCount counts distinct owners with a non-zero balance of a mint,
// paging the Helius getTokenAccounts method.
func (c *Client) GetHolderCount(ctx context.Context, mint Pubkey) (int, error) {
	owners := make(map[string]bool)

	for page := 1; page <= holderPageLimit; page++ {
		result, err := c.call(ctx, "getTokenAccounts", map[string]any{
			"mint":  string(mint),
			"limit": holderPageSize,
			"page":  page,
		})
		if err != nil {
			return 0, err
		}

		var resp struct {
			TokenAccounts []struct {
				Owner  string `json:"owner"`
				Amount uint64 `json:"amount"`
			} `json:"token_accounts"`
		}
		if err := json.Unmarshal(result, &resp); err != nil {
			return 0, fmt.Errorf("rpc: parse token accounts: %w", err)
		}

		for _, ta := range resp.TokenAccounts {
			if ta.Amount > 0 && ta.Owner != "" {
				owners[ta.Owner] = true
			}
		}

		if len(resp.TokenAccounts) < holderPageSize {
			break
		}
	}

	return len(owners), nil
}

// GetAsset fetches token metadata via the DAS getAsset method.
func (c *Client) GetAsset(ctx context.Context, mint Pubkey) (*AssetInfo, error) {
	result, err := c.call(ctx, "getAsset", map[string]any{"id": string(mint)})
	if err != nil {
		return nil, err
	}

	var asset struct {
		Content *struct {
			Metadata struct {
				Symbol string `json:"symbol"`
				Name   string `json:"name"`
			} `json:"metadata"`
		} `json:"content"`
	}
	if err := json.Unmarshal(result, &asset); err != nil {
		return nil, fmt.Errorf("rpc: parse asset: %w", err)
	}
	if asset.Content == nil {
		return nil, nil
	}

	return &AssetInfo{
		Mint:   mint,
		Symbol: asset.Content.Metadata.Symbol,
		Name:   asset.Content.Metadata.Name,
	}, nil
}

// Health checks the RPC endpoint health.
func (c *Client) Health(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.call(healthCtx, "getHealth", nil)
	return err
}

// Credits returns cumulative credit units consumed by this client.
func (c *Client) Credits() int64 {
	return c.credits.Load()
}

// Stats describes client usage counters.
type Stats struct {
	RequestCount  int64  `json:"request_count"`
	ErrorCount    int64  `json:"error_count"`
	CreditsUsed   int64  `json:"credits_used"`
	AvgLatencyUs  int64  `json:"avg_latency_us"`
	LastRequestAt int64  `json:"last_request_at"`
	BreakerState  string `json:"breaker_state"`
}

func (c *Client) Stats() Stats {
	reqCount := c.requestCount.Load()
	avgLatency := int64(0)
	if reqCount > 0 {
		avgLatency = c.latencySum.Load() / reqCount
	}
	return Stats{
		RequestCount:  reqCount,
		ErrorCount:    c.errorCount.Load(),
		CreditsUsed:   c.credits.Load(),
		AvgLatencyUs:  avgLatency,
		LastRequestAt: c.lastRequestAt.Load(),
		BreakerState:  c.breaker.State().String(),
	}
}

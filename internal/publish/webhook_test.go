package publish

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Webhook Publisher Tests
// ---------------------------------------------------------------------------

func TestWebhookPublisher_DeliversJSON(t *testing.T) {
	var received SurvivorPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewWebhookPublisher(srv.URL)
	payload := SurvivorPayload{
		Mint:       "MintA",
		Symbol:     "AAA",
		Holders:    250,
		AgeMinutes: 45,
		Links:      map[string]string{"dexscreener": "https://dexscreener.com/solana/MintA"},
		Source:     SourceScanner,
		DetectedAt: ISOTime(time.Now()),
	}

	assert.True(t, p.Publish(context.Background(), payload))
	assert.Equal(t, "MintA", received.Mint)
	assert.Equal(t, 250, received.Holders)
	assert.Equal(t, SourceScanner, received.Source)
}

func TestWebhookPublisher_NonSuccessIsNotDelivered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewWebhookPublisher(srv.URL)
	assert.False(t, p.Publish(context.Background(), SurvivorPayload{Mint: "M"}))
}

func TestWebhookPublisher_NetworkFailureIsNotDelivered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // immediately unreachable

	p := NewWebhookPublisher(srv.URL)
	assert.False(t, p.Publish(context.Background(), SurvivorPayload{Mint: "M"}))
}

func TestISOTime_Format(t *testing.T) {
	ts := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	assert.Equal(t, "2025-03-14T15:09:26Z", ISOTime(ts))
}

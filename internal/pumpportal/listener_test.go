package pumpportal

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradwatch/gradwatch/internal/publish"
)

// ---------------------------------------------------------------------------
// Listener Tests (message handling; connection loop is not exercised here)
// ---------------------------------------------------------------------------

func TestListener_DeduplicatesByMint(t *testing.T) {
	pub := publish.NewStubPublisher()
	l := NewListener(DefaultListenerConfig(), pub, nil)

	msg := []byte(`{"txType":"migrate","mint":"MintDup","symbol":"DUP"}`)
	l.handleMessage(context.Background(), msg)
	l.handleMessage(context.Background(), msg)

	assert.Len(t, pub.Payloads(), 1, "same mint delivered twice must publish once")
	st := l.Stats()
	assert.Equal(t, int64(2), st.Graduations)
	assert.Equal(t, int64(1), st.Duplicates)
	assert.Equal(t, int64(1), st.Published)
}

func TestListener_PublishesGraduationPayload(t *testing.T) {
	pub := publish.NewStubPublisher()
	l := NewListener(DefaultListenerConfig(), pub, nil)

	l.handleMessage(context.Background(),
		[]byte(`{"txType":"migrate","mint":"MintPay","symbol":"PAY","name":"Pay Token","marketCapSol":69.5}`))

	payloads := pub.Payloads()
	require.Len(t, payloads, 1)

	p, ok := payloads[0].(publish.GraduationPayload)
	require.True(t, ok)
	assert.Equal(t, "MintPay", p.CA)
	assert.Equal(t, "PAY", p.Symbol)
	assert.Equal(t, "graduation", p.EventType)
	assert.Equal(t, "raydium", p.DEX)
	assert.Equal(t, publish.SourceLive, p.Source)
	assert.NotEmpty(t, p.ReceivedAt)
	assert.NotEmpty(t, p.RawEvent)
}

func TestListener_IgnoresNonGraduations(t *testing.T) {
	pub := publish.NewStubPublisher()
	l := NewListener(DefaultListenerConfig(), pub, nil)

	l.handleMessage(context.Background(), []byte(`{"txType":"trade","bondingCurveComplete":false,"mint":"M"}`))
	l.handleMessage(context.Background(), []byte("garbage"))

	assert.Empty(t, pub.Payloads())
	assert.Zero(t, l.Stats().Graduations)
}

func TestListener_FailedPublishStillMarksSeen(t *testing.T) {
	pub := publish.NewStubPublisher()
	pub.SetFail(true)
	l := NewListener(DefaultListenerConfig(), pub, nil)

	msg := []byte(`{"txType":"migrate","mint":"MintFail"}`)
	l.handleMessage(context.Background(), msg)
	l.handleMessage(context.Background(), msg)

	// Delivery is fire-and-forget: no retry even when the first attempt failed.
	assert.Len(t, pub.Payloads(), 1)
	assert.Zero(t, l.Stats().Published)
}

func TestListener_DedupSetEviction(t *testing.T) {
	cfg := DefaultListenerConfig()
	cfg.DedupCap = 3
	l := NewListener(cfg, publish.NewStubPublisher(), nil)

	for i := 0; i < 4; i++ {
		assert.False(t, l.markSeen(fmt.Sprintf("mint-%d", i)))
	}

	// mint-0 was evicted when mint-3 pushed the set over cap.
	assert.False(t, l.markSeen("mint-0"))
	assert.True(t, l.markSeen("mint-3"))
	assert.Len(t, l.seen, 3)
}

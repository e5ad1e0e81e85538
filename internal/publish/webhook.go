package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// Webhook Publisher — fire-and-forget JSON POST to the downstream pipeline
// ---------------------------------------------------------------------------

// Publisher delivers one payload downstream. Returns whether delivery
// succeeded; failures are logged by the implementation and never retried.
type Publisher interface {
	Publish(ctx context.Context, payload any) bool
}

// WebhookPublisher POSTs JSON documents to a fixed URL.
type WebhookPublisher struct {
	url        string
	httpClient *http.Client
}

// NewWebhookPublisher creates a publisher for the given webhook URL.
func NewWebhookPublisher(url string) *WebhookPublisher {
	return &WebhookPublisher{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Publish sends one payload. Non-2xx and network failures are logged and
// reported as not delivered; the caller never sees an error.
func (p *WebhookPublisher) Publish(ctx context.Context, payload any) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("publish: marshal payload")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("publish: create request")
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("url", p.url).Msg("publish: webhook delivery failed")
		return false
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn().Int("status", resp.StatusCode).Str("url", p.url).
			Msg("publish: webhook rejected payload")
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Stub publisher (for tests)
// ---------------------------------------------------------------------------

// StubPublisher records published payloads in memory.
type StubPublisher struct {
	mu       sync.Mutex
	payloads []any
	fail     bool
}

// NewStubPublisher creates an in-memory publisher.
func NewStubPublisher() *StubPublisher {
	return &StubPublisher{}
}

// SetFail makes all subsequent publishes report failure.
func (p *StubPublisher) SetFail(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = fail
}

// Payloads returns everything published so far.
func (p *StubPublisher) Payloads() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]any, len(p.payloads))
	copy(out, p.payloads)
	return out
}

func (p *StubPublisher) Publish(_ context.Context, payload any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return !p.fail
}

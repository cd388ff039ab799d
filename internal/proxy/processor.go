// Package proxy builds the scheduler.Processor the serve command wires
// into the engine: forward the submitted payload to a downstream HTTP
// endpoint and surface non-2xx responses as attempt failures so the
// engine's retry policy applies to them.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/arrowlabs/rrlsched/pkg/scheduler"
)

// Forwarder posts each submitted payload to a fixed downstream URL.
type Forwarder struct {
	url    string
	client *http.Client
	log    *zap.SugaredLogger
}

func NewForwarder(url string) *Forwarder {
	return &Forwarder{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    zap.S().Named("proxy"),
	}
}

// Processor adapts Forward to scheduler.Processor.
func (f *Forwarder) Processor() scheduler.Processor {
	return func(input any) (any, error) {
		return f.Forward(input)
	}
}

func (f *Forwarder) Forward(input any) (any, error) {
	payload, _ := input.(string)

	ctx, cancel := context.WithTimeout(context.Background(), f.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewBufferString(payload))
	if err != nil {
		return nil, fmt.Errorf("build downstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downstream request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read downstream response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("downstream responded %s: %s", resp.Status, body)
	}

	return string(body), nil
}

// Echo is the processor used when no downstream is configured: it
// returns the input unchanged, useful for exercising the engine's
// retry/rate-limit/shutdown behaviour without a real backend.
func Echo() scheduler.Processor {
	return func(input any) (any, error) {
		return input, nil
	}
}

// Package dispatch implements core.Dispatcher over the supported worker
// transports.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/target/console-api/config"
	"github.com/target/console-api/internal/core"
	"github.com/target/console-api/internal/domain/model"
)

// HTTPDispatcher posts envelopes to a worker endpoint as JSON.
type HTTPDispatcher struct {
	client    *http.Client
	workerURL string
}

var _ core.Dispatcher = (*HTTPDispatcher)(nil)

// HTTPOptions configures an HTTPDispatcher.
type HTTPOptions struct {
	Config config.DispatchHTTPConfig
	// Client is used for unauthenticated requests and as the base transport
	// for client-credential requests. Defaults to a 30s client.
	Client *http.Client
}

// NewHTTPDispatcher builds an HTTP dispatcher. When client credentials are
// configured requests carry a bearer token minted from TokenURL.
func NewHTTPDispatcher(ctx context.Context, opts HTTPOptions) (*HTTPDispatcher, error) {
	if opts.Config.WorkerURL == "" {
		return nil, errors.New("worker URL is required")
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Config.UsesClientCredentials() {
		cc := clientcredentials.Config{
			ClientID:     opts.Config.ClientID,
			ClientSecret: opts.Config.ClientSecret,
			TokenURL:     opts.Config.TokenURL,
			Scopes:       opts.Config.Scopes,
		}
		base := client
		client = cc.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
		client.Timeout = base.Timeout
	}
	return &HTTPDispatcher{client: client, workerURL: opts.Config.WorkerURL}, nil
}

// Enqueue posts the envelope. Any 2xx response counts as accepted.
func (d *HTTPDispatcher) Enqueue(ctx context.Context, env model.DispatchEnvelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.workerURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to worker: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("worker responded %d", resp.StatusCode)
	}
	return nil
}

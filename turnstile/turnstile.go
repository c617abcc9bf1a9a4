// Package turnstile implements the outbound bot-verification collaborator
// call against the Cloudflare Turnstile siteverify endpoint.
package turnstile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultEndpoint is the production siteverify URL.
const DefaultEndpoint = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

const defaultTimeout = 10 * time.Second

// Options represents tunable knobs that control the behavior of Client.
type Options struct {
	// Endpoint overrides the siteverify URL (e.g., in tests).
	// Default if unspecified: DefaultEndpoint
	Endpoint string
	// Timeout bounds the verification call. Callers treat timeouts as
	// failures (fail closed).
	// Default if unspecified: 10s
	Timeout time.Duration
}

// Client verifies challenge tokens against the siteverify endpoint. It
// implements the sealing service's BotVerifier interface.
type Client struct {
	secret   string
	endpoint string
	hc       *http.Client
}

// New returns a new Client holding the provided site secret and respecting
// the provided options.
func New(secret string, opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout == time.Duration(0) {
		opts.Timeout = defaultTimeout
	}
	return &Client{
		secret:   secret,
		endpoint: opts.Endpoint,
		hc:       &http.Client{Timeout: opts.Timeout},
	}
}

// Verify posts the challenge token for verification and reports the
// outcome. A missing token fails without a network call.
func (c *Client) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if token == "" {
		return false, nil
	}
	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.hc.Do(req)
	if err != nil {
		return false, fmt.Errorf("siteverify request failed: %w", err)
	}
	defer resp.Body.Close()
	var out struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("failed to decode siteverify response: %w", err)
	}
	return out.Success, nil
}

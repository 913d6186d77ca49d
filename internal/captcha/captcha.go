// Package captcha talks to an external bot-challenge verification service
// (reCAPTCHA-style siteverify). The service is treated as a boolean oracle:
// the answer is pass or fail, nothing else is inspected.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 5 * time.Second

// Client verifies challenge tokens against a siteverify endpoint.
type Client struct {
	httpClient *http.Client
	verifyURL  string
	secret     string
}

// Option configures Client behavior.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (useful for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New constructs a verifier client for the given endpoint and shared secret.
func New(verifyURL, secret string, opts ...Option) (*Client, error) {
	verifyURL = strings.TrimSpace(verifyURL)
	secret = strings.TrimSpace(secret)
	if verifyURL == "" || secret == "" {
		return nil, errors.New("captcha: verify URL and secret are required")
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		verifyURL:  verifyURL,
		secret:     secret,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify submits the token for verification. An empty token fails without a
// network round trip; transport or decode failures surface as errors so the
// caller can distinguish "oracle said no" from "oracle unreachable".
func (c *Client) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}

	form := url.Values{
		"secret":   {c.secret},
		"response": {token},
	}
	if remoteIP = strings.TrimSpace(remoteIP); remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("captcha: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("captcha: verify call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("captcha: verify endpoint returned %d", resp.StatusCode)
	}

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("captcha: decode response: %w", err)
	}
	return body.Success, nil
}

// Static is a fixed-answer verifier for development and tests.
type Static bool

// Verify implements the challenge oracle with a constant answer.
func (s Static) Verify(context.Context, string, string) (bool, error) {
	return bool(s), nil
}

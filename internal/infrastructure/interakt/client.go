// Package interakt sends WhatsApp template messages through the Interakt public API.
package interakt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lead-otp-gateway/internal/domain"
	"github.com/lead-otp-gateway/internal/pkg/phone"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultBaseURL = "https://api.interakt.ai/v1/public/message/"
	defaultTimeout = 15 * time.Second
)

// Client is an Interakt template sender. APIKey is the base64 secret shown in the
// Interakt dashboard and is sent as HTTP Basic credentials.
type Client struct {
	APIKey     string
	BaseURL    string
	Retries    uint64
	Backoff    time.Duration
	HTTPClient *http.Client
}

// NewClient returns a client for apiKey. An empty baseURL selects the public endpoint.
func NewClient(apiKey, baseURL string, retries uint64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Retries:    retries,
		Backoff:    200 * time.Millisecond,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type messageRequest struct {
	CountryCode string          `json:"countryCode"`
	PhoneNumber string          `json:"phoneNumber"`
	Type        string          `json:"type"`
	Template    domain.Template `json:"template"`
}

type messageResponse struct {
	Result  bool   `json:"result"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

var errRejected = errors.New("interakt: message rejected")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("interakt: request failed status=%d body=%s", e.StatusCode, e.Body)
}

// SendTemplate sends tmpl to the national number to. Transport errors, 429 and 5xx
// responses are retried with a capped Fibonacci backoff; ctx bounds the whole call.
func (c *Client) SendTemplate(ctx context.Context, to domain.PhoneKey, tmpl domain.Template) error {
	if c.APIKey == "" {
		return errors.New("interakt: API key not configured")
	}
	raw, err := json.Marshal(messageRequest{
		CountryCode: phone.CountryCode,
		PhoneNumber: string(to),
		Type:        "Template",
		Template:    tmpl,
	})
	if err != nil {
		return err
	}

	b := retry.WithMaxRetries(c.Retries, retry.WithCappedDuration(2*time.Second, retry.NewFibonacci(c.Backoff)))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := c.post(ctx, raw)
		if err == nil || !retryable(err) || ctx.Err() != nil {
			return err
		}
		return retry.RetryableError(err)
	})
}

func retryable(err error) bool {
	if errors.Is(err, errRejected) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return true
}

func (c *Client) post(ctx context.Context, raw []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	var out messageResponse
	if err := json.Unmarshal(body, &out); err == nil && !out.Result && out.Message != "" {
		return fmt.Errorf("%w: %s", errRejected, out.Message)
	}
	return nil
}

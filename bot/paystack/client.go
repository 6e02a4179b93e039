// Package paystack is a minimal client for the Paystack transaction API.
// Only the two endpoints the bot needs are covered: initialize and verify.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dailyinfluencing/listingbot/core/logger"
	"github.com/dailyinfluencing/listingbot/core/telegram/netutil"
)

const (
	defaultBaseURL    = "https://api.paystack.co"
	defaultReqTimeout = 30 * time.Second

	// StatusSuccess is the transaction status Paystack reports once a
	// charge has settled.
	StatusSuccess = "success"
)

// Metadata is attached to a transaction at initialization and echoed back
// on verification. It ties a Paystack reference to the bot user and plan.
type Metadata struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	Plan   string `json:"plan"`
}

// InitRequest describes a transaction to create. Amount is in the
// currency's minor unit (kobo for NGN).
type InitRequest struct {
	Email       string   `json:"email"`
	AmountMinor int64    `json:"amount"`
	Metadata    Metadata `json:"metadata"`
	// Reference is optional; Paystack generates one when omitted.
	Reference   string `json:"reference,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// InitResponse carries the checkout handoff for a created transaction.
type InitResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// VerifyResponse is the settled state of a transaction looked up by
// reference.
type VerifyResponse struct {
	Status      string   `json:"status"`
	Reference   string   `json:"reference"`
	AmountMinor int64    `json:"amount"`
	Currency    string   `json:"currency"`
	Metadata    Metadata `json:"metadata"`
}

// Succeeded reports whether the charge settled.
func (v *VerifyResponse) Succeeded() bool { return v.Status == StatusSuccess }

// envelope is the outer shape of every Paystack response.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIError is a non-OK or declined response from Paystack.
type APIError struct {
	HTTPCode int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack: %s (http %d)", e.Message, e.HTTPCode)
}

// Client talks to the Paystack REST API with a bearer secret key.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

// Option adjusts client construction.
type Option func(*Client)

// WithBaseURL overrides the API host, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New builds a client. The secret key is required; everything else has
// working defaults.
func New(secret string, opts ...Option) (*Client, error) {
	if secret == "" {
		return nil, fmt.Errorf("paystack: secret key is empty")
	}
	c := &Client{
		baseURL: defaultBaseURL,
		secret:  secret,
		http:    &http.Client{Timeout: defaultReqTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// InitializeTransaction creates a pending transaction and returns the
// checkout URL plus the reference to verify against later.
func (c *Client) InitializeTransaction(ctx context.Context, req InitRequest) (*InitResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("paystack: encode init request: %w", err)
	}

	var out InitResponse
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}

	logger.Info(ctx, "payments", "transaction_initialized",
		slog.String("reference", out.Reference),
		slog.Int64("user_id", req.Metadata.UserID),
		slog.String("plan", req.Metadata.Plan),
		slog.Int64("amount", req.AmountMinor),
	)
	return &out, nil
}

// VerifyTransaction looks up a transaction by reference. A settled charge
// has Status == StatusSuccess; any other status means the payment has not
// gone through yet (or never will).
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifyResponse, error) {
	if reference == "" {
		return nil, fmt.Errorf("paystack: empty reference")
	}

	var out VerifyResponse
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &out); err != nil {
		return nil, err
	}

	logger.Debug(ctx, "payments", "transaction_verified",
		slog.String("reference", out.Reference),
		slog.String("status", out.Status),
		slog.Int64("amount", out.AmountMinor),
	)
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("paystack: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	// Verify lookups are idempotent; retry them once on a transient
	// network failure.
	if err != nil && method == http.MethodGet && netutil.ShouldRetry(err) {
		time.Sleep(500 * time.Millisecond)
		resp, err = c.http.Do(req)
	}
	if err != nil {
		return fmt.Errorf("paystack: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("paystack: read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("paystack: decode response (http %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Status {
		return &APIError{HTTPCode: resp.StatusCode, Message: env.Message}
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("paystack: decode payload: %w", err)
		}
	}
	return nil
}

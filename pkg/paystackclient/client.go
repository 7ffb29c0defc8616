/**
 * @description
 * This package provides a client for the Paystack REST API. It encapsulates the
 * logic for making authenticated HTTP requests, handling request body
 * construction, and parsing responses.
 *
 * Only the endpoints the wallet service needs are implemented: transaction
 * initialization (hosted checkout handoff) and transaction verification (the
 * authoritative source of the settled amount).
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, net/http, time: Standard Go libraries.
 */
package paystackclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// Client is a client for the Paystack API. The secret key is per-request rather
// than per-client because it is admin-configured and can rotate at runtime.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new Paystack API client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// InitializeRequest is the payload for POST /transaction/initialize.
// Amount is in kobo.
type InitializeRequest struct {
	Email     string          `json:"email"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency,omitempty"`
	Reference string          `json:"reference,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// InitializeResponse is the hosted-checkout handoff returned by Paystack.
type InitializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// VerifyResponse is the authoritative transaction state returned by
// GET /transaction/verify/:reference. Amount is in kobo.
type VerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status    string `json:"status"` // e.g., 'success', 'failed', 'abandoned'
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
		Metadata json.RawMessage `json:"metadata"`
	} `json:"data"`
}

// MetadataUserID extracts the user_id the checkout initiator embedded in the
// transaction metadata, or "" when absent. Paystack returns metadata as an
// empty string for transactions created without any.
func (r *VerifyResponse) MetadataUserID() string {
	if len(r.Data.Metadata) == 0 {
		return ""
	}
	var meta struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(r.Data.Metadata, &meta); err != nil {
		return ""
	}
	return meta.UserID
}

// APIError represents a non-2xx response from Paystack.
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack api error (status %d): %s", e.StatusCode, e.Message)
}

// InitializeTransaction starts a hosted-checkout session.
func (c *Client) InitializeTransaction(ctx context.Context, secretKey string, req InitializeRequest) (*InitializeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal initialize request: %w", err)
	}

	var out InitializeResponse
	if err := c.do(ctx, secretKey, "POST", "/transaction/initialize", bytes.NewBuffer(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyTransaction fetches the authoritative state of a transaction by reference.
func (c *Client) VerifyTransaction(ctx context.Context, secretKey, reference string) (*VerifyResponse, error) {
	var out VerifyResponse
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := c.do(ctx, secretKey, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, secretKey, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create paystack request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute paystack request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read paystack response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(bodyBytes, apiErr); err != nil {
			log.Printf("level=warn component=paystack_client path=%s status=%d msg=\"non-2xx response (unparsable error body)\"", path, resp.StatusCode)
			apiErr.Message = "unparsable error body"
		}
		return apiErr
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode paystack response: %w", err)
	}
	return nil
}

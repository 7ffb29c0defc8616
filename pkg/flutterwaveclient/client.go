/**
 * @description
 * This package provides a client for the Flutterwave v3 REST API. The wallet
 * service only needs virtual account provisioning: creating a dedicated NGN
 * account number that funds the wallet on inbound bank transfer.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, net/http, time: Standard Go libraries.
 */
package flutterwaveclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Client is a client for the Flutterwave API. The secret key is per-request
// because it is admin-configured and can rotate at runtime.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new Flutterwave API client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateVirtualAccountRequest is the payload for POST /virtual-account-numbers.
// BVN is mandated by the CBN for permanent dedicated accounts.
type CreateVirtualAccountRequest struct {
	Email       string `json:"email"`
	BVN         string `json:"bvn"`
	IsPermanent bool   `json:"is_permanent"`
	TxRef       string `json:"tx_ref"`
	Narration   string `json:"narration,omitempty"`
}

// CreateVirtualAccountResponse is Flutterwave's provisioning result.
type CreateVirtualAccountResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AccountNumber string `json:"account_number"`
		BankName      string `json:"bank_name"`
		OrderRef      string `json:"order_ref"`
		FlwRef        string `json:"flw_ref"`
	} `json:"data"`
}

// APIError represents a non-2xx response from Flutterwave.
type APIError struct {
	StatusCode int
	Status     string `json:"status"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flutterwave api error (status %d): %s", e.StatusCode, e.Message)
}

// CreateVirtualAccount provisions a dedicated NGN virtual account number.
func (c *Client) CreateVirtualAccount(ctx context.Context, secretKey string, reqPayload CreateVirtualAccountRequest) (*CreateVirtualAccountResponse, error) {
	body, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal virtual account request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/virtual-account-numbers", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual account request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute virtual account request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read virtual account response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(bodyBytes, apiErr); err != nil {
			log.Printf("level=warn component=flutterwave_client op=create_virtual_account status=%d msg=\"non-2xx response (unparsable error body)\"", resp.StatusCode)
			apiErr.Message = "unparsable error body"
		}
		return nil, apiErr
	}

	var out CreateVirtualAccountResponse
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return nil, fmt.Errorf("failed to decode virtual account response: %w", err)
	}
	if out.Status != "success" {
		return nil, fmt.Errorf("flutterwave virtual account creation failed: %s", out.Message)
	}
	return &out, nil
}

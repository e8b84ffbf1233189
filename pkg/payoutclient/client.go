/**
 * @description
 * This package provides a client for the payout processor used for wallet
 * withdrawals: bank account name enquiry, transfer initiation, and transfer
 * status lookup. The processor's webhook signature scheme (HMAC-SHA512 of the
 * raw body) is verified at the API layer, not here.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package payoutclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Transfer statuses reported by the processor.
const (
	TransferStatusPending = "pending"
	TransferStatusSuccess = "success"
	TransferStatusFailed  = "failed"
)

// Client is a client for the payout processor API.
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewClient creates a new payout processor client.
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		BaseURL:   baseURL,
		SecretKey: secretKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ResolveAccountRequest asks the processor to resolve an account name.
type ResolveAccountRequest struct {
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
}

// ResolveAccountResponse carries the resolved account holder name.
type ResolveAccountResponse struct {
	Data struct {
		AccountName   string `json:"account_name"`
		AccountNumber string `json:"account_number"`
	} `json:"data"`
}

// InitiateTransferRequest starts a payout to an external bank account.
type InitiateTransferRequest struct {
	Reference     string `json:"reference"`
	Amount        int64  `json:"amount"` // in kobo
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	Narration     string `json:"narration,omitempty"`
}

// TransferResponse is returned from both initiation and status lookup.
type TransferResponse struct {
	Data struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Reason    string `json:"reason,omitempty"`
	} `json:"data"`
}

// ErrorResponse represents an error from the payout processor API.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (e *ErrorResponse) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("payout api error: %s", e.Message)
	}
	return "unknown payout api error"
}

// ResolveAccount performs a name enquiry for the given bank account.
func (c *Client) ResolveAccount(ctx context.Context, req ResolveAccountRequest) (*ResolveAccountResponse, error) {
	var resp ResolveAccountResponse
	if err := c.do(ctx, http.MethodPost, "/v1/banks/resolve", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InitiateTransfer starts an asynchronous payout. The terminal status arrives
// later via webhook or GetTransferStatus.
func (c *Client) InitiateTransfer(ctx context.Context, req InitiateTransferRequest) (*TransferResponse, error) {
	var resp TransferResponse
	if err := c.do(ctx, http.MethodPost, "/v1/transfers", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTransferStatus looks up a previously initiated payout by our reference.
func (c *Client) GetTransferStatus(ctx context.Context, reference string) (*TransferResponse, error) {
	var resp TransferResponse
	if err := c.do(ctx, http.MethodGet, "/v1/transfers/"+reference, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr ErrorResponse
		if jsonErr := json.Unmarshal(raw, &apiErr); jsonErr == nil && apiErr.Message != "" {
			return &apiErr
		}
		return fmt.Errorf("payout api returned status %d for %s", resp.StatusCode, path)
	}

	return json.Unmarshal(raw, out)
}

/**
 * @description
 * This package provides a client for interacting with the VTU aggregator API
 * (airtime, data, TV, electricity, betting, exam cards, bulk SMS). It
 * encapsulates the logic for making authenticated HTTP requests, handling
 * request body construction, and parsing responses.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package vtuclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a client for the VTU aggregator API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new VTU aggregator client. The HTTP timeout bounds every
// provider call; the purchase pipeline treats a timeout as a failed purchase.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BalanceResponse is the aggregator's report of the platform's own float.
type BalanceResponse struct {
	Data struct {
		Balance int64 `json:"balance"` // in kobo
	} `json:"data"`
}

// ValidateCustomerRequest asks the aggregator to confirm a customer identifier
// (meter number, smartcard number, betting account id) before purchase.
type ValidateCustomerRequest struct {
	Service    string `json:"service"`
	CustomerID string `json:"customer_id"`
	ProviderID string `json:"provider_id,omitempty"` // disco, cable operator, bookmaker
}

// ValidateCustomerResponse reports whether the customer identifier resolves.
type ValidateCustomerResponse struct {
	Data struct {
		Valid        bool   `json:"valid"`
		CustomerName string `json:"customer_name,omitempty"`
		Message      string `json:"message,omitempty"`
	} `json:"data"`
}

// PurchaseRequest is the aggregator's generic purchase payload. Params carries
// the service-specific fields (phone, plan code, meter type and so on).
type PurchaseRequest struct {
	Service   string            `json:"service"`
	Amount    int64             `json:"amount"` // in kobo
	Reference string            `json:"reference"`
	Params    map[string]string `json:"params,omitempty"`
}

// PurchaseResponse is the aggregator's purchase result.
type PurchaseResponse struct {
	Data struct {
		Status        string `json:"status"` // successful | failed
		TransactionID string `json:"transaction_id"`
		Message       string `json:"message,omitempty"`
		Token         string `json:"token,omitempty"` // electricity token, exam pin
	} `json:"data"`
}

// ErrorResponse represents an error from the aggregator API.
type ErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Status string `json:"status"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("vtu api error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown vtu api error"
}

// GetBalance fetches the platform's float with the aggregator.
func (c *Client) GetBalance(ctx context.Context) (*BalanceResponse, error) {
	var resp BalanceResponse
	if err := c.do(ctx, http.MethodGet, "/v1/balance", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ValidateCustomer performs provider-side customer validation.
func (c *Client) ValidateCustomer(ctx context.Context, req ValidateCustomerRequest) (*ValidateCustomerResponse, error) {
	var resp ValidateCustomerResponse
	if err := c.do(ctx, http.MethodPost, "/v1/customers/validate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Purchase executes a paid purchase with the aggregator.
func (c *Client) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResponse, json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/purchases", bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	c.setHeaders(httpReq)

	httpResp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, nil, err
	}

	if httpResp.StatusCode >= 400 {
		var apiErr ErrorResponse
		if jsonErr := json.Unmarshal(raw, &apiErr); jsonErr == nil && len(apiErr.Errors) > 0 {
			return nil, raw, &apiErr
		}
		return nil, raw, fmt.Errorf("vtu api returned status %d", httpResp.StatusCode)
	}

	var resp PurchaseResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, raw, fmt.Errorf("decode purchase response: %w", err)
	}
	return &resp, raw, nil
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
	c.setHeaders(req)

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
		if jsonErr := json.Unmarshal(raw, &apiErr); jsonErr == nil && len(apiErr.Errors) > 0 {
			return &apiErr
		}
		return fmt.Errorf("vtu api returned status %d for %s", resp.StatusCode, path)
	}

	return json.Unmarshal(raw, out)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
}

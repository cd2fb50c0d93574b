/**
 * @description
 * This package provides a client for the interbank transfer relay. When a
 * transfer's destination IBAN carries another bank's code, the credit leg is
 * handed to that bank over authenticated HTTPS; the caller keeps the local
 * debit and reverses it if the relay fails.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package peerbank

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

// Client is a client for the interbank relay API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new relay client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreditRequest is the payload asking the destination bank to credit an
// account. Amounts are in cents.
type CreditRequest struct {
	SourceIBAN string `json:"source_iban"`
	DestIBAN   string `json:"dest_iban"`
	Amount     int64  `json:"amount"`
}

// CreditResponse is the destination bank's acknowledgement.
type CreditResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// ErrorResponse represents an error from the relay API.
type ErrorResponse struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *ErrorResponse) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("relay error: %s - %s", e.Title, e.Detail)
	}
	return "unknown relay error"
}

// Transfer asks the destination bank to credit destIBAN. It returns nil only
// when the peer acknowledged the credit.
func (c *Client) Transfer(ctx context.Context, sourceIBAN, destIBAN string, amountCents int64) error {
	payload := CreditRequest{
		SourceIBAN: sourceIBAN,
		DestIBAN:   destIBAN,
		Amount:     amountCents,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal credit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/credits", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create credit request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-relay-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute credit request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read credit response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=peerbank_client op=credit dest=%s status=%d msg=\"non-2xx response (unparsable error body)\"", destIBAN, resp.StatusCode)
			return fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=peerbank_client op=credit dest=%s status=%d title=%q detail=%q", destIBAN, resp.StatusCode, errResp.Title, errResp.Detail)
		return &errResp
	}

	var ack CreditResponse
	if err := json.Unmarshal(bodyBytes, &ack); err != nil {
		return fmt.Errorf("failed to decode credit response: %w", err)
	}
	if ack.Status != "accepted" {
		return fmt.Errorf("credit not accepted: status %q reference %q", ack.Status, ack.Reference)
	}
	return nil
}

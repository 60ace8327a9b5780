package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPInventoryClient delivers inventory commands to the warehouse service.
type HTTPInventoryClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPInventoryClient constructs the inventory client.
func NewHTTPInventoryClient(baseURL string) *HTTPInventoryClient {
	return &HTTPInventoryClient{baseURL: baseURL, client: &http.Client{Timeout: 10 * time.Second}}
}

// AddStock posts the command; the downstream deduplicates on the key.
func (c *HTTPInventoryClient) AddStock(ctx context.Context, cmd InventoryCommand) error {
	return postJSON(ctx, c.client, c.baseURL+"/stock/add", cmd, nil)
}

// HTTPFinanceClient delivers expense commands to the finance service.
type HTTPFinanceClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFinanceClient constructs the finance client.
func NewHTTPFinanceClient(baseURL string) *HTTPFinanceClient {
	return &HTTPFinanceClient{baseURL: baseURL, client: &http.Client{Timeout: 10 * time.Second}}
}

// RecordExpense posts the command and returns the transaction id.
func (c *HTTPFinanceClient) RecordExpense(ctx context.Context, cmd ExpenseCommand) (string, error) {
	var resp struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := postJSON(ctx, c.client, c.baseURL+"/expenses", cmd, &resp); err != nil {
		return "", err
	}
	if resp.TransactionID == "" {
		return "", fmt.Errorf("dispatch: finance service returned no transaction id")
	}
	return resp.TransactionID, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, body any, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("dispatch: %s responded %d", url, resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

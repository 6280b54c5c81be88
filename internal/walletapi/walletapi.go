// Package walletapi is a typed client for the headless wallet service.
// Per-wallet calls select the wallet with the X-Wallet-Id header.
package walletapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const walletIDHeader = "X-Wallet-Id"

// Wallet sync status codes as reported by the service.
const StatusReady = 3

// Client talks to one wallet service instance, e.g. http://127.0.0.1:8001.
type Client struct {
	base string
	hc   *http.Client
}

func New(base string) *Client {
	return &Client{
		base: base,
		hc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Status is a wallet's sync state. StatusCode 3 means ready.
type Status struct {
	StatusCode    *int   `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
	Raw           json.RawMessage
}

// Balance is a wallet's balance in HTR cents.
type Balance struct {
	Available uint64 `json:"available"`
	Locked    uint64 `json:"locked"`
}

// Create registers and starts a wallet from a seed phrase.
func (c *Client) Create(ctx context.Context, walletID, seed string) error {
	body := map[string]string{"wallet-id": walletID, "seed": seed}
	raw, err := c.post(ctx, "/start", "", body)
	if err != nil {
		return fmt.Errorf("create wallet: %w", err)
	}
	var doc struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse create response: %w", err)
	}
	if !doc.Success {
		return fmt.Errorf("create wallet: %s", doc.Message)
	}
	return nil
}

// Status reports the wallet's sync state.
func (c *Client) Status(ctx context.Context, walletID string) (Status, error) {
	raw, err := c.get(ctx, "/wallet/status", walletID)
	if err != nil {
		return Status{}, err
	}
	var st Status
	_ = json.Unmarshal(raw, &st)
	st.Raw = raw
	return st, nil
}

// Balance returns the wallet's balance.
func (c *Client) Balance(ctx context.Context, walletID string) (Balance, error) {
	raw, err := c.get(ctx, "/wallet/balance", walletID)
	if err != nil {
		return Balance{}, err
	}
	var b Balance
	if err := json.Unmarshal(raw, &b); err != nil {
		return Balance{}, fmt.Errorf("parse balance response: %w", err)
	}
	return b, nil
}

// Addresses lists the wallet's addresses.
func (c *Client) Addresses(ctx context.Context, walletID string) ([]string, error) {
	raw, err := c.get(ctx, "/wallet/addresses", walletID)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Addresses []string `json:"addresses"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse addresses response: %w", err)
	}
	return doc.Addresses, nil
}

// SendTx sends amount (HTR cents) from the wallet to address and returns
// the service's raw response.
func (c *Client) SendTx(ctx context.Context, walletID, address string, amount int64) (json.RawMessage, error) {
	body := map[string]any{"address": address, "value": amount}
	return c.post(ctx, "/wallet/simple-send-tx", walletID, body)
}

// Close stops the wallet and removes it from the service.
func (c *Client) Close(ctx context.Context, walletID string) (json.RawMessage, error) {
	return c.post(ctx, "/wallet/stop", walletID, nil)
}

func (c *Client) get(ctx context.Context, path, walletID string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	if walletID != "" {
		req.Header.Set(walletIDHeader, walletID)
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path, walletID string, body any) (json.RawMessage, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if walletID != "" {
		req.Header.Set(walletIDHeader, walletID)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

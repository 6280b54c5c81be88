// Package nodeapi is a thin typed client for the full node's HTTP API,
// including the built-in wallet used as the local faucet.
package nodeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to one node's API base URL, e.g. http://127.0.0.1:8080.
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

// NodeInfo is the subset of the status document the control plane uses,
// plus the raw payload for callers that want everything.
type NodeInfo struct {
	BestBlockHeight *uint64
	Raw             json.RawMessage
}

// Balance is the faucet wallet's balance in HTR cents.
type Balance struct {
	Available int64 `json:"available"`
	Locked    int64 `json:"locked"`
}

// Status fetches /v1a/status/ and extracts the best block height.
func (c *Client) Status(ctx context.Context) (*NodeInfo, error) {
	raw, err := c.get(ctx, "/v1a/status/")
	if err != nil {
		return nil, err
	}
	var doc struct {
		Dag struct {
			BestBlock struct {
				Height *uint64 `json:"height"`
			} `json:"best_block"`
		} `json:"dag"`
	}
	// Height stays nil when the document does not parse; the raw payload
	// is still useful to callers.
	_ = json.Unmarshal(raw, &doc)
	return &NodeInfo{BestBlockHeight: doc.Dag.BestBlock.Height, Raw: raw}, nil
}

// BlockAtHeight fetches one block document by height.
func (c *Client) BlockAtHeight(ctx context.Context, height uint64) (json.RawMessage, error) {
	return c.get(ctx, "/v1a/block_at_height?height="+strconv.FormatUint(height, 10))
}

// Transaction fetches one transaction document by id.
func (c *Client) Transaction(ctx context.Context, id string) (json.RawMessage, error) {
	return c.get(ctx, "/v1a/transaction?id="+url.QueryEscape(id))
}

// WalletAddress returns the faucet wallet's current address.
func (c *Client) WalletAddress(ctx context.Context) (string, error) {
	raw, err := c.get(ctx, "/v1a/wallet/address")
	if err != nil {
		return "", err
	}
	var doc struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil || doc.Address == "" {
		return "", fmt.Errorf("invalid address response")
	}
	return doc.Address, nil
}

// WalletBalance returns the faucet wallet's balance.
func (c *Client) WalletBalance(ctx context.Context) (Balance, error) {
	raw, err := c.get(ctx, "/v1a/wallet/balance/")
	if err != nil {
		return Balance{}, err
	}
	var doc struct {
		Success bool    `json:"success"`
		Message string  `json:"message"`
		Balance Balance `json:"balance"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Balance{}, fmt.Errorf("parse balance response: %w", err)
	}
	if !doc.Success {
		return Balance{}, fmt.Errorf("get balance: %s", orUnknown(doc.Message))
	}
	return doc.Balance, nil
}

// SendTokens sends amount (HTR cents) from the faucet wallet to address
// and returns the transaction hash.
func (c *Client) SendTokens(ctx context.Context, address string, amount int64) (string, error) {
	body := map[string]any{
		"data": map[string]any{
			"inputs": []any{},
			"outputs": []any{
				map[string]any{"address": address, "value": amount},
			},
		},
	}
	raw, err := c.post(ctx, "/v1a/wallet/send_tokens/", body)
	if err != nil {
		return "", err
	}
	var doc struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Hash    string `json:"hash"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("parse send response: %w", err)
	}
	if !doc.Success {
		return "", fmt.Errorf("transaction failed: %s", orUnknown(doc.Message))
	}
	return doc.Hash, nil
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func orUnknown(msg string) string {
	if msg == "" {
		return "unknown error"
	}
	return msg
}

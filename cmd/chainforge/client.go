package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// APIClient talks to the daemon's control API.
type APIClient struct {
	baseURL string
	client  *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:9400/api"
	}
	return &APIClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *APIClient) StartService(name string) (json.RawMessage, error) {
	return c.post("/services/" + name + "/start")
}

func (c *APIClient) StopService(name string) (json.RawMessage, error) {
	return c.post("/services/" + name + "/stop")
}

func (c *APIClient) ServiceStatus(name string) (json.RawMessage, error) {
	return c.get("/services/" + name + "/status")
}

func (c *APIClient) State() (json.RawMessage, error) {
	return c.get("/state")
}

func (c *APIClient) ResetData() (json.RawMessage, error) {
	return c.post("/reset-data")
}

func (c *APIClient) Quickstart() (json.RawMessage, error) {
	return c.post("/quickstart")
}

func (c *APIClient) Quickstop() (json.RawMessage, error) {
	return c.post("/quickstop")
}

func (c *APIClient) get(path string) (json.RawMessage, error) {
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable: %w", err)
	}
	return c.read(resp)
}

func (c *APIClient) post(path string) (json.RawMessage, error) {
	resp, err := c.client.Post(c.baseURL+path, "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable: %w", err)
	}
	return c.read(resp)
}

func (c *APIClient) read(resp *http.Response) (json.RawMessage, error) {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var er struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &er) == nil && er.Error != "" {
			return nil, fmt.Errorf("API error: %s", er.Error)
		}
		return nil, fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}
	return body, nil
}

func printJSON(raw json.RawMessage) {
	var buf any
	if err := json.Unmarshal(raw, &buf); err != nil {
		fmt.Println(string(raw))
		return
	}
	out, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		fmt.Println(string(raw))
		return
	}
	_, _ = fmt.Fprintln(os.Stdout, string(out))
}

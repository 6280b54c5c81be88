//go:build !windows

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loykin/chainforge/internal/event"
	"github.com/loykin/chainforge/internal/gateway"
	"github.com/loykin/chainforge/internal/supervisor"
)

func newTestRPC(t *testing.T) (*httptest.Server, *supervisor.Supervisor) {
	t.Helper()
	dir := t.TempDir()
	stub := filepath.Join(dir, "stub")
	script := "#!/bin/sh\ntrap 'exit 0' TERM\nsleep 60 &\nwait $!\n"
	require.NoError(t, os.WriteFile(stub, []byte(script), 0o755))

	sup := supervisor.New(supervisor.Options{
		NodeBinary:  stub,
		MinerBinary: stub,
		NodeRunner:  "/bin/sh",
		Gateway:     gateway.Config{Listen: "127.0.0.1:0"},
		PortSettle:  time.Millisecond,
		GracePeriod: time.Second,
	}, event.NewBus(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = sup.Shutdown(context.Background()) })

	srv := NewServer(sup, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Echo())
	t.Cleanup(ts.Close)
	return ts, sup
}

func call(t *testing.T, ts *httptest.Server, method string, params any) response {
	t.Helper()
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	buf, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/mcp", "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "2.0", out.JSONRPC)
	return out
}

// resultText extracts the text content of a tools/call result.
func resultText(t *testing.T, resp response) (string, bool) {
	t.Helper()
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var res struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	require.NoError(t, json.Unmarshal(raw, &res))
	require.NotEmpty(t, res.Content)
	return res.Content[0].Text, res.IsError
}

func TestInitialize(t *testing.T) {
	ts, _ := newTestRPC(t)

	resp := call(t, ts, "initialize", nil)
	require.Nil(t, resp.Error)

	raw, _ := json.Marshal(resp.Result)
	var res struct {
		ProtocolVersion string `json:"protocolVersion"`
		ServerInfo      struct {
			Name string `json:"name"`
		} `json:"serverInfo"`
	}
	require.NoError(t, json.Unmarshal(raw, &res))
	require.Equal(t, protocolVersion, res.ProtocolVersion)
	require.Equal(t, serverName, res.ServerInfo.Name)
}

func TestPingAndInitialized(t *testing.T) {
	ts, _ := newTestRPC(t)

	require.Nil(t, call(t, ts, "ping", nil).Error)
	require.Nil(t, call(t, ts, "notifications/initialized", nil).Error)
}

func TestUnknownMethod(t *testing.T) {
	ts, _ := newTestRPC(t)

	resp := call(t, ts, "resources/list", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
	require.Contains(t, resp.Error.Message, "resources/list")
}

func TestToolsList(t *testing.T) {
	ts, _ := newTestRPC(t)

	resp := call(t, ts, "tools/list", nil)
	require.Nil(t, resp.Error)

	raw, _ := json.Marshal(resp.Result)
	var res struct {
		Tools []Tool `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(raw, &res))

	names := make(map[string]bool, len(res.Tools))
	for _, tool := range res.Tools {
		require.NotEmpty(t, tool.Description)
		require.Equal(t, "object", tool.InputSchema["type"])
		names[tool.Name] = true
	}
	for _, want := range []string{
		"start_node", "stop_node", "get_node_status",
		"start_miner", "stop_miner", "get_miner_status",
		"start_wallet_service", "create_wallet", "fund_wallet",
		"get_blocks", "get_transaction", "quick_start", "quick_stop",
		"get_full_status", "reset_data",
	} {
		require.True(t, names[want], "missing tool %s", want)
	}
}

func TestCallUnknownToolIsInBandError(t *testing.T) {
	ts, _ := newTestRPC(t)

	resp := call(t, ts, "tools/call", map[string]any{"name": "bogus_tool"})
	require.Nil(t, resp.Error)
	text, isErr := resultText(t, resp)
	require.True(t, isErr)
	require.Contains(t, text, "unknown tool")
}

func TestCallGetMinerStatus(t *testing.T) {
	ts, _ := newTestRPC(t)

	resp := call(t, ts, "tools/call", map[string]any{"name": "get_miner_status"})
	text, isErr := resultText(t, resp)
	require.False(t, isErr)
	require.JSONEq(t, `{"running":false,"hash_rate":null}`, text)
}

func TestCallStartMinerWithoutNode(t *testing.T) {
	ts, _ := newTestRPC(t)

	resp := call(t, ts, "tools/call", map[string]any{"name": "start_miner"})
	text, isErr := resultText(t, resp)
	require.True(t, isErr)
	require.Contains(t, text, "node must be running")
}

func TestCallRequiresWalletID(t *testing.T) {
	ts, _ := newTestRPC(t)

	for _, tool := range []string{"get_wallet_seed", "get_wallet_status", "get_wallet_balance", "close_wallet"} {
		resp := call(t, ts, "tools/call", map[string]any{"name": tool})
		text, isErr := resultText(t, resp)
		require.True(t, isErr, tool)
		require.Contains(t, text, "wallet_id is required")
	}
}

func TestCreateWalletRequiresSeed(t *testing.T) {
	ts, _ := newTestRPC(t)

	resp := call(t, ts, "tools/call", map[string]any{
		"name":      "create_wallet",
		"arguments": map[string]any{"wallet_id": "w1"},
	})
	text, isErr := resultText(t, resp)
	require.True(t, isErr)
	require.Contains(t, text, "seed is required")
}

func TestGetWalletSeedSessionScope(t *testing.T) {
	ts, _ := newTestRPC(t)

	resp := call(t, ts, "tools/call", map[string]any{
		"name":      "get_wallet_seed",
		"arguments": map[string]any{"wallet_id": "never-created"},
	})
	text, isErr := resultText(t, resp)
	require.False(t, isErr)
	require.Contains(t, text, "Seed not found")
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestRPC(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, "OK", string(body))
}

func TestStopNodeStopsEverything(t *testing.T) {
	ts, sup := newTestRPC(t)

	resp := call(t, ts, "tools/call", map[string]any{"name": "stop_node"})
	text, isErr := resultText(t, resp)
	require.False(t, isErr)
	require.Equal(t, "Nothing was running", text)
	require.False(t, sup.State().NodeRunning)
}

// Package rpc exposes the control plane's tool catalog over a JSON-RPC 2.0
// endpoint so automation clients can drive the local environment.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/loykin/chainforge/internal/supervisor"
)

const (
	protocolVersion = "2024-11-05"
	serverName      = "chainforge"
	serverVersion   = "1.0.0"

	codeMethodNotFound = -32601
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Server serves the JSON-RPC endpoint. Seed phrases of wallets created
// through it live only in memory for the lifetime of the process.
type Server struct {
	sup *supervisor.Supervisor
	log *slog.Logger

	mu    sync.Mutex
	seeds map[string]string
}

func NewServer(sup *supervisor.Supervisor, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		sup:   sup,
		log:   log,
		seeds: make(map[string]string),
	}
}

// Echo builds the echo engine with the RPC routes mounted.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.POST("/mcp", s.handleRPC)
	e.GET("/mcp/sse", s.handleSSE)
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	return e
}

// Serve runs the endpoint on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	e := s.Echo()

	errCh := make(chan error, 1)
	go func() { errCh <- e.Start(addr) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleRPC(c echo.Context) error {
	var req request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusOK, response{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: -32700, Message: "Parse error"},
		})
	}

	resp := response{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{"listChanged": false},
			},
			"serverInfo": map[string]any{
				"name":    serverName,
				"version": serverVersion,
			},
		}
	case "notifications/initialized":
		resp.Result = map[string]any{}
	case "ping":
		resp.Result = map[string]any{}
	case "tools/list":
		resp.Result = map[string]any{"tools": toolCatalog()}
	case "tools/call":
		resp.Result = s.callTool(c.Request().Context(), req.Params)
	default:
		resp.Error = &rpcError{
			Code:    codeMethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// callTool dispatches a tools/call request. Tool failures are reported
// in-band with isError; only protocol-level problems become RPC errors.
func (s *Server) callTool(ctx context.Context, params json.RawMessage) map[string]any {
	var call struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	_ = json.Unmarshal(params, &call)

	text, err := s.execute(ctx, call.Name, call.Arguments)
	if err != nil {
		s.log.Warn("tool call failed", "tool", call.Name, "err", err)
		return map[string]any{
			"content": []map[string]any{{"type": "text", "text": "Error: " + err.Error()}},
			"isError": true,
		}
	}
	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
	}
}

// handleSSE keeps a comment-only event stream open so clients that expect
// an SSE channel have one to attach to.
func (s *Server) handleSSE(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

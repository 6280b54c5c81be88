// Package gateway is the local reverse proxy in front of the node API. It
// forwards HTTP requests under the API prefix to the node and tunnels the
// node's WebSocket stream, so browser clients talk to one origin with
// permissive CORS instead of the node directly.
package gateway

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const DefaultMaxBodyBytes = 10 * 1024 * 1024 // 10 MiB

// Config describes the proxy endpoints. The listen address is loopback by
// default; the gateway is a local convenience, not an exposed service.
type Config struct {
	Listen       string `json:"listen" mapstructure:"listen"`
	Upstream     string `json:"upstream" mapstructure:"upstream"`
	PathPrefix   string `json:"path_prefix" mapstructure:"path_prefix"`
	WSPath       string `json:"ws_path" mapstructure:"ws_path"`
	MaxBodyBytes int64  `json:"max_body_bytes" mapstructure:"max_body_bytes"`
}

func (c Config) WithDefaults() Config {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:3001"
	}
	if c.Upstream == "" {
		c.Upstream = "http://127.0.0.1:8080"
	}
	if c.PathPrefix == "" {
		c.PathPrefix = "/v1a/"
	}
	if c.WSPath == "" {
		c.WSPath = "/v1a/ws/"
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return c
}

// URL returns the browser-facing base URL of the gateway.
func (c Config) URL() string { return "http://" + c.Listen }

// Server proxies HTTP and WebSocket traffic to the upstream node.
type Server struct {
	cfg      Config
	log      *slog.Logger
	client   *http.Client
	upgrader websocket.Upgrader
	// onError receives upstream failure descriptions for event publication.
	onError func(string)
}

func New(cfg Config, log *slog.Logger, onError func(string)) *Server {
	if log == nil {
		log = slog.Default()
	}
	if onError == nil {
		onError = func(string) {}
	}
	return &Server{
		cfg: cfg.WithDefaults(),
		log: log,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Local tool; any origin may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		onError: onError,
	}
}

// Listen binds the configured address. Binding is separated from serving so
// the caller can surface bind failures synchronously.
func (s *Server) Listen() (net.Listener, error) {
	return net.Listen("tcp", s.cfg.Listen)
}

// Serve runs the proxy on ln until ctx is cancelled, then shuts down
// gracefully. Open WebSocket tunnels are left to close on their own.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		_ = srv.Shutdown(context.Background())
		<-errCh
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Handler builds the gin engine. Exposed for httptest-based tests.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery(), corsMiddleware())

	route := strings.TrimSuffix(s.cfg.PathPrefix, "/") + "/*upstreamPath"
	e.Any(route, s.dispatch)

	return e
}

// dispatch routes a request to the WebSocket tunnel or the HTTP forwarder.
// The tunnel is taken only for a genuine upgrade on the exact tunnel path;
// a plain GET on that path proxies like any other.
func (s *Server) dispatch(c *gin.Context) {
	if c.Request.Method == http.MethodGet &&
		c.Request.URL.Path == s.cfg.WSPath &&
		websocket.IsWebSocketUpgrade(c.Request) {
		s.tunnel(c)
		return
	}
	s.forward(c)
}

// corsMiddleware answers preflights and marks every response as
// cross-origin accessible.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// upstreamURL joins the upstream base with the request path and query.
func (s *Server) upstreamURL(c *gin.Context) string {
	u := strings.TrimSuffix(s.cfg.Upstream, "/") + c.Request.URL.Path
	if q := c.Request.URL.RawQuery; q != "" {
		u += "?" + q
	}
	return u
}

// upstreamWSURL derives the ws:// endpoint from the upstream base URL.
func (s *Server) upstreamWSURL() (string, error) {
	u, err := url.Parse(s.cfg.Upstream)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return scheme + "://" + u.Host + s.cfg.WSPath, nil
}

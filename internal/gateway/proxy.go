package gateway

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/chainforge/internal/metrics"
)

// forward relays one HTTP request to the upstream node. The body is read
// fully up front so the size cap applies before anything reaches upstream.
func (s *Server) forward(c *gin.Context) {
	start := time.Now()

	body, err := s.readBody(c)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err.Error(), start)
		return
	}

	req, err := http.NewRequestWithContext(
		c.Request.Context(), c.Request.Method, s.upstreamURL(c), bytes.NewReader(body))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, fmt.Sprintf("Failed to build upstream request: %v", err), start)
		return
	}
	copyHeaders(req.Header, c.Request.Header)

	resp, err := s.client.Do(req)
	if err != nil {
		msg := fmt.Sprintf("Failed to connect to upstream: %v", err)
		s.onError(msg)
		s.fail(c, http.StatusBadGateway, msg, start)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	copyHeaders(c.Writer.Header(), resp.Header)
	c.Writer.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		s.log.Debug("response copy interrupted", "err", err)
	}
	metrics.ObserveGatewayRequest(strconv.Itoa(resp.StatusCode), time.Since(start))
}

// readBody drains the request body up to the configured cap. One byte past
// the cap fails the request; the server itself is unaffected.
func (s *Server) readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, s.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("Failed to read request body: %v", err)
	}
	if int64(len(body)) > s.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("Request body exceeds %d bytes", s.cfg.MaxBodyBytes)
	}
	return body, nil
}

func (s *Server) fail(c *gin.Context, code int, msg string, start time.Time) {
	s.log.Warn("proxy request failed", "path", c.Request.URL.Path, "code", code, "reason", msg)
	c.String(code, msg)
	metrics.ObserveGatewayRequest(strconv.Itoa(code), time.Since(start))
}

// copyHeaders copies all header values. Host is carried by the request URL
// and hop-by-hop connection headers must not be forwarded.
func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		switch http.CanonicalHeaderKey(k) {
		case "Host", "Connection", "Upgrade", "Keep-Alive", "Proxy-Connection", "Transfer-Encoding":
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

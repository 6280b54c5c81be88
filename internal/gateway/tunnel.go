package gateway

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/loykin/chainforge/internal/metrics"
)

const controlWriteWait = 5 * time.Second

// tunnel upgrades the client connection and splices it to the upstream
// node's WebSocket endpoint. The client is upgraded first: a dial failure
// is then reported as a proper close frame instead of an HTTP error on a
// half-upgraded connection.
func (s *Server) tunnel(c *gin.Context) {
	client, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.Debug("websocket upgrade failed", "err", err)
		return
	}
	defer func() { _ = client.Close() }()

	target, err := s.upstreamWSURL()
	if err != nil {
		s.closeWith(client, fmt.Sprintf("invalid upstream: %v", err))
		return
	}

	upstream, resp, err := websocket.DefaultDialer.DialContext(c.Request.Context(), target, nil)
	if err != nil {
		msg := fmt.Sprintf("Failed to connect to upstream websocket: %v", err)
		s.onError(msg)
		s.closeWith(client, msg)
		return
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = upstream.Close() }()

	metrics.TunnelOpened()
	defer metrics.TunnelClosed()
	s.log.Debug("websocket tunnel open", "target", target)

	// Ping and pong frames are forwarded across the splice. WriteControl is
	// safe to call concurrently with the data-frame writer.
	forwardControl(client, upstream)
	forwardControl(upstream, client)

	errc := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go splice(upstream, client, errc, &wg)
	go splice(client, upstream, errc, &wg)

	// First failure on either side tears the whole tunnel down.
	err = <-errc
	relayClose(client, err)
	relayClose(upstream, err)
	_ = client.Close()
	_ = upstream.Close()
	wg.Wait()

	s.log.Debug("websocket tunnel closed", "reason", err)
}

// splice copies data frames from src to dst until either side fails.
func splice(dst, src *websocket.Conn, errc chan<- error, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		mt, data, err := src.ReadMessage()
		if err != nil {
			errc <- err
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		if err := dst.WriteMessage(mt, data); err != nil {
			errc <- err
			return
		}
	}
}

// forwardControl mirrors ping/pong frames arriving on src onto dst so
// keepalive probes traverse the tunnel end to end.
func forwardControl(src, dst *websocket.Conn) {
	src.SetPingHandler(func(data string) error {
		return dst.WriteControl(websocket.PingMessage, []byte(data), time.Now().Add(controlWriteWait))
	})
	src.SetPongHandler(func(data string) error {
		return dst.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(controlWriteWait))
	})
}

// relayClose passes the peer's close code through to the other side, or a
// going-away close for plain transport errors.
func relayClose(conn *websocket.Conn, cause error) {
	var ce *websocket.CloseError
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
	if errors.As(cause, &ce) {
		msg = websocket.FormatCloseMessage(ce.Code, ce.Text)
	} else if errors.Is(cause, net.ErrClosed) {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlWriteWait))
}

// closeWith reports a tunnel setup failure to an already-upgraded client.
func (s *Server) closeWith(client *websocket.Conn, reason string) {
	if len(reason) > 120 {
		// Close frame payloads are capped at 125 bytes.
		reason = reason[:120]
	}
	msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, reason)
	_ = client.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlWriteWait))
}

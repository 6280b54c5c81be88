package supervisor

import (
	"context"
	"fmt"

	"github.com/loykin/chainforge/internal/event"
	"github.com/loykin/chainforge/internal/gateway"
	"github.com/loykin/chainforge/internal/history"
	"github.com/loykin/chainforge/internal/metrics"
	"github.com/loykin/chainforge/internal/registry"
)

// GatewayStatus is the gateway's registry state plus its listen address.
type GatewayStatus struct {
	Running bool   `json:"running"`
	URL     string `json:"url,omitempty"`
}

// StartGateway binds and serves the reverse proxy in-process. Unlike the
// child processes it has no PID; its record carries a shutdown handle
// instead.
func (s *Supervisor) StartGateway(cfg *gateway.Config) (string, error) {
	c := s.opts.Gateway
	if cfg != nil {
		c = cfg.WithDefaults()
	}

	ok, _ := s.reg.BeginStart(registry.ServiceGateway)
	if !ok {
		return "", alreadyRunning(registry.ServiceGateway)
	}

	srv := gateway.New(c, s.log.With("component", "gateway"), func(msg string) {
		s.bus.Publish(event.Event{Name: event.GatewayError, Service: string(registry.ServiceGateway), Payload: msg})
	})

	ln, err := srv.Listen()
	if err != nil {
		s.reg.AbortStart(registry.ServiceGateway)
		return "", &BindError{Addr: c.Listen, Err: err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	gen := s.reg.CommitStart(registry.ServiceGateway, 0, cancel, c)
	s.recordStart(registry.ServiceGateway, 0, "listen="+c.Listen)
	s.log.Info("gateway started", "listen", c.Listen, "upstream", c.Upstream)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := srv.Serve(ctx, ln)
		// A restarted gateway owns a newer generation; this goroutine then
		// only reports its own incarnation's termination.
		if s.reg.ClearServer(registry.ServiceGateway, gen) {
			metrics.IncStop(string(registry.ServiceGateway))
		}
		if err != nil {
			s.log.Error("gateway serve failed", "err", err)
			s.bus.Publish(event.Event{Name: event.GatewayError, Service: string(registry.ServiceGateway), Payload: err.Error()})
		}
		s.bus.Publish(event.Event{Name: event.GatewayTerminated, Service: string(registry.ServiceGateway)})
		s.bus.Record(history.Event{Type: history.EventStopped, Service: string(registry.ServiceGateway)})
	}()

	return fmt.Sprintf("Gateway started on %s", c.URL()), nil
}

// StopGateway cancels the serve context; the serve goroutine finishes the
// bookkeeping once Shutdown returns.
func (s *Supervisor) StopGateway() (string, error) {
	rec, was := s.reg.EndRunning(registry.ServiceGateway)
	if !was {
		return "", notRunning(registry.ServiceGateway)
	}
	if rec.Shutdown != nil {
		rec.Shutdown()
	}
	s.log.Info("gateway stop requested")
	return "Gateway stopped", nil
}

// GatewayStatus reports the gateway's registry state.
func (s *Supervisor) GatewayStatus() GatewayStatus {
	rec := s.reg.Get(registry.ServiceGateway)
	st := GatewayStatus{Running: rec.Running}
	if rec.Running {
		c := s.opts.Gateway
		if gc, ok := rec.Config.(gateway.Config); ok {
			c = gc
		}
		st.URL = c.URL()
	}
	return st
}

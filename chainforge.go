package chainforge

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/chainforge/internal/config"
	"github.com/loykin/chainforge/internal/event"
	"github.com/loykin/chainforge/internal/gateway"
	"github.com/loykin/chainforge/internal/history"
	"github.com/loykin/chainforge/internal/history/factory"
	"github.com/loykin/chainforge/internal/metrics"
	"github.com/loykin/chainforge/internal/registry"
	"github.com/loykin/chainforge/internal/rpc"
	iapi "github.com/loykin/chainforge/internal/server"
	"github.com/loykin/chainforge/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Service = registry.Service

const (
	ServiceNode    = registry.ServiceNode
	ServiceMiner   = registry.ServiceMiner
	ServiceWallet  = registry.ServiceWallet
	ServiceGateway = registry.ServiceGateway
)

type Options = supervisor.Options

type NodeConfig = supervisor.NodeConfig

type MinerConfig = supervisor.MinerConfig

type WalletConfig = supervisor.WalletConfig

type GatewayConfig = gateway.Config

type State = supervisor.State

type Event = event.Event

type HistorySink = history.Sink

type FileConfig = cfg.FileConfig

// Supervisor is a thin facade over the internal supervisor.
// It provides a stable public API for embedding.
type Supervisor struct {
	inner *supervisor.Supervisor
	bus   *event.Bus
}

func New(opts Options, log *slog.Logger) *Supervisor {
	bus := event.NewBus()
	return &Supervisor{inner: supervisor.New(opts, bus, log), bus: bus}
}

func (s *Supervisor) StartNode(c *NodeConfig) (string, error)     { return s.inner.StartNode(c) }
func (s *Supervisor) StopNode() (string, error)                   { return s.inner.StopNode() }
func (s *Supervisor) StartMiner(c *MinerConfig) (string, error)   { return s.inner.StartMiner(c) }
func (s *Supervisor) StopMiner() (string, error)                  { return s.inner.StopMiner() }
func (s *Supervisor) StartWallet(c *WalletConfig) (string, error) { return s.inner.StartWallet(c) }
func (s *Supervisor) StopWallet() (string, error)                 { return s.inner.StopWallet() }
func (s *Supervisor) StartGateway(c *GatewayConfig) (string, error) {
	return s.inner.StartGateway(c)
}
func (s *Supervisor) StopGateway() (string, error) { return s.inner.StopGateway() }

func (s *Supervisor) StartAll(ctx context.Context) ([]string, error) { return s.inner.StartAll(ctx) }
func (s *Supervisor) StopAll() []string                              { return s.inner.StopAll() }
func (s *Supervisor) State() State                                   { return s.inner.State() }
func (s *Supervisor) ResetData() (string, error)                     { return s.inner.ResetData() }
func (s *Supervisor) Shutdown(ctx context.Context) error             { return s.inner.Shutdown(ctx) }

// Subscribe attaches an event subscriber to the supervisor's bus.
func (s *Supervisor) Subscribe(buffer int) (<-chan Event, func()) {
	return s.bus.Subscribe(buffer)
}

// SetHistorySinks configures the lifecycle audit sinks.
func (s *Supervisor) SetHistorySinks(sinks ...HistorySink) {
	s.bus.SetHistorySinks(sinks...)
}

// NewHistorySink builds a history sink from a DSN
// (sqlite://, postgres:// or clickhouse://).
func NewHistorySink(dsn string) (HistorySink, error) {
	return factory.NewSinkFromDSN(dsn)
}

// APIHandler returns the control REST API as an embeddable http.Handler.
func (s *Supervisor) APIHandler(basePath string) http.Handler {
	return iapi.NewRouter(s.inner, basePath).Handler()
}

// RPCHandler returns the JSON-RPC tool endpoint as an embeddable handler.
func (s *Supervisor) RPCHandler(log *slog.Logger) http.Handler {
	return rpc.NewServer(s.inner, log).Echo()
}

// LoadConfig reads a TOML daemon config, overlaying the defaults.
func LoadConfig(path string) (FileConfig, error) { return cfg.Load(path) }

// RegisterMetrics registers the control plane metrics with r.
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/chainforge/internal/gateway"
	"github.com/loykin/chainforge/internal/metrics"
	"github.com/loykin/chainforge/internal/registry"
	"github.com/loykin/chainforge/internal/supervisor"
)

// Router provides the embeddable control API for the service supervisor.
// Endpoints (under basePath, default "/api"):
//
//	POST /services/:name/start   body: optional service config JSON
//	POST /services/:name/stop
//	GET  /services/:name/status
//	GET  /state
//	POST /reset-data
//	POST /quickstart
//	POST /quickstop
//	GET  /events                 server-sent event stream
//
// /metrics is mounted at the root regardless of basePath.
type Router struct {
	sup      *supervisor.Supervisor
	basePath string
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(sup *supervisor.Supervisor, basePath string) *Router {
	if basePath == "" {
		basePath = "/api"
	}
	return &Router{sup: sup, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server or mux.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())

	group := g.Group(r.basePath)
	group.POST("/services/:name/start", r.handleStart)
	group.POST("/services/:name/stop", r.handleStop)
	group.GET("/services/:name/status", r.handleStatus)
	group.GET("/state", r.handleState)
	group.POST("/reset-data", r.handleResetData)
	group.POST("/quickstart", r.handleQuickstart)
	group.POST("/quickstop", r.handleQuickstop)
	group.GET("/events", r.handleEvents)

	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, sup *supervisor.Supervisor) (*http.Server, error) {
	r := NewRouter(sup, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type messageResp struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func (r *Router) handleStart(c *gin.Context) {
	svc := registry.Service(c.Param("name"))
	if !svc.Valid() {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "unknown service: " + string(svc)})
		return
	}

	var msg string
	var err error
	switch svc {
	case registry.ServiceNode:
		cfg, bindErr := bindOptional[supervisor.NodeConfig](c)
		if bindErr != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + bindErr.Error()})
			return
		}
		msg, err = r.sup.StartNode(cfg)
	case registry.ServiceMiner:
		cfg, bindErr := bindOptional[supervisor.MinerConfig](c)
		if bindErr != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + bindErr.Error()})
			return
		}
		msg, err = r.sup.StartMiner(cfg)
	case registry.ServiceWallet:
		cfg, bindErr := bindOptional[supervisor.WalletConfig](c)
		if bindErr != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + bindErr.Error()})
			return
		}
		msg, err = r.sup.StartWallet(cfg)
	case registry.ServiceGateway:
		cfg, bindErr := bindOptional[gateway.Config](c)
		if bindErr != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + bindErr.Error()})
			return
		}
		msg, err = r.sup.StartGateway(cfg)
	}
	if err != nil {
		writeJSON(c, statusFor(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, messageResp{OK: true, Message: msg})
}

func (r *Router) handleStop(c *gin.Context) {
	svc := registry.Service(c.Param("name"))
	var msg string
	var err error
	switch svc {
	case registry.ServiceNode:
		msg, err = r.sup.StopNode()
	case registry.ServiceMiner:
		msg, err = r.sup.StopMiner()
	case registry.ServiceWallet:
		msg, err = r.sup.StopWallet()
	case registry.ServiceGateway:
		msg, err = r.sup.StopGateway()
	default:
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "unknown service: " + string(svc)})
		return
	}
	if err != nil {
		writeJSON(c, statusFor(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, messageResp{OK: true, Message: msg})
}

func (r *Router) handleStatus(c *gin.Context) {
	svc := registry.Service(c.Param("name"))
	switch svc {
	case registry.ServiceNode:
		writeJSON(c, http.StatusOK, r.sup.NodeStatus(c.Request.Context()))
	case registry.ServiceMiner:
		writeJSON(c, http.StatusOK, r.sup.MinerStatus())
	case registry.ServiceWallet:
		writeJSON(c, http.StatusOK, r.sup.WalletStatus())
	case registry.ServiceGateway:
		writeJSON(c, http.StatusOK, r.sup.GatewayStatus())
	default:
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "unknown service: " + string(svc)})
	}
}

func (r *Router) handleState(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.sup.State())
}

func (r *Router) handleResetData(c *gin.Context) {
	msg, err := r.sup.ResetData()
	if err != nil {
		writeJSON(c, http.StatusConflict, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, messageResp{OK: true, Message: msg})
}

func (r *Router) handleQuickstart(c *gin.Context) {
	msgs, err := r.sup.StartAll(c.Request.Context())
	if err != nil {
		writeJSON(c, statusFor(err), gin.H{"error": err.Error(), "messages": msgs})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "messages": msgs})
}

func (r *Router) handleQuickstop(c *gin.Context) {
	msgs := r.sup.StopAll()
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "messages": msgs})
}

// statusFor maps supervisor errors to HTTP status codes: lifecycle
// precondition failures are conflicts, spawn and bind failures are bad
// gateways, anything else is a bad request.
func statusFor(err error) int {
	var spawnErr *supervisor.SpawnError
	var bindErr *supervisor.BindError
	switch {
	case errors.Is(err, supervisor.ErrAlreadyRunning),
		errors.Is(err, supervisor.ErrNotRunning),
		errors.Is(err, supervisor.ErrDependencyNotRunning):
		return http.StatusConflict
	case errors.As(err, &spawnErr), errors.As(err, &bindErr):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

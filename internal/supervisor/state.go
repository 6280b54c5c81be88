package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/loykin/chainforge/internal/registry"
)

// State is the control plane's composite view used by the status API.
type State struct {
	NodeRunning    bool   `json:"node_running"`
	MinerRunning   bool   `json:"miner_running"`
	WalletRunning  bool   `json:"wallet_running"`
	GatewayRunning bool   `json:"gateway_running"`
	DataDir        string `json:"data_dir,omitempty"`
}

// State snapshots the registry in one critical section.
func (s *Supervisor) State() State {
	snap := s.reg.Snapshot()
	st := State{
		NodeRunning:    snap[registry.ServiceNode].Running,
		MinerRunning:   snap[registry.ServiceMiner].Running,
		WalletRunning:  snap[registry.ServiceWallet].Running,
		GatewayRunning: snap[registry.ServiceGateway].Running,
	}
	if nc, ok := snap[registry.ServiceNode].Config.(NodeConfig); ok {
		st.DataDir = nc.DataDir
	}
	return st
}

// ResetData removes the chain data directory. Refused while the node runs;
// the node holds the database open.
func (s *Supervisor) ResetData() (string, error) {
	if s.reg.Running(registry.ServiceNode) {
		return "", errors.New("cannot reset data while node is running; stop the node first")
	}

	dir := DefaultDataDir()
	if nc, ok := s.reg.Get(registry.ServiceNode).Config.(NodeConfig); ok && nc.DataDir != "" {
		dir = nc.DataDir
	}

	if _, err := os.Stat(dir); err == nil {
		if err := os.RemoveAll(dir); err != nil {
			return "", fmt.Errorf("remove data directory: %w", err)
		}
	}
	return fmt.Sprintf("Data directory removed: %s", dir), nil
}

// StartAll brings up the full stack in dependency order: node, then miner
// and wallet once the node API has had a moment to come up, then the
// gateway. Services that are already running are left alone.
func (s *Supervisor) StartAll(ctx context.Context) ([]string, error) {
	var msgs []string

	msg, err := s.StartNode(nil)
	switch {
	case err == nil:
		msgs = append(msgs, msg)
		// Give the node a moment to open its stratum and API sockets.
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return msgs, ctx.Err()
		}
	case errors.Is(err, ErrAlreadyRunning):
		msgs = append(msgs, "Node already running")
	default:
		return msgs, err
	}

	if msg, err := s.StartMiner(nil); err == nil {
		msgs = append(msgs, msg)
	} else if errors.Is(err, ErrAlreadyRunning) {
		msgs = append(msgs, "Miner already running")
	} else {
		return msgs, err
	}

	if msg, err := s.StartWallet(nil); err == nil {
		msgs = append(msgs, msg)
	} else if errors.Is(err, ErrAlreadyRunning) {
		msgs = append(msgs, "Wallet service already running")
	} else {
		return msgs, err
	}

	if msg, err := s.StartGateway(nil); err == nil {
		msgs = append(msgs, msg)
	} else if errors.Is(err, ErrAlreadyRunning) {
		msgs = append(msgs, "Gateway already running")
	} else {
		return msgs, err
	}

	return msgs, nil
}

// StopAll stops everything that runs, dependents before the node. Services
// that are already stopped are skipped silently.
func (s *Supervisor) StopAll() []string {
	var msgs []string
	for _, stop := range []func() (string, error){s.StopMiner, s.StopWallet, s.StopGateway, s.StopNode} {
		if msg, err := stop(); err == nil {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// Shutdown terminates every running service synchronously: dependents
// first, then the node, each given the grace period before a forced kill.
// It returns once the children are gone and the relay and monitor
// goroutines have drained, or when ctx expires.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	var pids []int
	order := []registry.Service{registry.ServiceMiner, registry.ServiceWallet, registry.ServiceNode}
	for _, svc := range order {
		rec, was := s.reg.EndRunning(svc)
		if !was {
			continue
		}
		if rec.PID > 0 {
			s.log.Info("shutting down service", "service", svc, "pid", rec.PID)
			terminateProcess(rec.PID)
			pids = append(pids, rec.PID)
		}
	}

	if rec, was := s.reg.EndRunning(registry.ServiceGateway); was && rec.Shutdown != nil {
		rec.Shutdown()
	}

	s.awaitExit(ctx, pids)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// awaitExit polls the signalled children for the grace period, then
// force-kills the survivors.
func (s *Supervisor) awaitExit(ctx context.Context, pids []int) {
	deadline := time.Now().Add(s.opts.GracePeriod)
	for time.Now().Before(deadline) && ctx.Err() == nil {
		alive := false
		for _, pid := range pids {
			if processAlive(pid) {
				alive = true
				break
			}
		}
		if !alive {
			return
		}
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
		}
	}
	for _, pid := range pids {
		if processAlive(pid) {
			s.log.Warn("force killing service", "pid", pid)
			killProcess(pid)
		}
	}
}

package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/loykin/chainforge/internal/event"
	"github.com/loykin/chainforge/internal/nodeapi"
	"github.com/loykin/chainforge/internal/registry"
)

// NodeStatus is the node's composite status: registry state plus whatever
// the node API reports. API fields stay nil while the API is unreachable.
type NodeStatus struct {
	Running     bool     `json:"running"`
	BlockHeight *uint64  `json:"block_height"`
	HashRate    *float64 `json:"hash_rate"`
	PeerCount   *uint32  `json:"peer_count"`
}

// StartNode launches the full node. Ports left over from a previous run
// are reclaimed first; the node's wallet API boots from the fixed
// development seed so the faucet is funded deterministically.
func (s *Supervisor) StartNode(cfg *NodeConfig) (string, error) {
	c := DefaultNodeConfig()
	if cfg != nil {
		c = *cfg
	}

	ok, depOK := s.reg.BeginStart(registry.ServiceNode)
	if !ok {
		return "", alreadyRunning(registry.ServiceNode)
	}
	_ = depOK // the node has no dependency

	reclaimPort(c.APIPort)
	reclaimPort(c.StratumPort)
	reclaimPort(DefaultWalletPort)
	s.settle(0)

	if err := os.MkdirAll(c.DataDir, 0o750); err != nil {
		s.reg.AbortStart(registry.ServiceNode)
		return "", &SpawnError{Service: registry.ServiceNode, Err: fmt.Errorf("create data directory: %w", err)}
	}

	cmd := exec.Command(s.opts.NodeBinary,
		"run_node",
		"--localnet",
		"--status", strconv.Itoa(c.APIPort),
		"--stratum", strconv.Itoa(c.StratumPort),
		"--data", c.DataDir,
		"--wallet", "hd",
		"--words", devWalletWords,
		"--wallet-enable-api",
		"--wallet-index",
		"--allow-mining-without-peers",
		"--test-mode-tx-weight",
		"--unsafe-mode", "privatenet",
	)

	pid, err := s.spawn(registry.ServiceNode, cmd, event.NodeLog, event.NodeLog)
	if err != nil {
		s.reg.AbortStart(registry.ServiceNode)
		return "", err
	}

	s.reg.CommitStart(registry.ServiceNode, pid, nil, c)
	s.recordStart(registry.ServiceNode, pid, fmt.Sprintf("api_port=%d", c.APIPort))
	s.log.Info("node started", "pid", pid, "api_port", c.APIPort, "stratum_port", c.StratumPort, "data_dir", c.DataDir)

	return fmt.Sprintf("Node started on port %d", c.APIPort), nil
}

// StopNode signals the node to terminate and clears its record immediately.
// The signal is fire and forget; the monitor observes the actual death.
func (s *Supervisor) StopNode() (string, error) {
	rec, was := s.reg.EndRunning(registry.ServiceNode)
	if !was {
		return "", notRunning(registry.ServiceNode)
	}
	if rec.PID > 0 {
		terminateProcess(rec.PID)
	}
	s.log.Info("node stop requested", "pid", rec.PID)
	return "Node stopped", nil
}

// NodeStatus reports the node's state, enriched with the block height from
// the node API when it answers. A running process with an unready API still
// reports running.
func (s *Supervisor) NodeStatus(ctx context.Context) NodeStatus {
	rec := s.reg.Get(registry.ServiceNode)
	st := NodeStatus{Running: rec.Running}
	if !rec.Running {
		return st
	}

	c := DefaultNodeConfig()
	if nc, ok := rec.Config.(NodeConfig); ok {
		c = nc
	}
	client := nodeapi.New(fmt.Sprintf("http://127.0.0.1:%d", c.APIPort))
	info, err := client.Status(ctx)
	if err != nil {
		return st
	}
	st.BlockHeight = info.BestBlockHeight
	peers := uint32(0) // localnet has no peers
	st.PeerCount = &peers
	return st
}

// NodeAPIBase returns the base URL of the node's HTTP API using the config
// captured at start, falling back to the defaults.
func (s *Supervisor) NodeAPIBase() string {
	rec := s.reg.Get(registry.ServiceNode)
	c := DefaultNodeConfig()
	if nc, ok := rec.Config.(NodeConfig); ok {
		c = nc
	}
	return fmt.Sprintf("http://127.0.0.1:%d", c.APIPort)
}

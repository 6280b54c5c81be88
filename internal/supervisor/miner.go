package supervisor

import (
	"fmt"
	"os/exec"
	"strconv"

	"github.com/loykin/chainforge/internal/event"
	"github.com/loykin/chainforge/internal/registry"
)

// MinerStatus is the miner's registry state. Hash rate is not derived yet.
// TODO: parse the hash rate from the miner-stats stream.
type MinerStatus struct {
	Running  bool     `json:"running"`
	HashRate *float64 `json:"hash_rate"`
}

// StartMiner launches the CPU miner against the node's stratum port. The
// node must already be running; the check happens at start time only.
func (s *Supervisor) StartMiner(cfg *MinerConfig) (string, error) {
	c := DefaultMinerConfig()
	if cfg != nil {
		c = *cfg
	}

	ok, depOK := s.reg.BeginStart(registry.ServiceMiner)
	if !ok {
		return "", alreadyRunning(registry.ServiceMiner)
	}
	if !depOK {
		return "", ErrDependencyNotRunning
	}

	cmd := exec.Command(s.opts.MinerBinary,
		"--algo", "sha256d",
		"--url", fmt.Sprintf("stratum+tcp://127.0.0.1:%d", c.StratumPort),
		"--coinbase-addr", c.Address,
		"--threads", strconv.Itoa(c.Threads),
	)

	// cpuminer prints stats to stderr, so that stream gets its own event.
	pid, err := s.spawn(registry.ServiceMiner, cmd, event.MinerLog, event.MinerStats)
	if err != nil {
		s.reg.AbortStart(registry.ServiceMiner)
		return "", err
	}

	s.reg.CommitStart(registry.ServiceMiner, pid, nil, c)
	s.recordStart(registry.ServiceMiner, pid, fmt.Sprintf("threads=%d", c.Threads))
	s.log.Info("miner started", "pid", pid, "threads", c.Threads, "address", c.Address)

	return fmt.Sprintf("Miner started with %d threads", c.Threads), nil
}

// StopMiner signals the miner to terminate and clears its record.
func (s *Supervisor) StopMiner() (string, error) {
	rec, was := s.reg.EndRunning(registry.ServiceMiner)
	if !was {
		return "", notRunning(registry.ServiceMiner)
	}
	if rec.PID > 0 {
		terminateProcess(rec.PID)
	}
	s.log.Info("miner stop requested", "pid", rec.PID)
	return "Miner stopped", nil
}

// MinerStatus reports the miner's registry state.
func (s *Supervisor) MinerStatus() MinerStatus {
	return MinerStatus{Running: s.reg.Running(registry.ServiceMiner)}
}

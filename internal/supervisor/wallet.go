package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/loykin/chainforge/internal/event"
	"github.com/loykin/chainforge/internal/registry"
)

// WalletStatus is the wallet service's registry state. Port is set only
// while the service runs.
type WalletStatus struct {
	Running bool `json:"running"`
	Port    *int `json:"port"`
}

// walletConfigJS renders the config module the wallet service loads from
// its working directory. The tx mining URL must point at the local node's
// mining endpoint for the private network to accept transactions.
func walletConfigJS(c WalletConfig) string {
	return fmt.Sprintf(`module.exports = {
  http_bind_address: 'localhost',
  http_port: %d,
  network: 'privatenet',
  server: '%s',
  txMiningUrl: 'http://localhost:8080/v1a/',
  seeds: {},
  allowPassphrase: false,
  confirmFirstAddress: false,
  tokenUid: '00',
  gapLimit: 20,
  connectionTimeout: 5000,
}
`, c.Port, c.FullnodeURL)
}

// StartWallet launches the headless wallet service. It regenerates
// config.js in the dist directory on every start so config changes take
// effect without a rebuild.
func (s *Supervisor) StartWallet(cfg *WalletConfig) (string, error) {
	c := DefaultWalletConfig()
	if cfg != nil {
		c = *cfg
	}

	ok, depOK := s.reg.BeginStart(registry.ServiceWallet)
	if !ok {
		return "", alreadyRunning(registry.ServiceWallet)
	}
	if !depOK {
		return "", ErrDependencyNotRunning
	}

	dist := s.opts.WalletDistDir
	if fi, err := os.Stat(dist); err != nil || !fi.IsDir() {
		s.reg.AbortStart(registry.ServiceWallet)
		return "", &SpawnError{Service: registry.ServiceWallet, Err: fmt.Errorf("wallet dist not found at %s", dist)}
	}

	reclaimPort(c.Port)
	s.settle(300 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dist, "config.js"), []byte(walletConfigJS(c)), 0o644); err != nil {
		s.reg.AbortStart(registry.ServiceWallet)
		return "", &SpawnError{Service: registry.ServiceWallet, Err: fmt.Errorf("write wallet config: %w", err)}
	}

	// config.js is resolved relative to the working directory, so the child
	// must run from the dist directory itself.
	cmd := exec.Command(s.opts.NodeRunner, filepath.Join(dist, "index.js"))
	cmd.Dir = dist

	pid, err := s.spawn(registry.ServiceWallet, cmd, event.WalletLog, event.WalletLog)
	if err != nil {
		s.reg.AbortStart(registry.ServiceWallet)
		return "", err
	}

	s.reg.CommitStart(registry.ServiceWallet, pid, nil, c)
	s.recordStart(registry.ServiceWallet, pid, fmt.Sprintf("port=%d", c.Port))
	s.log.Info("wallet service started", "pid", pid, "port", c.Port)

	return fmt.Sprintf("Wallet service started on port %d", c.Port), nil
}

// StopWallet signals the wallet service to terminate and clears its record.
func (s *Supervisor) StopWallet() (string, error) {
	rec, was := s.reg.EndRunning(registry.ServiceWallet)
	if !was {
		return "", notRunning(registry.ServiceWallet)
	}
	if rec.PID > 0 {
		terminateProcess(rec.PID)
	}
	s.log.Info("wallet service stop requested", "pid", rec.PID)
	return "Wallet service stopped", nil
}

// WalletStatus reports the wallet service's registry state.
func (s *Supervisor) WalletStatus() WalletStatus {
	rec := s.reg.Get(registry.ServiceWallet)
	st := WalletStatus{Running: rec.Running}
	if rec.Running {
		port := DefaultWalletPort
		if wc, ok := rec.Config.(WalletConfig); ok {
			port = wc.Port
		}
		st.Port = &port
	}
	return st
}

// WalletAPIBase returns the base URL of the running wallet service's API.
func (s *Supervisor) WalletAPIBase() string {
	rec := s.reg.Get(registry.ServiceWallet)
	c := DefaultWalletConfig()
	if wc, ok := rec.Config.(WalletConfig); ok {
		c = wc
	}
	return fmt.Sprintf("http://127.0.0.1:%d", c.Port)
}

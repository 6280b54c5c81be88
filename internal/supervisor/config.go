package supervisor

import (
	"os"
	"path/filepath"
	"time"

	"github.com/loykin/chainforge/internal/gateway"
	"github.com/loykin/chainforge/internal/logger"
)

// Development HD wallet seed (DO NOT use in production!). The node boots
// with this fixed seed so the embedded faucet wallet is funded and
// deterministic across local runs.
const devWalletWords = "avocado spot town typical traffic vault danger century property shallow divorce festival spend attack anchor afford rotate green audit adjust fade wagon depart level"

// DefaultRewardAddress receives coinbase rewards when no address is given.
const DefaultRewardAddress = "WXkMhVgRVmTXTVh47wauPKm1xcrW8Qf3Vb"

const (
	DefaultAPIPort     = 8080
	DefaultStratumPort = 8000
	DefaultWalletPort  = 8001
)

// NodeConfig configures the full node child process.
type NodeConfig struct {
	APIPort     int    `json:"api_port" mapstructure:"api_port"`
	StratumPort int    `json:"stratum_port" mapstructure:"stratum_port"`
	DataDir     string `json:"data_dir" mapstructure:"data_dir"`
}

func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		APIPort:     DefaultAPIPort,
		StratumPort: DefaultStratumPort,
		DataDir:     DefaultDataDir(),
	}
}

// MinerConfig configures the CPU miner child process.
type MinerConfig struct {
	StratumPort int    `json:"stratum_port" mapstructure:"stratum_port"`
	Address     string `json:"address" mapstructure:"address"`
	Threads     int    `json:"threads" mapstructure:"threads"`
}

func DefaultMinerConfig() MinerConfig {
	return MinerConfig{
		StratumPort: DefaultStratumPort,
		Address:     DefaultRewardAddress,
		Threads:     1,
	}
}

// WalletConfig configures the headless wallet service child process.
type WalletConfig struct {
	Port        int    `json:"port" mapstructure:"port"`
	FullnodeURL string `json:"fullnode_url" mapstructure:"fullnode_url"`
}

func DefaultWalletConfig() WalletConfig {
	return WalletConfig{
		Port:        DefaultWalletPort,
		FullnodeURL: "http://localhost:8080/v1a/",
	}
}

// Options wires the supervisor to its environment. Zero values fall back
// to the defaults below, so tests can construct a Supervisor with only the
// fields they care about.
type Options struct {
	// NodeBinary and MinerBinary are paths to the service executables.
	NodeBinary  string
	MinerBinary string
	// WalletDistDir is the wallet service's dist directory; it must contain
	// index.js and is where the generated config.js is written.
	WalletDistDir string
	// NodeRunner is the interpreter used to run the wallet dist entry point.
	NodeRunner string

	Gateway gateway.Config
	Log     logger.Config

	// GracePeriod bounds how long Shutdown waits between the graceful
	// signal and the forced kill.
	GracePeriod time.Duration
	// PortSettle is the pause after reclaiming ports before spawning.
	PortSettle time.Duration
}

func (o Options) withDefaults() Options {
	if o.NodeBinary == "" {
		o.NodeBinary = filepath.Join("binaries", "hathor-core")
	}
	if o.MinerBinary == "" {
		o.MinerBinary = filepath.Join("binaries", "cpuminer")
	}
	if o.WalletDistDir == "" {
		o.WalletDistDir = filepath.Join("wallet-dist", "dist")
	}
	if o.NodeRunner == "" {
		o.NodeRunner = "node"
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = 3 * time.Second
	}
	if o.PortSettle <= 0 {
		o.PortSettle = 500 * time.Millisecond
	}
	o.Gateway = o.Gateway.WithDefaults()
	return o
}

// DefaultDataDir returns the per-user data directory for chain state.
func DefaultDataDir() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join("chainforge", "data")
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "chainforge", "data")
}

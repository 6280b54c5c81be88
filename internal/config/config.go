package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/chainforge/internal/gateway"
	"github.com/loykin/chainforge/internal/logger"
	"github.com/loykin/chainforge/internal/supervisor"
)

// FileConfig represents the top-level TOML structure of the daemon config.
//
//	listen = "127.0.0.1:9400"
//	rpc_listen = "127.0.0.1:9401"
//	history = ["sqlite:///var/lib/chainforge/history.db"]
//
//	[node]
//	api_port = 8080
//
//	[gateway]
//	listen = "127.0.0.1:3001"
type FileConfig struct {
	Listen    string   `toml:"listen" mapstructure:"listen"`
	RPCListen string   `toml:"rpc_listen" mapstructure:"rpc_listen"`
	LogLevel  string   `toml:"log_level" mapstructure:"log_level"`
	History   []string `toml:"history" mapstructure:"history"`

	NodeBinary    string `toml:"node_binary" mapstructure:"node_binary"`
	MinerBinary   string `toml:"miner_binary" mapstructure:"miner_binary"`
	WalletDistDir string `toml:"wallet_dist_dir" mapstructure:"wallet_dist_dir"`
	NodeRunner    string `toml:"node_runner" mapstructure:"node_runner"`

	GracePeriod time.Duration `toml:"grace_period" mapstructure:"grace_period"`

	Node    supervisor.NodeConfig   `toml:"node" mapstructure:"node"`
	Miner   supervisor.MinerConfig  `toml:"miner" mapstructure:"miner"`
	Wallet  supervisor.WalletConfig `toml:"wallet" mapstructure:"wallet"`
	Gateway gateway.Config          `toml:"gateway" mapstructure:"gateway"`
	Log     logger.Config           `toml:"log" mapstructure:"log"`
}

// Default returns the built-in configuration used when no file is given.
func Default() FileConfig {
	return FileConfig{
		Listen:    "127.0.0.1:9400",
		RPCListen: "127.0.0.1:9401",
		LogLevel:  "info",
		Node:      supervisor.DefaultNodeConfig(),
		Miner:     supervisor.DefaultMinerConfig(),
		Wallet:    supervisor.DefaultWalletConfig(),
		Gateway:   gateway.Config{}.WithDefaults(),
	}
}

// Load reads a TOML config file and overlays it on the defaults.
func Load(path string) (FileConfig, error) {
	fc := Default()
	if path == "" {
		return fc, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return fc, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

// SupervisorOptions translates the file config into supervisor options.
func (fc FileConfig) SupervisorOptions() supervisor.Options {
	return supervisor.Options{
		NodeBinary:    fc.NodeBinary,
		MinerBinary:   fc.MinerBinary,
		WalletDistDir: fc.WalletDistDir,
		NodeRunner:    fc.NodeRunner,
		Gateway:       fc.Gateway,
		Log:           fc.Log,
		GracePeriod:   fc.GracePeriod,
	}
}

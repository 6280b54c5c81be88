package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	fc := Default()
	require.Equal(t, "127.0.0.1:9400", fc.Listen)
	require.Equal(t, "127.0.0.1:9401", fc.RPCListen)
	require.Equal(t, "info", fc.LogLevel)
	require.Equal(t, 8080, fc.Node.APIPort)
	require.Equal(t, "127.0.0.1:3001", fc.Gateway.Listen)
	require.Empty(t, fc.History)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	fc, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), fc)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	doc := `
listen = "127.0.0.1:9500"
log_level = "debug"
history = ["sqlite://file::memory:?cache=shared"]
node_binary = "/opt/hathor/hathor-core"
grace_period = "5s"

[node]
api_port = 18080

[gateway]
listen = "127.0.0.1:3101"
`
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	fc, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:9500", fc.Listen)
	require.Equal(t, "debug", fc.LogLevel)
	require.Equal(t, []string{"sqlite://file::memory:?cache=shared"}, fc.History)
	require.Equal(t, "/opt/hathor/hathor-core", fc.NodeBinary)
	require.Equal(t, 5*time.Second, fc.GracePeriod)
	require.Equal(t, 18080, fc.Node.APIPort)
	require.Equal(t, "127.0.0.1:3101", fc.Gateway.Listen)

	// Values the file does not mention keep their defaults.
	require.Equal(t, "127.0.0.1:9401", fc.RPCListen)
	require.Equal(t, 8000, fc.Node.StratumPort)
}

func TestSupervisorOptions(t *testing.T) {
	fc := Default()
	fc.NodeBinary = "/usr/bin/node-bin"
	fc.GracePeriod = 7 * time.Second

	opts := fc.SupervisorOptions()
	require.Equal(t, "/usr/bin/node-bin", opts.NodeBinary)
	require.Equal(t, 7*time.Second, opts.GracePeriod)
	require.Equal(t, fc.Gateway, opts.Gateway)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
	APIUrl     string
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(globalFlags),
		createStartCommand(globalFlags),
		createStopCommand(globalFlags),
		createStatusCommand(globalFlags),
		createStateCommand(globalFlags),
		createResetDataCommand(globalFlags),
		createQuickstartCommand(globalFlags),
		createQuickstopCommand(globalFlags),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "chainforge",
		Short: "Local blockchain development environment supervisor",
		Long: `Chainforge supervises a local blockchain development stack: the
fullnode, a CPU miner, the headless wallet service and a browser-facing
reverse proxy gateway.

Examples:
  chainforge serve                      # Start the control plane daemon
  chainforge start node                 # Start the fullnode via the daemon
  chainforge status node
  chainforge quickstart                 # Bring up the whole stack`,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.APIUrl, "api-url", "", "daemon API URL (default http://127.0.0.1:9400/api)")
	return root
}

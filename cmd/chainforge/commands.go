package main

import (
	"github.com/spf13/cobra"
)

func createStartCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "start <service>",
		Short:     "Start a service via the daemon",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"node", "miner", "wallet", "gateway"},
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := NewAPIClient(flags.APIUrl).StartService(args[0])
			if err != nil {
				return err
			}
			printJSON(raw)
			return nil
		},
	}
}

func createStopCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "stop <service>",
		Short:     "Stop a service via the daemon",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"node", "miner", "wallet", "gateway"},
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := NewAPIClient(flags.APIUrl).StopService(args[0])
			if err != nil {
				return err
			}
			printJSON(raw)
			return nil
		},
	}
}

func createStatusCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "status <service>",
		Short:     "Show one service's status",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"node", "miner", "wallet", "gateway"},
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := NewAPIClient(flags.APIUrl).ServiceStatus(args[0])
			if err != nil {
				return err
			}
			printJSON(raw)
			return nil
		},
	}
}

func createStateCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the composite state of all services",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := NewAPIClient(flags.APIUrl).State()
			if err != nil {
				return err
			}
			printJSON(raw)
			return nil
		},
	}
}

func createResetDataCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-data",
		Short: "Remove the chain data directory (node must be stopped)",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := NewAPIClient(flags.APIUrl).ResetData()
			if err != nil {
				return err
			}
			printJSON(raw)
			return nil
		},
	}
}

func createQuickstartCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "quickstart",
		Short: "Start the whole stack: node, miner, wallet service and gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := NewAPIClient(flags.APIUrl).Quickstart()
			if err != nil {
				return err
			}
			printJSON(raw)
			return nil
		},
	}
}

func createQuickstopCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "quickstop",
		Short: "Stop every running service, dependents first",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := NewAPIClient(flags.APIUrl).Quickstop()
			if err != nil {
				return err
			}
			printJSON(raw)
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/chainforge/internal/config"
	"github.com/loykin/chainforge/internal/event"
	"github.com/loykin/chainforge/internal/history"
	"github.com/loykin/chainforge/internal/history/factory"
	"github.com/loykin/chainforge/internal/logger"
	"github.com/loykin/chainforge/internal/metrics"
	"github.com/loykin/chainforge/internal/rpc"
	"github.com/loykin/chainforge/internal/server"
	"github.com/loykin/chainforge/internal/supervisor"
)

func createServeCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the control plane daemon",
		Long: `Run the control plane daemon: the REST control API, the JSON-RPC
tool endpoint, and the service supervisor. The daemon keeps running until
interrupted; on shutdown every child process is terminated, dependents
first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags.ConfigPath)
		},
	}
}

func runServe(configPath string) error {
	fc, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.NewDaemonLogger(parseLevel(fc.LogLevel))
	slog.SetDefault(log)

	if err := metrics.RegisterDefault(); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	bus := event.NewBus()
	if len(fc.History) > 0 {
		var sinks []history.Sink
		for _, dsn := range fc.History {
			sink, err := factory.NewSinkFromDSN(dsn)
			if err != nil {
				return fmt.Errorf("history sink %s: %w", dsn, err)
			}
			sinks = append(sinks, sink)
		}
		bus.SetHistorySinks(sinks...)
	}
	defer func() { _ = bus.Close() }()

	sup := supervisor.New(fc.SupervisorOptions(), bus, log)

	ctrl, err := server.NewServer(fc.Listen, "/api", sup)
	if err != nil {
		return fmt.Errorf("start control API: %w", err)
	}
	log.Info("control API listening", "addr", fc.Listen)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rpcSrv := rpc.NewServer(sup, log.With("component", "rpc"))
	rpcDone := make(chan error, 1)
	go func() { rpcDone <- rpcSrv.Serve(ctx, fc.RPCListen) }()
	log.Info("rpc endpoint listening", "addr", fc.RPCListen)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case err := <-rpcDone:
		if err != nil {
			log.Error("rpc endpoint failed", "err", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := sup.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", "err", err)
	}
	_ = ctrl.Shutdown(shutdownCtx)
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

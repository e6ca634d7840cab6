package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cuemby/hive/pkg/config"
	"github.com/cuemby/hive/pkg/loader"
	"github.com/cuemby/hive/pkg/log"
	"github.com/cuemby/hive/pkg/metrics"
	"github.com/cuemby/hive/pkg/registry"
	"github.com/cuemby/hive/pkg/rpc"
	"github.com/cuemby/hive/pkg/transport"
	"github.com/cuemby/hive/pkg/types"
)

// Version information (set via ldflags during build)
var (
	Version = "dev"
	Commit  = "unknown"
)

// Exit codes per the CLI surface contract: 0 success, 1 configuration
// error, 2 runtime error.
const (
	exitSuccess = 0
	exitConfig  = 1
	exitRuntime = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	err := rootCmd.Execute()
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitCodeFor(err)
}

// exitCodeFor classifies a top-level error into the CLI's exit code
// contract. A ConfigError or a LoadError (which always wraps a
// configuration-time failure building an instance) exits 1; anything else
// that escaped command execution is a runtime fault.
func exitCodeFor(err error) int {
	var configErr *types.ConfigError
	var loadErr *types.LoadError
	if errors.As(err, &configErr) || errors.As(err, &loadErr) {
		return exitConfig
	}
	return exitRuntime
}

var rootCmd = &cobra.Command{
	Use:     "hive",
	Short:   "Hive - a multi-tenant application container",
	Version: Version,
	Long: `Hive hosts isolated compute instances wired together by bridges
and exposed to the outside world through JSON-RPC interfaces.`,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("hive version %s\ncommit: %s\n", Version, Commit))
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)

	runCmd.Flags().String("config", "", "path to the configuration document")
	runCmd.Flags().String("verbosity", "info", "log level: debug, info, warn, error")
	runCmd.MarkFlagRequired("config")

	validateCmd.Flags().String("config", "", "path to the configuration document")
	validateCmd.MarkFlagRequired("config")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load a configuration and run the container until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		verbosity, _ := cmd.Flags().GetString("verbosity")

		log.Init(log.Config{Level: log.Level(verbosity)})
		logger := log.WithComponent("cmd")

		cfg, err := config.ParseFile(configPath)
		if err != nil {
			return err
		}

		mgr := registry.NewManager(registry.DemoRuntime{}, loader.NewFilesystemLoader())
		if err := mgr.Load(cfg); err != nil {
			return err
		}
		logger.Info().Strs("order", mgr.Order()).Msg("container loaded")

		if err := mgr.StartAll(); err != nil {
			return err
		}
		logger.Info().Msg("all instances started")

		fabric := rpc.NewBuilder(func(id string) (rpc.Callable, bool) { return mgr.InstanceByID(id) }, mgr.Endpoint())
		supervisor := transport.NewSupervisor(fabric.Build)
		if err := supervisor.StartAll(cfg.Interfaces); err != nil {
			return err
		}
		logger.Info().Int("count", len(cfg.Interfaces)).Msg("interfaces started")

		metricsServer := startMetricsServer(cfg.Metrics, logger)

		waitForSignal()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := supervisor.StopAll(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("interface shutdown reported an error")
		}
		if metricsServer != nil {
			_ = metricsServer.Shutdown(shutdownCtx)
		}
		return mgr.Shutdown()
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse and validate a configuration without running it",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.ParseFile(configPath)
		if err != nil {
			return err
		}
		if _, err := config.Validate(cfg); err != nil {
			return err
		}
		fmt.Println("configuration is valid")
		return nil
	},
}

// startMetricsServer serves the Prometheus scrape endpoint in the
// background when the configuration's [metrics] table enables it. Returns
// nil when metrics are not configured, leaving the container free of any
// extra listener.
func startMetricsServer(descriptor *types.MetricsDescriptor, logger zerolog.Logger) *http.Server {
	if descriptor == nil || !descriptor.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: descriptor.ListenAddr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	logger.Info().Str("addr", descriptor.ListenAddr).Msg("metrics endpoint serving")
	return server
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}

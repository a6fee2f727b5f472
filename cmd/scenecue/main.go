// Command scenecue serves ambient-context recommendations over HTTP and
// WebSocket.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/harunnryd/scenecue/pkg/logging"
	"github.com/harunnryd/scenecue/pkg/runner"
	"github.com/harunnryd/scenecue/pkg/scenecue"
)

var (
	configFile string
	envFile    string
	noBanner   bool
)

var rootCmd = &cobra.Command{
	Use:           "scenecue",
	Short:         "Ambient scene classifier for reading-mode recommendations",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP/WebSocket service",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "scenecue %s (%s)\n", runner.Version, runtime.Version())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before config; missing is fine")

	sf := serveCmd.Flags()
	sf.StringVarP(&configFile, "config", "c", "", "config file (yaml, json or toml)")
	sf.String("addr", "", "listen address, overrides server.addr")
	sf.String("mode", "", "push or poll, overrides mode")
	sf.BoolVar(&noBanner, "no-banner", false, "skip the startup banner")

	rootCmd.AddCommand(serveCmd, versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg, err := scenecue.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger := logging.InitLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	providers := scenecue.NewProviderRegistry()
	registerProviders(providers, logger)

	opts := scenecue.EngineOptions{
		Config:    cfg,
		Providers: providers,
		Logger:    logger,
	}
	if !noBanner {
		opts.Banner = cmd.ErrOrStderr()
	}
	engine, err := scenecue.NewEngine(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := engine.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info("shutdown_signal")
	if err := engine.Stop(); err != nil {
		logger.Error("shutdown_failed", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// Command intervue is the entry point for the intervue interview server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrWong99/intervue/internal/app"
	"github.com/MrWong99/intervue/internal/config"
	"github.com/MrWong99/intervue/internal/observe"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	v := viper.New()
	root := newRootCmd(v)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "intervue: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "intervue",
		Short:         "intervue streams interview audio and video into live AI assessment",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "config.yaml", "path to the YAML configuration file")
	root.PersistentFlags().String("log-level", "", "override server.log_level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "override server.log_format (json, text, pretty)")
	bindOverrides(v, root)

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			return serve(cmd.Context(), v, path)
		},
	}
	serve.Flags().String("listen", "", "override server.listen_addr")
	_ = v.BindPFlag(keyListenAddr, serve.Flags().Lookup("listen"))

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(v, path)
			if err != nil {
				return err
			}
			printStartupSummary(cmd.OutOrStdout(), cfg)
			fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
			return nil
		},
	}

	root.AddCommand(serve, validate)
	return root
}

// loadConfig reads the YAML file at path and applies environment and flag
// overrides on top.
func loadConfig(v *viper.Viper, path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found, copy configs/example.yaml to get started", path)
		}
		return nil, err
	}
	applyOverrides(v, cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serve(ctx context.Context, v *viper.Viper, configPath string) error {
	cfg, err := loadConfig(v, configPath)
	if err != nil {
		return err
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logs := newLogger(cfg.Server.LogFormat, cfg.Server.LogLevel)
	slog.SetDefault(logs.logger)

	slog.Info("intervue starting",
		"version", version,
		"config", configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"storage", cfg.Storage.Driver,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "intervue",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics, err := observe.NewMetrics(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg)

	providers, err := app.BuildProviders(cfg, reg, metrics)
	if err != nil {
		return err
	}

	printStartupSummary(os.Stdout, cfg)

	application, err := app.New(ctx, cfg, providers,
		app.WithMetrics(metrics),
		app.WithVersion(version),
		app.WithMetricsHandler(tel.Handler()),
	)
	if err != nil {
		return fmt.Errorf("initialise application: %w", err)
	}

	// ── Hot reload ────────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(configPath, func(prev, next *config.Config, _ config.ConfigDiff) {
		applyOverrides(v, prev)
		applyOverrides(v, next)
		d := config.Diff(prev, next)
		if d.Empty() {
			return
		}
		if d.LogLevelChanged {
			logs.SetLevel(d.NewLogLevel)
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		application.Reload(next, d)
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	} else {
		runErr = nil
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	slog.Info("stopping", "timeout", cfg.Server.ShutdownTimeout)
	if err := application.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("shutdown: %w", err))
	}
	slog.Info("goodbye")
	return runErr
}

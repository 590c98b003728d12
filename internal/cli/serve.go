package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/edgetether/tether/internal/config"
	"github.com/edgetether/tether/internal/server"
	"github.com/edgetether/tether/internal/telemetry"
)

const defaultConfigPath = "./configs/tether.yaml"

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the tether gate",
		Long: `Start the tether listeners.

The server will:
  - Proxy guarded origin traffic over HTTP, admitting or denying each request
  - Serve the Envoy ext_authz Authorization service over gRPC
  - Serve health endpoints for probes
  - Load configuration from file, environment variables, and command-line flags

Configuration precedence (highest to lowest):
  1. Command-line flags
  2. Environment variables (TETHER_*)
  3. Configuration file`,
		RunE: runServe,
	}

	// One flag per config leaf
	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Determine config file path
	configPath := configFile
	if configPath == "" {
		configPath = os.Getenv("TETHER_CONFIG")
	}
	if configPath == "" {
		// The default path is optional; absent means env and flags only
		configPath = defaultConfigPath
		if _, err := os.Stat(configPath); err != nil {
			configPath = ""
		}
	}

	// 2. Load configuration (file + env vars + flags)
	loader, err := config.NewLoaderWithFlags(configPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg, err := loader.Get()
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	// 3. Build components from config
	provider := config.NewProvider(cfg)
	logger := provider.Logger()
	slog.SetDefault(logger)

	// 4. Initialize tracing
	shutdownTracing, err := telemetry.Init(ctx, "tether", provider.TelemetryConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	// 5. Assemble and start the server
	serverCfg, err := provider.ServerConfig()
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	srv := server.New(serverCfg)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	fmt.Println("tether is running")
	if addr := srv.HTTPAddr(); addr != "" {
		fmt.Printf("  HTTP (origin proxy): %s -> %s\n", addr, cfg.Origin.URL)
	}
	if addr := srv.GRPCAddr(); addr != "" {
		fmt.Printf("  gRPC (ext_authz):    %s\n", addr)
	}
	if addr := srv.AdminAddr(); addr != "" {
		fmt.Printf("  Admin (health):      %s\n", addr)
	}
	if configPath != "" {
		fmt.Printf("  Config:              %s\n", configPath)
	}

	// 6. Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")

	// 7. Graceful shutdown
	if err := srv.Stop(ctx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}

	fmt.Println("Shutdown complete")
	return nil
}

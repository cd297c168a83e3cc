package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unity-mcp/unity-mcp-bridge/internal/adapter/inbound/mcpserver"
	"github.com/unity-mcp/unity-mcp-bridge/internal/adapter/inbound/tcp"
	"github.com/unity-mcp/unity-mcp-bridge/internal/adapter/outbound/discovery"
	"github.com/unity-mcp/unity-mcp-bridge/internal/config"
	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
	"github.com/unity-mcp/unity-mcp-bridge/internal/handlers"
	"github.com/unity-mcp/unity-mcp-bridge/internal/port/outbound"
	"github.com/unity-mcp/unity-mcp-bridge/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bridge server",
	Long: `Start the Unity MCP bridge.

The bridge serves MCP over stdio toward the LLM host while accepting Unity
editor connections over TCP. A single UDP announcement at startup tells
editors already running on the LAN where to connect.

Examples:
  # Start with config file settings
  unity-mcp-bridge serve

  # Start on an ephemeral port, reachable from other machines
  unity-mcp-bridge serve --port 0 --bind-all

  # Start with a specific config file
  unity-mcp-bridge --config /path/to/unity-mcp-bridge.yaml serve`,
	RunE: runServe,
}

var (
	devMode bool
	bindAll bool
	tcpPort int
)

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging)")
	serveCmd.Flags().BoolVar(&bindAll, "bind-all", false, "Bind the TCP listener to 0.0.0.0 instead of the configured host")
	serveCmd.Flags().IntVar(&tcpPort, "port", 0, "TCP port for editor connections (0 = ephemeral)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration (without validation, so CLI flags can override first)
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if devMode {
		cfg.DevMode = true
	}
	if bindAll {
		cfg.TCP.BindAll = true
	}
	// Changed distinguishes an explicit --port 0 (ephemeral) from no flag.
	if cmd.Flags().Changed("port") {
		cfg.TCP.Port = tcpPort
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Create signal context for graceful shutdown.
	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop() // Restore default: next Ctrl+C = immediate exit.
	}()

	// Setup logger to stderr (stdout is reserved for the MCP stream).
	logLevel := parseLogLevel(cfg.Log.Level)
	if cfg.DevMode {
		logLevel = slog.LevelDebug // DevMode always forces debug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	logger.Debug("log level configured", "level", cfg.Log.Level, "effective", logLevel.String())

	// Log config file used if any
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("unity-mcp-bridge stopped")
	return nil
}

// run wires the hub, router, handler registry, TCP listener, discovery
// announcer, and MCP endpoint together, then serves until the context is
// cancelled or the MCP host closes stdin.
func run(ctx context.Context, cfg *config.BridgeConfig, logger *slog.Logger) error {
	hub := service.NewHub(logger, service.WithIDPrefix(cfg.Client.IDPrefix))
	defer func() { _ = hub.Close() }()

	router := service.NewRouter(hub, cfg.Request.TimeoutDuration(), logger)
	registry := service.NewRegistry(hub, logger)
	if err := handlers.Bootstrap(registry, router, cfg.Handlers.Manifest); err != nil {
		return fmt.Errorf("failed to register handlers: %w", err)
	}
	logger.Info("handlers registered",
		"commands", len(registry.Commands()),
		"resources", len(registry.Resources()),
	)

	// Editor lifecycle events are logged for operators; nothing else in the
	// bridge process consumes the subscription.
	events, unsubscribe := hub.Subscribe()
	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		for ev := range events {
			switch {
			case ev.Err != nil:
				logger.Warn("client event", "kind", ev.Kind, "clientId", ev.ClientID, "error", ev.Err)
			case ev.Kind == bridge.EventClientMessage:
				logger.Debug("client event", "kind", ev.Kind, "clientId", ev.ClientID)
			default:
				logger.Info("client event", "kind", ev.Kind, "clientId", ev.ClientID)
			}
		}
	}()
	defer func() {
		unsubscribe()
		<-eventsDone
	}()

	listener := tcp.NewListener(hub,
		tcp.WithAddr(cfg.TCP.ListenAddr()),
		tcp.WithLogger(logger),
	)
	if err := listener.Listen(); err != nil {
		return fmt.Errorf("failed to bind TCP listener: %w", err)
	}
	defer func() { _ = listener.Close() }()

	// With tcp.port=0 the kernel picks the port, so the announcement must
	// advertise the bound address rather than the configured one.
	boundPort := cfg.TCP.Port
	if addr, ok := listener.Addr().(*net.TCPAddr); ok {
		boundPort = addr.Port
	}

	var announcer outbound.Announcer
	if cfg.Discovery.Enabled {
		broadcaster := discovery.NewBroadcaster(cfg.TCP.Host, boundPort,
			cfg.Discovery.BroadcastPort(boundPort), Version, logger)
		announcer = broadcaster
		if err := broadcaster.Announce(ctx, "startup"); err != nil {
			// Editors retry their connection on their own; a lost
			// announcement only delays the reconnect.
			logger.Warn("startup announcement failed", "error", err)
		}
	}

	clients := service.NewClientTools(hub, announcer, cfg.Client.ListWaitDuration(), logger)

	serveErr := make(chan error, 2)
	go func() { serveErr <- listener.Serve(ctx) }()

	srv := mcpserver.NewServer(registry, clients,
		mcpserver.WithServerInfo("unity-mcp-bridge", Version),
		mcpserver.WithLogger(logger),
	)
	go func() { serveErr <- srv.ServeStdio(ctx) }()

	logger.Info("bridge started",
		"tcp_addr", listener.Addr().String(),
		"discovery_enabled", cfg.Discovery.Enabled,
		"request_timeout", cfg.Request.TimeoutDuration().String(),
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil && ctx.Err() == nil {
			return err
		}
		// A nil error here means the MCP host closed stdin; shut down.
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/unity-mcp/unity-mcp-bridge/internal/adapter/outbound/discovery"
	"github.com/unity-mcp/unity-mcp-bridge/internal/config"
)

var announceCmd = &cobra.Command{
	Use:   "announce",
	Short: "Send a one-shot discovery announcement",
	Long: `Send a single UDP discovery announcement without starting the bridge.

Useful for checking that editors on the LAN can hear the broadcast
(firewalls permitting) before digging into connection problems. The
announcement advertises the configured TCP endpoint; editors that receive
it will try to connect there.`,
	RunE: runAnnounce,
}

var announceTarget string

func init() {
	announceCmd.Flags().StringVar(&announceTarget, "target", "", "announce to a specific host:port instead of broadcasting")
	rootCmd.AddCommand(announceCmd)
}

func runAnnounce(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	var opts []discovery.Option
	if announceTarget != "" {
		opts = append(opts, discovery.WithTarget(announceTarget))
	}
	broadcastPort := cfg.Discovery.BroadcastPort(cfg.TCP.Port)
	broadcaster := discovery.NewBroadcaster(cfg.TCP.Host, cfg.TCP.Port,
		broadcastPort, Version, logger, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := broadcaster.Announce(ctx, "startup"); err != nil {
		return fmt.Errorf("announcement failed: %w", err)
	}

	if announceTarget != "" {
		fmt.Printf("announced %s:%d to %s\n", cfg.TCP.Host, cfg.TCP.Port, announceTarget)
	} else {
		fmt.Printf("announced %s:%d on UDP broadcast port %d\n", cfg.TCP.Host, cfg.TCP.Port, broadcastPort)
	}
	return nil
}

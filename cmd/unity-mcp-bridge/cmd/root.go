// Package cmd provides the CLI commands for the Unity MCP bridge.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/unity-mcp/unity-mcp-bridge/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "unity-mcp-bridge",
	Short: "Unity MCP Bridge - MCP server for Unity editors",
	Long: `Unity MCP Bridge connects LLM hosts to running Unity editors.

It speaks Model Context Protocol (MCP) over stdio toward the host and
newline-delimited JSON over TCP toward Unity editor instances, routing
tool calls to the active editor and returning the editor's responses.

Quick start:
  1. Add the bridge to your MCP host config (command: unity-mcp-bridge serve)
  2. Open a Unity project with the bridge package installed

Configuration:
  Config is loaded from unity-mcp-bridge.yaml in the current directory,
  $HOME/.unity-mcp-bridge/, or /etc/unity-mcp-bridge/.

  Environment variables can override config values with the UNITY_MCP_ prefix.
  Example: UNITY_MCP_TCP_PORT=27200

Commands:
  serve       Start the bridge server
  announce    Send a one-shot discovery announcement
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./unity-mcp-bridge.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}

package main

import "github.com/unity-mcp/unity-mcp-bridge/cmd/unity-mcp-bridge/cmd"

func main() {
	cmd.Execute()
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "urlq",
		Short: "Server-driven URL query-string state synchronization",
		Long: `urlq keeps application state in the URL query string.

The sync server owns the state machine: typed parsing, write
coalescing, throttle/debounce, and history reconciliation all run
server-side. Connected pages are thin clients that mirror the
address bar over a WebSocket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		canonCmd(),
		initCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-go/vstore/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╦  ╦┌─┐┌┬┐┌─┐┬─┐┌─┐
  ╚╗╔╝└─┐ │ │ │├┬┘├┤
   ╚╝ └─┘ ┴ └─┘┴└─└─┘
`

func main() {
	if err := rootCmd().Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vstore",
		Short: "Observable value stores over HTTP and WebSocket",
		Long: `vstore serves named observable stores.

Clients read and replace values over HTTP and subscribe to
changes over WebSocket. Features include:

  • Writable stores with optional persistence (file, S3)
  • Read-only stores that follow JSON, YAML or TOML files
  • Prometheus metrics and OpenTelemetry tracing`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		serveCmd(),
		initCmd(),
		getCmd(),
		setCmd(),
		watchCmd(),
		versionCmd(),
	)
	return cmd
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

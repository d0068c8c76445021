package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags "-X main.Version=...".
var Version = "0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mirador-yield",
	Short: "Conversational manufacturing diagnostics",
	Long: `mirador-yield answers yield, SPC, failure-pattern and 5-Whys questions
for production lines. The serve command exposes the operations over gRPC and
JSON/HTTP; the mcp command exposes them as Model Context Protocol tools.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("MIRADOR_YIELD_CONFIG"), "Path to configuration file")
	rootCmd.AddCommand(serveCmd, mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

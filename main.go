package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "discograph",
		Short: "Explore the social graph of artists and labels",
		Long: `discograph builds bounded networks of artists and labels from a relation
store and serves them over HTTP and MCP.

Examples:
  discograph migrate
  discograph bootstrap --relations relations.jsonl.gz --entities entities.jsonl.gz
  discograph network artist 12 --degree 2
  discograph serve`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the YAML config file (default config.yaml; missing file means env and defaults)")
	rootCmd.Version = Version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

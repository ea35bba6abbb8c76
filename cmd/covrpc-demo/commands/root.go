// Package commands implements the covrpc-demo CLI commands.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "covrpc-demo",
	Short: "covrpc loopback demo harness",
	Long: `covrpc-demo drives the untyped RPC engine over an in-process loopback
transport. It exercises the echo and multi-handler fanout demos end to end,
without requiring RDMA hardware.

Use "covrpc-demo [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. It is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/covrpc/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(echoCmd)
	rootCmd.AddCommand(fanoutCmd)
	rootCmd.AddCommand(benchCmd)
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
	os.Exit(1)
}

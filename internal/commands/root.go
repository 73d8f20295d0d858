package commands

import (
	"github.com/spf13/cobra"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "crypto-pulse",
	Short: "Cryptocurrency market-data aggregation backend",
	Long: `A cryptocurrency market-data backend built with Go.

Features:
• Provider gateway relaying listings, quotes, metadata and global metrics
• Aggregated in-memory snapshot refreshed on a timer (live or demo data)
• Automatic fallback to synthesized data on provider or network failure
• WebSocket snapshot stream for browser clients
• Optional Redis snapshot mirror and NATS snapshot distribution`,
	Version: "1.0.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crypto-pulse/internal/market"
	"github.com/crypto-pulse/pkg/config"
	"github.com/crypto-pulse/pkg/logger"
)

var (
	fetchLimit   int
	fetchConvert string
	fetchTimeout time.Duration
)

// fetchCmd runs one aggregation pass against the configured gateway and
// prints the resulting snapshot. With no gateway reachable the snapshot
// degrades to demo data, which makes this a handy connectivity check.
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run a single aggregation pass and print the snapshot",
	RunE:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().IntVar(&fetchLimit, "limit", 0, "Number of assets to request")
	fetchCmd.Flags().StringVar(&fetchConvert, "convert", "", "Convert currency")
	fetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", 30*time.Second, "Overall timeout")
}

func runFetch(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Printf("Note: .env file not loaded: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if fetchLimit > 0 {
		cfg.Market.ListingLimit = fetchLimit
	}
	if fetchConvert != "" {
		cfg.Market.ConvertCurrency = fetchConvert
	}

	// Keep stdout clean for the snapshot JSON
	cfg.Logging.Output = "stderr"
	if !verbose {
		cfg.Logging.Level = "warn"
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	client := market.NewClient(cfg.Market.GatewayURL, cfg.Market.RequestTimeout, log)
	synth := market.NewSynthesizer(cfg.Market.ConvertCurrency)
	aggregator := market.NewAggregator(client, synth, &cfg.Market, log)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	snap := aggregator.Refresh(ctx)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(snap)
}

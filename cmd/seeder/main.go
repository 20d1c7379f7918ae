package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cadosfrit/sensor-events/internal/logging"
	"github.com/cadosfrit/sensor-events/internal/seeder"
)

var (
	url            string
	strategy       string
	topologyPath   string
	count          int
	batchSize      int
	duplicateRatio float64
	sentinelRatio  float64
	timeSpread     time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "seeder",
	Short: "Generate and submit fake sensor telemetry",
	Long: `seeder generates realistic sensor event batches from a plant topology
and posts them to a running sensor-events service. Duplicate and sentinel
ratios shape the batches so every ingestion path gets exercised.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&url, "url", "http://localhost:8080", "base URL of the sensor-events service")
	rootCmd.Flags().StringVar(&strategy, "strategy", "simple", "ingestion strategy: simple or partitioned")
	rootCmd.Flags().StringVar(&topologyPath, "topology", "", "plant topology YAML file (default: built-in demo plant)")
	rootCmd.Flags().IntVar(&count, "count", 10000, "total number of events to submit")
	rootCmd.Flags().IntVar(&batchSize, "batch-size", 500, "events per batch")
	rootCmd.Flags().Float64Var(&duplicateRatio, "duplicate-ratio", 0.05, "fraction of events repeating an id within a batch")
	rootCmd.Flags().Float64Var(&sentinelRatio, "sentinel-ratio", 0.1, "fraction of events with an unknown defect count")
	rootCmd.Flags().DurationVar(&timeSpread, "time-spread", 24*time.Hour, "scatter event times over this trailing window")
}

func run(cmd *cobra.Command, args []string) error {
	logger := logging.New(logging.ParseLevel("info"), "text")

	topology := seeder.DefaultTopology()
	if topologyPath != "" {
		loaded, err := seeder.LoadTopology(topologyPath)
		if err != nil {
			return err
		}
		topology = loaded
	}

	generator := seeder.NewGenerator(topology, seeder.GeneratorConfig{
		DuplicateRatio: duplicateRatio,
		SentinelRatio:  sentinelRatio,
		TimeSpread:     timeSpread,
	})

	runner := seeder.NewRunner(generator, seeder.RunnerConfig{
		URL:       url,
		Strategy:  strategy,
		Count:     count,
		BatchSize: batchSize,
	}, logger)

	return runner.Run(cmd.Context())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

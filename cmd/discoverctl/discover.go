package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"roadtrip-server/models"
	"roadtrip-server/services"
	"roadtrip-server/utils/config"
)

var (
	discoverLat      float64
	discoverLon      float64
	discoverCategory string
	discoverStrategy string
	discoverMax      int
	discoverTimeout  time.Duration
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover POIs around a position",
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, err := models.ParseStrategy(discoverStrategy)
		if err != nil {
			return err
		}
		req := models.DiscoveryRequest{
			Latitude:   discoverLat,
			Longitude:  discoverLon,
			Category:   discoverCategory,
			Strategy:   strategy,
			MaxResults: discoverMax,
		}
		return runCycle(cmd.Context(), func(ctx context.Context, e *services.Engine) (models.DiscoveryResult, error) {
			return e.DiscoverPOIs(ctx, req)
		})
	},
}

var lostLakeCmd = &cobra.Command{
	Use:   "lost-lake",
	Short: "Run the fixed-location diagnostic at Lost Lake, Oregon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCycle(cmd.Context(), func(ctx context.Context, e *services.Engine) (models.DiscoveryResult, error) {
			return e.DiscoverLostLake(ctx)
		})
	},
}

func runCycle(parent context.Context, run func(context.Context, *services.Engine) (models.DiscoveryResult, error)) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, discoverTimeout)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	stack, err := services.NewStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close(context.Background())

	engine := stack.NewEngine("discoverctl")
	if err := engine.StartSession(ctx); err != nil {
		return err
	}
	defer engine.EndSession(context.Background())

	result, err := run(ctx, engine)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	printSummary(result)
	return nil
}

func printSummary(result models.DiscoveryResult) {
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	status := green("✓ " + string(result.Outcome))
	switch {
	case result.Outcome == models.StateSoftFailed:
		status = red("✗ " + string(result.Outcome))
	case result.FallbackUsed:
		status = yellow("! " + string(result.Outcome))
	}
	fmt.Fprintf(os.Stderr, "%s %d POIs via %s (requested %s) in %v %s\n",
		status, len(result.POIs), result.StrategyUsed, result.RequestedStrategy,
		result.ResponseTime.Round(time.Millisecond), gray(fmt.Sprintf("radius %.0f km", result.RadiusKm)))
}

func init() {
	discoverCmd.Flags().Float64Var(&discoverLat, "lat", services.LostLakeLatitude, "Latitude")
	discoverCmd.Flags().Float64Var(&discoverLon, "lon", services.LostLakeLongitude, "Longitude")
	discoverCmd.Flags().StringVar(&discoverCategory, "category", "attraction", "POI category")
	discoverCmd.Flags().StringVar(&discoverStrategy, "strategy", "HYBRID", "LOCAL_ONLY, REMOTE_ONLY, LOCAL_FIRST or HYBRID")
	discoverCmd.Flags().IntVar(&discoverMax, "max", services.DefaultMaxResults, "Maximum results (capped at 10)")
	rootCmd.PersistentFlags().DurationVar(&discoverTimeout, "timeout", 30*time.Second, "Overall timeout including backend setup")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(lostLakeCmd)
}

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool

	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	buildVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tripforge",
		Short: "Tripforge - resilient multi-day itinerary generation",
		Long: `Tripforge generates day-by-day travel itineraries with a text generation
service and keeps going when that service misbehaves.

Features:
  - Per-day generation of lodging, dining, transport and attractions
  - Retry policies per error category with per-module circuit breakers
  - Reference data fallback for days that cannot be generated
  - Segmented generation for long trips
  - Budget and comfort variants generated concurrently
  - Rego guardrail review and a SQLite plan archive`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default ./tripforge.yaml when present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newPoliciesCommand())

	return rootCmd
}

package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tripforge/tripforge/pkg/config"
)

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a tripforge workspace",
		Long: `Initialize a workspace with a default configuration file, the reference data
directory used for fallback days, and the SQLite plan archive.`,
		Example: `  # Initialize in the current directory
  tripforge init

  # Initialize somewhere else, replacing an existing config
  tripforge init --config trips/tripforge.yaml --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			path := configPath
			if path == "" {
				path = defaultConfigFile
			}
			base := filepath.Dir(path)

			log.Info().Str("config", path).Bool("force", force).Msg("Initializing workspace")

			cfg := config.Default()
			if err := cfg.Save(path, force); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Wrote configuration: %s\n", path)

			refDir := filepath.Join(base, cfg.Reference.Dir)
			if err := os.MkdirAll(refDir, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", refDir, err)
			}
			fmt.Fprintf(out, "✓ Created directory: %s\n", refDir)

			dbPath := filepath.Join(base, cfg.Store.Path)
			store, err := openStoreAt(ctx, dbPath)
			if err != nil {
				return err
			}
			if err := store.Close(); err != nil {
				return fmt.Errorf("failed to close store: %w", err)
			}
			fmt.Fprintf(out, "✓ Initialized plan archive: %s\n", dbPath)

			fmt.Fprintf(out, "\nSet %s and run 'tripforge plan' to generate a trip.\n", config.EnvAPIKey)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")
	return cmd
}

package commands

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tripforge/tripforge/pkg/config"
)

func newValidateCommand() *cobra.Command {
	var requestPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration, policies and a plan request",
		Example: `  tripforge validate
  tripforge validate --config tripforge.yaml --request trip.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			cfg, err := loadConfig()
			if err != nil {
				var verrs config.ValidationErrors
				if errors.As(err, &verrs) {
					for _, e := range verrs {
						fmt.Fprintf(out, "✗ %s\n", e.Error())
					}
					return fmt.Errorf("configuration has %d problem(s)", len(verrs))
				}
				return err
			}
			fmt.Fprintf(out, "✓ Configuration is valid (%d variants)\n", len(cfg.ResolvedVariants()))

			ws := &workspace{cfg: cfg, logger: log.Logger}
			engine, err := ws.policyEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()
			fmt.Fprintf(out, "✓ %d policies compiled\n", len(engine.ListPolicies()))

			if requestPath != "" {
				req, err := buildRequest(requestFlags{file: requestPath}, func(string) bool { return false })
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ Request is valid: %s, %d days\n", req.Destination, req.Days)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&requestPath, "request", "r", "", "plan request file to validate")
	return cmd
}

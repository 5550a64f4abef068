package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newPoliciesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List the guardrail policies applied to plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ws := &workspace{cfg: cfg, logger: log.Logger}
			engine, err := ws.policyEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer engine.Close()

			summaries := engine.Summaries()
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), summaries)
			}
			printPolicies(cmd.OutOrStdout(), summaries)
			return nil
		},
	}
}

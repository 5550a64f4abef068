package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tripforge/tripforge/pkg/itinerary"
	"github.com/tripforge/tripforge/pkg/llm"
	"github.com/tripforge/tripforge/pkg/planner"
	"github.com/tripforge/tripforge/pkg/reference"
	"github.com/tripforge/tripforge/pkg/stores"
	"github.com/tripforge/tripforge/pkg/telemetry"
)

func newPlanCommand() *cobra.Command {
	var (
		flags   requestFlags
		outFile string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate itinerary variants for a trip",
		Long: `Generate one itinerary per configured variant (budget and comfort by default).

Every day is generated per dimension. Failed calls are retried according to
their error category; days that still fail fall back to reference data for the
destination. Usable variants are reviewed by the guardrail policies and, when
store.path is set, the request and its variants are archived.`,
		Example: `  # Plan from a request file
  tripforge plan --request trip.yaml

  # Plan inline and save the full result
  tripforge plan --destination Lisbon --start 2025-06-01 --days 5 --budget 1500 --out lisbon.json

  # Print the result as JSON
  tripforge plan --request trip.yaml --json`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			req, err := buildRequest(flags, cmd.Flags().Changed)
			if err != nil {
				return err
			}

			ws, err := openWorkspace()
			if err != nil {
				return err
			}
			defer ws.Close()

			op := telemetry.StartOperation(ws.tel.WithContext(cmd.Context()), "cli.plan",
				telemetry.AttrDestination.String(req.Destination),
				telemetry.AttrTripDays.Int(req.Days),
			)
			defer func() { op.End(err) }()
			ctx := op.Ctx
			logger := op.Logger.NewComponentLogger("cli")
			logger.Infof("Generating %d-day plan for %s", req.Days, req.Destination)

			if !jsonOutput {
				ws.tel.Events.Subscribe(warningPrinter(cmd.ErrOrStderr()), telemetry.FilterByLevel(telemetry.EventLevelWarning))
			}

			client, err := llm.New(ctx, ws.cfg.LLM, ws.logger)
			if err != nil {
				return fmt.Errorf("failed to create text generator: %w", err)
			}
			defer client.Close()

			files := reference.NewFileSource(ws.cfg.Reference.Dir, ws.logger)
			defer files.Close()
			if ws.cfg.Reference.Watch {
				if err := files.Watch(ctx); err != nil {
					logger.WithError(err).Warn("Failed to watch reference data")
				}
			}

			deps := planner.Dependencies{
				Generator: client,
				Provider:  client.Provider(),
				Reference: files,
				Telemetry: ws.tel,
			}

			var social itinerary.SocialSource
			if len(ws.cfg.Reference.ExcerptPages) > 0 {
				social = reference.NewPageSource(ws.cfg.Reference.ExcerptPages, ws.logger,
					reference.WithSelector(ws.cfg.Reference.ExcerptSelector),
					reference.WithMaxExcerpts(ws.cfg.Reference.MaxExcerpts),
				)
			}
			deps.Social = social

			store, err := ws.openStore(ctx)
			if err != nil {
				return err
			}
			if store != nil {
				ws.closeLater(store)
				ws.tel.Events.Subscribe(stores.EventRecorder(store, ws.logger), nil)
				deps.Archive = store
			}

			engine, err := ws.policyEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()
			if ws.cfg.Policies.Watch && len(ws.cfg.Policies.Paths) > 0 {
				if err := engine.Watch(ctx); err != nil {
					logger.WithError(err).Warn("Failed to watch policies")
				}
			}
			deps.Reviewer = engine

			p, err := planner.Build(ws.cfg, deps)
			if err != nil {
				return err
			}

			res, planErr := p.Plan(ctx, req)
			if res != nil {
				logger.WithRequestID(res.RequestID).Infof("Plan finished in %s with %d usable variant(s)",
					op.Timer.Duration().Round(time.Millisecond), res.Usable())
				if outFile != "" {
					if err := writeResult(outFile, res); err != nil {
						return err
					}
				}
				if jsonOutput {
					if err := printJSON(cmd.OutOrStdout(), res); err != nil {
						return err
					}
				} else {
					printResult(cmd.OutOrStdout(), res)
				}
			}
			return planErr
		},
	}

	cmd.Flags().StringVarP(&flags.file, "request", "r", "", "plan request file (YAML or JSON)")
	cmd.Flags().StringVarP(&flags.destination, "destination", "d", "", "destination")
	cmd.Flags().StringVar(&flags.origin, "origin", "", "origin, used for flights")
	cmd.Flags().StringVar(&flags.start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&flags.days, "days", 3, "trip length in days")
	cmd.Flags().Float64Var(&flags.budget, "budget", 0, "total budget (0 for none)")
	cmd.Flags().IntVar(&flags.travelers, "travelers", 1, "number of travelers")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write the full result as JSON to this file")

	return cmd
}

func writeResult(path string, res *planner.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()
	if err := printJSON(f, res); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

// warningPrinter echoes warning and error events, such as fallback days and discarded
// variants, while a plan runs.
func warningPrinter(w io.Writer) telemetry.EventSubscriber {
	return func(e telemetry.Event) {
		fmt.Fprintf(w, "! %s\n", e.Message)
	}
}

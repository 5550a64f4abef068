package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tripforge/tripforge/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived plan requests",
		Example: `  tripforge history --limit 10
  tripforge history --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := openWorkspace()
			if err != nil {
				return err
			}
			defer ws.Close()

			store, err := ws.requireStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			reqs, err := store.ListPlanRequests(ctx, limit, offset)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), reqs)
			}
			printRequests(cmd.OutOrStdout(), reqs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of requests")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of requests to skip")
	return cmd
}

func newShowCommand() *cobra.Command {
	var withEvents bool

	cmd := &cobra.Command{
		Use:   "show <request-id>",
		Short: "Show an archived plan request and its variants",
		Args:  cobra.ExactArgs(1),
		Example: `  tripforge show 3f1c... --events`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := openWorkspace()
			if err != nil {
				return err
			}
			defer ws.Close()

			store, err := ws.requireStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			id := args[0]
			req, err := store.GetPlanRequest(ctx, id)
			if err != nil {
				if errors.Is(err, stores.ErrNotFound) {
					return fmt.Errorf("plan request %s not found", id)
				}
				return err
			}
			variants, err := store.ListVariants(ctx, id)
			if err != nil {
				return err
			}

			var events []*stores.Event
			if withEvents {
				events, err = store.GetEvents(ctx, stores.EventQuery{RequestID: &id})
				if err != nil {
					return err
				}
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), struct {
					Request  *stores.PlanRequest   `json:"request"`
					Variants []*stores.PlanVariant `json:"variants"`
					Events   []*stores.Event       `json:"events,omitempty"`
				}{req, variants, events})
			}
			printRequestDetail(cmd.OutOrStdout(), req, variants, events)
			return nil
		},
	}

	cmd.Flags().BoolVar(&withEvents, "events", false, "include lifecycle events")
	return cmd
}

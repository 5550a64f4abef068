package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/tripforge/tripforge/pkg/itinerary"
	"github.com/tripforge/tripforge/pkg/planner"
	"github.com/tripforge/tripforge/pkg/policy"
	"github.com/tripforge/tripforge/pkg/stores"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// printResult writes a human summary of a plan result.
func printResult(w io.Writer, res *planner.Result) {
	req := res.Request
	fmt.Fprintf(w, "Plan %s: %s, %d days from %s (%s)\n\n",
		res.RequestID, req.Destination, req.Days, req.StartDate.Format(itinerary.DateLayout), res.Duration.Round(time.Millisecond))

	tw := newTable(w)
	fmt.Fprintln(tw, "VARIANT\tSTATUS\tTOTAL\tFINDINGS\tNOTES")
	for _, v := range res.Variants {
		total := "-"
		if v.Plan != nil {
			total = fmt.Sprintf("%.2f", v.Plan.TotalCost.Total)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", v.Variant.Name, v.Status, total, len(v.Violations), variantNotes(v))
	}
	_ = tw.Flush()

	for _, v := range res.Variants {
		if len(v.Violations) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s findings:\n", v.Variant.Name)
		for _, viol := range v.Violations {
			day := ""
			if viol.Day > 0 {
				day = fmt.Sprintf(" day %d:", viol.Day)
			}
			fmt.Fprintf(w, "  [%s] %s:%s %s\n", viol.Severity, viol.Policy, day, viol.Message)
		}
	}

	if best := res.Cheapest(); best != nil {
		fmt.Fprintf(w, "\nCheapest usable variant: %s (%.2f)\n", best.Variant.Name, best.Plan.TotalCost.Total)
	}
}

func variantNotes(v itinerary.VariantResult) string {
	if v.Status == itinerary.StatusDiscarded {
		return v.Reason
	}
	if len(v.FallbackDays) == 0 {
		return ""
	}
	parts := make([]string, 0, len(v.FallbackDays))
	for dim, n := range v.FallbackDays {
		parts = append(parts, fmt.Sprintf("%s=%d", dim, n))
	}
	sort.Strings(parts)
	return "fallback days " + strings.Join(parts, " ")
}

func printRequests(w io.Writer, reqs []*stores.PlanRequest) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDESTINATION\tSTART\tDAYS\tBUDGET\tSTATUS\tCREATED")
	for _, r := range reqs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f\t%s\t%s\n",
			r.ID, r.Destination, r.StartDate, r.Days, r.Budget, r.Status, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

func printRequestDetail(w io.Writer, r *stores.PlanRequest, variants []*stores.PlanVariant, events []*stores.Event) {
	fmt.Fprintf(w, "Request:     %s\n", r.ID)
	fmt.Fprintf(w, "Destination: %s\n", r.Destination)
	fmt.Fprintf(w, "Start:       %s (%d days)\n", r.StartDate, r.Days)
	fmt.Fprintf(w, "Budget:      %.2f\n", r.Budget)
	fmt.Fprintf(w, "Status:      %s\n", r.Status)
	if r.Error != nil {
		fmt.Fprintf(w, "Error:       %s\n", *r.Error)
	}

	fmt.Fprintln(w)
	tw := newTable(w)
	fmt.Fprintln(tw, "VARIANT\tSTATUS\tTOTAL\tFINDINGS\tREASON")
	for _, v := range variants {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\t%s\n", v.Name, v.Status, v.TotalCost, v.Violations, v.Reason)
	}
	_ = tw.Flush()

	if len(events) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw = newTable(w)
	fmt.Fprintln(tw, "TIME\tLEVEL\tTYPE\tMESSAGE")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Timestamp.Format("15:04:05.000"), e.Level, e.Type, e.Message)
	}
	_ = tw.Flush()
}

func printPolicies(w io.Writer, summaries []policy.PolicySummary) {
	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tSEVERITY\tENABLED\tSOURCE\tDESCRIPTION")
	for _, s := range summaries {
		source := s.Source
		if s.Builtin {
			source = "builtin"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", s.Name, s.Severity, s.Enabled, source, s.Description)
	}
	_ = tw.Flush()
}

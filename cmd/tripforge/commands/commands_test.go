package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tripforge/tripforge/pkg/policy"
	"github.com/tripforge/tripforge/pkg/stores"
	"github.com/tripforge/tripforge/pkg/telemetry"
)

// run executes the root command with args and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand("test", "none", "today")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func initWorkspace(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tripforge.yaml")
	if _, err := run(t, "init", "--config", path); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	return path
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestParseStartDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2025-04-01", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), false},
		{" 2025-04-01 ", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), false},
		{"2025-04-01T09:00:00Z", time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC), false},
		{"", time.Time{}, true},
		{"01/04/2025", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseStartDate(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseStartDate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("parseStartDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildRequestFromFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeFile(t, dir, "trip.yaml", `destination: Kyoto
start_date: "2025-11-03"
days: 4
budget: 2400
travelers: 2
age_groups: [adult, child]
food_restrictions: [vegetarian]
`)
	jsonPath := writeFile(t, dir, "trip.json", `{"destination": "Kyoto", "start_date": "2025-11-03", "days": 4, "budget": 2400, "travelers": 2}`)

	for _, path := range []string{yamlPath, jsonPath} {
		req, err := buildRequest(requestFlags{file: path}, func(string) bool { return false })
		if err != nil {
			t.Fatalf("%s: buildRequest failed: %v", filepath.Base(path), err)
		}
		if req.Destination != "Kyoto" || req.Days != 4 || req.Budget != 2400 || req.Travelers != 2 {
			t.Errorf("%s: unexpected request %+v", filepath.Base(path), req)
		}
		if !req.StartDate.Equal(time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("%s: unexpected start date %v", filepath.Base(path), req.StartDate)
		}
	}
}

func TestBuildRequestFlagsOverrideFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "trip.yaml", "destination: Kyoto\nstart_date: 2025-11-03\ndays: 4\n")

	changed := func(name string) bool { return name == "days" }
	req, err := buildRequest(requestFlags{file: path, days: 9, destination: "ignored"}, changed)
	if err != nil {
		t.Fatalf("buildRequest failed: %v", err)
	}
	if req.Days != 9 {
		t.Errorf("expected --days to override the file, got %d", req.Days)
	}
	if req.Destination != "Kyoto" {
		t.Errorf("unchanged flags must not override the file, got %q", req.Destination)
	}
	if req.Travelers != 1 {
		t.Errorf("expected one traveler by default, got %d", req.Travelers)
	}
}

func TestBuildRequestInvalid(t *testing.T) {
	none := func(string) bool { return false }
	if _, err := buildRequest(requestFlags{destination: "Kyoto", start: "2025-11-03", days: 0, travelers: 1}, none); err == nil {
		t.Error("expected error for zero days")
	}
	if _, err := buildRequest(requestFlags{start: "2025-11-03", days: 2, travelers: 1}, none); err == nil {
		t.Error("expected error without a destination")
	}
	if _, err := buildRequest(requestFlags{file: "/nonexistent/trip.yaml"}, none); err == nil {
		t.Error("expected error for a missing request file")
	}
}

func TestInitCreatesWorkspace(t *testing.T) {
	path := initWorkspace(t)
	dir := filepath.Dir(path)

	for _, p := range []string{path, filepath.Join(dir, "reference"), filepath.Join(dir, "tripforge.db")} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}

	if _, err := run(t, "init", "--config", path); err == nil {
		t.Error("expected init to refuse an existing config")
	}
	if _, err := run(t, "init", "--config", path, "--force"); err != nil {
		t.Errorf("init --force failed: %v", err)
	}
}

func TestValidateCommand(t *testing.T) {
	path := initWorkspace(t)
	trip := writeFile(t, filepath.Dir(path), "trip.yaml", "destination: Porto\nstart_date: 2025-05-10\ndays: 3\n")

	out, err := run(t, "validate", "--config", path, "--request", trip)
	if err != nil {
		t.Fatalf("validate failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Configuration is valid", "policies compiled", "Request is valid: Porto, 3 days"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}

	bad := writeFile(t, t.TempDir(), "bad.yaml", "segmentation:\n  max_segment_days: 0\n")
	out, err = run(t, "validate", "--config", bad)
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	if !strings.Contains(out, "max_segment_days") {
		t.Errorf("expected the failing field in output:\n%s", out)
	}
}

func TestPoliciesCommandJSON(t *testing.T) {
	path := initWorkspace(t)

	out, err := run(t, "policies", "--config", path, "--json")
	if err != nil {
		t.Fatalf("policies failed: %v", err)
	}
	var summaries []policy.PolicySummary
	if err := json.Unmarshal([]byte(out), &summaries); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if len(summaries) != len(policy.GetBuiltinPolicies()) {
		t.Errorf("expected %d built-in policies, got %d", len(policy.GetBuiltinPolicies()), len(summaries))
	}
}

func TestHistoryAndShow(t *testing.T) {
	path := initWorkspace(t)
	ctx := context.Background()

	store, err := openStoreAt(ctx, filepath.Join(filepath.Dir(path), "tripforge.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	req := &stores.PlanRequest{
		ID:          "req-1",
		Destination: "Oaxaca",
		StartDate:   "2025-10-30",
		Days:        5,
		Budget:      1800,
		Status:      stores.RequestStatusPending,
		Request:     "{}",
	}
	if err := store.CreatePlanRequest(ctx, req); err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if err := store.SaveVariants(ctx, []*stores.PlanVariant{
		{ID: "v-1", RequestID: "req-1", Name: "budget", Status: "ok", TotalCost: 1200, Result: "{}"},
	}); err != nil {
		t.Fatalf("failed to save variants: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	out, err := run(t, "history", "--config", path)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "req-1") || !strings.Contains(out, "Oaxaca") {
		t.Errorf("expected the archived request in output:\n%s", out)
	}

	out, err = run(t, "show", "req-1", "--config", path)
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.Contains(out, "budget") || !strings.Contains(out, "1200.00") {
		t.Errorf("expected the variant in output:\n%s", out)
	}

	if _, err := run(t, "show", "missing", "--config", path); err == nil {
		t.Error("expected error for an unknown request")
	}
}

func TestWarningPrinterShowsOnlyWarnings(t *testing.T) {
	ep, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	var out bytes.Buffer
	ep.Subscribe(warningPrinter(&out), telemetry.FilterByLevel(telemetry.EventLevelWarning))

	_ = ep.PublishPlanStarted("req-1", "Hanoi", 3, 2)
	_ = ep.PublishDayFallback("req-1", "budget", "hotel_plan", 2, "timeout_error")
	_ = ep.PublishVariantCompleted("req-1", "budget", "ok", 900)

	if got, want := out.String(), "! Day 2 of hotel_plan fell back after timeout_error\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

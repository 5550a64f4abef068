package generation

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/tripforge/tripforge/pkg/itinerary"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var promptTemplates = template.Must(
	template.New("prompts").Funcs(template.FuncMap{
		"join":  strings.Join,
		"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	}).ParseFS(promptFS, "prompts/*.tmpl"),
)

// DayContext is everything a prompt builder knows about one day.
type DayContext struct {
	Request   itinerary.PlanRequest
	Variant   itinerary.Variant
	Dimension itinerary.Dimension
	Segment   itinerary.Segment

	// Day is the 1-based day inside the segment.
	Day int

	// TripDay is the 1-based day inside the whole trip.
	TripDay int

	// Date is the calendar date formatted with itinerary.DateLayout.
	Date string

	FirstDay  bool
	LastDay   bool
	DayBudget float64
	Reference []itinerary.Record
	Excerpts  []itinerary.Excerpt

	// Used lists names already placed earlier in the trip for this dimension.
	Used []string
}

// Prompt is one text-generation request.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// PromptBuilder turns a day context into a prompt.
type PromptBuilder func(dc DayContext) (Prompt, error)

// TemplatePromptBuilder renders the embedded template for dimension.
func TemplatePromptBuilder(dimension itinerary.Dimension) PromptBuilder {
	name := string(dimension) + ".tmpl"
	return func(dc DayContext) (Prompt, error) {
		system, err := render("system.tmpl", dc)
		if err != nil {
			return Prompt{}, err
		}
		user, err := render(name, dc)
		if err != nil {
			return Prompt{}, err
		}
		return Prompt{System: system, User: user, Temperature: dc.Variant.Temperature}, nil
	}
}

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

package generation

import (
	"errors"
	"testing"

	"github.com/tripforge/tripforge/pkg/itinerary"
	"github.com/tripforge/tripforge/pkg/resilience"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, false},
		{"json fence", "Sure!\n```json\n{\"a\": 1}\n```\nEnjoy.", `{"a": 1}`, false},
		{"untagged fence", "```\n{\"a\": 2}\n```", `{"a": 2}`, false},
		{"other language fence skipped", "```python\n{\"a\": 3}\n```", `{"a": 3}`, false},
		{"prose around", `The plan is {"a": {"b": "}"}} as requested`, `{"a": {"b": "}"}}`, false},
		{"skips broken leading brace", `use {placeholders} then {"ok": true}`, `{"ok": true}`, false},
		{"escaped quotes", `{"q": "say \"hi\" {"}`, `{"q": "say \"hi\" {"}`, false},
		{"no object", "I cannot help with that.", "", true},
		{"unbalanced", `{"a": 1`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				if resilience.CategoryOf(err) != resilience.CategoryData {
					t.Errorf("expected data_error, got %s", resilience.CategoryOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseEntryValidation(t *testing.T) {
	tests := []struct {
		name string
		dim  itinerary.Dimension
		raw  string
		code string
	}{
		{"empty", itinerary.DimensionLodging, "   ", resilience.ErrCodeEmptyResponse},
		{"hotel without name", itinerary.DimensionLodging, `{"hotel": {"name": ""}, "daily_cost": 80}`, resilience.ErrCodeIncompleteEntry},
		{"no meals", itinerary.DimensionDining, `{"meals": [], "daily_food_cost": 0}`, resilience.ErrCodeIncompleteEntry},
		{"no routes", itinerary.DimensionTransport, `{"primary_routes": []}`, resilience.ErrCodeIncompleteEntry},
		{"wrong shape", itinerary.DimensionAttractions, `{"attractions": "many"}`, resilience.ErrCodeMalformedJSON},
		{"not json", itinerary.DimensionAttractions, "sorry", resilience.ErrCodeMalformedJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEntry(tt.raw, tt.dim, 1, "2025-04-01")
			var genErr *resilience.GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("expected GenerationError, got %v", err)
			}
			if genErr.Code != tt.code || genErr.Category != resilience.CategoryData {
				t.Errorf("expected %s data_error, got %s %s", tt.code, genErr.Code, genErr.Category)
			}
		})
	}
}

func TestParseEntryLodging(t *testing.T) {
	raw := `{"day": 4, "date": "1999-01-01", "flight": {"airline": "Vietnam Airlines", "price": 450}, "hotel": {"name": "Hotel de l'Opera", "amenities": ["spa"]}, "daily_cost": 180}`
	entry, err := ParseEntry(raw, itinerary.DimensionLodging, 2, "2025-04-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Day != 2 || entry.Date != "2025-04-02" {
		t.Errorf("day/date must come from the caller, got %d %s", entry.Day, entry.Date)
	}
	if entry.Lodging.Hotel.Name != "Hotel de l'Opera" || entry.Lodging.Flight.Price != 450 || entry.Cost() != 630 {
		t.Errorf("unexpected lodging payload %+v", entry.Lodging)
	}
}

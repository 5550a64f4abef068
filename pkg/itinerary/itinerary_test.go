package itinerary

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func validRequest() PlanRequest {
	return PlanRequest{
		Destination: "Hanoi",
		StartDate:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Days:        12,
		Budget:      12000,
		Travelers:   2,
		AgeGroups:   []string{"adult"},
	}
}

func TestPlanRequestValidate(t *testing.T) {
	if err := validRequest().Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*PlanRequest)
		field  string
	}{
		{"missing destination", func(r *PlanRequest) { r.Destination = "" }, "Destination"},
		{"zero days", func(r *PlanRequest) { r.Days = 0 }, "Days"},
		{"no travelers", func(r *PlanRequest) { r.Travelers = 0 }, "Travelers"},
		{"negative budget", func(r *PlanRequest) { r.Budget = -1 }, "Budget"},
		{"unknown age group", func(r *PlanRequest) { r.AgeGroups = []string{"toddler"} }, "AgeGroups"},
		{"missing start", func(r *PlanRequest) { r.StartDate = time.Time{} }, "StartDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := req.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("expected error to mention %s, got %v", tt.field, err)
			}
		})
	}
}

func TestPlanRequestDates(t *testing.T) {
	req := validRequest()
	if got := req.EndDate().Format(DateLayout); got != "2025-04-12" {
		t.Errorf("expected end date 2025-04-12, got %s", got)
	}
	if !req.Range().Contains(time.Date(2025, 4, 12, 18, 0, 0, 0, time.UTC)) {
		t.Error("range should include the last day")
	}
	if req.Range().Contains(time.Date(2025, 4, 13, 0, 0, 0, 0, time.UTC)) {
		t.Error("range should exclude the day after")
	}
}

func TestWithIDKeepsExisting(t *testing.T) {
	req := validRequest()
	withID := req.WithID()
	if withID.ID == "" {
		t.Fatal("expected generated id")
	}
	if req.ID != "" {
		t.Error("WithID must not mutate the receiver")
	}
	if withID.WithID().ID != withID.ID {
		t.Error("existing id must be kept")
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hồ Hoàn Kiếm", "ho hoan kiem"},
		{"  Hoan-Kiem   Lake ", "hoan kiem lake"},
		{"Đền Ngọc Sơn", "den ngoc son"},
		{"Café de Flore", "cafe de flore"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNameSet(t *testing.T) {
	s := NewNameSet("Temple of Literature", "")
	s.Add("Hồ Hoàn Kiếm")

	if s.Len() != 2 {
		t.Fatalf("expected 2 names, got %d", s.Len())
	}
	if !s.Contains("temple of literature") || !s.Contains("Ho Hoan Kiem") {
		t.Error("expected normalized membership")
	}

	c := s.Clone()
	c.Add("Long Bien Bridge")
	if s.Contains("Long Bien Bridge") {
		t.Error("clone must be independent")
	}

	var nilSet *NameSet
	if nilSet.Contains("x") || nilSet.Len() != 0 || nilSet.List() != nil {
		t.Error("nil set should behave as empty")
	}
}

func TestSegmentDates(t *testing.T) {
	seg := Segment{
		StartDate: time.Date(2025, 4, 11, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 4, 12, 0, 0, 0, 0, time.UTC),
		DayCount:  2,
		Offset:    10,
	}
	if seg.DateFor(2).Format(DateLayout) != "2025-04-12" {
		t.Errorf("unexpected date for day 2: %s", seg.DateFor(2))
	}
	if seg.TripDay(1) != 11 {
		t.Errorf("expected trip day 11, got %d", seg.TripDay(1))
	}
}

func TestRecordAvailability(t *testing.T) {
	r := DateRange{
		Start: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"no window", Record{Name: "a"}, true},
		{"overlaps", Record{AvailableFrom: "2025-04-05", AvailableTo: "2025-05-01"}, true},
		{"starts after", Record{AvailableFrom: "2025-04-11"}, false},
		{"ended before", Record{AvailableTo: "2025-03-31"}, false},
		{"bad date ignored", Record{AvailableFrom: "soon"}, true},
	}
	for _, tt := range tests {
		if got := tt.rec.AvailableDuring(r); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDailyEntryCostAndNames(t *testing.T) {
	lodging := DailyEntry{Lodging: &LodgingDay{
		Flight:    &Flight{Price: 300},
		Hotel:     &Hotel{Name: "Sofitel Legend Metropole"},
		DailyCost: 120,
	}}
	if lodging.Cost() != 420 {
		t.Errorf("expected lodging cost 420, got %v", lodging.Cost())
	}
	if names := lodging.Names(); len(names) != 1 || names[0] != "Sofitel Legend Metropole" {
		t.Errorf("unexpected lodging names %v", names)
	}

	attractions := DailyEntry{Attractions: &AttractionDay{
		Attractions:   []Attraction{{Name: "Temple of Literature"}, {Name: ""}, {Name: "Hoa Lo Prison"}},
		EstimatedCost: 15,
	}}
	if attractions.Cost() != 15 || len(attractions.Names()) != 2 {
		t.Errorf("unexpected attraction entry cost=%v names=%v", attractions.Cost(), attractions.Names())
	}

	if (DailyEntry{}).Cost() != 0 {
		t.Error("empty entry has no cost")
	}
}

func TestModuleResultJSON(t *testing.T) {
	res := ModuleResult{
		Dimension: DimensionDining,
		Entries:   []DailyEntry{{Day: 1, Date: "2025-04-01", Source: SourceFallback}},
		Err:       errors.New("all days failed"),
	}
	if res.FallbackDays() != 1 {
		t.Errorf("expected 1 fallback day, got %d", res.FallbackDays())
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"error":"all days failed"`) {
		t.Errorf("expected error in JSON, got %s", data)
	}
}

func TestDimensions(t *testing.T) {
	want := map[Dimension]string{
		DimensionLodging:     "hotel_plan",
		DimensionDining:      "restaurant_plan",
		DimensionTransport:   "transport_plan",
		DimensionAttractions: "attraction_plan",
	}
	for d, module := range want {
		if d.ModuleName() != module {
			t.Errorf("%s: expected module %s, got %s", d, module, d.ModuleName())
		}
		parsed, err := ParseDimension(string(d))
		if err != nil || parsed != d {
			t.Errorf("ParseDimension(%s) = %s, %v", d, parsed, err)
		}
	}
	if !DimensionLodging.Critical() || !DimensionAttractions.Critical() {
		t.Error("lodging and attractions are critical")
	}
	if DimensionDining.Critical() || DimensionTransport.Critical() {
		t.Error("dining and transport are not critical")
	}
	if _, err := ParseDimension("weather"); err == nil {
		t.Error("expected error for unknown dimension")
	}
}


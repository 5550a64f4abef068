package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tripforge/tripforge/pkg/itinerary"
)

// requestFile is the on-disk form of a plan request. YAML and JSON both decode
// through yaml.v3; start_date is kept as text so quoted dates work in either.
type requestFile struct {
	Destination         string   `yaml:"destination"`
	Origin              string   `yaml:"origin"`
	StartDate           string   `yaml:"start_date"`
	Days                int      `yaml:"days"`
	Budget              float64  `yaml:"budget"`
	Travelers           int      `yaml:"travelers"`
	AgeGroups           []string `yaml:"age_groups"`
	FoodPreferences     []string `yaml:"food_preferences"`
	FoodRestrictions    []string `yaml:"food_restrictions"`
	SpecialRequirements string   `yaml:"special_requirements"`
}

// requestFlags are the inline alternatives to a request file.
type requestFlags struct {
	file        string
	destination string
	origin      string
	start       string
	days        int
	budget      float64
	travelers   int
}

func readRequestFile(path string) (*requestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}
	var rf requestFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse request file %s: %w", path, err)
	}
	return &rf, nil
}

// parseStartDate accepts a calendar date or an RFC 3339 timestamp.
func parseStartDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("start date is required")
	}
	if t, err := time.Parse(itinerary.DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func (rf *requestFile) toPlanRequest() (itinerary.PlanRequest, error) {
	start, err := parseStartDate(rf.StartDate)
	if err != nil {
		return itinerary.PlanRequest{}, err
	}
	travelers := rf.Travelers
	if travelers == 0 {
		travelers = 1
	}
	return itinerary.PlanRequest{
		Destination:         rf.Destination,
		Origin:              rf.Origin,
		StartDate:           start,
		Days:                rf.Days,
		Budget:              rf.Budget,
		Travelers:           travelers,
		AgeGroups:           rf.AgeGroups,
		FoodPreferences:     rf.FoodPreferences,
		FoodRestrictions:    rf.FoodRestrictions,
		SpecialRequirements: rf.SpecialRequirements,
	}, nil
}

// buildRequest reads the request file when one is given and lets explicit
// flags override its fields.
func buildRequest(f requestFlags, changed func(string) bool) (itinerary.PlanRequest, error) {
	rf := &requestFile{}
	if f.file != "" {
		var err error
		if rf, err = readRequestFile(f.file); err != nil {
			return itinerary.PlanRequest{}, err
		}
	}

	if f.file == "" || changed("destination") {
		rf.Destination = f.destination
	}
	if f.file == "" || changed("origin") {
		rf.Origin = f.origin
	}
	if f.file == "" || changed("start") {
		rf.StartDate = f.start
	}
	if f.file == "" || changed("days") {
		rf.Days = f.days
	}
	if f.file == "" || changed("budget") {
		rf.Budget = f.budget
	}
	if f.file == "" || changed("travelers") {
		rf.Travelers = f.travelers
	}

	req, err := rf.toPlanRequest()
	if err != nil {
		return itinerary.PlanRequest{}, err
	}
	if err := req.Validate(); err != nil {
		return itinerary.PlanRequest{}, err
	}
	return req, nil
}

package generation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tripforge/tripforge/pkg/itinerary"
	"github.com/tripforge/tripforge/pkg/resilience"
)

var codeBlockPattern = regexp.MustCompile("(?s)```(\\w*)\\s*\\n(.+?)\\n```")

// ExtractJSON returns the first JSON object in a model response. Fenced code blocks tagged
// json (or untagged) win over bare objects in prose.
func ExtractJSON(response string) (string, error) {
	for _, match := range codeBlockPattern.FindAllStringSubmatch(response, -1) {
		lang := strings.ToLower(match[1])
		if lang != "" && lang != "json" {
			continue
		}
		content := strings.TrimSpace(match[2])
		if strings.HasPrefix(content, "{") && json.Valid([]byte(content)) {
			return content, nil
		}
	}

	for start := strings.IndexByte(response, '{'); start >= 0; {
		if obj := matchBraces(response[start:]); obj != "" && json.Valid([]byte(obj)) {
			return obj, nil
		}
		next := strings.IndexByte(response[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}

	return "", resilience.NewGenerationError(resilience.CategoryData, "no JSON object in response", nil).
		WithCode(resilience.ErrCodeMalformedJSON)
}

// matchBraces returns s up to the brace closing s[0], or "" when unbalanced.
func matchBraces(s string) string {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

// ParseEntry extracts and validates a model response into a DailyEntry for the given
// dimension. day and date always come from the caller, whatever the response says.
func ParseEntry(raw string, dimension itinerary.Dimension, day int, date string) (itinerary.DailyEntry, error) {
	entry := itinerary.DailyEntry{Day: day, Date: date, Dimension: dimension, Source: itinerary.SourceGenerated}

	if strings.TrimSpace(raw) == "" {
		return entry, dataError(resilience.ErrCodeEmptyResponse, "empty response", nil)
	}
	obj, err := ExtractJSON(raw)
	if err != nil {
		return entry, err
	}

	var target interface{}
	switch dimension {
	case itinerary.DimensionLodging:
		entry.Lodging = &itinerary.LodgingDay{}
		target = entry.Lodging
	case itinerary.DimensionDining:
		entry.Dining = &itinerary.DiningDay{}
		target = entry.Dining
	case itinerary.DimensionTransport:
		entry.Transport = &itinerary.TransportDay{}
		target = entry.Transport
	case itinerary.DimensionAttractions:
		entry.Attractions = &itinerary.AttractionDay{}
		target = entry.Attractions
	default:
		return entry, fmt.Errorf("unknown dimension %q", dimension)
	}
	if err := json.Unmarshal([]byte(obj), target); err != nil {
		return entry, dataError(resilience.ErrCodeMalformedJSON, "response does not match "+string(dimension)+" shape", err)
	}

	if err := CheckEntry(entry); err != nil {
		return entry, err
	}
	return entry, nil
}

// CheckEntry reports whether entry is well-formed for its dimension.
func CheckEntry(entry itinerary.DailyEntry) error {
	var problem string
	switch entry.Dimension {
	case itinerary.DimensionLodging:
		if entry.Lodging == nil || entry.Lodging.Hotel == nil || strings.TrimSpace(entry.Lodging.Hotel.Name) == "" {
			problem = "lodging entry has no hotel name"
		}
	case itinerary.DimensionDining:
		if entry.Dining == nil || len(entry.Dining.Meals) == 0 {
			problem = "dining entry has no meals"
		}
	case itinerary.DimensionTransport:
		if entry.Transport == nil || len(entry.Transport.PrimaryRoutes) == 0 {
			problem = "transport entry has no primary route"
		}
	case itinerary.DimensionAttractions:
		if entry.Attractions == nil || len(entry.Attractions.Attractions) == 0 {
			problem = "attractions entry has no attraction"
		}
	default:
		problem = "unknown dimension " + string(entry.Dimension)
	}
	if entry.Day < 1 || entry.Date == "" {
		problem = "entry has no day or date"
	}
	if problem != "" {
		return dataError(resilience.ErrCodeIncompleteEntry, problem, nil).WithDetail("day", entry.Day)
	}
	return nil
}

func dataError(code, msg string, err error) *resilience.GenerationError {
	return resilience.NewGenerationError(resilience.CategoryData, msg, err).WithCode(code)
}

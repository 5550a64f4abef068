package itinerary

import "context"

// ReferenceSource provides reference records for a dimension. An empty list is valid.
type ReferenceSource interface {
	FetchReferenceData(ctx context.Context, dimension Dimension, destination string, dates DateRange) ([]Record, error)
}

// SocialSource provides short user-content snippets about a destination.
type SocialSource interface {
	FetchSocialExcerpts(ctx context.Context, destination string) ([]Excerpt, error)
}

// TextGenerator is the text-generation collaborator.
type TextGenerator interface {
	GenerateText(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
}

// ReferenceData is reference records per dimension.
type ReferenceData map[Dimension][]Record

// StaticReference is a ReferenceSource backed by fixed records.
type StaticReference ReferenceData

// FetchReferenceData returns the records for dimension, ignoring destination and dates.
func (s StaticReference) FetchReferenceData(ctx context.Context, dimension Dimension, destination string, dates DateRange) ([]Record, error) {
	return s[dimension], nil
}

// NoExcerpts is a SocialSource that always returns nothing.
type NoExcerpts struct{}

// FetchSocialExcerpts returns nil.
func (NoExcerpts) FetchSocialExcerpts(ctx context.Context, destination string) ([]Excerpt, error) {
	return nil, nil
}

package itinerary

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName folds case, diacritics and punctuation so that "Hồ Hoàn Kiếm" and
// "ho hoan kiem" compare equal.
func NormalizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r == 'đ':
			r = 'd'
		case unicode.IsLetter(r) || unicode.IsDigit(r):
		default:
			space = b.Len() > 0
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NameSet is an append-only set of normalized names.
type NameSet struct {
	names map[string]struct{}
}

// NewNameSet creates a set holding names.
func NewNameSet(names ...string) *NameSet {
	s := &NameSet{names: make(map[string]struct{})}
	s.Add(names...)
	return s
}

// Add inserts names. Empty names are ignored.
func (s *NameSet) Add(names ...string) {
	for _, n := range names {
		if key := NormalizeName(n); key != "" {
			s.names[key] = struct{}{}
		}
	}
}

// Contains reports whether name is in the set after normalization.
func (s *NameSet) Contains(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.names[NormalizeName(name)]
	return ok
}

// Len returns the number of distinct names.
func (s *NameSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// List returns the names in sorted order.
func (s *NameSet) List() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s *NameSet) Clone() *NameSet {
	c := NewNameSet()
	if s != nil {
		for n := range s.names {
			c.names[n] = struct{}{}
		}
	}
	return c
}

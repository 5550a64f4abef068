package assembly

import (
	"strings"

	"github.com/tripforge/tripforge/pkg/itinerary"
)

// recordIndex looks up reference records by id and by normalized name.
type recordIndex struct {
	records []itinerary.Record
	byID    map[string]int
	byName  map[string]int
	names   []string
}

func newRecordIndex(records []itinerary.Record) *recordIndex {
	idx := &recordIndex{
		records: records,
		byID:    make(map[string]int),
		byName:  make(map[string]int),
		names:   make([]string, len(records)),
	}
	for i, rec := range records {
		if rec.ID != "" {
			if _, ok := idx.byID[rec.ID]; !ok {
				idx.byID[rec.ID] = i
			}
		}
		key := itinerary.NormalizeName(rec.Name)
		idx.names[i] = key
		if key == "" {
			continue
		}
		if _, ok := idx.byName[key]; !ok {
			idx.byName[key] = i
		}
	}
	return idx
}

// match finds the record for id or name: id first, then exact normalized name, then the
// first record whose normalized name contains the other or is contained in it.
func (idx *recordIndex) match(id, name string) (itinerary.Record, bool) {
	if id != "" {
		if i, ok := idx.byID[id]; ok {
			return idx.records[i], true
		}
	}
	key := itinerary.NormalizeName(name)
	if key == "" {
		return itinerary.Record{}, false
	}
	if i, ok := idx.byName[key]; ok {
		return idx.records[i], true
	}
	for i, candidate := range idx.names {
		if candidate == "" {
			continue
		}
		if strings.Contains(candidate, key) || strings.Contains(key, candidate) {
			return idx.records[i], true
		}
	}
	return itinerary.Record{}, false
}

// enrichHotel fills missing hotel fields from its reference record and merges list fields.
func enrichHotel(h *itinerary.Hotel, idx *recordIndex) bool {
	if h == nil {
		return false
	}
	rec, ok := idx.match(h.ID, h.Name)
	if !ok {
		return false
	}
	fillString(&h.ID, rec.ID)
	fillString(&h.Address, rec.Address)
	fillFloat(&h.Rating, rec.Rating)
	fillFloat(&h.PricePerNight, rec.Price)
	h.Amenities = mergeUnique(h.Amenities, rec.Amenities)
	h.Photos = mergeUnique(h.Photos, rec.Photos)
	return true
}

// enrichRestaurant fills missing restaurant fields from its reference record.
func enrichRestaurant(r *itinerary.Restaurant, idx *recordIndex) bool {
	rec, ok := idx.match(r.ID, r.Name)
	if !ok {
		return false
	}
	fillString(&r.ID, rec.ID)
	fillString(&r.Address, rec.Address)
	fillString(&r.Cuisine, rec.Category)
	fillFloat(&r.Rating, rec.Rating)
	r.Specialties = mergeUnique(r.Specialties, rec.Specialties)
	r.Photos = mergeUnique(r.Photos, rec.Photos)
	return true
}

func fillString(dst *string, v string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = v
	}
}

func fillFloat(dst *float64, v float64) {
	if *dst == 0 {
		*dst = v
	}
}

// mergeUnique appends the items of extra missing from base, comparing case-insensitively.
func mergeUnique(base, extra []string) []string {
	if len(extra) == 0 {
		return base
	}
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, v := range list {
			key := strings.ToLower(strings.TrimSpace(v))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

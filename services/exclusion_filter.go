package services

import (
	"strings"

	"roadtrip-server/models"
)

// ExclusionFilter drops chain brands and unwanted categories from candidate
// lists. It holds no mutable state and is safe for concurrent use.
type ExclusionFilter struct {
	denylist   []string
	categories map[string]struct{}
}

func NewExclusionFilter(denylist, excludedCategories []string) *ExclusionFilter {
	f := &ExclusionFilter{categories: make(map[string]struct{})}
	for _, name := range denylist {
		if n := strings.ToLower(strings.TrimSpace(name)); n != "" {
			f.denylist = append(f.denylist, n)
		}
	}
	for _, c := range excludedCategories {
		if n := models.NormalizeCategory(c); n != "" {
			f.categories[n] = struct{}{}
		}
	}
	return f
}

// Excluded reports whether poi matches the denylist (case-insensitive
// substring) or an excluded category.
func (f *ExclusionFilter) Excluded(poi models.POI) bool {
	if _, ok := f.categories[poi.Category]; ok {
		return true
	}
	name := strings.ToLower(poi.Name)
	for _, brand := range f.denylist {
		if strings.Contains(name, brand) {
			return true
		}
	}
	return false
}

// Filter returns the candidates that survive, preserving order. The input
// slice is not modified.
func (f *ExclusionFilter) Filter(candidates []models.POI) []models.POI {
	out := make([]models.POI, 0, len(candidates))
	for _, poi := range candidates {
		if f.Excluded(poi) {
			continue
		}
		out = append(out, poi)
	}
	return out
}

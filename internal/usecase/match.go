// Package usecase contains the pipeline's job services: collector,
// processor and notifier, plus the filter matcher and message renderer.
package usecase

import (
	"strings"

	"github.com/rentifier/rentifier/internal/domain"
)

// Matches evaluates a listing against a filter. Dimensions are ANDed; a
// dimension passes trivially when its constraint is unset or empty.
func Matches(l domain.Listing, f domain.Filter) bool {
	return matchRange(l.Price, f.MinPrice, f.MaxPrice) &&
		matchRange(l.Bedrooms, f.MinBedrooms, f.MaxBedrooms) &&
		matchMembership(l.City, f.Cities) &&
		matchMembership(l.Neighborhood, f.Neighborhoods) &&
		matchKeywords(l, f.Keywords) &&
		matchMustHaveTags(l, f.MustHaveTags) &&
		matchExcludeTags(l, f.ExcludeTags)
}

// matchRange checks a closed [min,max] interval; a listing missing the
// value fails whenever either bound is set.
func matchRange(v, min, max *float64) bool {
	if min == nil && max == nil {
		return true
	}
	if v == nil {
		return false
	}
	if min != nil && *v < *min {
		return false
	}
	if max != nil && *v > *max {
		return false
	}
	return true
}

// matchMembership is case-sensitive on canonical Hebrew names.
func matchMembership(v string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	if v == "" {
		return false
	}
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// matchKeywords is an OR over case-insensitive substring hits in title or
// description.
func matchKeywords(l domain.Listing, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(l.Title + " " + l.Description)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func matchMustHaveTags(l domain.Listing, tags []string) bool {
	for _, t := range tags {
		if !l.HasTag(t) {
			return false
		}
	}
	return true
}

func matchExcludeTags(l domain.Listing, tags []string) bool {
	for _, t := range tags {
		if l.HasTag(t) {
			return false
		}
	}
	return true
}

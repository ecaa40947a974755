package yad2

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rentifier/rentifier/internal/domain"
	"github.com/rentifier/rentifier/internal/service/extract"
)

var digitsRe = regexp.MustCompile(`\d[\d,]*`)

// Hebrew property kinds as the upstream feed labels them.
var propertyKindTags = map[string]string{
	"דירה":      "apartment",
	"דירת גן":   "garden_apartment",
	"גג/פנטהאוז": "penthouse",
	"פנטהאוז":   "penthouse",
	"בית פרטי":  "house",
	"קוטג'":     "house",
	"יחידת דיור": "unit",
	"סטודיו":    "studio",
	"דופלקס":    "duplex",
}

var conditionTags = map[string]string{
	"חדש מקבלן":  "condition_new",
	"חדש":        "condition_new",
	"משופץ":      "condition_renovated",
	"במצב שמור":  "condition_good",
	"שמור":       "condition_good",
	"דרוש שיפוץ": "condition_needs_work",
}

// Normalize implements domain.Connector. It is pure: everything it needs is
// in the candidate's SourceData blob.
func (c *Connector) Normalize(cand domain.ListingCandidate) (domain.ListingDraft, error) {
	item, err := itemFromSourceData(cand.SourceData)
	if err != nil {
		return domain.ListingDraft{}, fmt.Errorf("op=yad2.normalize: %w", err)
	}

	draft := domain.ListingDraft{
		Title:        cand.RawTitle,
		Description:  cand.RawDescription,
		Neighborhood: item.Neighborhood,
		Street:       item.Street,
		HouseNumber:  item.HouseNumber,
		PropertyType: item.PropertyType,
		PostedAt:     cand.RawPostedAt,
	}

	// Listing prices on this source are always monthly shekels.
	if amount, ok := parsePrice(item.Price); ok {
		draft.Price = &amount
		draft.Currency = extract.CurrencyILS
		draft.PricePeriod = extract.PeriodMonthly
	}
	if item.Rooms > 0 {
		rooms := item.Rooms
		draft.Bedrooms = &rooms
	}
	if canonical := extract.NormalizeCity(item.City); canonical != "" {
		draft.City = canonical
	} else {
		draft.City = item.City
	}
	floor, hasFloor := parseFloor(item.Floor)
	if hasFloor {
		draft.Floor = &floor
	}
	if item.SquareMeters > 0 {
		sqm := item.SquareMeters
		draft.SquareMeters = &sqm
	}
	if item.Latitude != 0 || item.Longitude != 0 {
		lat, lon := item.Latitude, item.Longitude
		draft.Latitude = &lat
		draft.Longitude = &lon
	}
	if len(item.Images) > 0 {
		draft.ImageURL = item.Images[0]
	}

	if tag, ok := propertyKindTags[strings.TrimSpace(item.PropertyType)]; ok {
		draft.Tags = append(draft.Tags, tag)
	}
	if tag, ok := conditionTags[strings.TrimSpace(item.Condition)]; ok {
		draft.Tags = append(draft.Tags, tag)
	}
	if hasFloor {
		switch {
		case floor == 0:
			draft.Tags = append(draft.Tags, "ground_floor")
		case floor >= 5:
			draft.Tags = append(draft.Tags, "high_floor")
		}
	}
	if len(item.Images) > 0 {
		draft.Tags = append(draft.Tags, extract.TagHasImages)
	}
	return draft, nil
}

func itemFromSourceData(data map[string]any) (feedItem, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return feedItem{}, err
	}
	var item feedItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return feedItem{}, err
	}
	return item, nil
}

// parsePrice extracts the numeric amount from upstream price text such as
// "5,500 ₪".
func parsePrice(s string) (float64, bool) {
	m := digitsRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// parseFloor maps upstream floor text to a number; "קרקע" is ground.
func parseFloor(s string) (int, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, false
	}
	if strings.Contains(t, "קרקע") {
		return 0, true
	}
	if n, err := strconv.Atoi(t); err == nil {
		return n, true
	}
	return 0, false
}

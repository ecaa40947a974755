// Package extract implements the rule-based text extractor used by the
// processor: price, rooms, tags and location are derived from listing text
// with ordered pattern tables. All functions are pure and safe for
// concurrent use.
package extract

// PriceResult is an extracted price with its detected currency and period.
type PriceResult struct {
	Amount     float64
	Currency   string
	Period     string
	Confidence float64
}

// LocationResult is an extracted canonical city and optional neighborhood.
type LocationResult struct {
	City         string
	Neighborhood string
	Confidence   float64
}

// Result aggregates all extraction signals for one listing text.
type Result struct {
	Price    *PriceResult
	Rooms    *float64
	Tags     []string
	Location *LocationResult
	// Confidence is min(price, location) over present signals; 0 when both
	// are absent. Tags and rooms do not contribute.
	Confidence float64
}

// All runs every rule table over "title + ' ' + description".
func All(title, description string) Result {
	text := title
	if description != "" {
		text = title + " " + description
	}
	res := Result{
		Price:    Price(text),
		Rooms:    Rooms(text),
		Tags:     Tags(text),
		Location: Location(text),
	}
	switch {
	case res.Price != nil && res.Location != nil:
		res.Confidence = min(res.Price.Confidence, res.Location.Confidence)
	case res.Price != nil:
		res.Confidence = res.Price.Confidence
	case res.Location != nil:
		res.Confidence = res.Location.Confidence
	}
	return res
}

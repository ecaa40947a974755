package extract

import "strings"

// Canonical listing tags.
const (
	TagParking    = "parking"
	TagBalcony    = "balcony"
	TagPets       = "pets"
	TagFurnished  = "furnished"
	TagImmediate  = "immediate"
	TagLongTerm   = "long_term"
	TagAccessible = "accessible"
	TagAircon     = "air_conditioning"
	TagHasImages  = "has-images"
)

// Ordered keyword table; first hit per tag adds it once.
var tagKeywords = []struct {
	tag      string
	keywords []string
}{
	{TagParking, []string{"חניה", "חנייה", "parking"}},
	{TagBalcony, []string{"מרפסת", "balcony"}},
	{TagPets, []string{"חיות מחמד", "בעלי חיים", "pet friendly", "pets allowed"}},
	{TagFurnished, []string{"מרוהטת", "מרוהט", "ריהוט מלא", "furnished"}},
	{TagImmediate, []string{"כניסה מיידית", "פינוי מיידי", "מיידי", "immediate"}},
	{TagLongTerm, []string{"לטווח ארוך", "טווח ארוך", "long term", "long-term"}},
	{TagAccessible, []string{"נגישות", "נגיש לנכים", "accessible", "wheelchair"}},
	{TagAircon, []string{"מזגן", "מיזוג", "air conditioning", "a/c"}},
}

// Tags returns the tags whose keywords appear in the text, in table order.
func Tags(text string) []string {
	lower := strings.ToLower(text)
	var tags []string
	for _, tk := range tagKeywords {
		for _, kw := range tk.keywords {
			if strings.Contains(lower, kw) {
				tags = append(tags, tk.tag)
				break
			}
		}
	}
	return tags
}

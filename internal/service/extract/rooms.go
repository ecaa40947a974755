package extract

import (
	"regexp"
	"strconv"
)

// Half-rooms are common in Israeli listings ("2.5 חדרים").
var roomsPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+(?:\.5)?)\s*חדרים`),
	regexp.MustCompile(`(\d+(?:\.5)?)\s*חד'`),
	regexp.MustCompile(`(?i)(\d+(?:\.5)?)\s*(?:bedrooms?|rooms?|br)`),
}

var studioPattern = regexp.MustCompile(`(?i)סטודיו|studio`)

// Rooms returns the extracted room count, 0 for studios, or nil.
func Rooms(text string) *float64 {
	for _, re := range roomsPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			return &v
		}
	}
	if studioPattern.MatchString(text) {
		zero := 0.0
		return &zero
	}
	return nil
}

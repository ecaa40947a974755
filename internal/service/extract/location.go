package extract

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed cities.yaml
var citiesYAML []byte

type cityEntry struct {
	Canonical     string   `yaml:"canonical"`
	Variants      []string `yaml:"variants"`
	Neighborhoods []string `yaml:"neighborhoods"`
}

type cityFile struct {
	Cities []cityEntry `yaml:"cities"`
}

var (
	cityTable []cityEntry
	// variant (lowercased) -> canonical Hebrew name; canonical maps to itself
	// so NormalizeCity is idempotent.
	cityIndex map[string]string
)

func init() {
	var f cityFile
	if err := yaml.Unmarshal(citiesYAML, &f); err != nil {
		panic(fmt.Sprintf("extract: malformed cities.yaml: %v", err))
	}
	cityTable = f.Cities
	cityIndex = make(map[string]string, len(cityTable)*4)
	for _, c := range cityTable {
		cityIndex[strings.ToLower(c.Canonical)] = c.Canonical
		for _, v := range c.Variants {
			cityIndex[strings.ToLower(v)] = c.Canonical
		}
	}
}

// NormalizeCity maps a Hebrew or English city spelling to its canonical
// Hebrew name. Unknown cities return "" and log an unknown_city event.
// Idempotent: NormalizeCity(NormalizeCity(x)) == NormalizeCity(x) for any x
// that normalizes to a non-empty result.
func NormalizeCity(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}
	if canonical, ok := cityIndex[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	slog.Debug("unknown city", slog.String("event", "unknown_city"), slog.String("city", trimmed))
	return ""
}

// Location scans the text for a known city (canonical name or variant) and,
// scoped to the matched city, a known neighborhood. City alone scores 0.8,
// city plus neighborhood 0.9; no city means nil.
func Location(text string) *LocationResult {
	lower := strings.ToLower(text)
	for _, c := range cityTable {
		if !containsCity(lower, c) {
			continue
		}
		res := &LocationResult{City: c.Canonical, Confidence: 0.8}
		for _, n := range c.Neighborhoods {
			if strings.Contains(lower, strings.ToLower(n)) {
				res.Neighborhood = n
				res.Confidence = 0.9
				break
			}
		}
		return res
	}
	return nil
}

func containsCity(lower string, c cityEntry) bool {
	if strings.Contains(lower, strings.ToLower(c.Canonical)) {
		return true
	}
	for _, v := range c.Variants {
		if strings.Contains(lower, strings.ToLower(v)) {
			return true
		}
	}
	return false
}

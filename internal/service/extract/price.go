package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Currencies and periods reported by the extractor.
const (
	CurrencyILS = "ILS"
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"

	PeriodMonthly = "monthly"
	PeriodWeekly  = "weekly"
	PeriodDaily   = "daily"
)

const amountPattern = `(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)`

// Ordered: ILS forms first since the reference market prices in shekels.
var pricePatterns = []struct {
	currency string
	re       *regexp.Regexp
}{
	{CurrencyILS, regexp.MustCompile(amountPattern + `\s*(?:₪|ש"ח|שח)`)},
	{CurrencyILS, regexp.MustCompile(`(?:₪|ש"ח)\s*` + amountPattern)},
	{CurrencyUSD, regexp.MustCompile(`\$\s*` + amountPattern)},
	{CurrencyUSD, regexp.MustCompile(amountPattern + `\s*\$`)},
	{CurrencyEUR, regexp.MustCompile(`€\s*` + amountPattern)},
	{CurrencyEUR, regexp.MustCompile(amountPattern + `\s*€`)},
}

var periodPatterns = []struct {
	period string
	re     *regexp.Regexp
}{
	{PeriodMonthly, regexp.MustCompile(`(?i)לחודש|בחודש|חודשי|per\s+month|/\s*month|monthly`)},
	{PeriodWeekly, regexp.MustCompile(`(?i)לשבוע|שבועי|per\s+week|/\s*week|weekly`)},
	{PeriodDaily, regexp.MustCompile(`(?i)ללילה|ליום|יומי|per\s+(?:day|night)|nightly|daily`)},
}

// Price returns the first price matched by the ordered currency table, or
// nil. Period defaults to monthly at confidence 0.7; an explicit period
// marker boosts confidence to 0.9.
func Price(text string) *PriceResult {
	for _, p := range pricePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		amount, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil || amount <= 0 {
			continue
		}
		res := &PriceResult{Amount: amount, Currency: p.currency, Period: PeriodMonthly, Confidence: 0.7}
		for _, pp := range periodPatterns {
			if pp.re.MatchString(text) {
				res.Period = pp.period
				res.Confidence = 0.9
				break
			}
		}
		return res
	}
	return nil
}

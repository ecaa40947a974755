package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrice(t *testing.T) {
	t.Run("shekel symbol after amount", func(t *testing.T) {
		res := Price("דירה מהממת 5,500 ₪ לחודש")
		require.NotNil(t, res)
		assert.Equal(t, 5500.0, res.Amount)
		assert.Equal(t, CurrencyILS, res.Currency)
		assert.Equal(t, PeriodMonthly, res.Period)
		assert.Equal(t, 0.9, res.Confidence)
	})

	t.Run("no period marker defaults to monthly at lower confidence", func(t *testing.T) {
		res := Price(`דירה 4200 ש"ח`)
		require.NotNil(t, res)
		assert.Equal(t, 4200.0, res.Amount)
		assert.Equal(t, PeriodMonthly, res.Period)
		assert.Equal(t, 0.7, res.Confidence)
	})

	t.Run("dollar prefix", func(t *testing.T) {
		res := Price("rent $1,800 per month")
		require.NotNil(t, res)
		assert.Equal(t, 1800.0, res.Amount)
		assert.Equal(t, CurrencyUSD, res.Currency)
	})

	t.Run("euro with weekly period", func(t *testing.T) {
		res := Price("€900 per week")
		require.NotNil(t, res)
		assert.Equal(t, CurrencyEUR, res.Currency)
		assert.Equal(t, PeriodWeekly, res.Period)
	})

	t.Run("shekels win when both currencies appear", func(t *testing.T) {
		res := Price("5,000 ₪ (about $1,350)")
		require.NotNil(t, res)
		assert.Equal(t, CurrencyILS, res.Currency)
		assert.Equal(t, 5000.0, res.Amount)
	})

	t.Run("no price", func(t *testing.T) {
		assert.Nil(t, Price("דירה יפה במרכז"))
	})
}

func TestRooms(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *float64
	}{
		{"hebrew rooms", "3 חדרים בפלורנטין", f(3)},
		{"half rooms", "דירת 2.5 חדרים", f(2.5)},
		{"abbreviated", "4 חד' משופצת", f(4)},
		{"english", "2 bedrooms near the beach", f(2)},
		{"studio is zero", "סטודיו מרוהט", f(0)},
		{"none", "דירה גדולה", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rooms(tt.text)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestTags(t *testing.T) {
	tags := Tags("דירה מרוהטת עם חניה ומרפסת, כניסה מיידית")
	assert.Equal(t, []string{TagParking, TagBalcony, TagFurnished, TagImmediate}, tags)

	assert.Empty(t, Tags("דירה רגילה"))
}

func TestTagsAddedOncePerTag(t *testing.T) {
	tags := Tags("חניה כפולה, חנייה נוספת")
	assert.Equal(t, []string{TagParking}, tags)
}

func TestNormalizeCity(t *testing.T) {
	assert.Equal(t, "תל אביב", NormalizeCity("tel aviv"))
	assert.Equal(t, "תל אביב", NormalizeCity("תל אביב יפו"))
	assert.Equal(t, "תל אביב", NormalizeCity(" Tel-Aviv "))
	assert.Equal(t, "ירושלים", NormalizeCity("Jerusalem"))

	// Idempotent: a canonical name maps to itself.
	assert.Equal(t, "תל אביב", NormalizeCity(NormalizeCity("tlv")))

	assert.Equal(t, "", NormalizeCity("גוטהאם סיטי"))
	assert.Equal(t, "", NormalizeCity(""))
}

func TestLocation(t *testing.T) {
	t.Run("city and neighborhood", func(t *testing.T) {
		res := Location("דירה מקסימה בפלורנטין תל אביב")
		require.NotNil(t, res)
		assert.Equal(t, "תל אביב", res.City)
		assert.Equal(t, "פלורנטין", res.Neighborhood)
		assert.Equal(t, 0.9, res.Confidence)
	})

	t.Run("city only", func(t *testing.T) {
		res := Location("apartment in Haifa near the port")
		require.NotNil(t, res)
		assert.Equal(t, "חיפה", res.City)
		assert.Empty(t, res.Neighborhood)
		assert.Equal(t, 0.8, res.Confidence)
	})

	t.Run("no city", func(t *testing.T) {
		assert.Nil(t, Location("spacious apartment, great view"))
	})
}

func TestAllConfidence(t *testing.T) {
	t.Run("min of price and location", func(t *testing.T) {
		res := All("3 חדרים בתל אביב", "5,500 ₪ לחודש")
		require.NotNil(t, res.Price)
		require.NotNil(t, res.Location)
		// price 0.9 (explicit period), location 0.8 (no neighborhood)
		assert.Equal(t, 0.8, res.Confidence)
	})

	t.Run("zero when no signals", func(t *testing.T) {
		res := All("דירה", "")
		assert.Nil(t, res.Price)
		assert.Nil(t, res.Location)
		assert.Zero(t, res.Confidence)
	})

	t.Run("price only", func(t *testing.T) {
		res := All("דירה 4000 ₪", "")
		require.NotNil(t, res.Price)
		assert.Equal(t, res.Price.Confidence, res.Confidence)
	})
}

func f(v float64) *float64 { return &v }

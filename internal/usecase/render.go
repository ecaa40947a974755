package usecase

import (
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/rentifier/rentifier/internal/domain"
	"github.com/rentifier/rentifier/internal/service/extract"
)

// ParseModeHTML is the parse mode used for every rendered message.
const ParseModeHTML = "HTML"

// RenderMessage builds the notification text for a listing: bold title,
// formatted price, rooms, address with a map link, and the listing URL.
func RenderMessage(l domain.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(l.Title))

	if l.Price != nil {
		fmt.Fprintf(&b, "💰 %s %s", FormatPrice(*l.Price), currencySymbol(l.Currency))
		if l.PricePeriod == extract.PeriodMonthly || l.PricePeriod == "" {
			b.WriteString(" לחודש")
		}
		b.WriteString("\n")
	}
	if l.Bedrooms != nil {
		fmt.Fprintf(&b, "🛏 %s חדרים\n", trimFloat(*l.Bedrooms))
	}
	if addr := formatAddress(l); addr != "" {
		fmt.Fprintf(&b, "📍 <a href=\"%s\">%s</a>\n", mapURL(l), html.EscapeString(addr))
	}
	fmt.Fprintf(&b, "\n<a href=\"%s\">לצפייה במודעה</a>", l.URL)
	return b.String()
}

// FormatPrice renders an amount with thousands separators ("5,000").
func FormatPrice(v float64) string {
	s := strconv.FormatInt(int64(v), 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}

func currencySymbol(code string) string {
	switch code {
	case extract.CurrencyUSD:
		return "$"
	case extract.CurrencyEUR:
		return "€"
	default:
		return "₪"
	}
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatAddress(l domain.Listing) string {
	var parts []string
	if l.Street != "" {
		street := l.Street
		if l.HouseNumber != "" {
			street += " " + l.HouseNumber
		}
		parts = append(parts, street)
	}
	if l.Neighborhood != "" {
		parts = append(parts, l.Neighborhood)
	}
	if l.City != "" {
		parts = append(parts, l.City)
	}
	return strings.Join(parts, ", ")
}

func mapURL(l domain.Listing) string {
	return "https://www.google.com/maps/search/?api=1&query=" + url.QueryEscape(formatAddress(l))
}

package parser

import (
	"fmt"
	"strings"

	"MediaTrend/internal/scanner"
)

// worldCode selects the global ranking.
const worldCode = "WORLD"

var tudumCountries = map[string]string{
	worldCode: "",
	"CH":      "switzerland",
	"DE":      "germany",
	"AT":      "austria",
	"FR":      "france",
	"IT":      "italy",
	"ES":      "spain",
	"US":      "united-states",
	"GB":      "united-kingdom",
	"UK":      "united-kingdom",
	"CA":      "canada",
	"NL":      "netherlands",
	"BE":      "belgium",
	"DK":      "denmark",
	"SE":      "sweden",
	"NO":      "norway",
	"FI":      "finland",
	"PL":      "poland",
	"PT":      "portugal",
	"IE":      "ireland",
	"AU":      "australia",
	"NZ":      "new-zealand",
}

var flixPatrolCountries = map[string]string{
	worldCode: "world",
	"DE":      "germany",
	"CH":      "switzerland",
	"AT":      "austria",
	"US":      "united-states",
	"GB":      "united-kingdom",
	"FR":      "france",
	"IT":      "italy",
	"ES":      "spain",
	"CA":      "canada",
	"AU":      "australia",
	"NL":      "netherlands",
	"BE":      "belgium",
	"PL":      "poland",
	"SE":      "sweden",
	"NO":      "norway",
	"DK":      "denmark",
}

func countrySlug(table map[string]string, code string) (string, error) {
	slug, ok := table[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return "", fmt.Errorf("%w: %q", scanner.ErrUnsupportedCountry, code)
	}
	return slug, nil
}

package download

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// The two date renderings the portal produces: "15 Mar 2024" (scraped rows)
// and "Mar 15, 2024" (API-normalized).
var (
	dayFirstRegex   = regexp.MustCompile(`(\d{1,2})\s+([A-Za-z]+)\s+(\d{4})`)
	monthFirstRegex = regexp.MustCompile(`([A-Za-z]+)\s+(\d{1,2}),\s+(\d{4})`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

var monthNumbers = map[string]string{
	"jan": "01", "january": "01",
	"feb": "02", "february": "02",
	"mar": "03", "march": "03",
	"apr": "04", "april": "04",
	"may": "05",
	"jun": "06", "june": "06",
	"jul": "07", "july": "07",
	"aug": "08", "august": "08",
	"sep": "09", "sept": "09", "september": "09",
	"oct": "10", "october": "10",
	"nov": "11", "november": "11",
	"dec": "12", "december": "12",
}

// FormatDate canonicalizes a human-readable invoice date into YYYY-MM-DD for
// use in filenames. Unrecognized formats degrade to a lossy rendering with
// whitespace collapsed to underscores and commas removed, so a filename can
// always be built.
func FormatDate(raw string) string {
	if m := dayFirstRegex.FindStringSubmatch(raw); m != nil {
		return fmt.Sprintf("%s-%s-%s", m[3], monthNumber(m[2]), padDay(m[1]))
	}
	if m := monthFirstRegex.FindStringSubmatch(raw); m != nil {
		return fmt.Sprintf("%s-%s-%s", m[3], monthNumber(m[1]), padDay(m[2]))
	}

	fallback := strings.ReplaceAll(raw, ",", "")
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(fallback), "_")
}

func monthNumber(name string) string {
	if n, ok := monthNumbers[strings.ToLower(name)]; ok {
		return n
	}
	return "01"
}

func padDay(day string) string {
	if n, err := strconv.Atoi(day); err == nil {
		return fmt.Sprintf("%02d", n)
	}
	return day
}

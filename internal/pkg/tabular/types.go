package tabular

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SQL column types assigned by type detection.
const (
	TypeInteger   = "INTEGER"
	TypeDecimal   = "DECIMAL(15,6)"
	TypeBoolean   = "BOOLEAN"
	TypeTimestamp = "TIMESTAMP"
	TypeDate      = "DATE"
	TypeText      = "TEXT"
)

// detectionThreshold is the fraction of non-empty values that must parse
// for a candidate type to win.
const detectionThreshold = 0.8

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}`),
	regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}`),
	regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{4}`),
	regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}`),
	regexp.MustCompile(`^\d{4}/\d{1,2}/\d{1,2}`),
}

var timePattern = regexp.MustCompile(`\d{1,2}:\d{2}`)

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"01-02-2006",
	"02-01-2006",
	"2006/01/02",
	"02.01.2006",
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
	"02/01/2006 15:04:05",
	"01/02/2006 15:04",
}

var booleanValues = map[string]bool{
	"true": true, "false": true, "1": true, "0": true,
	"yes": true, "no": true, "t": true, "f": true,
	"y": true, "n": true, "on": true, "off": true,
}

// DetectColumnType picks the narrowest SQL type that at least 80% of the
// non-empty values fit. Order matters: integers before decimals, booleans
// before dates (to catch "1"/"0" columns), timestamps before plain dates.
func DetectColumnType(values []string) string {
	nonEmpty := make([]string, 0, len(values))
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) == 0 {
		return TypeText
	}

	switch {
	case isBooleanColumn(nonEmpty):
		return TypeBoolean
	case isIntegerColumn(nonEmpty):
		return TypeInteger
	case NumericRatio(nonEmpty) >= detectionThreshold:
		return TypeDecimal
	case isTimestampColumn(nonEmpty):
		return TypeTimestamp
	case DateRatio(nonEmpty) >= detectionThreshold:
		return TypeDate
	default:
		return TypeText
	}
}

func isIntegerColumn(values []string) bool {
	// Date-like values ("20/01/2024") must never be read as integers.
	for _, v := range values {
		if looksLikeDate(v) {
			return false
		}
	}
	ok := 0
	for _, v := range values {
		if _, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			ok++
		}
	}
	return float64(ok)/float64(len(values)) >= detectionThreshold
}

func isBooleanColumn(values []string) bool {
	seen := map[string]bool{}
	for _, v := range values {
		s := strings.ToLower(strings.TrimSpace(v))
		if s == "" {
			continue
		}
		if !booleanValues[s] {
			return false
		}
		seen[s] = true
	}
	return len(seen) >= 1
}

func isTimestampColumn(values []string) bool {
	hasTime := false
	for _, v := range values {
		if timePattern.MatchString(v) {
			hasTime = true
			break
		}
	}
	if !hasTime {
		return false
	}
	ok := 0
	for _, v := range values {
		if _, parsed := parseAny(v, timestampLayouts); parsed {
			ok++
		}
	}
	return float64(ok)/float64(len(values)) >= detectionThreshold
}

func looksLikeDate(v string) bool {
	for _, p := range datePatterns {
		if p.MatchString(strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}

func parseAny(v string, layouts []string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDate attempts all known date and timestamp layouts.
func ParseDate(v string) (time.Time, bool) {
	if t, ok := parseAny(v, timestampLayouts); ok {
		return t, true
	}
	return parseAny(v, dateLayouts)
}

// NumericRatio is the fraction of non-empty values parseable as numbers.
func NumericRatio(values []string) float64 {
	total, ok := 0, 0
	for _, v := range values {
		s := strings.TrimSpace(v)
		if s == "" {
			continue
		}
		total++
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			ok++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(ok) / float64(total)
}

// DateRatio is the fraction of non-empty values parseable as dates or
// timestamps.
func DateRatio(values []string) float64 {
	total, ok := 0, 0
	for _, v := range values {
		s := strings.TrimSpace(v)
		if s == "" {
			continue
		}
		total++
		if !looksLikeDate(s) && !timePattern.MatchString(s) {
			continue
		}
		if _, parsed := ParseDate(s); parsed {
			ok++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(ok) / float64(total)
}

// UniquenessRatio is distinct non-empty values over non-empty values.
func UniquenessRatio(values []string) float64 {
	seen := map[string]bool{}
	total := 0
	for _, v := range values {
		s := strings.TrimSpace(v)
		if s == "" {
			continue
		}
		total++
		seen[s] = true
	}
	if total == 0 {
		return 0
	}
	return float64(len(seen)) / float64(total)
}

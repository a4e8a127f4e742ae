package validation

import (
	"strings"

	"salespulse/internal/domain"
	"salespulse/internal/pkg/tabular"
)

// MatcherConfig holds the scoring thresholds. Zero values fall back to
// the defaults used in production.
type MatcherConfig struct {
	FoundThreshold      int // minimum combined score to report a match
	NameConclusiveScore int // name score at which content heuristics are skipped
	ContentScoreCeiling int // content ratios scale to at most this score
}

func (c MatcherConfig) withDefaults() MatcherConfig {
	if c.FoundThreshold <= 0 {
		c.FoundThreshold = 50
	}
	if c.NameConclusiveScore <= 0 {
		c.NameConclusiveScore = 70
	}
	if c.ContentScoreCeiling <= 0 {
		c.ContentScoreCeiling = 95
	}
	return c
}

// wordBanks maps each canonical header type to the names it commonly
// appears under in real spreadsheets.
var wordBanks = map[domain.HeaderType][]string{
	domain.HeaderTimestamp: {
		"timestamp", "date", "datetime", "time", "order date", "purchase date",
		"transaction date", "sale date", "created", "created at", "day",
		"invoice date", "period",
	},
	domain.HeaderProductID: {
		"product id", "product", "sku", "item", "item id", "product code",
		"item code", "item number", "article", "upc", "asin", "barcode",
		"model", "part number", "product name",
	},
	domain.HeaderQuantity: {
		"quantity", "qty", "count", "units", "unit", "number sold", "pieces",
		"items sold", "volume", "amount sold", "num",
	},
	domain.HeaderRevenue: {
		"revenue", "total", "price", "sales", "amount", "income", "value",
		"earnings", "turnover", "gross", "net", "subtotal", "total price",
		"sale amount", "unit price",
	},
}

// Match is the matcher verdict for one canonical type.
type Match struct {
	HeaderType domain.HeaderType
	Column     string
	Confidence int
	Found      bool
	Method     string // "name" or "content"
}

// Matcher scores dataset columns against the canonical header types.
// It is pure: no I/O, deterministic for a given input.
type Matcher struct {
	cfg MatcherConfig
}

func NewMatcher(cfg MatcherConfig) *Matcher {
	return &Matcher{cfg: cfg.withDefaults()}
}

// MatchHeaders finds the best column for each canonical type. Types are
// processed in canonical order and a claimed column is never reused, so
// one date column cannot satisfy both timestamp and product_id.
// sample maps column name to its sampled values; it may be nil when only
// name matching is possible.
func (m *Matcher) MatchHeaders(columns []string, sample map[string][]string) []Match {
	claimed := make(map[string]bool)
	results := make([]Match, 0, len(domain.AllHeaderTypes()))

	for _, ht := range domain.AllHeaderTypes() {
		best := Match{HeaderType: ht, Method: "name"}

		for _, col := range columns {
			if claimed[col] {
				continue
			}

			score := m.scoreName(col, ht)
			method := "name"

			// Content heuristics only break ties the name cannot settle.
			if score < m.cfg.NameConclusiveScore && sample != nil {
				if contentScore := m.scoreContent(ht, sample[col]); contentScore > score {
					score = contentScore
					method = "content"
				}
			}

			// strictly greater: the first column encountered wins ties
			if score > best.Confidence {
				best.Column = col
				best.Confidence = score
				best.Method = method
			}
		}

		if best.Confidence >= m.cfg.FoundThreshold {
			best.Found = true
			claimed[best.Column] = true
		} else {
			best.Column = ""
		}
		results = append(results, best)
	}
	return results
}

// scoreName compares a column name against the type's word bank:
// exact 100, containment 75-90, token overlap and edit distance below.
func (m *Matcher) scoreName(column string, ht domain.HeaderType) int {
	normCol := normalizeName(column)
	if normCol == "" {
		return 0
	}
	colTokens := strings.Fields(normCol)

	best := 0
	for _, word := range wordBanks[ht] {
		normWord := normalizeName(word)
		score := 0

		switch {
		case normCol == normWord:
			score = 100
		case containsAllTokens(colTokens, strings.Fields(normWord)):
			score = 90
		case len(normCol) >= 3 && len(normWord) >= 3 &&
			(strings.Contains(normCol, normWord) || strings.Contains(normWord, normCol)):
			// both sides need substance: a one-letter column sits inside
			// almost every bank word and must not count as containment
			score = 75
		default:
			if overlap := tokenOverlap(colTokens, strings.Fields(normWord)); overlap > 0 {
				score = 40 + int(overlap*25) // 40-65
			} else if sim := similarity(normCol, normWord); sim >= 0.6 {
				score = int(sim * 65) // close misspellings land 39-65
			}
		}

		if score > best {
			best = score
		}
	}
	return best
}

// scoreContent scores a column by what its values look like: date-like
// for timestamp, numeric for quantity and revenue, mostly-unique (and
// not date-like) for product identifiers.
func (m *Matcher) scoreContent(ht domain.HeaderType, values []string) int {
	if len(values) == 0 {
		return 0
	}

	var ratio float64
	switch ht {
	case domain.HeaderTimestamp:
		ratio = tabular.DateRatio(values)
	case domain.HeaderQuantity, domain.HeaderRevenue:
		ratio = tabular.NumericRatio(values)
	case domain.HeaderProductID:
		// Distinctive values suggest an identifier, but date and plain
		// numeric columns are unique too and must not qualify.
		if tabular.DateRatio(values) >= 0.5 || tabular.NumericRatio(values) >= 0.5 {
			return 0
		}
		ratio = tabular.UniquenessRatio(values)
	}

	return int(ratio * float64(m.cfg.ContentScoreCeiling))
}

// normalizeName lowercases, replaces punctuation with spaces, and
// singularizes tokens, so "Order_Dates" and "order date" compare equal.
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	for i, tok := range tokens {
		tokens[i] = singularize(tok)
	}
	return strings.Join(tokens, " ")
}

func singularize(tok string) string {
	if len(tok) >= 3 && strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss") {
		return tok[:len(tok)-1]
	}
	return tok
}

// containsAllTokens reports whether every want token appears in have.
func containsAllTokens(have, want []string) bool {
	if len(want) == 0 {
		return false
	}
	set := make(map[string]bool, len(have))
	for _, tok := range have {
		set[tok] = true
	}
	for _, tok := range want {
		if !set[tok] {
			return false
		}
	}
	return true
}

// tokenOverlap is the Jaccard index of the two token sets.
func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, tok := range a {
		setA[tok] = true
	}
	inter, union := 0, len(setA)
	seenB := make(map[string]bool, len(b))
	for _, tok := range b {
		if seenB[tok] {
			continue
		}
		seenB[tok] = true
		if setA[tok] {
			inter++
		} else {
			union++
		}
	}
	if inter == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// similarity is 1 - normalized Levenshtein distance.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len(a), len(b))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

package tabular

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9_]+`)
var multiUnderscore = regexp.MustCompile(`_+`)

// reservedColumnNames are SQL keywords and system columns a sanitized
// name must not collide with.
var reservedColumnNames = map[string]bool{
	"select": true, "from": true, "where": true, "insert": true,
	"update": true, "delete": true, "create": true, "drop": true,
	"table": true, "index": true, "user": true, "group": true,
	"order": true, "by": true, "having": true, "union": true,
	"join": true, "inner": true, "outer": true, "left": true,
	"right": true, "on": true, "as": true,
	"id": true, "created_at": true, "updated_at": true,
	"__sys_id": true, "__sys_created_at": true, "__sys_updated_at": true,
}

// SanitizeColumnName converts an arbitrary header into a safe SQL
// identifier: lowercase, underscores for everything non-alphanumeric,
// letter-first, reserved words suffixed.
func SanitizeColumnName(name string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(name), "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")

	if s == "" {
		return "unnamed_column"
	}
	if !unicode.IsLetter(rune(s[0])) {
		s = "col_" + s
	}
	if reservedColumnNames[s] {
		s += "_col"
	}
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}

// ColumnMapping maps each original header to a unique sanitized name,
// deduplicating collisions with numeric suffixes. Iteration follows the
// input order, so the mapping is deterministic.
func ColumnMapping(columns []string) map[string]string {
	mapping := make(map[string]string, len(columns))
	used := map[string]bool{
		"__sys_id": true, "__sys_created_at": true, "__sys_updated_at": true,
	}

	for _, original := range columns {
		name := SanitizeColumnName(original)
		if used[name] {
			base := name
			for i := 1; ; i++ {
				name = fmt.Sprintf("%s_%d", base, i)
				if !used[name] {
					break
				}
			}
		}
		mapping[original] = name
		used[name] = true
	}
	return mapping
}

// TableName builds the unique backing-table name for a dataset:
// user_<id>_<clean filename>_<timestamp>, lowercase, capped to the
// Postgres identifier limit.
func TableName(userID int64, filename string, now time.Time) string {
	base := filename
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	clean := nonAlnum.ReplaceAllString(strings.ToLower(base), "_")
	clean = multiUnderscore.ReplaceAllString(clean, "_")
	clean = strings.Trim(clean, "_")

	stamp := now.Format("20060102_150405")
	name := fmt.Sprintf("user_%d_%s_%s", userID, clean, stamp)
	if len(name) > 60 {
		name = fmt.Sprintf("user_%d_%s", userID, stamp)
	}
	return name
}

var validTableName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// ValidTableName reports whether name is safe to interpolate into DDL.
func ValidTableName(name string) bool {
	return validTableName.MatchString(name) && len(name) <= 63
}

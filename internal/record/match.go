package record

import (
	"strings"

	"golang.org/x/text/cases"
)

// MatchFields are searched by Match.
var MatchFields = []string{"name", "email", "phone", "college"}

// Match reports whether any searchable field contains query, ignoring case.
// A blank query matches every record.
func Match(r Record, query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	fold := cases.Fold()
	needle := fold.String(query)
	for _, field := range MatchFields {
		if strings.Contains(fold.String(r.Text(field)), needle) {
			return true
		}
	}
	return false
}

package record

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// TimeFields are tried in order when resolving a record's canonical time.
var TimeFields = []string{"registeredAt", "timestamp", "createdAt"}

// processStart is the fallback instant for records with no usable time.
// It is fixed for the life of the process so ordering stays stable.
var processStart = time.Now()

// Resolve returns the first parseable value among TimeFields.
func Resolve(r Record) (time.Time, bool) {
	for _, field := range TimeFields {
		if t, ok := ParseTime(r.Fields[field]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// ResolveTime is Resolve with the process start time as fallback. The
// fallback orders records; it does not mean the event happened now.
func ResolveTime(r Record) time.Time {
	if t, ok := Resolve(r); ok {
		return t
	}
	return processStart
}

// SortByTime orders records newest first. Ties keep their input order.
func SortByTime(records []Record) {
	keys := make([]time.Time, len(records))
	idx := make([]int, len(records))
	for i := range records {
		idx[i] = i
		keys[i] = ResolveTime(records[i])
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return keys[idx[a]].After(keys[idx[b]])
	})
	sorted := make([]Record, len(records))
	for i, j := range idx {
		sorted[i] = records[j]
	}
	copy(records, sorted)
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
}

// Layouts without an offset are read as local time, except date-only
// strings, which are UTC midnight.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseTime converts any of the timestamp shapes found in stored documents
// into an instant: native time.Time, ISO-8601 strings, epoch milliseconds,
// and serialized store timestamps ({seconds, nanos}). Zero and empty values
// count as absent.
func ParseTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, !x.IsZero()
	case string:
		return parseTimeString(x)
	case float64:
		return fromMillis(int64(x))
	case int64:
		return fromMillis(x)
	case int:
		return fromMillis(int64(x))
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromMillis(int64(n))
	case map[string]any:
		return parseTimestampMap(x)
	}
	return time.Time{}, false
}

func fromMillis(ms int64) (time.Time, bool) {
	if ms == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// parseTimestampMap handles a store timestamp that went through JSON.
func parseTimestampMap(m map[string]any) (time.Time, bool) {
	secs, ok := number(m, "seconds", "_seconds")
	if !ok {
		return time.Time{}, false
	}
	nanos, _ := number(m, "nanoseconds", "_nanoseconds", "nanos")
	return time.Unix(int64(secs), int64(nanos)), true
}

func number(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch n := m[k].(type) {
		case float64:
			return n, true
		case int64:
			return float64(n), true
		case int:
			return float64(n), true
		case json.Number:
			f, err := n.Float64()
			if err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

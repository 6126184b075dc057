// Package export writes record sets as CSV, JSON or YAML files.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vstopensource-gif/CodeNexus-Admin/internal/fileutil"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
)

// ErrNoData is returned when there are no records to export.
var ErrNoData = errors.New("no data to export")

// Format is an output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name. "yml" is accepted for YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown export format %q (want csv, json or yaml)", s)
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Columns returns the export header: id, then the first record's fields
// in sorted order.
func Columns(records []record.Record) []string {
	if len(records) == 0 {
		return nil
	}
	return append([]string{"id"}, records[0].FieldNames()...)
}

// Write encodes records to w.
func Write(w io.Writer, format Format, records []record.Record) error {
	if len(records) == 0 {
		return ErrNoData
	}
	switch format {
	case FormatCSV:
		return writeCSV(w, records)
	case FormatJSON:
		return writeJSON(w, records)
	case FormatYAML:
		return writeYAML(w, records)
	}
	return fmt.Errorf("unknown export format %q", format)
}

// ToFile writes records to path. An existing file is truncated; a symlink
// in its place is refused.
func ToFile(path string, format Format, records []record.Record) (err error) {
	if len(records) == 0 {
		return ErrNoData
	}
	f, err := fileutil.CreateNoFollow(path, 0644)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close export file: %w", cerr)
		}
	}()
	return Write(f, format, records)
}

// writeCSV quotes every cell and separates rows with "\n", matching the
// files the web dashboard produced.
func writeCSV(w io.Writer, records []record.Record) error {
	cols := Columns(records)
	var sb strings.Builder
	sb.WriteString(strings.Join(cols, ","))
	for _, r := range records {
		sb.WriteByte('\n')
		for i, c := range cols {
			if i > 0 {
				sb.WriteByte(',')
			}
			var v any = r.ID
			if c != "id" {
				v = r.Fields[c]
			}
			sb.WriteByte('"')
			sb.WriteString(strings.ReplaceAll(cell(v), `"`, `""`))
			sb.WriteByte('"')
		}
	}
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func cell(v any) string {
	switch x := normalize(v).(type) {
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return record.Text(x)
	}
}

func writeJSON(w io.Writer, records []record.Record) error {
	out := make([]map[string]any, len(records))
	for i, r := range records {
		out[i] = flatten(r)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// writeYAML emits one mapping per record with id first and the remaining
// fields sorted.
func writeYAML(w io.Writer, records []record.Record) error {
	doc := &yaml.Node{Kind: yaml.SequenceNode}
	for _, r := range records {
		m := &yaml.Node{Kind: yaml.MappingNode}
		keys := append([]string{"id"}, r.FieldNames()...)
		for _, k := range keys {
			var v any = r.ID
			if k != "id" {
				v = normalize(r.Fields[k])
			}
			var val yaml.Node
			if err := val.Encode(v); err != nil {
				return fmt.Errorf("encode %s.%s: %w", r.ID, k, err)
			}
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				&val,
			)
		}
		doc.Content = append(doc.Content, m)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("write yaml: %w", err)
	}
	return enc.Close()
}

func flatten(r record.Record) map[string]any {
	out := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		out[k] = normalize(v)
	}
	out["id"] = r.ID
	return out
}

// normalize converts date-like values to RFC 3339 strings, recursing into
// maps and arrays.
func normalize(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC().Format(time.RFC3339Nano)
	case map[string]any:
		if isTimestampMap(x) {
			if t, ok := record.ParseTime(x); ok {
				return t.UTC().Format(time.RFC3339Nano)
			}
		}
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

// isTimestampMap matches the {seconds, nanoseconds} shape a serialized
// store timestamp takes, and nothing with other keys.
func isTimestampMap(m map[string]any) bool {
	if len(m) == 0 || len(m) > 2 {
		return false
	}
	for k := range m {
		switch k {
		case "seconds", "_seconds", "nanoseconds", "_nanoseconds", "nanos":
		default:
			return false
		}
	}
	_, s := m["seconds"]
	_, us := m["_seconds"]
	return s || us
}

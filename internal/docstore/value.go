package docstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// encodeFields converts plain Go values into the store's typed value JSON.
func encodeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = encodeValue(v)
	}
	return out
}

func encodeValue(v any) map[string]any {
	switch x := v.(type) {
	case nil:
		return map[string]any{"nullValue": nil}
	case bool:
		return map[string]any{"booleanValue": x}
	case string:
		return map[string]any{"stringValue": x}
	case int:
		return map[string]any{"integerValue": strconv.Itoa(x)}
	case int64:
		return map[string]any{"integerValue": strconv.FormatInt(x, 10)}
	case float64:
		return map[string]any{"doubleValue": x}
	case time.Time:
		return map[string]any{"timestampValue": x.UTC().Format(time.RFC3339Nano)}
	case *time.Time:
		if x == nil {
			return map[string]any{"nullValue": nil}
		}
		return encodeValue(*x)
	case map[string]any:
		return map[string]any{"mapValue": map[string]any{"fields": encodeFields(x)}}
	case []any:
		values := make([]any, len(x))
		for i, item := range x {
			values[i] = encodeValue(item)
		}
		return map[string]any{"arrayValue": map[string]any{"values": values}}
	case []string:
		values := make([]any, len(x))
		for i, item := range x {
			values[i] = encodeValue(item)
		}
		return map[string]any{"arrayValue": map[string]any{"values": values}}
	default:
		return map[string]any{"stringValue": fmt.Sprint(x)}
	}
}

// decodeFields converts a document's typed field map into plain Go values.
func decodeFields(raw map[string]json.RawMessage) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for name, msg := range raw {
		v, err := decodeValue(msg)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func decodeValue(msg json.RawMessage) (any, error) {
	var typed map[string]json.RawMessage
	if err := json.Unmarshal(msg, &typed); err != nil {
		return nil, err
	}
	for kind, payload := range typed {
		switch kind {
		case "nullValue":
			return nil, nil
		case "stringValue", "referenceValue", "bytesValue":
			var s string
			err := json.Unmarshal(payload, &s)
			return s, err
		case "booleanValue":
			var b bool
			err := json.Unmarshal(payload, &b)
			return b, err
		case "integerValue":
			return decodeInteger(payload)
		case "doubleValue":
			return decodeDouble(payload)
		case "timestampValue":
			var s string
			if err := json.Unmarshal(payload, &s); err != nil {
				return nil, err
			}
			return time.Parse(time.RFC3339Nano, s)
		case "geoPointValue":
			var p struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			}
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, err
			}
			return map[string]any{"latitude": p.Latitude, "longitude": p.Longitude}, nil
		case "mapValue":
			var m struct {
				Fields map[string]json.RawMessage `json:"fields"`
			}
			if err := json.Unmarshal(payload, &m); err != nil {
				return nil, err
			}
			return decodeFields(m.Fields)
		case "arrayValue":
			var a struct {
				Values []json.RawMessage `json:"values"`
			}
			if err := json.Unmarshal(payload, &a); err != nil {
				return nil, err
			}
			out := make([]any, 0, len(a.Values))
			for _, item := range a.Values {
				v, err := decodeValue(item)
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("unsupported value %s", string(msg))
}

// decodeInteger accepts both the string form the API sends and a bare number.
func decodeInteger(payload json.RawMessage) (int64, error) {
	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		return strconv.ParseInt(s, 10, 64)
	}
	var n int64
	err := json.Unmarshal(payload, &n)
	return n, err
}

// decodeDouble accepts numbers and the string forms used for NaN/Infinity.
func decodeDouble(payload json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(payload, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(payload, &s); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}

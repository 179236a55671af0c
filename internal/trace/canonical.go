package trace

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical encodes r as canonical JSON: object keys sorted by UTF-16
// code units, strings NFC-normalized, no HTML escaping and no insignificant
// whitespace. Empty optional fields are omitted.
func MarshalCanonical(r Record) ([]byte, error) {
	return marshalValue(r.fields())
}

// MarshalLines encodes records as canonical JSON, one per line, with a
// trailing newline.
func MarshalLines(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	for i, r := range records {
		line, err := MarshalCanonical(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// fields flattens r into the generic shape marshalValue understands.
func (r Record) fields() map[string]any {
	obj := map[string]any{
		"type":  string(r.Type),
		"store": r.Store,
		"seq":   r.Seq,
	}
	optional := map[string]string{
		"tx_id":     r.TxID,
		"action_id": r.ActionID,
		"slice":     r.Slice,
		"effect":    r.Effect,
		"operation": r.Operation,
	}
	for k, v := range optional {
		if v != "" {
			obj[k] = v
		}
	}
	if len(r.Changed) > 0 {
		changed := make([]any, len(r.Changed))
		for i, c := range r.Changed {
			changed[i] = c
		}
		obj["changed"] = changed
	}
	if r.Noop {
		obj["noop"] = true
	}
	if r.Run != 0 {
		obj["run"] = r.Run
	}
	if len(r.Meta) > 0 {
		meta := make(map[string]any, len(r.Meta))
		for k, v := range r.Meta {
			meta[k] = v
		}
		obj["meta"] = meta
	}
	return obj
}

func marshalValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case string:
		return marshalString(val), nil
	case int64:
		return []byte(strconv.FormatInt(val, 10)), nil
	case int:
		return []byte(strconv.Itoa(val)), nil
	case bool:
		return []byte(strconv.FormatBool(val)), nil
	case []any:
		return marshalArray(val)
	case map[string]any:
		return marshalObject(val)
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// marshalString quotes s after NFC normalization. Only the quote, the
// backslash and control characters are escaped.
func marshalString(s string) []byte {
	s = norm.NFC.String(s)

	var buf bytes.Buffer
	buf.Grow(len(s) + 2)
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
	return buf.Bytes()
}

func marshalArray(arr []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := marshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalObject(obj map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(marshalString(k))
		buf.WriteByte(':')
		b, err := marshalValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// compareUTF16 orders strings by UTF-16 code units.
func compareUTF16(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	return slices.Compare(ua, ub)
}

package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// UnmarshalRaw decodes a generator payload kept as json.RawMessage.
func UnmarshalRaw(raw json.RawMessage, v any) error {
	return UnmarshalFlex([]byte(raw), v)
}

// MarshalNoEscape encodes v into JSON without escaping <, >, & into
// \u003c etc. Stream records and archived snapshots carry URLs and prose
// where the HTML escapes are noise.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Remove trailing newline from json.Encoder.Encode
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalNoEscapeIndent is MarshalNoEscape with indentation, used for the
// human-readable snapshot objects in the archive.
func MarshalNoEscapeIndent(v any, prefix, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(prefix, indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnescapeUnicodeString converts JSON unicode escapes like "\u003e" into
// the actual characters. Handles double-escaped sequences like "\\u003e".
func UnescapeUnicodeString(s string) (string, error) {
	// Force JSON to treat the string as a quoted JSON string.
	esc := strings.ReplaceAll(s, `\`, `\\`)
	esc = strings.ReplaceAll(esc, `"`, `\"`)
	var out string
	if err := json.Unmarshal([]byte(`"`+esc+`"`), &out); err != nil {
		return "", err
	}
	return out, nil
}

// NormalizeJSONUnicode parses JSON bytes and recursively unescapes any
// remaining double-escaped unicode sequences inside string values. Models
// occasionally emit payloads wrapped in an extra layer of string quoting;
// this also unwraps those.
func NormalizeJSONUnicode(raw []byte) ([]byte, error) {
	var anyVal any
	if err := json.Unmarshal(raw, &anyVal); err != nil {
		var s string
		if err2 := json.Unmarshal(raw, &s); err2 != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(s), &anyVal); err != nil {
			return nil, errors.New("jsonutil: cannot parse JSON payload")
		}
	}
	return MarshalNoEscape(deepUnescape(anyVal))
}

// UnmarshalFlex tries a direct unmarshal first and falls back to
// NormalizeJSONUnicode, which recovers double-escaped model output.
func UnmarshalFlex(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err == nil {
		return nil
	}
	norm, err := NormalizeJSONUnicode(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(norm, v)
}

func deepUnescape(v any) any {
	switch x := v.(type) {
	case string:
		if s, err := UnescapeUnicodeString(x); err == nil {
			return s
		}
		return x
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = deepUnescape(x[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = deepUnescape(vv)
		}
		return out
	default:
		return v
	}
}

// Package canonical implements the deterministic encoding used as the exact
// message input to signing. Two semantically equal values (same keys and
// values, regardless of map insertion order) always encode to identical
// bytes, so the signer and verifier can be run independently.
//
// The encoding is compact JSON with object keys sorted lexicographically and
// no HTML escaping. Numbers decoded as json.Number are emitted verbatim, so
// values round-trip through a decode/re-encode cycle byte-for-byte.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Encode returns the canonical byte encoding of v. Supported values are nil,
// booleans, numbers (json.Number or Go numeric types), strings, []any
// sequences, and map[string]any mappings, nested arbitrarily.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case json.Number:
		if t == "" {
			return fmt.Errorf("empty json.Number")
		}
		buf.WriteString(string(t))
	case map[string]any:
		return encodeMap(buf, t)
	case []any:
		return encodeSlice(buf, t)
	default:
		return encodeScalar(buf, v)
	}
	return nil
}

func encodeMap(buf *bytes.Buffer, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeScalar(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := encodeValue(buf, m[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func encodeSlice(buf *bytes.Buffer, s []any) error {
	buf.WriteByte('[')
	for i, e := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(buf, e); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

// encodeScalar writes the standard JSON encoding of a scalar value, without
// the HTML escaping applied by json.Marshal.
func encodeScalar(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode scalar %v: %w", v, err)
	}
	// json.Encoder.Encode appends a newline, which must not appear in the
	// canonical form.
	b := buf.Bytes()
	if len(b) > 0 && b[len(b)-1] == '\n' {
		buf.Truncate(len(b) - 1)
	}
	return nil
}

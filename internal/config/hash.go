package config

import (
	"encoding/json"
	"hash/fnv"

	"golang.org/x/text/unicode/norm"
)

func hashBytes(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// CanonicalHash hashes a JSON document after canonicalizing it: key order,
// whitespace and Unicode normalization form do not change the result.
// Invalid JSON is hashed as raw bytes.
func CanonicalHash(raw []byte) uint64 {
	if len(raw) == 0 {
		return 0
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return hashBytes(raw)
	}
	b, err := json.Marshal(nfc(v))
	if err != nil {
		return hashBytes(raw)
	}
	return hashBytes(b)
}

func nfc(in any) any {
	switch x := in.(type) {
	case string:
		return norm.NFC.String(x)
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[norm.NFC.String(k)] = nfc(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = nfc(x[i])
		}
		return x
	default:
		return in
	}
}

package ir

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Canonical renders a constant as stable text. The rendering is used both
// for display and as input to fingerprints, so two constants render the
// same text if and only if they are the same value.
//
// Key rules:
//  1. Strings are NFC normalised and JSON quoted without HTML escaping
//  2. Decimals use their exact representation with an "m" suffix ("12.5m")
//  3. Timestamps are RFC 3339 in UTC, prefixed with "@"
//  4. Null renders as "null"
func Canonical(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "null"
	case StringValue:
		return quoteCanonical(string(val))
	case IntValue:
		return strconv.FormatInt(int64(val), 10)
	case BoolValue:
		if val {
			return "true"
		}
		return "false"
	case DecimalValue:
		return val.Decimal.String() + "m"
	case DateTimeValue:
		return "@" + val.Time.UTC().Format(time.RFC3339Nano)
	default:
		// Unreachable: Value is sealed.
		panic("ir: unknown value type")
	}
}

// quoteCanonical produces a JSON string literal with NFC normalisation.
// No HTML escaping: <, > and & are written as is.
func quoteCanonical(s string) string {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		// Encoding a Go string cannot fail.
		return strconv.Quote(normalized)
	}

	// json.Encoder adds trailing newline, remove it
	return string(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}))
}

// NormalizeKey NFC-normalises a token key or path so that visually equal
// input from different sources compares equal.
func NormalizeKey(s string) string {
	return norm.NFC.String(s)
}

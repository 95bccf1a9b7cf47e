package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name string
		in   any
		typ  *Type
		want string
	}{
		{"string", "abc", String, `"abc"`},
		{"int", 42, Int, "42"},
		{"int from string", "7", Int, "7"},
		{"int widens to decimal", 3, Decimal, "3m"},
		{"decimal from string", "12.50", Decimal, "12.5m"},
		{"bool", true, Bool, "true"},
		{"bool from string", "false", Bool, "false"},
		{"datetime", "2024-01-02T03:04:05Z", DateTime, "@2024-01-02T03:04:05Z"},
		{"null", nil, String, "null"},
		{"value passthrough", IntValue(5), Int, "5"},
		{"int value to decimal", IntValue(5), Decimal, "5m"},
		{"scalar by name", 9, ScalarOf("int"), "9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Convert(tt.in, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Canonical(v))
		})
	}
}

func TestConvert_Errors(t *testing.T) {
	_, err := Convert("abc", Int)
	assert.Error(t, err)

	_, err = Convert(true, String)
	assert.Error(t, err)

	_, err = Convert(StringValue("x"), Int)
	assert.Error(t, err)

	_, err = Convert("not-a-date", DateTime)
	assert.Error(t, err)
}

func TestCanonicalString_NoHTMLEscape(t *testing.T) {
	assert.Equal(t, `"a<b>&c"`, Canonical(StringValue("a<b>&c")))
	assert.Equal(t, `"say \"hi\""`, Canonical(StringValue(`say "hi"`)))
}

func TestCanonicalString_NFC(t *testing.T) {
	// "é" as e + combining acute accent normalises to the precomposed form.
	decomposed := StringValue("e\u0301")
	precomposed := StringValue("\u00e9")

	assert.Equal(t, Canonical(precomposed), Canonical(decomposed))
	assert.Equal(t, "\u00e9", NormalizeKey("e\u0301"))
}

func TestCanonicalDateTime_UTC(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	v := DateTimeValue{time.Date(2024, 1, 1, 1, 0, 0, 0, loc)}

	assert.Equal(t, "@2024-01-01T00:00:00Z", Canonical(v))
}

func TestHashWithDomain(t *testing.T) {
	a := HashWithDomain(DomainExpr, []byte("x"))
	b := HashWithDomain("qtoken/other/v1", []byte("x"))

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b, "domains must separate identical data")
	assert.Equal(t, a, HashWithDomain(DomainExpr, []byte("x")))
}

func TestMustDecimal_Panics(t *testing.T) {
	assert.Panics(t, func() { MustDecimal("abc") })
	assert.Equal(t, "1.5m", Canonical(MustDecimal("1.50")))
}

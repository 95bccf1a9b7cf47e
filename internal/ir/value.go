package ir

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Value is a sealed interface representing constant values in expressions.
// Only Null, StringValue, IntValue, BoolValue, DecimalValue and
// DateTimeValue implement it.
// There is no float value: fractional numbers are decimals.
type Value interface {
	irValue() // Sealed - only these types implement it
	Type() *Type
}

// Null is the null constant. Typ is the type the null stands for and may be
// nil when unknown.
type Null struct {
	Typ *Type
}

func (Null) irValue() {}

// Type returns the type the null stands for.
func (n Null) Type() *Type { return n.Typ }

// StringValue is a string constant.
type StringValue string

func (StringValue) irValue() {}

// Type returns String.
func (StringValue) Type() *Type { return String }

// IntValue is an integer constant.
type IntValue int64

func (IntValue) irValue() {}

// Type returns Int.
func (IntValue) Type() *Type { return Int }

// BoolValue is a boolean constant.
type BoolValue bool

func (BoolValue) irValue() {}

// Type returns Bool.
func (BoolValue) Type() *Type { return Bool }

// DecimalValue is an exact decimal constant.
type DecimalValue struct {
	decimal.Decimal
}

func (DecimalValue) irValue() {}

// Type returns Decimal.
func (DecimalValue) Type() *Type { return Decimal }

// DateTimeValue is a UTC timestamp constant.
type DateTimeValue struct {
	time.Time
}

func (DateTimeValue) irValue() {}

// Type returns DateTime.
func (DateTimeValue) Type() *Type { return DateTime }

// NewDecimal parses a decimal constant.
func NewDecimal(s string) (DecimalValue, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return DecimalValue{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return DecimalValue{d}, nil
}

// MustDecimal is like NewDecimal but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDecimal(s string) DecimalValue {
	d, err := NewDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Convert coerces a Go value (as decoded from YAML, JSON or CUE) into a
// constant of type t. Integers widen to decimals; strings parse into
// decimals, integers, booleans and RFC 3339 timestamps.
func Convert(v any, t *Type) (Value, error) {
	if v == nil {
		return Null{Typ: t}, nil
	}
	t = canonicalScalar(t)
	if val, ok := v.(Value); ok {
		return convertValue(val, t)
	}
	switch t {
	case String, Guid:
		switch x := v.(type) {
		case string:
			return StringValue(x), nil
		}
	case Int:
		switch x := v.(type) {
		case int:
			return IntValue(x), nil
		case int64:
			return IntValue(x), nil
		case string:
			n, err := strconv.ParseInt(x, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid int %q: %w", x, err)
			}
			return IntValue(n), nil
		}
	case Decimal:
		switch x := v.(type) {
		case int:
			return DecimalValue{decimal.NewFromInt(int64(x))}, nil
		case int64:
			return DecimalValue{decimal.NewFromInt(x)}, nil
		case float64:
			return DecimalValue{decimal.NewFromFloat(x)}, nil
		case string:
			return NewDecimal(x)
		}
	case Bool:
		switch x := v.(type) {
		case bool:
			return BoolValue(x), nil
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return nil, fmt.Errorf("invalid bool %q: %w", x, err)
			}
			return BoolValue(b), nil
		}
	case DateTime:
		switch x := v.(type) {
		case time.Time:
			return DateTimeValue{x.UTC()}, nil
		case string:
			ts, err := time.Parse(time.RFC3339, x)
			if err != nil {
				return nil, fmt.Errorf("invalid datetime %q: %w", x, err)
			}
			return DateTimeValue{ts.UTC()}, nil
		}
	}
	return nil, fmt.Errorf("cannot convert %T to %s", v, t)
}

// canonicalScalar maps a scalar type to the shared built-in instance with
// the same name so that pointer comparisons against String, Int, ... hold.
func canonicalScalar(t *Type) *Type {
	if t != nil && t.Kind == KindScalar {
		if s, ok := Scalars[t.Name]; ok {
			return s
		}
	}
	return t
}

func convertValue(v Value, t *Type) (Value, error) {
	if Equal(v.Type(), t) {
		return v, nil
	}
	switch x := v.(type) {
	case Null:
		return Null{Typ: t}, nil
	case IntValue:
		if t == Decimal {
			return DecimalValue{decimal.NewFromInt(int64(x))}, nil
		}
	case StringValue:
		if t == Guid {
			return x, nil
		}
	}
	return nil, fmt.Errorf("cannot convert %s constant to %s", v.Type(), t)
}

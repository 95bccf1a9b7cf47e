// Package ir provides the foundational types shared by every qtoken package.
//
// This package contains the type model (Type, Kind, Implementations,
// PropertyRoute) and the constant values that appear in expression trees.
// All other internal packages import ir; ir imports nothing internal. This
// keeps ir the bottom layer with no circular dependencies.
//
// Key design constraints:
//   - Types are immutable once constructed and may be shared freely between
//     goroutines and compilations
//   - Implementations are always sorted and de-duplicated, so two sets with
//     the same members compare equal with Equal
//   - Constant values are a sealed set (Null, String, Int, Bool, Decimal,
//     DateTime); decimals use shopspring/decimal, never float64
//   - Canonical text is NFC normalised so that fingerprints are stable
package ir

// Package core provides number parsing and coercion utilities.
//
// This file contains the functions adapters use to turn cell text into
// numbers, and the numeric check the aggregator applies to raw cell values.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseNumber converts a cell string to a float64.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign. Thousands separators are not supported: a string
// with more than one separator is rejected.
//
// Examples:
//
//	ParseNumber("12.34") -> 12.34, true
//	ParseNumber("12,34") -> 12.34, true
//	ParseNumber("-3")    -> -3, true
//	ParseNumber("1.2.3") -> 0, false
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	body := strings.TrimLeft(s, "+-")
	if len(s)-len(body) > 1 || body == "" {
		return 0, false
	}
	parts := strings.Split(body, ".")
	if len(parts) > 2 {
		return 0, false
	}
	digits := 0
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return 0, false
			}
			digits++
		}
	}
	if digits == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// NumericValue reports whether v is a Go number and returns it as float64.
// Strings are never numbers here; adapters convert them with ParseNumber.
func NumericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// cellAmount is the contribution of a value cell: numbers floored at zero
// and capped at math.MaxFloat64, anything else zero.
func cellAmount(v any) float64 {
	f, ok := NumericValue(v)
	if !ok || math.IsNaN(f) || f < 0 {
		return 0
	}
	return math.Min(f, math.MaxFloat64)
}

// addAmounts sums two non-negative amounts, saturating at math.MaxFloat64
// so totals stay encodable as JSON.
func addAmounts(a, b float64) float64 {
	return math.Min(a+b, math.MaxFloat64)
}

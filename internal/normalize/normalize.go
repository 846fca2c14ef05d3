// Package normalize canonicalizes the free-text identifiers, dates and numbers
// found in form exports and tracking workbooks.
package normalize

import (
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// KeySeparator joins the municipality and unit parts of an entity key.
const KeySeparator = "_"

// Text lower-cases and trims s and strips its accents: the string is
// decomposed (NFKD) and combining marks are dropped. Other letters such as
// "ß" or "ø" are kept.
func Text(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(out)
}

// Unit reduces a recycling-unit number to its integer-string form: only the
// digits are kept and leading zeros dropped, so "007" and "UVR 7" both become
// "7". A spreadsheet's integral suffix (".0", ",00") is removed first. Input
// without digits yields "".
func Unit(s string) string {
	s = trimIntegralSuffix(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimLeft(b.String(), "0")
	if digits == "" && b.Len() > 0 {
		return "0"
	}
	return digits
}

// trimIntegralSuffix drops a trailing "." or "," followed only by zeros.
func trimIntegralSuffix(s string) string {
	i := strings.LastIndexAny(s, ".,")
	if i <= 0 || i == len(s)-1 {
		return s
	}
	if strings.Trim(s[i+1:], "0") != "" {
		return s
	}
	return s[:i]
}

// Key builds the composite entity key. ok is false when the municipality is
// empty after normalization; such records cannot be keyed and must be skipped.
func Key(municipality, unit string) (key string, ok bool) {
	m := Text(municipality)
	if m == "" {
		return "", false
	}
	return m + KeySeparator + Unit(unit), true
}

// Number coerces a cell to a float. Both "1234.5" and "1.234,5" are accepted.
// Empty or non-numeric input reports ok=false so "no data" stays distinct
// from a reported zero.
func Number(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, false
	}

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			return 0, false
		}
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

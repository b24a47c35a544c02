// Package nationalid formats and checks Brazilian CPF numbers, the national
// ID used as the login credential of privileged accounts.
package nationalid

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	// Length is the number of digits in a complete national ID
	Length = 11

	// NotProvided is displayed when a record carries no national ID
	NotProvided = "not provided"
)

// Digits returns only the ASCII digits of raw. Input is NFKC-normalised first
// so full-width digits typed on some keyboards are kept.
func Digits(raw string) string {
	normalized := norm.NFKC.String(raw)

	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Mask formats raw as XXX.XXX.XXX-XX. Partial input is grouped progressively
// (3-3-3-2) the way it appears while being typed; digits beyond the eleventh
// are dropped. Mask never fails and is idempotent.
func Mask(raw string) string {
	d := Digits(raw)
	if len(d) > Length {
		d = d[:Length]
	}

	switch {
	case len(d) <= 3:
		return d
	case len(d) <= 6:
		return d[:3] + "." + d[3:]
	case len(d) <= 9:
		return d[:3] + "." + d[3:6] + "." + d[6:]
	default:
		return d[:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
	}
}

// Display formats a stored national ID for presentation, returning
// NotProvided when there is nothing to show.
func Display(raw string) string {
	if Digits(raw) == "" {
		return NotProvided
	}
	return Mask(raw)
}

// Complete reports whether raw contains exactly Length digits.
func Complete(raw string) bool {
	return len(Digits(raw)) == Length
}

// Valid reports whether raw is a complete national ID with correct check
// digits. Sequences of a single repeated digit are rejected.
func Valid(raw string) bool {
	d := Digits(raw)
	if len(d) != Length {
		return false
	}
	if strings.Count(d, d[:1]) == Length {
		return false
	}

	return checkDigit(d[:9], 10) == int(d[9]-'0') &&
		checkDigit(d[:10], 11) == int(d[10]-'0')
}

// checkDigit computes one verification digit over prefix, with weights
// counting down from weight.
func checkDigit(prefix string, weight int) int {
	sum := 0
	for i := 0; i < len(prefix); i++ {
		sum += int(prefix[i]-'0') * (weight - i)
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		return 0
	}
	return rest
}

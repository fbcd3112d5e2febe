// Package format normalises raw keystroke input into the canonical display
// strings shown in the payment form and on the card preview.
package format

import "strings"

// Placeholders shown on the card preview while a field is empty.
const (
	PlaceholderCardholder = "Mrs Kate Smith"
	PlaceholderCardNumber = "1722 2646 0312 1234"
	PlaceholderExpiry     = "12/25"
)

const (
	cardGroupSize   = 4
	expiryMonthSize = 2
	expiryYearSize  = 2
)

// Digits drops every rune that is not an ASCII digit.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// CardNumber groups the digits of s in blocks of four separated by a single
// space. No upper bound is applied; the validator rejects overlong input.
func CardNumber(s string) string {
	digits := Digits(s)
	if digits == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(digits) + len(digits)/cardGroupSize)
	for i := 0; i < len(digits); i++ {
		if i > 0 && i%cardGroupSize == 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(digits[i])
	}
	return b.String()
}

// Expiry shapes s as MM/YY. Once two digits are present a slash follows the
// month and at most two year digits are kept.
func Expiry(s string) string {
	digits := Digits(s)
	if len(digits) < expiryMonthSize {
		return digits
	}
	year := digits[expiryMonthSize:]
	if len(year) > expiryYearSize {
		year = year[:expiryYearSize]
	}
	return digits[:expiryMonthSize] + "/" + year
}

// CVV keeps only the digits of s.
func CVV(s string) string {
	return Digits(s)
}

// PreviewOr returns value unless it is empty, in which case fallback is used.
func PreviewOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

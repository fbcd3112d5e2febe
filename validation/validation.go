// Package validation holds the pure field predicates of the payment form.
// Each validator reports validity plus a reason code; turning a reason into
// text or style is left to the presentation package.
package validation

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"cardform-service/models"
)

// Reason explains why a field failed validation
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonTooShort          Reason = "too_short"
	ReasonInvalidCharacters Reason = "invalid_characters"
	ReasonDigitCount        Reason = "digit_count"
	ReasonBadFormat         Reason = "bad_format"
	ReasonExpired           Reason = "expired"
)

// Result is the outcome of validating a single field
type Result struct {
	Valid  bool   `json:"valid"`
	Reason Reason `json:"reason,omitempty"`
}

// OK is the result of a passing validator.
var OK = Result{Valid: true}

func fail(r Reason) Result {
	return Result{Reason: r}
}

const (
	minCardholderLength = 2
	cardNumberDigits    = 16
	cvvDigits           = 3
)

var (
	cardholderRe = regexp.MustCompile(`^[a-zA-Z\s.'-]+$`)
	digitsRe     = regexp.MustCompile(`^\d+$`)
	expiryRe     = regexp.MustCompile(`^(0[1-9]|1[0-2])/([0-9]{2})$`)
	whitespaceRe = regexp.MustCompile(`\s`)
)

// Cardholder requires at least two characters after trimming, drawn from
// letters, whitespace, apostrophe, period and hyphen.
func Cardholder(value string) Result {
	name := strings.TrimSpace(value)
	if utf8.RuneCountInString(name) < minCardholderLength {
		return fail(ReasonTooShort)
	}
	if !cardholderRe.MatchString(name) {
		return fail(ReasonInvalidCharacters)
	}
	return OK
}

// CardNumber requires exactly sixteen digits once whitespace is removed.
func CardNumber(value string) Result {
	digits := whitespaceRe.ReplaceAllString(value, "")
	if len(digits) != cardNumberDigits || !digitsRe.MatchString(digits) {
		return fail(ReasonDigitCount)
	}
	return OK
}

// CVV requires exactly three digits.
func CVV(value string) Result {
	if len(value) != cvvDigits || !digitsRe.MatchString(value) {
		return fail(ReasonDigitCount)
	}
	return OK
}

// Expiry requires an MM/YY value whose month has not ended before now.
// Two-digit years are read as 20YY; the month is compared in now's location.
func Expiry(value string, now time.Time) Result {
	m := expiryRe.FindStringSubmatch(value)
	if m == nil {
		return fail(ReasonBadFormat)
	}
	month, _ := strconv.Atoi(m[1])
	yy, _ := strconv.Atoi(m[2])
	if expired(2000+yy, time.Month(month), now) {
		return fail(ReasonExpired)
	}
	return OK
}

// expired reports whether now is past the last instant of year/month.
func expired(year int, month time.Month, now time.Time) bool {
	firstNext := time.Date(year, month, 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
	end := firstNext.Add(-time.Nanosecond)
	return now.After(end)
}

// Validator checks one field value at a given instant
type Validator func(value string, now time.Time) Result

// For returns the validator bound to a field.
func For(field models.Field) Validator {
	switch field {
	case models.FieldCardholder:
		return func(v string, _ time.Time) Result { return Cardholder(v) }
	case models.FieldCardNumber:
		return func(v string, _ time.Time) Result { return CardNumber(v) }
	case models.FieldExpiry:
		return Expiry
	case models.FieldCVV:
		return func(v string, _ time.Time) Result { return CVV(v) }
	}
	return func(string, time.Time) Result { return OK }
}

// All validates every field in values and returns one result per field.
// A missing value is validated as the empty string.
func All(values map[models.Field]string, now time.Time) map[models.Field]Result {
	results := make(map[models.Field]Result, len(models.Fields))
	for _, f := range models.Fields {
		results[f] = For(f)(values[f], now)
	}
	return results
}

// Failed returns the invalid entries of results.
func Failed(results map[models.Field]Result) map[models.Field]Result {
	failed := make(map[models.Field]Result)
	for f, r := range results {
		if !r.Valid {
			failed[f] = r
		}
	}
	return failed
}

package valuation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseNumber parses a user entered number.
//
// It accepts a comma as decimal separator (or as thousand separator before a
// dot), spaces as thousand separators and a trailing '%' meaning hundredths
// ("8%" is 0.08). Anything else, exponents included, is rejected with a
// *MalformedNumberError, so that a text that is not a number never reaches the
// model.
func ParseNumber(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	percent := strings.HasSuffix(s, "%")
	if percent {
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, &MalformedNumberError{Input: text}
	}
	switch dot := strings.Index(s, "."); {
	case dot >= 0:
		if strings.LastIndex(s, ",") > dot {
			// "1.234,5": a dot used as thousand separator.
			return decimal.Zero, &MalformedNumberError{Input: text}
		}
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ",") == 1:
		s = strings.Replace(s, ",", ".", 1)
	}
	if s == "" {
		return decimal.Zero, &MalformedNumberError{Input: text}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &MalformedNumberError{Input: text}
	}
	if percent {
		d = d.Shift(-2)
	}
	return d, nil
}

// ParseValue parses a user input into a model leaf: numbers become Number,
// "true"/"false" become Bool, "null" becomes Null and quoted text becomes
// String. Unquoted text that is not a number is a malformed number.
func ParseValue(text string) (Value, error) {
	s := strings.TrimSpace(text)
	switch s {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	case "null":
		return Null{}, nil
	}
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		return String(s[1 : len(s)-1]), nil
	}
	d, err := ParseNumber(s)
	if err != nil {
		return nil, err
	}
	return N(d), nil
}

// maxExponent bounds the decimal exponent of the numbers read from JSON.
const maxExponent = 64

// checkExponent rejects numbers whose text form would be huge, like 1e-999999.
func checkExponent(d decimal.Decimal) error {
	if e := d.Exponent(); e > maxExponent || e < -maxExponent {
		return fmt.Errorf("exponent %d out of range [-%d, %d]", e, maxExponent, maxExponent)
	}
	return nil
}

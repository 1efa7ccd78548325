package renderer

import (
	"strings"
	"text/template"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var funcs = template.FuncMap{
	"pct":   pct,
	"mult":  mult,
	"num":   num,
	"money": formatMoney,
	"flag":  flag,
	"cell":  cell,
}

// value returns the decimal held by v, a Field or a decimal.Decimal.
func value(v any) (decimal.Decimal, bool) {
	switch v := v.(type) {
	case Field:
		return v.Value, v.Set
	case decimal.Decimal:
		return v, true
	case float64:
		return decimal.NewFromFloat(v), true
	}
	return decimal.Zero, false
}

// pct formats a fraction as a percentage: 0.0825 is "8.25%".
func pct(v any) string {
	d, ok := value(v)
	if !ok {
		return "-"
	}
	return d.Shift(2).Round(2).String() + "%"
}

// mult formats a multiple: 4.5 is "4.5x".
func mult(v any) string {
	d, ok := value(v)
	if !ok {
		return "-"
	}
	return d.Round(2).StringFixed(1) + "x"
}

func num(v any) string {
	d, ok := value(v)
	if !ok {
		return "-"
	}
	return d.String()
}

// formatMoney formats an amount in major units of the currency code.
func formatMoney(v any, code string) string {
	d, ok := value(v)
	if !ok {
		return "-"
	}
	// to get a never nil currency I need to call the Money constructor
	cur := money.New(0, code).Currency()
	return cur.Formatter().Format(d.Shift(int32(cur.Fraction)).IntPart())
}

// flag marks values tracked by a source.
func flag(f Field) string {
	if f.Mode == "auto" {
		return " ⟳"
	}
	return ""
}

// cell escapes text for a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

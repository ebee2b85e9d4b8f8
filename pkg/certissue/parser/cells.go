package parser

import (
	"math"
	"strconv"
	"strings"
)

// cellText converts a raw cell value to the text stored in a row.
// Numbers stored in exponent notation are printed the way a spreadsheet
// shows them in a General cell; every other value is returned unchanged so
// text such as "007" keeps its leading zeros.
func cellText(s string) string {
	if s == "" || !strings.ContainsAny(s, "Ee") {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	return formatNumber(f)
}

// formatNumber prints f in plain decimal notation unless its magnitude
// needs an exponent (below 1e-6 or at least 1e21).
func formatNumber(f float64) string {
	abs := math.Abs(f)
	if abs == 0 || (abs >= 1e-6 && abs < 1e21) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	// 1e-07 -> 1e-7
	mant, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mant + "e" + sign + digits
}

package economy

import (
	"math"
	"strconv"
	"strings"
)

var suffixes = []struct {
	below float64
	div   float64
	sfx   string
}{
	{1e6, 1e3, "k"},
	{1e9, 1e6, "m"},
	{1e12, 1e9, "b"},
	{1e15, 1e12, "t"},
	{1e18, 1e15, "s"},
}

// Format renders a display number. Values under 1000 are printed as-is;
// larger values are scaled to a suffix and cut (not rounded) to two decimals.
func Format(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case math.IsNaN(v):
		return "NaN"
	case v < 1e3:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	for _, s := range suffixes {
		if v < s.below {
			return cut2(v/s.div) + s.sfx
		}
	}
	return cut2(v/1e18) + "q"
}

func cut2(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	dot := strings.IndexByte(s, '.')
	if dot < 0 || len(s)-dot-1 <= 2 {
		return s
	}
	return s[:dot+3]
}

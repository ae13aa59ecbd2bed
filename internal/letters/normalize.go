package letters

import (
	"sort"
	"strings"
)

var punctuation = strings.NewReplacer(
	".", "", ",", "", "/", "", "#", "", "!", "", "$", "", "%", "", "^", "",
	"&", "", "*", "", ";", "", ":", "", "{", "", "}", "", "=", "", "-", "",
	"_", "", "`", "", "~", "", "(", "", ")", "",
)

// Words lowercases s, drops punctuation and splits on any whitespace.
func Words(s string) []string {
	return strings.Fields(punctuation.Replace(strings.ToLower(s)))
}

// SortKey orders the characters of a path so that the same set of powerups
// always names the same letter.
func SortKey(path string) string {
	b := []byte(path)
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
	return string(b)
}

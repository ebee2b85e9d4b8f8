package parser

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// StemKey returns the join key of an image file: the base name up to its
// first ".". No case folding or trimming is applied.
func StemKey(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	stem, _, _ := strings.Cut(base, ".")
	return stem
}

// NormalizeKey puts key into Unicode NFC so that decomposed file names
// (as produced by macOS) match keys typed into a spreadsheet.
func NormalizeKey(key string) string {
	return norm.NFC.String(key)
}

package parcel

import (
	"regexp"
	"strings"
)

// legalSuffixes canonicalizes spellings of entity suffixes. Suffixes are
// kept so "ACME LLC" and "ACME INC" stay distinct owners.
var legalSuffixes = []struct {
	variants []string
	canon    string
}{
	{[]string{" L.L.C.", " L.L.C", " L L C"}, " LLC"},
	{[]string{" INC.", " INCORPORATED"}, " INC"},
	{[]string{" CORP.", " CORPORATION"}, " CORP"},
	{[]string{" LTD.", " LIMITED"}, " LTD"},
	{[]string{" L.P.", " L.P"}, " LP"},
	{[]string{" L.L.P.", " L.L.P"}, " LLP"},
	{[]string{" CO."}, " CO"},
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// NormalizeOwner standardizes an owner name for portfolio grouping:
// upper-case, accents folded, legal suffix spellings unified, punctuation
// removed and whitespace collapsed. Blank input returns "".
func NormalizeOwner(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.ToUpper(foldASCII(name))

	for _, sfx := range legalSuffixes {
		matched := false
		for _, v := range sfx.variants {
			if strings.HasSuffix(name, v) {
				name = strings.TrimSuffix(name, v) + sfx.canon
				matched = true
				break
			}
		}
		if matched {
			break
		}
	}

	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"&", " AND ",
		"-", " ",
		"/", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

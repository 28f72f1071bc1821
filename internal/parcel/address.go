package parcel

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// streetTokens contracts street suffixes and directionals to the short form
// used by the join key. Lookups are per whitespace-separated token.
var streetTokens = map[string]string{
	"AVENUE":    "AVE",
	"AV":        "AVE",
	"STREET":    "ST",
	"BOULEVARD": "BLVD",
	"PLACE":     "PL",
	"ROAD":      "RD",
	"DRIVE":     "DR",
	"PARKWAY":   "PKWY",
	"TERRACE":   "TER",
	"LANE":      "LN",
	"COURT":     "CT",
	"EAST":      "E",
	"WEST":      "W",
	"NORTH":     "N",
	"SOUTH":     "S",
}

// NormalizeAddress builds the canonical address join key from a house
// number and street name. ok is false when either half is empty after
// normalization.
func NormalizeAddress(house, street string) (string, bool) {
	h := alnumOnly(strings.ToUpper(foldASCII(house)))
	if h == "" {
		return "", false
	}

	s := normalizeStreet(street)
	if s == "" {
		return "", false
	}
	return h + " " + s, true
}

// SplitAddress splits a one-line address ("12-34 31 AVENUE") into its
// house number and street. A leading token without digits means the
// address has no house number.
func SplitAddress(full string) (house, street string) {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "", ""
	}
	if strings.IndexFunc(fields[0], unicode.IsDigit) < 0 {
		return "", strings.Join(fields, " ")
	}
	return fields[0], strings.Join(fields[1:], " ")
}

func normalizeStreet(street string) string {
	s := strings.ToUpper(foldASCII(street))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, s)

	tokens := strings.Fields(s)
	for i, t := range tokens {
		if short, ok := streetTokens[t]; ok {
			tokens[i] = short
		}
	}
	return strings.Join(tokens, " ")
}

func alnumOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, s)
}

// foldASCII strips combining marks so "CAFÉ" and "CAFE" compare equal.
func foldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// DisplayTitle turns upstream all-caps text into title case for display.
func DisplayTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ToLower(s))
}

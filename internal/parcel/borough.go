package parcel

import "strings"

type borough struct {
	code string
	name string
	abbr string
}

var boroughs = []borough{
	{code: "1", name: "MANHATTAN", abbr: "MN"},
	{code: "2", name: "BRONX", abbr: "BX"},
	{code: "3", name: "BROOKLYN", abbr: "BK"},
	{code: "4", name: "QUEENS", abbr: "QN"},
	{code: "5", name: "STATEN ISLAND", abbr: "SI"},
}

// boroughSynonyms maps historical county names and common spellings to codes.
var boroughSynonyms = map[string]string{
	"NEW YORK":        "1",
	"NEW YORK COUNTY": "1",
	"THE BRONX":       "2",
	"BRONX COUNTY":    "2",
	"KINGS":           "3",
	"KINGS COUNTY":    "3",
	"QUEENS COUNTY":   "4",
	"RICHMOND":        "5",
	"RICHMOND COUNTY": "5",
	"STATEN IS":       "5",
	"STATEN":          "5",
}

var boroughByCode, boroughByText = func() (map[string]borough, map[string]string) {
	byCode := make(map[string]borough, len(boroughs))
	byText := make(map[string]string, len(boroughs)*3+len(boroughSynonyms))
	for _, b := range boroughs {
		byCode[b.code] = b
		byText[b.code] = b.code
		byText[b.name] = b.code
		byText[b.abbr] = b.code
	}
	for text, code := range boroughSynonyms {
		byText[text] = code
	}
	return byCode, byText
}()

// BoroughCode maps any borough encoding (digit, 2-letter code, full name
// or historical county name) to its single-digit code.
func BoroughCode(text string) (string, bool) {
	t := strings.TrimSpace(text)
	if t != "" && t[0] >= '0' && t[0] <= '9' {
		t = trimFraction(t)
	}
	t = strings.ToUpper(strings.ReplaceAll(t, ".", ""))
	t = strings.Join(strings.Fields(t), " ")
	code, ok := boroughByText[t]
	return code, ok
}

// BoroughName returns the full upper-case borough name for a code.
func BoroughName(code string) (string, bool) {
	b, ok := boroughByCode[strings.TrimSpace(code)]
	return b.name, ok
}

// BoroughAbbr returns the 2-letter borough code ("MN", "BK", ...) for a digit code.
func BoroughAbbr(code string) (string, bool) {
	b, ok := boroughByCode[strings.TrimSpace(code)]
	return b.abbr, ok
}

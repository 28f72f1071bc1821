// Package soda reads open-data datasets through the SoQL query API. It
// owns the pagination and key-batching policy; transport and retry live
// in the fetcher and resilience packages.
package soda

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Record is one flat row as returned by a dataset endpoint.
type Record map[string]any

var timeLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"20060102",
}

// String returns the first non-blank value among keys, trimmed.
func (r Record) String(keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(stringify(r[k])); s != "" {
			return s
		}
	}
	return ""
}

// Float parses key as a number. ok is false for missing or non-numeric values.
func (r Record) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	s := r.String(key)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Int parses key as a number and truncates it toward zero.
func (r Record) Int(key string) (int, bool) {
	f, ok := r.Float(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Time parses key with the timestamp layouts datasets emit. Values
// without a zone are read as UTC.
func (r Record) Time(key string) (time.Time, bool) {
	s := r.String(key)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

package soda

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordString(t *testing.T) {
	r := Record{
		"blank":  "  ",
		"name":   " 12 MAIN ST ",
		"number": json.Number("42"),
		"float":  3.5,
		"flag":   true,
	}
	assert.Equal(t, "12 MAIN ST", r.String("name"))
	assert.Equal(t, "12 MAIN ST", r.String("missing", "blank", "name"))
	assert.Equal(t, "42", r.String("number"))
	assert.Equal(t, "3.5", r.String("float"))
	assert.Equal(t, "true", r.String("flag"))
	assert.Equal(t, "", r.String("missing"))
}

func TestRecordFloatInt(t *testing.T) {
	r := Record{
		"lotarea":  "2,500",
		"builtfar": json.Number("1.25"),
		"units":    12.0,
		"text":     "n/a",
	}

	f, ok := r.Float("lotarea")
	assert.True(t, ok)
	assert.InDelta(t, 2500, f, 0.001)

	f, ok = r.Float("builtfar")
	assert.True(t, ok)
	assert.InDelta(t, 1.25, f, 0.001)

	n, ok := r.Int("units")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	_, ok = r.Float("text")
	assert.False(t, ok)
	_, ok = r.Int("missing")
	assert.False(t, ok)
}

func TestRecordTime(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2024-03-05T00:00:00.000", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"2024-03-05T10:11:12", time.Date(2024, 3, 5, 10, 11, 12, 0, time.UTC)},
		{"2024-03-05T10:11:12Z", time.Date(2024, 3, 5, 10, 11, 12, 0, time.UTC)},
		{"2024-03-05", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"03/05/2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"03/05/2024 08:30:00", time.Date(2024, 3, 5, 8, 30, 0, 0, time.UTC)},
		{"20240305", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Record{"d": tt.raw}.Time("d")
			assert.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}

	_, ok := Record{"d": "yesterday"}.Time("d")
	assert.False(t, ok)
	_, ok = Record{}.Time("d")
	assert.False(t, ok)
}

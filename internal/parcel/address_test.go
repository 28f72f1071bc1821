package parcel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name   string
		house  string
		street string
		want   string
		wantOK bool
	}{
		{"suffix contraction", "123", "Main Street", "123 MAIN ST", true},
		{"directional and suffix", "45", "West 4th Street", "45 W 4TH ST", true},
		{"already short", "45", "W 4TH ST", "45 W 4TH ST", true},
		{"punctuation", "10", "St. Mark's Place", "10 ST MARKS PL", true},
		{"queens hyphen house", "12-34", "31 Avenue", "1234 31 AVE", true},
		{"collapses spaces", "7", "  Ocean   Parkway ", "7 OCEAN PKWY", true},
		{"boulevard", "1", "Grand Concourse Boulevard", "1 GRAND CONCOURSE BLVD", true},
		{"accent folded", "9", "Café Lane", "9 CAFE LN", true},
		{"empty house", "", "Main Street", "", false},
		{"punctuation only house", "-", "Main Street", "", false},
		{"empty street", "12", "  ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeAddress(tt.house, tt.street)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeAddress_SourcesAgree(t *testing.T) {
	// Base roster one-line address vs permit house/street columns.
	house, street := SplitAddress("12-34 31 AVENUE")
	a, ok := NormalizeAddress(house, street)
	assert.True(t, ok)

	b, ok := NormalizeAddress("1234", "31 AVE")
	assert.True(t, ok)
	assert.Equal(t, a, b)
}

func TestSplitAddress(t *testing.T) {
	tests := []struct {
		in         string
		house, str string
	}{
		{"123 MAIN STREET", "123", "MAIN STREET"},
		{"12-34 31 AVENUE", "12-34", "31 AVENUE"},
		{"BROADWAY", "", "BROADWAY"},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, s := SplitAddress(tt.in)
			assert.Equal(t, tt.house, h)
			assert.Equal(t, tt.str, s)
		})
	}
}

func TestDisplayTitle(t *testing.T) {
	assert.Equal(t, "123 Main Street", DisplayTitle("123  MAIN STREET"))
	assert.Equal(t, "", DisplayTitle("   "))
}

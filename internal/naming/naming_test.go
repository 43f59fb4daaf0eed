package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetag(t *testing.T) {
	assert.Equal(t, "report_d", Retag("report", TagCollected))
	assert.Equal(t, "report_r", Retag("report_d", TagRenamed))
	assert.Equal(t, "report_o", Retag("report_r", TagEnhanced))
	assert.Equal(t, "report_f", Retag("report_v31", TagCorrected))
	// Only a single trailing tag is stripped.
	assert.Equal(t, "scan_d_o", Retag("scan_d_r", TagEnhanced))
}

func TestStripTagUnrecognized(t *testing.T) {
	assert.Equal(t, "plain-name", StripTag("plain-name"))
	assert.Equal(t, "motion", StripTag("motion_c"))
}

func TestDateFromName(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"1.31.22 - Motion to Dismiss", "20220131", true},
		{"12.5.23 Hearing", "20231205", true},
		{"2025-02-26 Appraisal Demand", "20250226", true},
		{"Answer and Counterclaim", "", false},
	}
	for _, tt := range tests {
		got, ok := DateFromName(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestHasDatePrefix(t *testing.T) {
	assert.True(t, HasDatePrefix("20240101_Motion"))
	assert.False(t, HasDatePrefix("2024_Motion"))
	assert.False(t, HasDatePrefix("Motion_20240101"))
}

func TestCleanBase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"23 - Motion to Dismiss", "Motion_to_Dismiss"},
		{"1.1.23 - Answer  and   Counterclaim", "Answer_and_Counterclaim"},
		{"2023-01-01 - Hearing Transcript", "Hearing_Transcript"},
		{"Notes [kmgate@kalcounty.com] final", "Notes_final"},
		{"Damage Worksheet - Google Sheets", "Damage_Worksheet"},
		{"Scan 02-26T11-24 copy", "Scan_copy"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanBase(tt.in), tt.in)
	}
}

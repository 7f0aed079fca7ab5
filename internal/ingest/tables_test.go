package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Subject ID", "subject_id"},
		{"  Days  Page Missing ", "days_page_missing"},
		{"# Days Page Missing", "days_page_missing"},
		{"MedDRA/WHODrug Status", "meddra_whodrug_status"},
		{"days_outstanding", "days_outstanding"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeHeader(tt.in), tt.in)
	}
}

func TestLenientInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"3", 3},
		{"3.0", 3},
		{" 12 ", 12},
		{"", 0},
		{"NaN", 0},
		{"nan", 0},
		{"n/a", 0},
		{"-2", -2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, lenientInt(tt.in), "%q", tt.in)
	}
}

func TestIsAffirmative(t *testing.T) {
	for _, s := range []string{"Y", "y", "Yes", "TRUE", "1", " yes "} {
		assert.True(t, isAffirmative(s), s)
	}
	for _, s := range []string{"N", "no", "false", "0", "", "maybe"} {
		assert.False(t, isAffirmative(s), s)
	}
}

func TestParseTable(t *testing.T) {
	t.Run("normalizes headers and keeps rows", func(t *testing.T) {
		csv := "Subject ID,Site Number\n1001-001,1001\n1001-002,1001\n"
		tbl, err := parseTable(strings.NewReader(csv), "roster.csv")
		require.NoError(t, err)
		assert.Equal(t, []string{"subject_id", "site_number"}, tbl.headers)
		assert.Len(t, tbl.rows, 2)
	})

	t.Run("tolerates ragged rows", func(t *testing.T) {
		csv := "Subject ID,Site Number,Extra\n1001-001,1001\n"
		tbl, err := parseTable(strings.NewReader(csv), "roster.csv")
		require.NoError(t, err)
		require.Len(t, tbl.rows, 1)
		assert.Equal(t, "", tbl.cell(tbl.rows[0], 2))
	})

	t.Run("empty file yields empty table", func(t *testing.T) {
		tbl, err := parseTable(strings.NewReader(""), "empty.csv")
		require.NoError(t, err)
		assert.Empty(t, tbl.headers)
		assert.Empty(t, tbl.rows)
	})
}

package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposite(t *testing.T) {
	tests := []struct {
		name     string
		counters Counters
		want     float64
	}{
		{
			name:     "no issues scores full marks",
			counters: Counters{},
			want:     100,
		},
		{
			name: "mixed schedule and query issues",
			// 2*5 + 3*4 + 1*2 = 24
			counters: Counters{OverdueVisits: 2, OpenQueries: 3, UncodedTerms: 1},
			want:     76,
		},
		{
			name: "safety plus documents plus integrity",
			// 8 + 5*3 + 1*10 = 33
			counters: Counters{PendingSafety: true, MissingDocuments: 5, IntegrityFlags: 1},
			want:     67,
		},
		{
			name:     "single overdue visit",
			counters: Counters{OverdueVisits: 1},
			want:     95,
		},
		{
			name:     "penalties floor at zero",
			counters: Counters{OverdueVisits: 25},
			want:     0,
		},
		{
			name:     "exact zero boundary",
			counters: Counters{OverdueVisits: 20},
			want:     0,
		},
		{
			name:     "uncoded term magnitude counts verbatim",
			counters: Counters{UncodedTerms: 7},
			want:     86,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Composite(tt.counters))
		})
	}
}

func TestConforming(t *testing.T) {
	assert.True(t, Conforming(100))
	assert.False(t, Conforming(99.9))
	assert.False(t, Conforming(0))

	// Conformance means score exactly 100, never "close enough".
	assert.False(t, Conforming(Composite(Counters{UncodedTerms: 1})))
	assert.True(t, Conforming(Composite(Counters{})))
}

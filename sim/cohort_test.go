package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fiveYearCohorts(first, last int) []BirthCohort {
	var out []BirthCohort
	for y := first; y <= last; y += 5 {
		out = append(out, BirthCohort{Start: y, End: y + 4})
	}
	return out
}

func TestCohortIndex_Resolve(t *testing.T) {
	// GIVEN cohorts 1890-1894 through 1980-1984
	ci, err := NewCohortIndex(fiveYearCohorts(1890, 1980))
	require.NoError(t, err)
	require.Equal(t, 19, ci.Len())

	tests := []struct {
		name string
		year int
		want int
	}{
		{"mid-range", 1956, 13},
		{"lower boundary", 1890, 0},
		{"upper boundary", 1984, 18},
		{"cohort start", 1895, 1},
		{"cohort end", 1899, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ci.Resolve(tt.year)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCohortIndex_OutOfRange_DomainValueError(t *testing.T) {
	ci, err := NewCohortIndex(fiveYearCohorts(1890, 1980))
	require.NoError(t, err)

	for _, year := range []int{1889, 1985} {
		_, err := ci.Resolve(year)
		require.Error(t, err, "year %d", year)
		assert.True(t, errors.Is(err, ErrDomainValue))
		assert.False(t, IsFatal(err))
	}
}

func TestNewCohortIndex_RejectsGapsAndOverlaps(t *testing.T) {
	tests := []struct {
		name    string
		cohorts []BirthCohort
	}{
		{"empty", nil},
		{"gap", []BirthCohort{{1900, 1904}, {1906, 1910}}},
		{"overlap", []BirthCohort{{1900, 1904}, {1904, 1908}}},
		{"unsorted", []BirthCohort{{1905, 1909}, {1900, 1904}}},
		{"inverted", []BirthCohort{{1904, 1900}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCohortIndex(tt.cohorts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFileFormat))
		})
	}
}

func TestCohortIndex_Lookup(t *testing.T) {
	ci, err := NewCohortIndex(fiveYearCohorts(1900, 1910))
	require.NoError(t, err)

	idx, ok := ci.Lookup(1905, 1909)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = ci.Lookup(1905, 1908)
	assert.False(t, ok)
	assert.Equal(t, 1900, ci.MinYear())
	assert.Equal(t, 1914, ci.MaxYear())
}

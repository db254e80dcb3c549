package sim

import "fmt"

// BirthCohort is an inclusive range of birth years sharing one table column.
type BirthCohort struct {
	Start int
	End   int
}

func (c BirthCohort) String() string { return fmt.Sprintf("%d-%d", c.Start, c.End) }

// CohortIndex resolves birth years to cohort indices. Built once from the
// initiation table header; read-only afterward.
type CohortIndex struct {
	cohorts []BirthCohort
}

// NewCohortIndex validates that cohorts are sorted, non-overlapping and
// contiguous (each Start is the previous End plus one).
func NewCohortIndex(cohorts []BirthCohort) (*CohortIndex, error) {
	if len(cohorts) == 0 {
		return nil, fileFormatErrorf("NewCohortIndex", "no birth cohorts declared")
	}
	for i, c := range cohorts {
		if c.End < c.Start {
			return nil, fileFormatErrorf("NewCohortIndex", "cohort %d has end %d before start %d", i, c.End, c.Start)
		}
		if i > 0 && c.Start != cohorts[i-1].End+1 {
			return nil, fileFormatErrorf("NewCohortIndex",
				"cohort %s does not directly follow %s", c, cohorts[i-1])
		}
	}
	owned := make([]BirthCohort, len(cohorts))
	copy(owned, cohorts)
	return &CohortIndex{cohorts: owned}, nil
}

// Resolve returns the index of the cohort containing birthYear.
func (ci *CohortIndex) Resolve(birthYear int) (int, error) {
	if ci == nil || len(ci.cohorts) == 0 {
		return 0, internalErrorf("CohortIndex.Resolve", "cohort index not built")
	}
	if birthYear < ci.MinYear() || birthYear > ci.MaxYear() {
		return 0, domainErrorf("CohortIndex.Resolve",
			"birth year %d outside supported range %d-%d", birthYear, ci.MinYear(), ci.MaxYear())
	}
	lo, hi := 0, len(ci.cohorts)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		c := ci.cohorts[mid]
		switch {
		case birthYear < c.Start:
			hi = mid - 1
		case birthYear > c.End:
			lo = mid + 1
		default:
			return mid, nil
		}
	}
	// unreachable for a contiguous index
	return 0, internalErrorf("CohortIndex.Resolve", "birth year %d fell between cohorts", birthYear)
}

// MinYear returns the first supported birth year.
func (ci *CohortIndex) MinYear() int { return ci.cohorts[0].Start }

// MaxYear returns the last supported birth year.
func (ci *CohortIndex) MaxYear() int { return ci.cohorts[len(ci.cohorts)-1].End }

// Len returns the number of cohorts.
func (ci *CohortIndex) Len() int { return len(ci.cohorts) }

// Cohort returns the cohort at index i.
func (ci *CohortIndex) Cohort(i int) BirthCohort { return ci.cohorts[i] }

// Cohorts returns a copy of the cohort list.
func (ci *CohortIndex) Cohorts() []BirthCohort {
	out := make([]BirthCohort, len(ci.cohorts))
	copy(out, ci.cohorts)
	return out
}

// Lookup returns the index of the cohort exactly matching [start,end].
func (ci *CohortIndex) Lookup(start, end int) (int, bool) {
	for i, c := range ci.cohorts {
		if c.Start == start && c.End == end {
			return i, true
		}
	}
	return 0, false
}

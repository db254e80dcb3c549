// Package trace records simulated outcomes and summarizes them per cohort.
// It does not import sim/ and stores plain data types.
package trace

// OutcomeRecord captures the life-history milestones of one simulated
// individual. Ages are only meaningful when the matching flag is set.
type OutcomeRecord struct {
	Race      int
	Sex       int
	BirthYear int

	Initiated     bool
	InitiationAge int
	Quit          bool
	CessationAge  int
	Died          bool // other-cause death before the horizon
	DeathAge      int

	AverageCPD   float64
	SmokingYears int
}

// GroupKey identifies a race/sex group within a trace.
type GroupKey struct {
	Race int
	Sex  int
}

// Group returns the record's race/sex key.
func (r OutcomeRecord) Group() GroupKey { return GroupKey{Race: r.Race, Sex: r.Sex} }

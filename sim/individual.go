package sim

import "strconv"

// NotApplicable is the legacy output encoding of an undefined age.
const NotApplicable = -999

// OptionalAge is an age that may be undefined (did not initiate, never quit,
// alive at horizon).
type OptionalAge struct {
	age   int
	valid bool
}

// AgeOf returns a defined age.
func AgeOf(age int) OptionalAge { return OptionalAge{age: age, valid: true} }

// NoAge is the undefined age.
var NoAge = OptionalAge{}

// Get returns the age and whether it is defined.
func (a OptionalAge) Get() (int, bool) { return a.age, a.valid }

// Defined reports whether the age is set.
func (a OptionalAge) Defined() bool { return a.valid }

// Legacy returns the age, or NotApplicable when undefined.
func (a OptionalAge) Legacy() int {
	if !a.valid {
		return NotApplicable
	}
	return a.age
}

// Before reports whether both ages are defined and a < b.
func (a OptionalAge) Before(b OptionalAge) bool {
	return a.valid && b.valid && a.age < b.age
}

func (a OptionalAge) String() string {
	if !a.valid {
		return "n/a"
	}
	return strconv.Itoa(a.age)
}

// SmokingYear is one year of an initiator's intensity trajectory.
type SmokingYear struct {
	Age              int
	Category         int
	CigarettesPerDay float64
}

// Individual is the result of one simulation call. Each call returns a fresh
// value; nothing in it aliases simulator state.
type Individual struct {
	Race      int
	Sex       int
	BirthYear int

	InitiationAge OptionalAge
	CessationAge  OptionalAge
	DeathAge      OptionalAge // other-cause death; undefined = alive at horizon

	Trajectory    []SmokingYear // initiators only, in age order
	AverageCPD    float64
	IntensityDraw float64 // uniform draw that picked the starting category
}

// Initiated reports whether the individual ever smoked.
func (in Individual) Initiated() bool { return in.InitiationAge.Defined() }

// Quit reports whether the individual stopped smoking.
func (in Individual) Quit() bool { return in.CessationAge.Defined() }

// CPDAt returns the cigarettes-per-day value at age, if the individual was
// smoking then.
func (in Individual) CPDAt(age int) (float64, bool) {
	for _, y := range in.Trajectory {
		if y.Age == age {
			return y.CigarettesPerDay, true
		}
	}
	return 0, false
}

// LastCategory returns the intensity category in the final trajectory year.
func (in Individual) LastCategory() (int, bool) {
	if len(in.Trajectory) == 0 {
		return 0, false
	}
	return in.Trajectory[len(in.Trajectory)-1].Category, true
}

func averageCPD(traj []SmokingYear) float64 {
	if len(traj) == 0 {
		return 0
	}
	sum := 0.0
	for _, y := range traj {
		sum += y.CigarettesPerDay
	}
	return sum / float64(len(traj))
}

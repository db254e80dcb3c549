package sim

import "math"

// Former-smoker excess-risk coefficients.
const (
	excessB0 = -0.1711
	excessB1 = 0.00102
	excessB2 = 0.00171
	excessB3 = 1.08
)

// ExcessRisk is the multiplier applied to the current-minus-never hazard gap
// for a former smoker at age, given average cigarettes per day and the age
// they quit.
func ExcessRisk(avgCPD float64, cessationAge, age int) float64 {
	years := float64(age - cessationAge)
	return math.Exp((excessB0 + excessB1*avgCPD + excessB2*float64(cessationAge)) * math.Pow(years, excessB3))
}

// SmokingStatus selects the hazard column during the mortality scan.
type SmokingStatus int

const (
	StatusNever SmokingStatus = iota
	StatusCurrent
	StatusFormer
)

func (s SmokingStatus) String() string {
	switch s {
	case StatusNever:
		return "never"
	case StatusCurrent:
		return "current"
	case StatusFormer:
		return "former"
	}
	return "unknown"
}

// MortalityModel evaluates competing-risk death from other causes year by
// year against the life table.
type MortalityModel struct {
	life *LifeTable
}

// NewMortalityModel wraps a loaded life table.
func NewMortalityModel(life *LifeTable) (*MortalityModel, error) {
	if life == nil || life.Table == nil {
		return nil, internalErrorf("NewMortalityModel", "life table not loaded")
	}
	return &MortalityModel{life: life}, nil
}

type mortalityPhase struct {
	status   SmokingStatus
	from, to int // [from, to)
}

// phases splits [minAge, maxAge] into the never, current and former spans of
// the individual's history, clamped to the table.
func (m *MortalityModel) phases(in Individual) []mortalityPhase {
	ext := m.life.Extents()
	lo, hi := ext.MinAge, ext.MaxAge+1
	clamp := func(a int) int { return clampInt(a, lo, hi) }

	initAge, initiated := in.InitiationAge.Get()
	if !initiated {
		return []mortalityPhase{{StatusNever, lo, hi}}
	}
	out := []mortalityPhase{{StatusNever, lo, clamp(initAge)}}
	cess, quit := in.CessationAge.Get()
	if !quit {
		return append(out, mortalityPhase{StatusCurrent, clamp(initAge), hi})
	}
	return append(out,
		mortalityPhase{StatusCurrent, clamp(initAge), clamp(cess)},
		mortalityPhase{StatusFormer, clamp(cess), hi})
}

// categoryAt returns the intensity category at age, holding the last
// trajectory category beyond its end.
func categoryAt(traj []SmokingYear, age int) int {
	if len(traj) == 0 {
		return 0
	}
	for i := len(traj) - 1; i >= 0; i-- {
		if traj[i].Age <= age {
			return traj[i].Category
		}
	}
	return traj[0].Category
}

// hazard returns the probability of other-cause death at age for status, or
// Missing when the table has no data there.
func (m *MortalityModel) hazard(in Individual, year, age int, status SmokingStatus) (float64, error) {
	var never, current float64
	var err error
	if status != StatusCurrent {
		never, err = m.life.At(in.Race, in.Sex, year, age, 0)
		if err != nil || never < 0 {
			return Missing, err
		}
		if status == StatusNever {
			return never, nil
		}
	}
	current, err = m.life.At(in.Race, in.Sex, year, age, 1+categoryAt(in.Trajectory, age))
	if err != nil || current < 0 {
		return Missing, err
	}
	if status == StatusCurrent {
		return current, nil
	}
	cess, _ := in.CessationAge.Get()
	return never + (current-never)*ExcessRisk(in.AverageCPD, cess, age), nil
}

// DeathAge scans the individual's never, current and former phases in order,
// drawing once per age. The first draw at or below the hazard is the death
// age. A missing cell ends the scan with the individual alive.
func (m *MortalityModel) DeathAge(in Individual, rng Uniform) (OptionalAge, error) {
	const frame = "MortalityModel.DeathAge"
	year, err := m.life.YearIndex(in.BirthYear)
	if err != nil {
		return NoAge, WithFrame(err, frame)
	}
	for _, ph := range m.phases(in) {
		for age := ph.from; age < ph.to; age++ {
			u := rng.NextUniform()
			p, err := m.hazard(in, year, age, ph.status)
			if err != nil {
				return NoAge, WithFrame(err, frame)
			}
			if u <= p {
				return AgeOf(age), nil
			}
			if p < 0 {
				return NoAge, nil
			}
		}
	}
	return NoAge, nil
}

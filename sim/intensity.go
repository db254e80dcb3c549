package sim

import "math"

// IntensityInput is what an IntensityModel needs to know about an initiator.
type IntensityInput struct {
	Race          int
	Sex           int
	Cohort        int
	BirthYear     int
	InitiationAge int
	CessationAge  OptionalAge
	CutoffYear    int
}

// IntensityResult is the trajectory an IntensityModel produced.
type IntensityResult struct {
	Trajectory  []SmokingYear
	AverageCPD  float64
	InitialDraw float64
}

// IntensityModel assigns an initiator's per-age smoking intensity.
// Implementations draw only from rng and never more than MaxDraws times.
type IntensityModel interface {
	Name() IntensityStrategy
	Assign(in IntensityInput, rng Uniform) (IntensityResult, error)
	// MaxDraws bounds the draws Assign takes for any initiator whose
	// initiation age is at least minInitiationAge.
	MaxDraws(minInitiationAge int) int
}

// NewIntensityModel returns the named strategy over tables. cpdValues maps
// categories to cigarettes per day; nil selects DefaultCigarettesPerDay.
func NewIntensityModel(strategy IntensityStrategy, tables *Tables, cpdValues []float64) (IntensityModel, error) {
	if err := tables.check(); err != nil {
		return nil, WithFrame(err, "NewIntensityModel")
	}
	if cpdValues == nil {
		cpdValues = DefaultCigarettesPerDay
	}
	groups := tables.Groups()
	switch strategy {
	case StrategySwitching, "":
		if len(cpdValues) < groups {
			return nil, domainErrorf("NewIntensityModel",
				"%d intensity groups but only %d cigarettes-per-day values", groups, len(cpdValues))
		}
		values := make([]float64, groups)
		copy(values, cpdValues)
		return &SwitchingModel{cpd: tables.CPD, cpdValues: values}, nil
	case StrategyUptake:
		return &UptakeModel{cpd: tables.CPD, intensity: tables.Intensity}, nil
	default:
		return nil, domainErrorf("NewIntensityModel", "unknown intensity strategy %q", strategy)
	}
}

// selectCategory returns the first category whose cumulative probability
// exceeds u, or the last category when rounding leaves none.
func selectCategory(cum []float64, u float64) int {
	for j, c := range cum {
		if u < c {
			return j
		}
	}
	return len(cum) - 1
}

// === Switching ===

// SwitchingModel picks a starting category from the cohort's intensity
// distribution at initiation, then lets it move at most one step per year.
// The yearly switch pressure on category g is the change in the cumulative
// distribution at g between consecutive ages: positive moves toward a
// lighter category, negative toward a heavier one.
type SwitchingModel struct {
	cpd       *Table
	cpdValues []float64
}

func (m *SwitchingModel) Name() IntensityStrategy { return StrategySwitching }

func (m *SwitchingModel) MaxDraws(minInitiationAge int) int {
	if span := m.cpd.Extents().MaxAge - minInitiationAge + 1; span > 1 {
		return span
	}
	return 1
}

// cumulative returns the running category sums at age, clamped to the table's
// age range. Missing cells count as zero.
func (m *SwitchingModel) cumulative(in IntensityInput, age int) ([]float64, error) {
	row, err := m.cpd.Row(in.Race, in.Sex, in.Cohort, m.cpd.ClampAge(age))
	if err != nil {
		return nil, err
	}
	sum := 0.0
	for j, v := range row {
		if v > 0 {
			sum += v
		}
		row[j] = sum
	}
	return row, nil
}

// endAge is the last trajectory age: cessation age (inclusive) for quitters,
// otherwise the cutoff-year age, capped by the table and never below
// initiation.
func (m *SwitchingModel) endAge(in IntensityInput) int {
	end := in.CutoffYear - in.BirthYear
	if cess, ok := in.CessationAge.Get(); ok {
		end = cess
	}
	if maxAge := m.cpd.Extents().MaxAge; end > maxAge {
		end = maxAge
	}
	if end < in.InitiationAge {
		end = in.InitiationAge
	}
	return end
}

func (m *SwitchingModel) Assign(in IntensityInput, rng Uniform) (IntensityResult, error) {
	const frame = "SwitchingModel.Assign"
	groups := m.cpd.Extents().Categories

	prev, err := m.cumulative(in, in.InitiationAge)
	if err != nil {
		return IntensityResult{}, WithFrame(err, frame)
	}
	draw := rng.NextUniform()
	category := selectCategory(prev, draw)

	end := m.endAge(in)
	traj := make([]SmokingYear, 0, end-in.InitiationAge+1)
	traj = append(traj, SmokingYear{Age: in.InitiationAge, Category: category, CigarettesPerDay: m.cpdValues[category]})

	for age := in.InitiationAge + 1; age <= end; age++ {
		cur, err := m.cumulative(in, age)
		if err != nil {
			return IntensityResult{}, WithFrame(err, frame)
		}
		p := cur[category] - prev[category]
		if u := rng.NextUniform(); u < math.Abs(p) {
			if p > 0 {
				category--
			} else if p < 0 {
				category++
			}
		}
		category = clampInt(category, 0, groups-1)
		traj = append(traj, SmokingYear{Age: age, Category: category, CigarettesPerDay: m.cpdValues[category]})
		prev = cur
	}

	return IntensityResult{Trajectory: traj, AverageCPD: averageCPD(traj), InitialDraw: draw}, nil
}

// === Uptake ===

// UptakeModel draws one intensity group from the per-age intensity
// probabilities, then follows an age-uptake curve scaled to meet the first
// tabulated cigarettes-per-day value for that group, and the table itself
// afterward.
//
// Kept selectable for comparison runs; the switching model is the default.
type UptakeModel struct {
	cpd       *Table // cigarettes per day by group
	intensity *Table // cumulative group probabilities by age
}

func (m *UptakeModel) Name() IntensityStrategy { return StrategyUptake }

func (m *UptakeModel) MaxDraws(int) int { return 1 }

// uptakeCurve evaluates the sex-specific uptake formula at age for someone
// who started at initAge. birthYear below 1900 is treated as 1900.
func uptakeCurve(sex, birthYear, initAge, age int) float64 {
	if birthYear < 1900 {
		birthYear = 1900
	}
	a := float64(age)
	calendar := math.Pow(math.Max(79, float64(birthYear+age-1900)), 2)
	if sex == 0 {
		return -38.578 + 3.342*math.Sqrt(float64(age-initAge)) - 0.00168*calendar -
			17.538*math.Sqrt(a) + 44.967*math.Log(a)
	}
	return -56.751 + 0.700*float64(age-initAge) - 0.00163*calendar -
		3.473*a + 32.800*math.Sqrt(a)
}

func (m *UptakeModel) Assign(in IntensityInput, rng Uniform) (IntensityResult, error) {
	const frame = "UptakeModel.Assign"

	draw := rng.NextUniform()
	cum, err := m.intensity.Row(in.Race, in.Sex, 0, m.intensity.ClampAge(in.InitiationAge))
	if err != nil {
		return IntensityResult{}, WithFrame(err, frame)
	}
	group := len(cum) - 1
	for i := 0; i < len(cum)-1; i++ {
		if draw < cum[i] {
			group = i
			break
		}
	}

	years := in.CutoffYear - (in.BirthYear + in.InitiationAge) + 1
	if cess, ok := in.CessationAge.Get(); ok {
		years = cess - in.InitiationAge + 1
	}
	if years < 1 {
		years = 1
	}

	ext := m.cpd.Extents()
	start, startValue := -1, 0.0
	for age := ext.MinAge; age <= ext.MaxAge; age++ {
		v, err := m.cpd.At(in.Race, in.Sex, in.Cohort, age, group)
		if err != nil {
			return IntensityResult{}, WithFrame(err, frame)
		}
		if v >= 0 {
			start, startValue = age, v
			break
		}
	}
	if start < 0 {
		return IntensityResult{}, fileFormatErrorf(frame, "%s has no data for race %d sex %d cohort %d group %d",
			m.cpd.Name(), in.Race, in.Sex, in.Cohort, group)
	}

	traj := make([]SmokingYear, 0, years)
	last := in.InitiationAge + years
	if in.InitiationAge < start {
		scale := startValue / uptakeCurve(in.Sex, in.BirthYear, in.InitiationAge, start)
		for age := in.InitiationAge; age < min(start, last); age++ {
			u := uptakeCurve(in.Sex, in.BirthYear, in.InitiationAge, age)
			if u < 0 {
				u = 0.10
			}
			traj = append(traj, SmokingYear{Age: age, Category: group, CigarettesPerDay: scale * u})
		}
	}

	carry := startValue
	for age := max(start, in.InitiationAge); age < last; age++ {
		v := Missing
		if m.cpd.HasAge(age) {
			if v, err = m.cpd.At(in.Race, in.Sex, in.Cohort, age, group); err != nil {
				return IntensityResult{}, WithFrame(err, frame)
			}
		}
		if v >= 0 {
			carry = v
		}
		traj = append(traj, SmokingYear{Age: age, Category: group, CigarettesPerDay: carry})
	}

	return IntensityResult{Trajectory: traj, AverageCPD: averageCPD(traj), InitialDraw: draw}, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package sim

import "fmt"

const (
	// DefaultCutoffYear is the last calendar year simulated. Overrides may only lower it.
	DefaultCutoffYear = 2050
	// MinImmediateCessationYear is the earliest accepted policy year.
	MinImmediateCessationYear = 1910
	// ClockSeed asks the caller to derive a seed from the wall clock.
	ClockSeed int64 = -1
)

// DefaultCigarettesPerDay maps intensity categories to representative
// cigarettes-per-day values.
var DefaultCigarettesPerDay = []float64{3, 10, 20, 30, 40, 60}

// Seeds groups the per-subsystem seeds. All must be non-negative; ClockSeed
// is resolved before construction.
type Seeds struct {
	Initiation int64 `yaml:"initiation"`
	Cessation  int64 `yaml:"cessation"`
	Mortality  int64 `yaml:"mortality"`
	Individual int64 `yaml:"individual"`
}

// For returns the seed of the named subsystem.
func (s Seeds) For(name string) int64 {
	switch name {
	case SubsystemInitiation:
		return s.Initiation
	case SubsystemCessation:
		return s.Cessation
	case SubsystemMortality:
		return s.Mortality
	case SubsystemIndividual:
		return s.Individual
	}
	return -1
}

// Validate rejects negative seeds.
func (s Seeds) Validate() error {
	for _, name := range Subsystems {
		if v := s.For(name); v < 0 {
			return domainErrorf("Seeds.Validate", "%s seed %d must be non-negative", name, v)
		}
	}
	return nil
}

func (s Seeds) String() string {
	return fmt.Sprintf("initiation=%d cessation=%d mortality=%d individual=%d",
		s.Initiation, s.Cessation, s.Mortality, s.Individual)
}

// OutputMode selects the result writer.
type OutputMode int

const (
	OutputData     OutputMode = 1 // semicolon-delimited data
	OutputText     OutputMode = 2 // readable report
	OutputTimeline OutputMode = 3 // per-age timeline
	OutputXML      OutputMode = 4 // tagged records
)

// Valid reports whether m is a known mode.
func (m OutputMode) Valid() bool { return m >= OutputData && m <= OutputXML }

func (m OutputMode) String() string {
	switch m {
	case OutputData:
		return "data"
	case OutputText:
		return "text"
	case OutputTimeline:
		return "timeline"
	case OutputXML:
		return "xml"
	}
	return fmt.Sprintf("OutputMode(%d)", int(m))
}

// IntensityStrategy names an IntensityModel implementation.
type IntensityStrategy string

const (
	// StrategySwitching assigns a category at initiation and lets it drift
	// one step per year (default).
	StrategySwitching IntensityStrategy = "switching"
	// StrategyUptake scales an age-uptake curve to the first tabulated
	// cigarettes-per-day value.
	StrategyUptake IntensityStrategy = "uptake"
)

// validStrategies maps accepted strategy strings.
var validStrategies = map[IntensityStrategy]bool{
	StrategySwitching: true,
	StrategyUptake:    true,
	"":                true, // empty defaults to switching
}

// IsValidIntensityStrategy returns true if name is a recognized strategy.
func IsValidIntensityStrategy(name string) bool {
	return validStrategies[IntensityStrategy(name)]
}

// Group identifies one race/sex combination.
type Group struct {
	Race int `yaml:"race"`
	Sex  int `yaml:"sex"`
}

// SimulationConfig is supplied at construction and never changes afterward.
type SimulationConfig struct {
	Seeds                  Seeds
	ImmediateCessationYear int               // 0 = policy disabled
	OutputMode             OutputMode        // consumed by output collaborators
	CutoffYear             int               // last simulated calendar year
	IntensityStrategy      IntensityStrategy // "switching" (default) or "uptake"
	ExcludedGroups         []Group           // race/sex combinations rejected as domain errors
	CigarettesPerDay       []float64         // per-category representative values; nil = DefaultCigarettesPerDay
}

// DefaultSimulationConfig returns a config with the stock cutoff, data output
// and switching intensity. Seeds are left at zero.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		OutputMode:        OutputData,
		CutoffYear:        DefaultCutoffYear,
		IntensityStrategy: StrategySwitching,
	}
}

// Validate returns a domain-value error describing the first invalid field.
func (c SimulationConfig) Validate() error {
	if err := c.Seeds.Validate(); err != nil {
		return WithFrame(err, "SimulationConfig.Validate")
	}
	if !c.OutputMode.Valid() {
		return domainErrorf("SimulationConfig.Validate", "invalid output mode %d", int(c.OutputMode))
	}
	if c.CutoffYear <= 0 || c.CutoffYear > DefaultCutoffYear {
		return domainErrorf("SimulationConfig.Validate", "cutoff year %d outside (0,%d]", c.CutoffYear, DefaultCutoffYear)
	}
	if y := c.ImmediateCessationYear; y != 0 && (y < MinImmediateCessationYear || y > c.CutoffYear) {
		return domainErrorf("SimulationConfig.Validate",
			"immediate cessation year %d must be 0 or within %d-%d", y, MinImmediateCessationYear, c.CutoffYear)
	}
	if !IsValidIntensityStrategy(string(c.IntensityStrategy)) {
		return domainErrorf("SimulationConfig.Validate", "unknown intensity strategy %q", c.IntensityStrategy)
	}
	for _, v := range c.CigarettesPerDay {
		if v < 0 {
			return domainErrorf("SimulationConfig.Validate", "negative cigarettes-per-day value %g", v)
		}
	}
	return nil
}

// PolicyEnabled reports whether the immediate-cessation policy is active.
func (c SimulationConfig) PolicyEnabled() bool { return c.ImmediateCessationYear != 0 }

// Excluded reports whether race/sex is configured as an invalid combination.
func (c SimulationConfig) Excluded(race, sex int) bool {
	for _, g := range c.ExcludedGroups {
		if g.Race == race && g.Sex == sex {
			return true
		}
	}
	return false
}

// ClampCutoffYear applies a cutoff override. The override may only lower
// the cutoff; the second result is false when requested was clamped.
func ClampCutoffYear(requested int) (int, bool) {
	if requested > DefaultCutoffYear {
		return DefaultCutoffYear, false
	}
	return requested, true
}

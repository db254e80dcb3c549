// sim/simulator.go
package sim

import (
	"github.com/sirupsen/logrus"
)

// MinIndividualDraws is the smallest per-individual draw budget on the
// individual-characteristics stream.
const MinIndividualDraws = 20

// Simulator runs the per-individual life-history state machine:
// initiation, cessation, intensity trajectory, then other-cause mortality.
//
// A Simulator owns four random streams and is NOT safe for concurrent use.
// The Tables it reads are never mutated, so independent simulators built from
// the same Tables may run in parallel.
type Simulator struct {
	tables    *Tables
	cfg       SimulationConfig
	rng       *PartitionedRNG
	intensity IntensityModel
	mortality *MortalityModel

	initiationRNG *RandomStream
	cessationRNG  *RandomStream
	mortalityRNG  *RandomStream
	individualRNG *RandomStream

	// drawBudget is the exact number of individual-stream draws each
	// Simulate call consumes, whatever path the individual takes.
	drawBudget int
	simulated  int
}

// NewSimulator validates cfg, seeds the streams and selects the intensity
// strategy. tables must be fully loaded.
func NewSimulator(tables *Tables, cfg SimulationConfig) (*Simulator, error) {
	const frame = "NewSimulator"
	if err := tables.check(); err != nil {
		return nil, WithFrame(err, frame)
	}
	if cfg.CutoffYear == 0 {
		cfg.CutoffYear = DefaultCutoffYear
	}
	if cfg.OutputMode == 0 {
		cfg.OutputMode = OutputData
	}
	if cfg.IntensityStrategy == "" {
		cfg.IntensityStrategy = StrategySwitching
	}
	if err := cfg.Validate(); err != nil {
		return nil, WithFrame(err, frame)
	}

	rng, err := NewPartitionedRNG(cfg.Seeds)
	if err != nil {
		return nil, WithFrame(err, frame)
	}
	intensity, err := NewIntensityModel(cfg.IntensityStrategy, tables, cfg.CigarettesPerDay)
	if err != nil {
		return nil, WithFrame(err, frame)
	}
	mortality, err := NewMortalityModel(tables.Life)
	if err != nil {
		return nil, WithFrame(err, frame)
	}

	s := &Simulator{tables: tables, cfg: cfg, rng: rng, intensity: intensity, mortality: mortality}
	for name, dst := range map[string]**RandomStream{
		SubsystemInitiation: &s.initiationRNG,
		SubsystemCessation:  &s.cessationRNG,
		SubsystemMortality:  &s.mortalityRNG,
		SubsystemIndividual: &s.individualRNG,
	} {
		if *dst, err = rng.ForSubsystem(name); err != nil {
			return nil, WithFrame(err, frame)
		}
	}
	s.drawBudget = max(MinIndividualDraws, intensity.MaxDraws(tables.Initiation.Extents().MinAge))

	logrus.Debugf("simulator ready: seeds %s, cutoff %d, policy year %d, intensity %s, draw budget %d",
		cfg.Seeds, cfg.CutoffYear, cfg.ImmediateCessationYear, intensity.Name(), s.drawBudget)
	return s, nil
}

// Config returns the configuration the simulator was built with.
func (s *Simulator) Config() SimulationConfig { return s.cfg }

// MinBirthYear returns the first supported birth year.
func (s *Simulator) MinBirthYear() int { return s.tables.Cohorts.MinYear() }

// MaxBirthYear returns the last supported birth year.
func (s *Simulator) MaxBirthYear() int { return s.tables.Cohorts.MaxYear() }

// Races returns the number of race values.
func (s *Simulator) Races() int { return s.tables.Initiation.Extents().Races }

// Sexes returns the number of sex values.
func (s *Simulator) Sexes() int { return s.tables.Initiation.Extents().Sexes }

// DrawBudget returns the individual-stream draws consumed per Simulate call.
func (s *Simulator) DrawBudget() int { return s.drawBudget }

// Simulated returns the number of completed Simulate calls.
func (s *Simulator) Simulated() int { return s.simulated }

// Draws returns the draws taken so far from the named stream.
func (s *Simulator) Draws(subsystem string) (uint64, error) {
	rng, err := s.rng.ForSubsystem(subsystem)
	if err != nil {
		return 0, WithFrame(err, "Simulator.Draws")
	}
	return rng.Draws(), nil
}

// validate rejects inputs outside the configured domain before any draw is
// taken, so a skipped record leaves every stream untouched.
func (s *Simulator) validate(race, sex, birthYear int) (int, error) {
	const frame = "Simulator.validate"
	if race < 0 || race >= s.Races() {
		return 0, domainErrorf(frame, "race %d outside 0-%d", race, s.Races()-1)
	}
	if sex < 0 || sex >= s.Sexes() {
		return 0, domainErrorf(frame, "sex %d outside 0-%d", sex, s.Sexes()-1)
	}
	if s.cfg.Excluded(race, sex) {
		return 0, domainErrorf(frame, "race %d with sex %d is not a valid combination", race, sex)
	}
	cohort, err := s.tables.Cohorts.Resolve(birthYear)
	if err != nil {
		return 0, WithFrame(err, frame)
	}
	if _, err := s.tables.Life.YearIndex(birthYear); err != nil {
		return 0, WithFrame(err, frame)
	}
	return cohort, nil
}

// policyReached reports whether the immediate-cessation year applies at age.
func (s *Simulator) policyReached(birthYear, age int) bool {
	return s.cfg.PolicyEnabled() && birthYear+age >= s.cfg.ImmediateCessationYear-1
}

// pastCutoff reports whether the year after age lies beyond the cutoff.
func (s *Simulator) pastCutoff(birthYear, age int) bool {
	return age+1+birthYear > s.cfg.CutoffYear
}

// initiationAge scans from the minimum initiation age. Age only advances
// while initiation has not occurred.
func (s *Simulator) initiationAge(race, sex, cohort, birthYear int) (OptionalAge, error) {
	ext := s.tables.Initiation.Extents()
	for age := ext.MinAge; age <= ext.MaxAge; age++ {
		u := s.initiationRNG.NextUniform()
		p, err := s.tables.Initiation.At(race, sex, cohort, age, 0)
		if err != nil {
			return NoAge, WithFrame(err, "Simulator.initiationAge")
		}
		blocked := s.policyReached(birthYear, age)
		if !blocked && u <= p {
			return AgeOf(age), nil
		}
		if p < 0 || blocked || s.pastCutoff(birthYear, age) {
			break
		}
	}
	return NoAge, nil
}

// cessationAge scans from max(initiation, minimum cessation age). Once the
// policy year is reached cessation is forced regardless of the draw.
func (s *Simulator) cessationAge(race, sex, cohort, birthYear, initAge int) (OptionalAge, error) {
	ext := s.tables.Cessation.Extents()
	for age := max(initAge, ext.MinAge); age <= ext.MaxAge; age++ {
		forced := s.policyReached(birthYear, age)
		u := s.cessationRNG.NextUniform()
		p, err := s.tables.Cessation.At(race, sex, cohort, age, 0)
		if err != nil {
			return NoAge, WithFrame(err, "Simulator.cessationAge")
		}
		if u <= p || forced {
			return AgeOf(age), nil
		}
		if p < 0 || s.pastCutoff(birthYear, age) {
			break
		}
	}
	return NoAge, nil
}

// Simulate produces one individual's history. Domain errors are returned
// before any stream is touched; any other error is fatal for the simulator.
func (s *Simulator) Simulate(race, sex, birthYear int) (Individual, error) {
	const frame = "Simulator.Simulate"
	cohort, err := s.validate(race, sex, birthYear)
	if err != nil {
		return Individual{}, WithFrame(err, frame)
	}

	ind := Individual{Race: race, Sex: sex, BirthYear: birthYear}
	before := s.individualRNG.Draws()

	if ind.InitiationAge, err = s.initiationAge(race, sex, cohort, birthYear); err != nil {
		return Individual{}, WithFrame(err, frame)
	}

	if initAge, ok := ind.InitiationAge.Get(); ok {
		if ind.CessationAge, err = s.cessationAge(race, sex, cohort, birthYear, initAge); err != nil {
			return Individual{}, WithFrame(err, frame)
		}
		res, err := s.intensity.Assign(IntensityInput{
			Race:          race,
			Sex:           sex,
			Cohort:        cohort,
			BirthYear:     birthYear,
			InitiationAge: initAge,
			CessationAge:  ind.CessationAge,
			CutoffYear:    s.cfg.CutoffYear,
		}, s.individualRNG)
		if err != nil {
			return Individual{}, WithFrame(err, frame)
		}
		ind.Trajectory, ind.AverageCPD, ind.IntensityDraw = res.Trajectory, res.AverageCPD, res.InitialDraw
	}

	if ind.DeathAge, err = s.mortality.DeathAge(ind, s.mortalityRNG); err != nil {
		return Individual{}, WithFrame(err, frame)
	}
	censorAtDeath(&ind)

	if err := s.alignIndividualStream(before); err != nil {
		return Individual{}, WithFrame(err, frame)
	}
	s.simulated++
	return ind, nil
}

// alignIndividualStream pads the individual stream so this call consumed
// exactly drawBudget draws.
func (s *Simulator) alignIndividualStream(before uint64) error {
	used := int(s.individualRNG.Draws() - before)
	if used > s.drawBudget {
		return internalErrorf("Simulator.alignIndividualStream",
			"%s intensity used %d draws, budget is %d", s.intensity.Name(), used, s.drawBudget)
	}
	s.individualRNG.Skip(s.drawBudget - used)
	return nil
}

// censorAtDeath drops history after an other-cause death: death before
// initiation means the individual never smoked, death before cessation means
// they never quit, and trajectory years after death are removed.
func censorAtDeath(ind *Individual) {
	death, dead := ind.DeathAge.Get()
	if !dead {
		return
	}
	if ind.DeathAge.Before(ind.InitiationAge) {
		ind.InitiationAge, ind.CessationAge = NoAge, NoAge
		ind.Trajectory, ind.AverageCPD, ind.IntensityDraw = nil, 0, 0
		return
	}
	if ind.DeathAge.Before(ind.CessationAge) {
		ind.CessationAge = NoAge
	}
	n := len(ind.Trajectory)
	for n > 0 && ind.Trajectory[n-1].Age > death {
		n--
	}
	if n < len(ind.Trajectory) {
		ind.Trajectory = ind.Trajectory[:n]
		ind.AverageCPD = averageCPD(ind.Trajectory)
	}
}

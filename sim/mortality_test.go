package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cisnet-lbc/smokehist/sim/internal/testutil"
)

func TestExcessRisk(t *testing.T) {
	// At the cessation age the former-smoker hazard equals the current one
	assert.Equal(t, 1.0, ExcessRisk(20, 50, 50))

	testutil.AssertFloat64Equal(t, "10 years after quitting", 0.4566324807185748, ExcessRisk(20, 50, 60), 1e-9)

	// Excess risk decays with years since cessation
	assert.Less(t, ExcessRisk(20, 50, 70), ExcessRisk(20, 50, 60))
}

func mortalityFor(t *testing.T, life func(race, sex, year, age, column int) string) *MortalityModel {
	t.Helper()
	f := testutil.DefaultFixture()
	f.Life = life
	tables := loadFixture(t, f)
	m, err := NewMortalityModel(tables.Life)
	require.NoError(t, err)
	return m
}

func TestMortalityModel_NeverSmokerUsesNeverColumn(t *testing.T) {
	// GIVEN certain death at 40 in the never column only
	m := mortalityFor(t, func(_, _, _, age, col int) string {
		if col == 0 && age == 40 {
			return "1"
		}
		return "0"
	})
	rng := &scriptedUniform{draws: repeat(0.5, 100)}

	death, err := m.DeathAge(Individual{BirthYear: 1950}, rng)
	require.NoError(t, err)

	got, ok := death.Get()
	require.True(t, ok)
	assert.Equal(t, 40, got)
	assert.Equal(t, 41, rng.taken)
}

func TestMortalityModel_CurrentSmokerUsesCategoryColumn(t *testing.T) {
	// GIVEN certain death at 40 for current smokers in category 2 only
	m := mortalityFor(t, func(_, _, _, age, col int) string {
		if col == 3 && age == 40 {
			return "1"
		}
		return "0"
	})
	smoker := Individual{BirthYear: 1950, InitiationAge: AgeOf(20),
		Trajectory: []SmokingYear{{Age: 20, Category: 1}, {Age: 30, Category: 2}}}

	death, err := m.DeathAge(smoker, &scriptedUniform{draws: repeat(0.5, 100)})
	require.NoError(t, err)
	assert.Equal(t, AgeOf(40), death)

	// A never smoker with the same draws survives
	death, err = m.DeathAge(Individual{BirthYear: 1950}, &scriptedUniform{draws: repeat(0.5, 100)})
	require.NoError(t, err)
	assert.False(t, death.Defined())
}

func TestMortalityModel_FormerSmokerBlend(t *testing.T) {
	m := mortalityFor(t, func(_, _, _, _, col int) string {
		if col == 0 {
			return "0.01"
		}
		return "0.05"
	})
	former := Individual{BirthYear: 1950, InitiationAge: AgeOf(20), CessationAge: AgeOf(50),
		AverageCPD: 20, Trajectory: []SmokingYear{{Age: 20, Category: 1}}}
	year, err := m.life.YearIndex(1950)
	require.NoError(t, err)

	p, err := m.hazard(former, year, 60, StatusFormer)
	require.NoError(t, err)
	testutil.AssertFloat64Equal(t, "former hazard", 0.01+0.04*ExcessRisk(20, 50, 60), p, 1e-12)
}

func TestMortalityModel_PhaseBoundaries(t *testing.T) {
	m := mortalityFor(t, func(int, int, int, int, int) string { return "0" })

	quitter := Individual{InitiationAge: AgeOf(20), CessationAge: AgeOf(50)}
	assert.Equal(t, []mortalityPhase{
		{StatusNever, 0, 20},
		{StatusCurrent, 20, 50},
		{StatusFormer, 50, 100},
	}, m.phases(quitter))

	smoker := Individual{InitiationAge: AgeOf(20)}
	assert.Equal(t, []mortalityPhase{{StatusNever, 0, 20}, {StatusCurrent, 20, 100}}, m.phases(smoker))

	assert.Equal(t, []mortalityPhase{{StatusNever, 0, 100}}, m.phases(Individual{}))
}

func TestMortalityModel_MissingDataEndsScanAlive(t *testing.T) {
	m := mortalityFor(t, func(_, _, _, age, _ int) string {
		if age >= 50 {
			return "."
		}
		return "0"
	})
	rng := &scriptedUniform{draws: repeat(0.5, 100)}

	death, err := m.DeathAge(Individual{BirthYear: 1950, InitiationAge: AgeOf(20), CessationAge: AgeOf(30),
		Trajectory: []SmokingYear{{Age: 20, Category: 0}}}, rng)
	require.NoError(t, err)
	assert.False(t, death.Defined())
	// one draw per age 0..50, the draw at 50 finds the missing cell
	assert.Equal(t, 51, rng.taken)
}

func TestMortalityModel_CurrentPhaseIgnoresMissingNeverColumn(t *testing.T) {
	// GIVEN a never column without data from 30 on and certain death at 40
	// in the category 0 column
	m := mortalityFor(t, func(_, _, _, age, col int) string {
		switch {
		case col == 0 && age >= 30:
			return "."
		case col == 1 && age == 40:
			return "1"
		}
		return "0"
	})
	rng := &scriptedUniform{draws: repeat(0.5, 100)}
	smoker := Individual{BirthYear: 1950, InitiationAge: AgeOf(20),
		Trajectory: []SmokingYear{{Age: 20, Category: 0}}}

	// WHEN a lifelong smoker is evaluated
	death, err := m.DeathAge(smoker, rng)

	// THEN the current phase reads only its own column and reaches the death
	require.NoError(t, err)
	got, ok := death.Get()
	require.True(t, ok)
	assert.Equal(t, 40, got)
	assert.Equal(t, 41, rng.taken)
}

func TestMortalityModel_BirthYearOutsideLifeTable(t *testing.T) {
	m := mortalityFor(t, func(int, int, int, int, int) string { return "0" })
	_, err := m.DeathAge(Individual{BirthYear: 1890}, &scriptedUniform{})
	require.Error(t, err)
	assert.False(t, IsFatal(err))
}

func TestCategoryAt(t *testing.T) {
	traj := []SmokingYear{{Age: 20, Category: 1}, {Age: 21, Category: 2}, {Age: 22, Category: 3}}
	assert.Equal(t, 1, categoryAt(traj, 20))
	assert.Equal(t, 2, categoryAt(traj, 21))
	assert.Equal(t, 3, categoryAt(traj, 60))
	assert.Equal(t, 1, categoryAt(traj, 10))
	assert.Equal(t, 0, categoryAt(nil, 10))
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

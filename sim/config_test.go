package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulationConfig_Validate(t *testing.T) {
	valid := DefaultSimulationConfig()
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*SimulationConfig)
	}{
		{"negative seed", func(c *SimulationConfig) { c.Seeds.Mortality = -1 }},
		{"output mode zero", func(c *SimulationConfig) { c.OutputMode = 0 }},
		{"output mode five", func(c *SimulationConfig) { c.OutputMode = 5 }},
		{"cutoff above default", func(c *SimulationConfig) { c.CutoffYear = 2051 }},
		{"cutoff zero", func(c *SimulationConfig) { c.CutoffYear = 0 }},
		{"policy year too early", func(c *SimulationConfig) { c.ImmediateCessationYear = 1909 }},
		{"policy year after cutoff", func(c *SimulationConfig) { c.CutoffYear = 2000; c.ImmediateCessationYear = 2001 }},
		{"unknown strategy", func(c *SimulationConfig) { c.IntensityStrategy = "linear" }},
		{"negative cpd", func(c *SimulationConfig) { c.CigarettesPerDay = []float64{3, -10} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSimulationConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDomainValue))
		})
	}
}

func TestSimulationConfig_PolicyYearBoundaries(t *testing.T) {
	for _, year := range []int{0, MinImmediateCessationYear, DefaultCutoffYear} {
		cfg := DefaultSimulationConfig()
		cfg.ImmediateCessationYear = year
		assert.NoError(t, cfg.Validate(), "year %d", year)
	}
}

func TestClampCutoffYear_OnlyLowers(t *testing.T) {
	got, ok := ClampCutoffYear(2020)
	assert.True(t, ok)
	assert.Equal(t, 2020, got)

	got, ok = ClampCutoffYear(2100)
	assert.False(t, ok)
	assert.Equal(t, DefaultCutoffYear, got)
}

func TestSimulationConfig_Excluded(t *testing.T) {
	cfg := DefaultSimulationConfig()
	cfg.ExcludedGroups = []Group{{Race: 1, Sex: 1}}
	assert.True(t, cfg.Excluded(1, 1))
	assert.False(t, cfg.Excluded(1, 0))
}

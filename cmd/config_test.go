package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sim "github.com/cisnet-lbc/smokehist/sim"
)

func TestLoadRunConfig_ParsesAllSections(t *testing.T) {
	// GIVEN a run config using every section
	path := writeTemp(t, "run.yaml", `
data_dir: /data
tables:
  cpd: /other/cpd.txt
seeds:
  initiation: 10
  cessation: 11
  mortality: 12
  individual: 13
cessation_year: 2015
cutoff_year: 2040
intensity: uptake
cigarettes_per_day: [1, 2, 3]
excluded_groups:
  - {race: 1, sex: 0}
output_type: 2
shards: 8
population: pop.yaml
`)

	// WHEN it is loaded
	rc, err := loadRunConfig(path)

	// THEN every key is decoded
	require.NoError(t, err)
	assert.Equal(t, "/data", rc.DataDir)
	assert.Equal(t, "/other/cpd.txt", rc.Tables.CPD)
	assert.Equal(t, sim.Seeds{Initiation: 10, Cessation: 11, Mortality: 12, Individual: 13}, *rc.Seeds)
	assert.Equal(t, 2015, rc.CessationYear)
	assert.Equal(t, []float64{1, 2, 3}, rc.CigarettesPerDay)
	assert.Equal(t, []sim.Group{{Race: 1, Sex: 0}}, rc.ExcludedGroups)
	assert.Equal(t, 8, rc.Shards)
}

func TestLoadRunConfig_RejectsUnknownKeys(t *testing.T) {
	// GIVEN a config with a typo
	path := writeTemp(t, "run.yaml", "cutof_year: 2040\n")

	// WHEN it is loaded
	_, err := loadRunConfig(path)

	// THEN strict parsing fails
	assert.Error(t, err)
}

func TestLoadRunConfig_MissingFile(t *testing.T) {
	_, err := loadRunConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestApplyRunConfig_ExplicitFlagsWin(t *testing.T) {
	resetFlags(t)
	// GIVEN flags the user set explicitly
	cutoffYear = 2030
	initiationSeed = 99

	rc := &RunConfig{
		CutoffYear:    2040,
		CessationYear: 2015,
		Intensity:     "uptake",
		Seeds:         &sim.Seeds{Initiation: 10, Cessation: 11, Mortality: 12, Individual: 13},
	}

	// WHEN the config is applied
	applyRunConfig(rc, changedSet("cutoff-year", "initiation-seed"))

	// THEN explicit flags keep their values and the rest come from the file
	assert.Equal(t, 2030, cutoffYear)
	assert.Equal(t, int64(99), initiationSeed)
	assert.Equal(t, int64(11), cessationSeed)
	assert.Equal(t, 2015, cessationYear)
	assert.Equal(t, "uptake", intensityStrategy)
}

func TestApplyRunConfig_ZeroValuesKeepDefaults(t *testing.T) {
	resetFlags(t)
	applyRunConfig(&RunConfig{}, changedSet())

	assert.Equal(t, sim.DefaultCutoffYear, cutoffYear)
	assert.Equal(t, "-", outputPath)
	assert.Equal(t, 4, shards)
	assert.Equal(t, int64(1), initiationSeed)
}

func TestTablePaths_Overrides(t *testing.T) {
	resetFlags(t)
	dataDir = "/data"

	// WHEN no overrides are configured
	paths := tablePaths()
	// THEN every table lives under the data dir
	assert.Equal(t, sim.DefaultTablePaths("/data"), paths)

	// WHEN one table is overridden
	tableOverrides = &sim.TablePaths{LifeTable: "/elsewhere/life.txt"}
	paths = tablePaths()

	// THEN only that path changes
	assert.Equal(t, "/elsewhere/life.txt", paths.LifeTable)
	assert.Equal(t, sim.DefaultTablePaths("/data").Initiation, paths.Initiation)
	assert.Equal(t, sim.DefaultTablePaths("/data").CPD, paths.CPD)
}

package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	sim "github.com/cisnet-lbc/smokehist/sim"
)

// Settings only the run config file can supply.
var (
	excludedGroups []sim.Group      // race/sex combinations rejected as domain errors
	tableOverrides *sim.TablePaths // per-table paths replacing the data-dir defaults
)

// RunConfig is the YAML run config accepted by --config. Every key is
// optional; zero values leave the flag default in place.
// All top-level keys must be listed to satisfy KnownFields(true) strict parsing.
type RunConfig struct {
	DataDir          string          `yaml:"data_dir"`
	Tables           *sim.TablePaths `yaml:"tables,omitempty"`
	Seeds            *sim.Seeds      `yaml:"seeds,omitempty"`
	CessationYear    int             `yaml:"cessation_year"`
	CutoffYear       int             `yaml:"cutoff_year"`
	Intensity        string          `yaml:"intensity"`
	CigarettesPerDay []float64       `yaml:"cigarettes_per_day"`
	ExcludedGroups   []sim.Group     `yaml:"excluded_groups"`
	OutputType       int             `yaml:"output_type"`
	Input            string          `yaml:"input"`
	Output           string          `yaml:"output"`
	DB               string          `yaml:"db"`
	Label            string          `yaml:"label"`
	Shards           int             `yaml:"shards"`
	Population       string          `yaml:"population"`
}

func loadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run config: %w", err)
	}
	// Parse YAML with strict field checking: typos must cause errors
	var rc RunConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&rc); err != nil {
		return nil, fmt.Errorf("parsing run config %s: %w", path, err)
	}
	return &rc, nil
}

// applyRunConfig copies file values into the flag variables, skipping any
// flag the user set explicitly.
func applyRunConfig(rc *RunConfig, changed func(string) bool) {
	setString := func(flag string, dst *string, v string) {
		if v != "" && !changed(flag) {
			*dst = v
		}
	}
	setInt := func(flag string, dst *int, v int) {
		if v != 0 && !changed(flag) {
			*dst = v
		}
	}
	setSeed := func(flag string, dst *int64, v int64) {
		if !changed(flag) {
			*dst = v
		}
	}

	setString("data-dir", &dataDir, rc.DataDir)
	setString("intensity", &intensityStrategy, rc.Intensity)
	setString("input", &inputPath, rc.Input)
	setString("output", &outputPath, rc.Output)
	setString("output", &cohortOutputPath, rc.Output)
	setString("db", &dbPath, rc.DB)
	setString("label", &runLabel, rc.Label)
	setString("population", &populationPath, rc.Population)
	setInt("cessation-year", &cessationYear, rc.CessationYear)
	setInt("cutoff-year", &cutoffYear, rc.CutoffYear)
	setInt("output-type", &outputType, rc.OutputType)
	setInt("shards", &shards, rc.Shards)

	if rc.Seeds != nil {
		setSeed("initiation-seed", &initiationSeed, rc.Seeds.Initiation)
		setSeed("cessation-seed", &cessationSeed, rc.Seeds.Cessation)
		setSeed("mortality-seed", &mortalitySeed, rc.Seeds.Mortality)
		setSeed("individual-seed", &individualSeed, rc.Seeds.Individual)
	}
	if rc.CigarettesPerDay != nil && !changed("cpd-values") {
		cigarettesPerDay = rc.CigarettesPerDay
	}
	excludedGroups = rc.ExcludedGroups
	tableOverrides = rc.Tables
}

// tablePaths returns the data-dir defaults with any per-table overrides.
func tablePaths() sim.TablePaths {
	paths := sim.DefaultTablePaths(dataDir)
	if tableOverrides == nil {
		return paths
	}
	for dst, src := range map[*string]string{
		&paths.Initiation: tableOverrides.Initiation,
		&paths.Cessation:  tableOverrides.Cessation,
		&paths.LifeTable:  tableOverrides.LifeTable,
		&paths.Intensity:  tableOverrides.Intensity,
		&paths.CPD:        tableOverrides.CPD,
	} {
		if src != "" {
			*dst = src
		}
	}
	return paths
}

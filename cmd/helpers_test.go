package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	sim "github.com/cisnet-lbc/smokehist/sim"
)

// resetFlags restores every package-level flag variable to its default
// before and after the test.
func resetFlags(t *testing.T) {
	t.Helper()
	reset := func() {
		dataDir = "."
		initiationSeed, cessationSeed, mortalitySeed, individualSeed = 1, 2, 3, 4
		cessationYear = 0
		cutoffYear = sim.DefaultCutoffYear
		intensityStrategy = string(sim.StrategySwitching)
		cigarettesPerDay = nil
		inputPath = ""
		outputPath = "-"
		outputType = int(sim.OutputData)
		race, sex, birthYear, repeat = 0, 0, 0, 1
		dbPath, runLabel, configPath = "", "", ""
		populationPath = ""
		cohortOutputPath = ""
		shards = 4
		excludedGroups = nil
		tableOverrides = nil
		logLevel = "warn"
	}
	reset()
	t.Cleanup(reset)
}

// changedSet builds a cobra-style Changed func from explicit flag names.
func changedSet(names ...string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

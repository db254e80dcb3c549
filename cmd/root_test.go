package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sim "github.com/cisnet-lbc/smokehist/sim"
)

func TestBuildRunOptions_BatchMode(t *testing.T) {
	resetFlags(t)
	inputPath = "people.txt"

	opts, err := buildRunOptions(changedSet(), time.Now())

	require.NoError(t, err)
	assert.False(t, opts.Repeat)
	assert.Equal(t, "people.txt", opts.InputPath)
	assert.Equal(t, sim.Seeds{Initiation: 1, Cessation: 2, Mortality: 3, Individual: 4}, opts.Sim.Seeds)
	assert.Equal(t, sim.DefaultTablePaths("."), opts.Tables)
}

func TestBuildRunOptions_RepeatMode(t *testing.T) {
	resetFlags(t)
	// GIVEN --yob set explicitly
	birthYear = 1950
	repeat = 10

	opts, err := buildRunOptions(changedSet("yob"), time.Now())

	// THEN repeat mode is selected without an input file
	require.NoError(t, err)
	assert.True(t, opts.Repeat)
	assert.Equal(t, 10, opts.Count)
	assert.Equal(t, 1950, opts.BirthYear)
}

func TestBuildRunOptions_CutoffOnlyLowers(t *testing.T) {
	resetFlags(t)
	inputPath = "people.txt"
	cutoffYear = 2080

	opts, err := buildRunOptions(changedSet("cutoff-year"), time.Now())

	require.NoError(t, err)
	assert.Equal(t, sim.DefaultCutoffYear, opts.Sim.CutoffYear)
}

func TestBuildRunOptions_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func()
	}{
		{"no input or yob", func() {}},
		{"repeat below one", func() { birthYear = 1950; repeat = 0 }},
		{"bad output type", func() { inputPath = "x"; outputType = 9 }},
		{"bad intensity", func() { inputPath = "x"; intensityStrategy = "linear" }},
		{"policy year too early", func() { inputPath = "x"; cessationYear = 1900 }},
		{"negative cpd", func() { inputPath = "x"; cigarettesPerDay = []float64{-1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			tt.setup()
			_, err := buildRunOptions(changedSet(), time.Now())
			assert.Error(t, err)
		})
	}
}

func TestBuildRunOptions_ConfigFile(t *testing.T) {
	resetFlags(t)
	// GIVEN a config that names the input and excludes a group
	configPath = writeTemp(t, "run.yaml", "input: batch.txt\nexcluded_groups:\n  - {race: 1, sex: 1}\n")

	opts, err := buildRunOptions(changedSet(), time.Now())

	require.NoError(t, err)
	assert.Equal(t, "batch.txt", opts.InputPath)
	assert.True(t, opts.Sim.Excluded(1, 1))
	assert.False(t, opts.Sim.Excluded(0, 1))
}

func TestOpenOutput(t *testing.T) {
	// GIVEN "-"
	w, closeFn, err := openOutput("-")
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, w)
	assert.NoError(t, closeFn())

	// GIVEN a file path
	path := filepath.Join(t.TempDir(), "out.txt")
	w, closeFn, err = openOutput(path)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, closeFn())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// GIVEN a path in a missing directory
	_, _, err = openOutput(filepath.Join(t.TempDir(), "missing", "out.txt"))
	assert.Error(t, err)
}

func TestOpenInput_Missing(t *testing.T) {
	_, _, err := openInput(filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}

func TestResultSink_DisabledIsNoop(t *testing.T) {
	sink, err := newResultSink(runOptions{})
	require.NoError(t, err)
	assert.NoError(t, sink.Add(sim.Individual{}))
	assert.NoError(t, sink.Flush())
	sink.Close()
}

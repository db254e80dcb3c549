package sim

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cisnet-lbc/smokehist/sim/internal/testutil"
)

func loadFixture(t *testing.T, f testutil.TableFixture) *Tables {
	t.Helper()
	files := f.Write(t, t.TempDir())
	tables, err := LoadTables(TablePaths(files))
	require.NoError(t, err)
	return tables
}

func TestLoadTables_DefaultFixture(t *testing.T) {
	// GIVEN the default synthetic table set
	tables := loadFixture(t, testutil.DefaultFixture())

	// THEN extents and cohorts are taken from the headers
	ext := tables.Initiation.Extents()
	assert.Equal(t, Extents{Races: 1, Sexes: 2, Cohorts: 17, MinAge: 10, MaxAge: 30, Categories: 1}, ext)
	assert.Equal(t, 1900, tables.Cohorts.MinYear())
	assert.Equal(t, 1984, tables.Cohorts.MaxYear())
	assert.Equal(t, 5, tables.Groups())
	assert.Equal(t, 6, tables.Life.Extents().Categories)

	v, err := tables.Initiation.At(0, 1, 3, 12, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.05, v)
}

func TestLoadTables_IntensityStoredCumulatively(t *testing.T) {
	f := testutil.DefaultFixture()
	probs := []string{"0.2", "0.3", "0.3", "0.1", "0.1"}
	f.Intensity = func(_, _, _, g int) string { return probs[g] }
	tables := loadFixture(t, f)

	row, err := tables.Intensity.Row(0, 0, 0, 15)
	require.NoError(t, err)
	want := []float64{0.2, 0.5, 0.8, 0.9, 1.0}
	for i := range want {
		assert.InDelta(t, want[i], row[i], 1e-12, "category %d", i)
	}
}

func TestLoadTables_MissingMarker(t *testing.T) {
	f := testutil.DefaultFixture()
	f.Initiation = func(_, _, _, age int) string {
		if age > 25 {
			return "."
		}
		return "0.1"
	}
	tables := loadFixture(t, f)

	v, err := tables.Initiation.At(0, 0, 0, 26, 0)
	require.NoError(t, err)
	assert.Equal(t, Missing, v)
}

func TestLoadTables_MissingFile_FileFormatError(t *testing.T) {
	files := testutil.DefaultFixture().Write(t, t.TempDir())
	files.Cessation = filepath.Join(t.TempDir(), "absent.txt")

	_, err := LoadTables(TablePaths(files))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFileFormat))
	assert.Equal(t, "openTable|LoadTables", CallPath(err))
}

func TestReadInitiationTable_Errors(t *testing.T) {
	f := testutil.DefaultFixture()
	good := f.InitiationText()
	lines := strings.Split(strings.TrimRight(good, "\n"), "\n")

	tests := []struct {
		name string
		text string
		want string
	}{
		{"first data line too small", "1\n" + strings.Join(lines[1:], "\n"), "invalid first data line"},
		{"eof in documentation", "40\nonly docs\n", "end of file before first data line"},
		{"zero races", strings.Replace(good, "1,2,17,10,30", "0,2,17,10,30", 1), "invalid race, sex or cohort count"},
		{"inverted ages", strings.Replace(good, "1,2,17,10,30", "1,2,17,30,10", 1), "invalid age range"},
		{"bad cohort label", strings.Replace(good, "1900-1904", "1900", 1), "not start-end"},
		{"out of range probability", strings.Replace(good, "0,0,10,0.05", "0,0,10,1.5", 1), "outside [0,1]"},
		{"non-numeric value", strings.Replace(good, "0,0,10,0.05", "0,0,10,abc", 1), "not a number"},
		{"race outside extents", strings.Replace(good, "0,0,10,", "3,0,10,", 1), "race 3 outside"},
		{"insufficient records", strings.Join(lines[:len(lines)-1], "\n") + "\n", "insufficient data"},
		{"extra extents field", strings.Replace(good, "1,2,17,10,30", "1,2,17,10,30,5", 1), "extents line has 6 fields, want 5"},
		{"trailing out of range probability", good + "0,0,14" + strings.Repeat(",5.0", 17) + "\n", "outside [0,1]"},
		{"trailing malformed record", good + "0,0,14,abc\n", "record has"},
		{"trailing race outside extents", good + "4,0,14" + strings.Repeat(",0.1", 17) + "\n", "race 4 outside"},
		{"excess records", good + lines[len(lines)-1] + "\n", "excess data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadInitiationTable(strings.NewReader(tt.text), "initiation")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFileFormat), "got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadInitiationTable_SkipsBlankLines(t *testing.T) {
	f := testutil.DefaultFixture()
	text := strings.Replace(f.InitiationText(), "0,0,11,", "\n0,0,11,", 1)
	tab, cohorts, err := ReadInitiationTable(strings.NewReader(text), "initiation")
	require.NoError(t, err)
	assert.Equal(t, 17, cohorts.Len())
	v, err := tab.At(0, 0, 0, 11, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.05, v)
}

func TestReadCessationTable_ExtentMismatch(t *testing.T) {
	f := testutil.DefaultFixture()
	initTab, cohorts, err := ReadInitiationTable(strings.NewReader(f.InitiationText()), "initiation")
	require.NoError(t, err)

	t.Run("sex count", func(t *testing.T) {
		other := f
		other.Sexes = 1
		_, err := ReadCessationTable(strings.NewReader(other.CessationText()), "cessation", initTab, cohorts)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFileFormat))
		assert.Contains(t, err.Error(), "extents mismatch")
	})

	t.Run("cohort labels", func(t *testing.T) {
		text := strings.Replace(f.CessationText(), "1905-1909", "1905-1908", 1)
		_, err := ReadCessationTable(strings.NewReader(text), "cessation", initTab, cohorts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cohort 2 is 1905-1908")
	})

	t.Run("initiation not loaded", func(t *testing.T) {
		_, err := ReadCessationTable(strings.NewReader(f.CessationText()), "cessation", nil, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInternalState))
	})
}

func TestReadIntensityTable_ValidatesTrailingRecords(t *testing.T) {
	f := testutil.DefaultFixture()
	initTab, _, err := ReadInitiationTable(strings.NewReader(f.InitiationText()), "initiation")
	require.NoError(t, err)

	// GIVEN a complete intensity table followed by one more record
	text := f.IntensityText() + "0,0,20,0.2,0.2,7,0.2,0.2\n"

	// WHEN it is read
	_, err = ReadIntensityTable(strings.NewReader(text), "intensity", initTab)

	// THEN the trailing value is still range-checked
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFileFormat))
	assert.Contains(t, err.Error(), "outside [0,1]")
}

func TestReadIntensityTable_RejectsMissingMarker(t *testing.T) {
	f := testutil.DefaultFixture()
	initTab, _, err := ReadInitiationTable(strings.NewReader(f.InitiationText()), "initiation")
	require.NoError(t, err)

	f.Intensity = func(_, _, age, g int) string {
		if age == 20 && g == 2 {
			return "."
		}
		return "0.2"
	}
	_, err = ReadIntensityTable(strings.NewReader(f.IntensityText()), "intensity", initTab)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFileFormat))
	assert.Contains(t, err.Error(), "missing value not allowed")
}

func TestReadCPDTable_Errors(t *testing.T) {
	f := testutil.DefaultFixture()
	initTab, cohorts, err := ReadInitiationTable(strings.NewReader(f.InitiationText()), "initiation")
	require.NoError(t, err)
	intensity, err := ReadIntensityTable(strings.NewReader(f.IntensityText()), "intensity", initTab)
	require.NoError(t, err)

	good := f.CPDText()
	lines := strings.Split(strings.TrimRight(good, "\n"), "\n")

	tests := []struct {
		name string
		text string
		want string
	}{
		{"excess records", good + lines[len(lines)-1] + "\n", "excess data"},
		{"unknown cohort", strings.Replace(good, "0,0,1900,1904,10,", "0,0,1900,1903,10,", 1), "does not match any initiation cohort"},
		{"negative value", strings.Replace(good, "0,0,1900,1904,10,0.2", "0,0,1900,1904,10,-0.2", 1), "is negative"},
		{"group mismatch", strings.Replace(good, "1,2,17,10,99,5", "1,2,17,10,99,4", 1), "intensity groups"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCPDTable(strings.NewReader(tt.text), "cpd", initTab, cohorts, intensity)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFileFormat), "got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadLifeTable_Errors(t *testing.T) {
	f := testutil.DefaultFixture()
	f.LifeMinYear, f.LifeMaxYear = 1900, 1901
	initTab, _, err := ReadInitiationTable(strings.NewReader(f.InitiationText()), "initiation")
	require.NoError(t, err)

	good := f.LifeText()
	lines := strings.Split(strings.TrimRight(good, "\n"), "\n")

	lt, err := ReadLifeTable(strings.NewReader(good), "life", initTab, f.Groups)
	require.NoError(t, err)
	assert.Equal(t, 1900, lt.MinYear)
	assert.Equal(t, 1901, lt.MaxYear)

	tests := []struct {
		name string
		text string
		want string
	}{
		{"excess records", good + lines[len(lines)-1] + "\n", "excess data"},
		{"year outside header", strings.Replace(good, "0,0,1900,0,", "0,0,1950,0,", 1), "birth year 1950 outside"},
		{"probability above one", strings.Replace(good, "0,0,1900,0,0.01", "0,0,1900,0,2", 1), "outside [0,1]"},
		{"race count mismatch", strings.Replace(good, "1,2,1900,1901,0,99", "2,2,1900,1901,0,99", 1), "extents mismatch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadLifeTable(strings.NewReader(tt.text), "life", initTab, f.Groups)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFileFormat), "got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLifeTable_YearIndex(t *testing.T) {
	tables := loadFixture(t, testutil.DefaultFixture())
	idx, err := tables.Life.YearIndex(1950)
	require.NoError(t, err)
	assert.Equal(t, 50, idx)

	_, err = tables.Life.YearIndex(1899)
	assert.True(t, errors.Is(err, ErrDomainValue))
}

func TestTable_OffsetBoundsChecked(t *testing.T) {
	tab, err := NewTable("t", Extents{Races: 2, Sexes: 2, Cohorts: 3, MinAge: 10, MaxAge: 19, Categories: 4})
	require.NoError(t, err)

	// race*raceStride + sex*sexStride + cohort*cohortStride + (age-min)*ageStride + category
	off, err := tab.Offset(1, 1, 2, 12, 3)
	require.NoError(t, err)
	assert.Equal(t, 1*240+1*120+2*40+2*4+3, off)

	for _, bad := range [][5]int{{2, 0, 0, 10, 0}, {0, -1, 0, 10, 0}, {0, 0, 3, 10, 0}, {0, 0, 0, 9, 0}, {0, 0, 0, 20, 0}, {0, 0, 0, 10, 4}} {
		_, err := tab.Offset(bad[0], bad[1], bad[2], bad[3], bad[4])
		assert.True(t, errors.Is(err, ErrInternalState), "coords %v", bad)
	}

	v, err := tab.At(0, 0, 0, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, Missing, v)
}

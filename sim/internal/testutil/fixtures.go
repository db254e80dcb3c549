// Package testutil provides shared test infrastructure for the smoking
// history simulator: synthetic probability-table files and float assertions
// used across sim/ and its subpackages.
package testutil

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TableFiles holds the paths written by TableFixture.Write. Field names match
// sim.TablePaths so the two convert directly.
type TableFiles struct {
	Initiation string
	Cessation  string
	LifeTable  string
	Intensity  string
	CPD        string
}

// Cohort is an inclusive birth-year range.
type Cohort struct {
	Start int
	End   int
}

// TableFixture describes a synthetic table set. Cell functions return the
// literal token written to the file, so "." produces a missing cell.
type TableFixture struct {
	Races   int
	Sexes   int
	Cohorts []Cohort

	InitMinAge, InitMaxAge           int
	CessMinAge, CessMaxAge           int
	IntensityMinAge, IntensityMaxAge int
	CPDMinAge, CPDMaxAge             int
	LifeMinYear, LifeMaxYear         int
	LifeMinAge, LifeMaxAge           int
	Groups                           int

	Initiation func(race, sex, cohort, age int) string
	Cessation  func(race, sex, cohort, age int) string
	Intensity  func(race, sex, age, group int) string
	CPD        func(race, sex, cohort, age, group int) string
	Life       func(race, sex, year, age, column int) string
}

// Const returns a cell function yielding v everywhere.
func Const(v string) func(int, int, int, int) string {
	return func(int, int, int, int) string { return v }
}

// DefaultFixture returns one race, two sexes, five-year cohorts 1900-1984,
// five intensity groups, and modest constant probabilities everywhere.
func DefaultFixture() TableFixture {
	var cohorts []Cohort
	for y := 1900; y <= 1980; y += 5 {
		cohorts = append(cohorts, Cohort{Start: y, End: y + 4})
	}
	return TableFixture{
		Races:           1,
		Sexes:           2,
		Cohorts:         cohorts,
		InitMinAge:      10,
		InitMaxAge:      30,
		CessMinAge:      15,
		CessMaxAge:      90,
		IntensityMinAge: 10,
		IntensityMaxAge: 30,
		CPDMinAge:       10,
		CPDMaxAge:       99,
		LifeMinYear:     1900,
		LifeMaxYear:     1984,
		LifeMinAge:      0,
		LifeMaxAge:      99,
		Groups:          5,
		Initiation:      Const("0.05"),
		Cessation:       Const("0.03"),
		Intensity:       Const("0.2"),
		CPD:             func(int, int, int, int, int) string { return "0.2" },
		Life:            func(int, int, int, int, int) string { return "0.01" },
	}
}

// Write renders the fixture into dir and returns the file paths.
func (f TableFixture) Write(t testing.TB, dir string) TableFiles {
	t.Helper()
	files := TableFiles{
		Initiation: filepath.Join(dir, "initiation.txt"),
		Cessation:  filepath.Join(dir, "cessation.txt"),
		LifeTable:  filepath.Join(dir, "oc_mortality.txt"),
		Intensity:  filepath.Join(dir, "intensity.txt"),
		CPD:        filepath.Join(dir, "cpd.txt"),
	}
	WriteFile(t, files.Initiation, f.InitiationText())
	WriteFile(t, files.Cessation, f.CessationText())
	WriteFile(t, files.Intensity, f.IntensityText())
	WriteFile(t, files.CPD, f.CPDText())
	WriteFile(t, files.LifeTable, f.LifeText())
	return files
}

// header emits line 1, a documentation block with a version tag, and leaves
// the extents on line 4.
func header(b *strings.Builder, title string) {
	b.WriteString("4\n")
	fmt.Fprintf(b, "%s synthetic test table\n", title)
	b.WriteString("Version=test-1\n")
}

func (f TableFixture) cohortTable(title string, minAge, maxAge int, cell func(int, int, int, int) string) string {
	var b strings.Builder
	header(&b, title)
	fmt.Fprintf(&b, "%d,%d,%d,%d,%d\n", f.Races, f.Sexes, len(f.Cohorts), minAge, maxAge)
	b.WriteString("race,sex,age")
	for _, c := range f.Cohorts {
		fmt.Fprintf(&b, ",%d-%d", c.Start, c.End)
	}
	b.WriteString("\n")
	for r := 0; r < f.Races; r++ {
		for s := 0; s < f.Sexes; s++ {
			for a := minAge; a <= maxAge; a++ {
				fmt.Fprintf(&b, "%d,%d,%d", r, s, a)
				for c := range f.Cohorts {
					b.WriteString(",")
					b.WriteString(cell(r, s, c, a))
				}
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// InitiationText renders the initiation table.
func (f TableFixture) InitiationText() string {
	return f.cohortTable("initiation", f.InitMinAge, f.InitMaxAge, f.Initiation)
}

// CessationText renders the cessation table.
func (f TableFixture) CessationText() string {
	return f.cohortTable("cessation", f.CessMinAge, f.CessMaxAge, f.Cessation)
}

// IntensityText renders the intensity group probabilities.
func (f TableFixture) IntensityText() string {
	var b strings.Builder
	header(&b, "intensity")
	fmt.Fprintf(&b, "%d,%d,%d,%d,%d\n", f.Races, f.Sexes, f.IntensityMinAge, f.IntensityMaxAge, f.Groups)
	for r := 0; r < f.Races; r++ {
		for s := 0; s < f.Sexes; s++ {
			for a := f.IntensityMinAge; a <= f.IntensityMaxAge; a++ {
				fmt.Fprintf(&b, "%d,%d,%d", r, s, a)
				for g := 0; g < f.Groups; g++ {
					b.WriteString(",")
					b.WriteString(f.Intensity(r, s, a, g))
				}
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// CPDText renders the per-cohort intensity distribution table.
func (f TableFixture) CPDText() string {
	var b strings.Builder
	header(&b, "cpd")
	fmt.Fprintf(&b, "%d,%d,%d,%d,%d,%d\n", f.Races, f.Sexes, len(f.Cohorts), f.CPDMinAge, f.CPDMaxAge, f.Groups)
	for r := 0; r < f.Races; r++ {
		for s := 0; s < f.Sexes; s++ {
			for c, co := range f.Cohorts {
				for a := f.CPDMinAge; a <= f.CPDMaxAge; a++ {
					fmt.Fprintf(&b, "%d,%d,%d,%d,%d", r, s, co.Start, co.End, a)
					for g := 0; g < f.Groups; g++ {
						b.WriteString(",")
						b.WriteString(f.CPD(r, s, c, a, g))
					}
					b.WriteString("\n")
				}
			}
		}
	}
	return b.String()
}

// LifeText renders the other-cause mortality table (never column plus one
// column per group).
func (f TableFixture) LifeText() string {
	var b strings.Builder
	header(&b, "life table")
	fmt.Fprintf(&b, "%d,%d,%d,%d,%d,%d\n", f.Races, f.Sexes, f.LifeMinYear, f.LifeMaxYear, f.LifeMinAge, f.LifeMaxAge)
	for r := 0; r < f.Races; r++ {
		for s := 0; s < f.Sexes; s++ {
			for y := f.LifeMinYear; y <= f.LifeMaxYear; y++ {
				for a := f.LifeMinAge; a <= f.LifeMaxAge; a++ {
					fmt.Fprintf(&b, "%d,%d,%d,%d", r, s, y, a)
					for c := 0; c <= f.Groups; c++ {
						b.WriteString(",")
						b.WriteString(f.Life(r, s, y, a, c))
					}
					b.WriteString("\n")
				}
			}
		}
	}
	return b.String()
}

// WriteFile writes content to path, failing the test on error.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

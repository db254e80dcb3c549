package sim

import (
	"io"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Default table file names inside a data directory.
const (
	DefaultInitiationFile = "lbc_smokehist_initiation.txt"
	DefaultCessationFile  = "lbc_smokehist_cessation.txt"
	DefaultLifeTableFile  = "lbc_smokehist_oc_mortality.txt"
	DefaultIntensityFile  = "lbc_smokehist_cpdintensityprobs.txt"
	DefaultCPDFile        = "lbc_smokehist_cpd.txt"
)

// TablePaths names the five table files.
type TablePaths struct {
	Initiation string `yaml:"initiation"`
	Cessation  string `yaml:"cessation"`
	LifeTable  string `yaml:"life_table"`
	Intensity  string `yaml:"intensity"`
	CPD        string `yaml:"cpd"`
}

// DefaultTablePaths returns the stock file names under dir.
func DefaultTablePaths(dir string) TablePaths {
	return TablePaths{
		Initiation: filepath.Join(dir, DefaultInitiationFile),
		Cessation:  filepath.Join(dir, DefaultCessationFile),
		LifeTable:  filepath.Join(dir, DefaultLifeTableFile),
		Intensity:  filepath.Join(dir, DefaultIntensityFile),
		CPD:        filepath.Join(dir, DefaultCPDFile),
	}
}

// LifeTable is the other-cause mortality table. Its cohort dimension holds
// single birth years starting at MinYear; category 0 is the never-smoker
// column and category 1+g the current smoker at intensity g.
type LifeTable struct {
	*Table
	MinYear int
	MaxYear int
}

// YearIndex maps a birth year to the cohort coordinate of the table.
func (lt *LifeTable) YearIndex(birthYear int) (int, error) {
	if lt == nil || lt.Table == nil {
		return 0, internalErrorf("LifeTable.YearIndex", "life table not loaded")
	}
	if birthYear < lt.MinYear || birthYear > lt.MaxYear {
		return 0, domainErrorf("LifeTable.YearIndex",
			"birth year %d outside life table range %d-%d", birthYear, lt.MinYear, lt.MaxYear)
	}
	return birthYear - lt.MinYear, nil
}

// Tables bundles every loaded table. Read-only after LoadTables returns and
// safe to share between simulators.
type Tables struct {
	Initiation *Table
	Cessation  *Table
	Intensity  *Table // cumulative across categories
	CPD        *Table
	Life       *LifeTable
	Cohorts    *CohortIndex
}

// Groups returns the number of intensity categories.
func (t *Tables) Groups() int { return t.Intensity.Extents().Categories }

func (t *Tables) check() error {
	if t == nil || t.Initiation == nil || t.Cessation == nil || t.Intensity == nil ||
		t.CPD == nil || t.Life == nil || t.Life.Table == nil || t.Cohorts == nil {
		return internalErrorf("Tables.check", "one or more probability tables not loaded")
	}
	return nil
}

// LoadTables loads initiation, cessation, intensity, cigarettes-per-day and
// life tables in that order, cross-checking extents as it goes.
func LoadTables(paths TablePaths) (*Tables, error) {
	var t Tables
	err := withFile(paths.Initiation, "LoadTables", func(r io.Reader) error {
		var err error
		t.Initiation, t.Cohorts, err = ReadInitiationTable(r, paths.Initiation)
		return err
	})
	if err == nil {
		err = withFile(paths.Cessation, "LoadTables", func(r io.Reader) error {
			var err error
			t.Cessation, err = ReadCessationTable(r, paths.Cessation, t.Initiation, t.Cohorts)
			return err
		})
	}
	if err == nil {
		err = withFile(paths.Intensity, "LoadTables", func(r io.Reader) error {
			var err error
			t.Intensity, err = ReadIntensityTable(r, paths.Intensity, t.Initiation)
			return err
		})
	}
	if err == nil {
		err = withFile(paths.CPD, "LoadTables", func(r io.Reader) error {
			var err error
			t.CPD, err = ReadCPDTable(r, paths.CPD, t.Initiation, t.Cohorts, t.Intensity)
			return err
		})
	}
	if err == nil {
		err = withFile(paths.LifeTable, "LoadTables", func(r io.Reader) error {
			var err error
			t.Life, err = ReadLifeTable(r, paths.LifeTable, t.Initiation, t.Intensity.Extents().Categories)
			return err
		})
	}
	if err != nil {
		return nil, err
	}
	logrus.Infof("loaded probability tables: %d races, %d sexes, birth years %d-%d, %d intensity groups",
		t.Initiation.Extents().Races, t.Initiation.Extents().Sexes, t.Cohorts.MinYear(), t.Cohorts.MaxYear(), t.Groups())
	return &t, nil
}

func withFile(path, frame string, fn func(io.Reader) error) error {
	f, err := openTable(path, "openTable")
	if err != nil {
		return WithFrame(err, frame)
	}
	defer f.Close()
	return WithFrame(fn(f), frame)
}

// === Initiation / cessation ===

// ReadInitiationTable reads the initiation table and builds the CohortIndex
// from its label line.
func ReadInitiationTable(r io.Reader, name string) (*Table, *CohortIndex, error) {
	return readCohortTable(r, name, "ReadInitiationTable", nil, nil)
}

// ReadCessationTable reads the cessation table. Its race, sex and cohort
// extents and cohort labels must equal the initiation table's.
func ReadCessationTable(r io.Reader, name string, initiation *Table, cohorts *CohortIndex) (*Table, error) {
	if initiation == nil || cohorts == nil {
		return nil, internalErrorf("ReadCessationTable", "initiation table must be loaded before cessation")
	}
	t, _, err := readCohortTable(r, name, "ReadCessationTable", initiation, cohorts)
	return t, err
}

// readCohortTable reads records race,sex,age,v_1..v_K with one value per
// birth cohort.
func readCohortTable(r io.Reader, name, frame string, ref *Table, refCohorts *CohortIndex) (*Table, *CohortIndex, error) {
	tr := newTableReader(r, name, frame)
	if err := tr.preamble(); err != nil {
		return nil, nil, err
	}
	dims, err := tr.ints(5, "extents")
	if err != nil {
		return nil, nil, err
	}
	ext := Extents{Races: dims[0], Sexes: dims[1], Cohorts: dims[2], MinAge: dims[3], MaxAge: dims[4], Categories: 1}
	if ref == nil && (ext.Races <= 0 || ext.Sexes <= 0 || ext.Cohorts <= 0) {
		return nil, nil, tr.errorf("invalid race, sex or cohort count (%s)", ext)
	}
	if ref != nil {
		re := ref.Extents()
		if ext.Races != re.Races || ext.Sexes != re.Sexes || ext.Cohorts != re.Cohorts {
			return nil, nil, tr.errorf("extents mismatch %s: races=%d sexes=%d cohorts=%d, %s has races=%d sexes=%d cohorts=%d",
				name, ext.Races, ext.Sexes, ext.Cohorts, ref.Name(), re.Races, re.Sexes, re.Cohorts)
		}
	}
	if err := tr.checkAges(ext.MinAge, ext.MaxAge); err != nil {
		return nil, nil, err
	}

	labels, err := tr.cohortLabels(ext.Cohorts)
	if err != nil {
		return nil, nil, err
	}
	cohorts := refCohorts
	if refCohorts == nil {
		if cohorts, err = NewCohortIndex(labels); err != nil {
			return nil, nil, WithFrame(err, frame)
		}
	} else {
		for i, c := range labels {
			if c != refCohorts.Cohort(i) {
				return nil, nil, tr.errorf("cohort %d is %s, %s has %s", i+1, c, ref.Name(), refCohorts.Cohort(i))
			}
		}
	}

	t, err := NewTable(name, ext)
	if err != nil {
		return nil, nil, WithFrame(err, frame)
	}
	expected := ext.Races * ext.Sexes * ext.Ages()
	n, err := tr.records(func(f []string) error {
		if len(f) < 3+ext.Cohorts {
			return tr.errorf("record has %d fields, want %d", len(f), 3+ext.Cohorts)
		}
		race, err := tr.intField(f, 0, "race")
		if err != nil {
			return err
		}
		sex, err := tr.intField(f, 1, "sex")
		if err != nil {
			return err
		}
		age, err := tr.intField(f, 2, "age")
		if err != nil {
			return err
		}
		if err := tr.checkRaceSex(race, sex, ext); err != nil {
			return err
		}
		if err := tr.checkAge(age, ext); err != nil {
			return err
		}
		for c := 0; c < ext.Cohorts; c++ {
			v, err := tr.probability(f[3+c], true)
			if err != nil {
				return err
			}
			if err := t.Set(race, sex, c, age, 0, v); err != nil {
				return WithFrame(err, frame)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if n < expected {
		return nil, nil, tr.errorf("insufficient data: read %d records, expected %d", n, expected)
	}
	if n > expected {
		return nil, nil, tr.errorf("excess data: read %d records, expected %d", n, expected)
	}
	tr.logLoaded(ext, n)
	return t, cohorts, nil
}

// === Intensity ===

// ReadIntensityTable reads per-age intensity category probabilities
// (race,sex,age,p_1..p_G) and stores them cumulatively.
func ReadIntensityTable(r io.Reader, name string, initiation *Table) (*Table, error) {
	const frame = "ReadIntensityTable"
	if initiation == nil {
		return nil, internalErrorf(frame, "initiation table must be loaded before intensity")
	}
	tr := newTableReader(r, name, frame)
	if err := tr.preamble(); err != nil {
		return nil, err
	}
	dims, err := tr.ints(5, "extents")
	if err != nil {
		return nil, err
	}
	ext := Extents{Races: dims[0], Sexes: dims[1], Cohorts: 1, MinAge: dims[2], MaxAge: dims[3], Categories: dims[4]}
	if ext.Categories <= 0 {
		return nil, tr.errorf("invalid intensity group count %d", ext.Categories)
	}
	if err := tr.checkAges(ext.MinAge, ext.MaxAge); err != nil {
		return nil, err
	}
	if re := initiation.Extents(); ext.Races != re.Races || ext.Sexes != re.Sexes {
		return nil, tr.errorf("extents mismatch: races=%d sexes=%d, %s has races=%d sexes=%d",
			ext.Races, ext.Sexes, initiation.Name(), re.Races, re.Sexes)
	}

	t, err := NewTable(name, ext)
	if err != nil {
		return nil, WithFrame(err, frame)
	}
	expected := ext.Races * ext.Sexes * ext.Ages()
	n, err := tr.records(func(f []string) error {
		if len(f) < 3+ext.Categories {
			return tr.errorf("record has %d fields, want %d", len(f), 3+ext.Categories)
		}
		race, err := tr.intField(f, 0, "race")
		if err != nil {
			return err
		}
		sex, err := tr.intField(f, 1, "sex")
		if err != nil {
			return err
		}
		age, err := tr.intField(f, 2, "age")
		if err != nil {
			return err
		}
		if err := tr.checkRaceSex(race, sex, ext); err != nil {
			return err
		}
		if err := tr.checkAge(age, ext); err != nil {
			return err
		}
		for g := 0; g < ext.Categories; g++ {
			v, err := tr.probability(f[3+g], false)
			if err != nil {
				return err
			}
			if err := t.Set(race, sex, 0, age, g, v); err != nil {
				return WithFrame(err, frame)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if n < expected {
		return nil, tr.errorf("insufficient data: read %d records, expected %d", n, expected)
	}
	if n > expected {
		return nil, tr.errorf("excess data: read %d records, expected %d", n, expected)
	}
	t.accumulate()
	tr.logLoaded(ext, n)
	return t, nil
}

// === Cigarettes per day ===

// ReadCPDTable reads per-cohort, per-age intensity data
// (race,sex,cohortStart,cohortEnd,age,v_1..v_G). The file is scanned to EOF.
func ReadCPDTable(r io.Reader, name string, initiation *Table, cohorts *CohortIndex, intensity *Table) (*Table, error) {
	const frame = "ReadCPDTable"
	if initiation == nil || cohorts == nil {
		return nil, internalErrorf(frame, "initiation table must be loaded before cigarettes per day")
	}
	if intensity == nil {
		return nil, internalErrorf(frame, "intensity table must be loaded before cigarettes per day")
	}
	tr := newTableReader(r, name, frame)
	if err := tr.preamble(); err != nil {
		return nil, err
	}
	dims, err := tr.ints(6, "extents")
	if err != nil {
		return nil, err
	}
	ext := Extents{Races: dims[0], Sexes: dims[1], Cohorts: dims[2], MinAge: dims[3], MaxAge: dims[4], Categories: dims[5]}
	re := initiation.Extents()
	if ext.Races != re.Races || ext.Sexes != re.Sexes || ext.Cohorts != re.Cohorts {
		return nil, tr.errorf("extents mismatch: races=%d sexes=%d cohorts=%d, %s has races=%d sexes=%d cohorts=%d",
			ext.Races, ext.Sexes, ext.Cohorts, initiation.Name(), re.Races, re.Sexes, re.Cohorts)
	}
	if g := intensity.Extents().Categories; ext.Categories != g {
		return nil, tr.errorf("%d intensity groups, %s has %d", ext.Categories, intensity.Name(), g)
	}
	if err := tr.checkAges(ext.MinAge, ext.MaxAge); err != nil {
		return nil, err
	}

	t, err := NewTable(name, ext)
	if err != nil {
		return nil, WithFrame(err, frame)
	}
	maxRecords := ext.Size() / ext.Categories
	n, err := tr.records(func(f []string) error {
		if len(f) < 5+ext.Categories {
			return tr.errorf("record has %d fields, want %d", len(f), 5+ext.Categories)
		}
		var ints [5]int
		for i, what := range []string{"race", "sex", "cohort start", "cohort end", "age"} {
			v, err := tr.intField(f, i, what)
			if err != nil {
				return err
			}
			ints[i] = v
		}
		race, sex, start, end, age := ints[0], ints[1], ints[2], ints[3], ints[4]
		if err := tr.checkRaceSex(race, sex, ext); err != nil {
			return err
		}
		cohort, ok := cohorts.Lookup(start, end)
		if !ok {
			return tr.errorf("cohort %d-%d does not match any initiation cohort", start, end)
		}
		if err := tr.checkAge(age, ext); err != nil {
			return err
		}
		for g := 0; g < ext.Categories; g++ {
			v, err := tr.count(f[5+g])
			if err != nil {
				return err
			}
			if err := t.Set(race, sex, cohort, age, g, v); err != nil {
				return WithFrame(err, frame)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if n > maxRecords {
		return nil, tr.errorf("excess data: read %d records, at most %d expected", n, maxRecords)
	}
	tr.logLoaded(ext, n)
	return t, nil
}

// === Life table ===

// ReadLifeTable reads other-cause death probabilities
// (race,sex,birthYear,age,c_never,c_1..c_G). The file is scanned to EOF.
func ReadLifeTable(r io.Reader, name string, initiation *Table, groups int) (*LifeTable, error) {
	const frame = "ReadLifeTable"
	if initiation == nil {
		return nil, internalErrorf(frame, "initiation table must be loaded before the life table")
	}
	tr := newTableReader(r, name, frame)
	if err := tr.preamble(); err != nil {
		return nil, err
	}
	dims, err := tr.ints(6, "extents")
	if err != nil {
		return nil, err
	}
	minYear, maxYear := dims[2], dims[3]
	if maxYear < minYear {
		return nil, tr.errorf("invalid birth year range %d-%d", minYear, maxYear)
	}
	ext := Extents{Races: dims[0], Sexes: dims[1], Cohorts: maxYear - minYear + 1, MinAge: dims[4], MaxAge: dims[5], Categories: 1 + groups}
	if re := initiation.Extents(); ext.Races != re.Races || ext.Sexes != re.Sexes {
		return nil, tr.errorf("extents mismatch: races=%d sexes=%d, %s has races=%d sexes=%d",
			ext.Races, ext.Sexes, initiation.Name(), re.Races, re.Sexes)
	}
	if err := tr.checkAges(ext.MinAge, ext.MaxAge); err != nil {
		return nil, err
	}

	t, err := NewTable(name, ext)
	if err != nil {
		return nil, WithFrame(err, frame)
	}
	maxRecords := ext.Size() / ext.Categories
	n, err := tr.records(func(f []string) error {
		if len(f) < 4+ext.Categories {
			return tr.errorf("record has %d fields, want %d", len(f), 4+ext.Categories)
		}
		var ints [4]int
		for i, what := range []string{"race", "sex", "birth year", "age"} {
			v, err := tr.intField(f, i, what)
			if err != nil {
				return err
			}
			ints[i] = v
		}
		race, sex, year, age := ints[0], ints[1], ints[2], ints[3]
		if err := tr.checkRaceSex(race, sex, ext); err != nil {
			return err
		}
		if year < minYear || year > maxYear {
			return tr.errorf("birth year %d outside %d-%d", year, minYear, maxYear)
		}
		if err := tr.checkAge(age, ext); err != nil {
			return err
		}
		for c := 0; c < ext.Categories; c++ {
			v, err := tr.probability(f[4+c], true)
			if err != nil {
				return err
			}
			if err := t.Set(race, sex, year-minYear, age, c, v); err != nil {
				return WithFrame(err, frame)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if n > maxRecords {
		return nil, tr.errorf("excess data: read %d records, at most %d expected", n, maxRecords)
	}
	tr.logLoaded(ext, n)
	return &LifeTable{Table: t, MinYear: minYear, MaxYear: maxYear}, nil
}

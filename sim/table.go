package sim

import "fmt"

// Missing marks a cell with no data. Scans stop when they reach it.
const Missing = -1.0

// Extents are the dimension sizes declared in a table header.
// For the life table the cohort dimension holds individual birth years.
type Extents struct {
	Races      int
	Sexes      int
	Cohorts    int
	MinAge     int
	MaxAge     int
	Categories int // 1 for single-valued tables
}

// Ages returns the number of ages in [MinAge, MaxAge].
func (e Extents) Ages() int { return e.MaxAge - e.MinAge + 1 }

// Size returns the total number of cells.
func (e Extents) Size() int {
	return e.Races * e.Sexes * e.Cohorts * e.Ages() * e.Categories
}

func (e Extents) String() string {
	return fmt.Sprintf("races=%d sexes=%d cohorts=%d ages=%d-%d categories=%d",
		e.Races, e.Sexes, e.Cohorts, e.MinAge, e.MaxAge, e.Categories)
}

func (e Extents) validate() error {
	if e.Races <= 0 || e.Sexes <= 0 || e.Cohorts <= 0 || e.Categories <= 0 {
		return fmt.Errorf("non-positive extent (%s)", e)
	}
	if e.MinAge < 0 || e.MaxAge < e.MinAge {
		return fmt.Errorf("invalid age range %d-%d", e.MinAge, e.MaxAge)
	}
	return nil
}

// Table is a dense row-major array over (race, sex, cohort, age, category).
// Strides are derived bottom-up from the extents with category stride 1.
// All access goes through bounds-checked accessors; after loading a Table is
// read-only and may be shared between simulators.
type Table struct {
	name    string
	ext     Extents
	strides [4]int // race, sex, cohort, age
	cells   []float64
}

// NewTable allocates a table with every cell set to Missing.
func NewTable(name string, ext Extents) (*Table, error) {
	if err := ext.validate(); err != nil {
		return nil, fileFormatErrorf("NewTable", "%s: %v", name, err)
	}
	ageStride := ext.Categories
	cohortStride := ext.Ages() * ageStride
	sexStride := ext.Cohorts * cohortStride
	raceStride := ext.Sexes * sexStride
	t := &Table{
		name:    name,
		ext:     ext,
		strides: [4]int{raceStride, sexStride, cohortStride, ageStride},
		cells:   make([]float64, ext.Size()),
	}
	for i := range t.cells {
		t.cells[i] = Missing
	}
	return t, nil
}

// Name returns the table's label, used in error messages.
func (t *Table) Name() string { return t.name }

// Extents returns the declared dimensions.
func (t *Table) Extents() Extents { return t.ext }

// Offset computes the flat index of a cell, rejecting any coordinate outside
// the declared extents.
func (t *Table) Offset(race, sex, cohort, age, category int) (int, error) {
	if t == nil {
		return 0, internalErrorf("Table.Offset", "table not loaded")
	}
	e := t.ext
	switch {
	case race < 0 || race >= e.Races:
		return 0, internalErrorf("Table.Offset", "%s: race %d outside [0,%d)", t.name, race, e.Races)
	case sex < 0 || sex >= e.Sexes:
		return 0, internalErrorf("Table.Offset", "%s: sex %d outside [0,%d)", t.name, sex, e.Sexes)
	case cohort < 0 || cohort >= e.Cohorts:
		return 0, internalErrorf("Table.Offset", "%s: cohort %d outside [0,%d)", t.name, cohort, e.Cohorts)
	case age < e.MinAge || age > e.MaxAge:
		return 0, internalErrorf("Table.Offset", "%s: age %d outside [%d,%d]", t.name, age, e.MinAge, e.MaxAge)
	case category < 0 || category >= e.Categories:
		return 0, internalErrorf("Table.Offset", "%s: category %d outside [0,%d)", t.name, category, e.Categories)
	}
	return race*t.strides[0] + sex*t.strides[1] + cohort*t.strides[2] + (age-e.MinAge)*t.strides[3] + category, nil
}

// At returns the value of one cell.
func (t *Table) At(race, sex, cohort, age, category int) (float64, error) {
	off, err := t.Offset(race, sex, cohort, age, category)
	if err != nil {
		return 0, err
	}
	return t.cells[off], nil
}

// Set stores the value of one cell.
func (t *Table) Set(race, sex, cohort, age, category int, v float64) error {
	off, err := t.Offset(race, sex, cohort, age, category)
	if err != nil {
		return err
	}
	t.cells[off] = v
	return nil
}

// Row returns a copy of every category at one (race, sex, cohort, age).
func (t *Table) Row(race, sex, cohort, age int) ([]float64, error) {
	off, err := t.Offset(race, sex, cohort, age, 0)
	if err != nil {
		return nil, err
	}
	row := make([]float64, t.ext.Categories)
	copy(row, t.cells[off:off+t.ext.Categories])
	return row, nil
}

// HasAge reports whether age lies inside the table's age range.
func (t *Table) HasAge(age int) bool {
	return age >= t.ext.MinAge && age <= t.ext.MaxAge
}

// ClampAge returns the nearest age inside the table's range.
func (t *Table) ClampAge(age int) int {
	if age < t.ext.MinAge {
		return t.ext.MinAge
	}
	if age > t.ext.MaxAge {
		return t.ext.MaxAge
	}
	return age
}

// accumulate rewrites every row as running sums across categories.
func (t *Table) accumulate() {
	c := t.ext.Categories
	for off := 0; off < len(t.cells); off += c {
		sum := 0.0
		for j := 0; j < c; j++ {
			sum += t.cells[off+j]
			t.cells[off+j] = sum
		}
	}
}

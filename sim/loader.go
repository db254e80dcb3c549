package sim

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// missingToken marks a cell with no data in table files.
const missingToken = "."

// tableReader walks the common table layout: line 1 holds the 1-based line
// number where data begins, documentation lines follow, then the extents
// line, optional label line, and comma-separated records.
type tableReader struct {
	sc      *bufio.Scanner
	name    string
	frame   string
	line    int
	version string
}

func newTableReader(r io.Reader, name, frame string) *tableReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &tableReader{sc: sc, name: name, frame: frame}
}

func (tr *tableReader) errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fileFormatErrorf(tr.frame, "%s line %d: %s", tr.name, tr.line, msg)
}

// nextLine returns the next raw line, or false at EOF.
func (tr *tableReader) nextLine() (string, bool, error) {
	if !tr.sc.Scan() {
		if err := tr.sc.Err(); err != nil {
			return "", false, fileFormatErrorf(tr.frame, "%s: read failed: %v", tr.name, err)
		}
		return "", false, nil
	}
	tr.line++
	return strings.TrimRight(tr.sc.Text(), "\r\n"), true, nil
}

// preamble consumes line 1 and the documentation block, leaving the reader
// positioned before the extents line. A "Version=" tag in the documentation
// is kept for logging.
func (tr *tableReader) preamble() error {
	first, ok, err := tr.nextLine()
	if err != nil {
		return err
	}
	if !ok {
		return tr.errorf("empty file")
	}
	fields := splitFields(first)
	if len(fields) == 0 {
		return tr.errorf("missing first-data-line number")
	}
	dataLine, err := strconv.Atoi(fields[0])
	if err != nil || dataLine <= 1 {
		return tr.errorf("invalid first data line %q", fields[0])
	}
	for tr.line < dataLine-1 {
		doc, ok, err := tr.nextLine()
		if err != nil {
			return err
		}
		if !ok {
			return tr.errorf("end of file before first data line %d", dataLine)
		}
		if idx := strings.Index(doc, "Version="); idx >= 0 && tr.version == "" {
			tr.version = strings.TrimSpace(strings.Trim(doc[idx+len("Version="):], ","))
		}
	}
	return nil
}

// ints reads one header line of exactly n integers.
func (tr *tableReader) ints(n int, what string) ([]int, error) {
	line, ok, err := tr.nextLine()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, tr.errorf("missing %s line", what)
	}
	fields := splitFields(line)
	if len(fields) != n {
		return nil, tr.errorf("%s line has %d fields, want %d", what, len(fields), n)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return nil, tr.errorf("%s field %d: %q is not an integer", what, i+1, fields[i])
		}
		out[i] = v
	}
	return out, nil
}

// cohortLabels reads the label line: three column labels then one
// "start-end" pair per cohort.
func (tr *tableReader) cohortLabels(n int) ([]BirthCohort, error) {
	line, ok, err := tr.nextLine()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, tr.errorf("missing cohort label line")
	}
	fields := splitFields(line)
	if len(fields) < 3+n {
		return nil, tr.errorf("cohort label line has %d cohorts, want %d", len(fields)-3, n)
	}
	cohorts := make([]BirthCohort, n)
	for i := 0; i < n; i++ {
		label := fields[3+i]
		start, end, found := strings.Cut(label, "-")
		if !found {
			return nil, tr.errorf("cohort label %q is not start-end", label)
		}
		s, err1 := strconv.Atoi(strings.TrimSpace(start))
		e, err2 := strconv.Atoi(strings.TrimSpace(end))
		if err1 != nil || err2 != nil {
			return nil, tr.errorf("cohort label %q is not start-end", label)
		}
		cohorts[i] = BirthCohort{Start: s, End: e}
	}
	return cohorts, nil
}

// records calls fn for each non-blank record through to EOF and returns
// the number of records read.
func (tr *tableReader) records(fn func(fields []string) error) (int, error) {
	n := 0
	for {
		line, ok, err := tr.nextLine()
		if err != nil {
			return n, err
		}
		if !ok {
			break
		}
		fields := splitFields(line)
		if len(fields) == 0 {
			continue
		}
		if err := fn(fields); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (tr *tableReader) logLoaded(ext Extents, records int) {
	logrus.Debugf("loaded %s (%s): %d records, version %q", tr.name, ext, records, tr.version)
}

// splitFields splits on commas, trims whitespace and drops empty fields.
func splitFields(line string) []string {
	raw := strings.Split(line, ",")
	out := raw[:0]
	for _, f := range raw {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func (tr *tableReader) intField(fields []string, i int, what string) (int, error) {
	if i >= len(fields) {
		return 0, tr.errorf("record has %d fields, missing %s", len(fields), what)
	}
	v, err := strconv.Atoi(fields[i])
	if err != nil {
		return 0, tr.errorf("%s %q is not an integer", what, fields[i])
	}
	return v, nil
}

// probability parses a value in [0,1]; the missing token maps to Missing
// when allowMissing is set.
func (tr *tableReader) probability(tok string, allowMissing bool) (float64, error) {
	if tok == missingToken {
		if allowMissing {
			return Missing, nil
		}
		return 0, tr.errorf("missing value not allowed")
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, tr.errorf("value %q is not a number", tok)
	}
	if v < 0 || v > 1 {
		return 0, tr.errorf("probability %g outside [0,1]", v)
	}
	return v, nil
}

// count parses a non-negative value; the missing token maps to Missing.
func (tr *tableReader) count(tok string) (float64, error) {
	if tok == missingToken {
		return Missing, nil
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, tr.errorf("value %q is not a number", tok)
	}
	if v < 0 {
		return 0, tr.errorf("value %g is negative", v)
	}
	return v, nil
}

func (tr *tableReader) checkAges(minAge, maxAge int) error {
	if minAge < 0 || maxAge <= 0 || minAge >= maxAge {
		return tr.errorf("invalid age range %d-%d", minAge, maxAge)
	}
	return nil
}

func (tr *tableReader) checkRaceSex(race, sex int, ext Extents) error {
	if race < 0 || race >= ext.Races {
		return tr.errorf("race %d outside [0,%d)", race, ext.Races)
	}
	if sex < 0 || sex >= ext.Sexes {
		return tr.errorf("sex %d outside [0,%d)", sex, ext.Sexes)
	}
	return nil
}

func (tr *tableReader) checkAge(age int, ext Extents) error {
	if age < ext.MinAge || age > ext.MaxAge {
		return tr.errorf("age %d outside %d-%d", age, ext.MinAge, ext.MaxAge)
	}
	return nil
}

// openTable opens path for one of the Load* functions, mapping open failures
// to file-format errors.
func openTable(path, frame string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SimError{
			Kind:   KindFileFormat,
			Msg:    fmt.Sprintf("%s does not exist or could not be opened", path),
			Frames: []string{frame},
			Err:    err,
		}
	}
	return f, nil
}

package sim

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Record is one requested individual.
type Record struct {
	Race      int
	Sex       int
	BirthYear int
	Line      int // 1-based source line, 0 when generated
}

// ParseRecord parses "race;sex;birthYear". Malformed input is a domain-value
// error so batch drivers skip it.
func ParseRecord(line string) (Record, error) {
	const frame = "ParseRecord"
	parts := strings.Split(strings.TrimSpace(line), ";")
	if len(parts) < 3 {
		return Record{}, domainErrorf(frame, "record %q is not race;sex;birthYear", line)
	}
	var vals [3]int
	for i, name := range []string{"race", "sex", "birth year"} {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return Record{}, domainErrorf(frame, "%s %q is not an integer", name, parts[i])
		}
		vals[i] = v
	}
	return Record{Race: vals[0], Sex: vals[1], BirthYear: vals[2]}, nil
}

// BatchStats counts the outcome of a batch run.
type BatchStats struct {
	Simulated int
	Skipped   int
}

// Emit receives each simulated individual in input order.
type Emit func(Individual) error

// RunBatch simulates every record read from r. Domain-value errors are logged
// and the record skipped; any other error aborts the run.
func RunBatch(s *Simulator, r io.Reader, emit Emit) (BatchStats, error) {
	var stats BatchStats
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		rec, err := ParseRecord(text)
		if err != nil {
			logrus.Warnf("skipping input line %d: %v [%s]", line, err, CallPath(err))
			stats.Skipped++
			continue
		}
		rec.Line = line
		if err := runOne(s, rec, emit, &stats); err != nil {
			return stats, err
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("reading batch input: %w", err)
	}
	return stats, nil
}

// RunRecords simulates records in order with the same skip rules as RunBatch.
func RunRecords(s *Simulator, records []Record, emit Emit) (BatchStats, error) {
	var stats BatchStats
	for _, rec := range records {
		if err := runOne(s, rec, emit, &stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// Repeat simulates the same race, sex and birth year n times.
func Repeat(s *Simulator, race, sex, birthYear, n int, emit Emit) (BatchStats, error) {
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{Race: race, Sex: sex, BirthYear: birthYear}
	}
	return RunRecords(s, records, emit)
}

func runOne(s *Simulator, rec Record, emit Emit, stats *BatchStats) error {
	ind, err := s.Simulate(rec.Race, rec.Sex, rec.BirthYear)
	if err != nil {
		if IsFatal(err) {
			return WithFrame(err, "RunBatch")
		}
		if rec.Line > 0 {
			logrus.Warnf("skipping input line %d: %v [%s]", rec.Line, err, CallPath(err))
		} else {
			logrus.Warnf("skipping record %d;%d;%d: %v [%s]", rec.Race, rec.Sex, rec.BirthYear, err, CallPath(err))
		}
		stats.Skipped++
		return nil
	}
	stats.Simulated++
	if emit == nil {
		return nil
	}
	if err := emit(ind); err != nil {
		return fmt.Errorf("writing individual %d;%d;%d: %w", rec.Race, rec.Sex, rec.BirthYear, err)
	}
	return nil
}

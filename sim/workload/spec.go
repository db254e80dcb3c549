package workload

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Record orderings accepted by PopulationSpec.Order.
const (
	OrderSequential = "sequential"
	OrderShuffled   = "shuffled"
)

var validOrders = map[string]bool{
	OrderSequential: true,
	OrderShuffled:   true,
	"":              true, // empty defaults to sequential
}

// PopulationSpec describes a synthetic population: groups of individuals
// sharing race and sex over a range of birth years.
type PopulationSpec struct {
	Version string      `yaml:"version"`
	Label   string      `yaml:"label,omitempty"`
	Seed    int64       `yaml:"seed"` // drives the shuffled ordering only
	Order   string      `yaml:"order,omitempty"`
	Groups  []GroupSpec `yaml:"groups"`
}

// GroupSpec is one population group. Count individuals are generated for
// every birth year in BirthYears.
type GroupSpec struct {
	ID         string    `yaml:"id"`
	Race       int       `yaml:"race"`
	Sex        int       `yaml:"sex"`
	BirthYears YearRange `yaml:"birth_years"`
	Count      int       `yaml:"count"`
}

// YearRange is an inclusive span of birth years.
type YearRange struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// Years returns the number of years in the range.
func (r YearRange) Years() int { return r.To - r.From + 1 }

// LoadPopulationSpec reads and parses a YAML population spec. Unknown keys
// are rejected.
func LoadPopulationSpec(path string) (*PopulationSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading population spec: %w", err)
	}
	spec, err := ParsePopulationSpec(data)
	if err != nil {
		return nil, err
	}
	logrus.Debugf("population spec %s: %d groups, %d individuals", path, len(spec.Groups), spec.Size())
	return spec, nil
}

// ParsePopulationSpec parses a YAML population spec from memory.
func ParsePopulationSpec(data []byte) (*PopulationSpec, error) {
	var spec PopulationSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing population spec: %w", err)
	}
	if spec.Version == "" {
		spec.Version = "1"
	}
	return &spec, nil
}

// Validate checks that all fields in the spec are valid. Race, sex and birth
// year domains are checked later by the simulator, which skips records it
// cannot simulate.
func (s *PopulationSpec) Validate() error {
	if s.Version != "1" {
		return fmt.Errorf("unsupported population spec version %q", s.Version)
	}
	if !validOrders[s.Order] {
		return fmt.Errorf("unknown order %q; valid: sequential, shuffled", s.Order)
	}
	if len(s.Groups) == 0 {
		return fmt.Errorf("at least one group required")
	}
	for i, g := range s.Groups {
		prefix := fmt.Sprintf("group[%d]", i)
		if g.ID != "" {
			prefix = fmt.Sprintf("group[%d] %q", i, g.ID)
		}
		if g.Count <= 0 {
			return fmt.Errorf("%s: count must be positive, got %d", prefix, g.Count)
		}
		if g.Race < 0 || g.Sex < 0 {
			return fmt.Errorf("%s: race and sex must be non-negative", prefix)
		}
		if g.BirthYears.From <= 0 || g.BirthYears.To < g.BirthYears.From {
			return fmt.Errorf("%s: invalid birth_years %d-%d", prefix, g.BirthYears.From, g.BirthYears.To)
		}
	}
	return nil
}

// Size returns the number of records the spec generates.
func (s *PopulationSpec) Size() int {
	n := 0
	for _, g := range s.Groups {
		n += g.Count * g.BirthYears.Years()
	}
	return n
}

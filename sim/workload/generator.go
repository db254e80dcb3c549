package workload

import (
	"math/rand"

	"github.com/cisnet-lbc/smokehist/sim"
)

// GenerateRecords expands spec into input records.
// Pure function: the same spec always produces identical output.
// Sequential order walks groups in file order, birth years ascending, then
// repetitions. Shuffled order permutes that list with a seed-derived RNG.
func GenerateRecords(spec *PopulationSpec) []sim.Record {
	records := make([]sim.Record, 0, spec.Size())
	for _, g := range spec.Groups {
		for year := g.BirthYears.From; year <= g.BirthYears.To; year++ {
			for i := 0; i < g.Count; i++ {
				records = append(records, sim.Record{Race: g.Race, Sex: g.Sex, BirthYear: year})
			}
		}
	}
	if spec.Order == OrderShuffled {
		rng := newRandFromSeed(spec.Seed*2654435761 + 1)
		rng.Shuffle(len(records), func(i, j int) { records[i], records[j] = records[j], records[i] })
	}
	return records
}

// newRandFromSeed creates a new *rand.Rand from a seed (avoids importing math/rand in callers).
func newRandFromSeed(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

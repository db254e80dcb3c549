package trace

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution summarizes one numeric outcome across individuals.
type Distribution struct {
	N      int
	Mean   float64
	StdDev float64
	Median float64
	P25    float64
	P75    float64
}

// CohortSummary aggregates outcome statistics from a SimulationTrace.
type CohortSummary struct {
	Individuals int
	EverSmokers int
	Quitters    int
	Deaths      int

	// EverSmokerPrevalence is EverSmokers/Individuals with a 95% normal
	// approximation interval.
	EverSmokerPrevalence float64
	PrevalenceLow        float64
	PrevalenceHigh       float64
	QuitFraction         float64 // quitters among ever smokers

	InitiationAge Distribution
	CessationAge  Distribution
	DeathAge      Distribution
	AverageCPD    Distribution // ever smokers only
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *CohortSummary {
	if st == nil {
		return &CohortSummary{}
	}
	return summarize(st.Outcomes)
}

// SummarizeByGroup computes one CohortSummary per race/sex group.
func SummarizeByGroup(st *SimulationTrace) map[GroupKey]*CohortSummary {
	out := make(map[GroupKey]*CohortSummary)
	if st == nil {
		return out
	}
	groups := make(map[GroupKey][]OutcomeRecord)
	for _, r := range st.Outcomes {
		groups[r.Group()] = append(groups[r.Group()], r)
	}
	for k, recs := range groups {
		out[k] = summarize(recs)
	}
	return out
}

// SortedGroups returns the keys of m ordered by race, then sex.
func SortedGroups(m map[GroupKey]*CohortSummary) []GroupKey {
	keys := make([]GroupKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Race != keys[j].Race {
			return keys[i].Race < keys[j].Race
		}
		return keys[i].Sex < keys[j].Sex
	})
	return keys
}

func summarize(records []OutcomeRecord) *CohortSummary {
	summary := &CohortSummary{Individuals: len(records)}
	if len(records) == 0 {
		return summary
	}

	var initAges, cessAges, deathAges, cpd []float64
	for _, r := range records {
		if r.Initiated {
			summary.EverSmokers++
			initAges = append(initAges, float64(r.InitiationAge))
			cpd = append(cpd, r.AverageCPD)
			if r.Quit {
				summary.Quitters++
				cessAges = append(cessAges, float64(r.CessationAge))
			}
		}
		if r.Died {
			summary.Deaths++
			deathAges = append(deathAges, float64(r.DeathAge))
		}
	}

	n := float64(summary.Individuals)
	p := float64(summary.EverSmokers) / n
	summary.EverSmokerPrevalence = p
	half := distuv.UnitNormal.Quantile(0.975) * math.Sqrt(p*(1-p)/n)
	summary.PrevalenceLow = math.Max(0, p-half)
	summary.PrevalenceHigh = math.Min(1, p+half)
	if summary.EverSmokers > 0 {
		summary.QuitFraction = float64(summary.Quitters) / float64(summary.EverSmokers)
	}

	summary.InitiationAge = describe(initAges)
	summary.CessationAge = describe(cessAges)
	summary.DeathAge = describe(deathAges)
	summary.AverageCPD = describe(cpd)
	return summary
}

// describe returns the zero Distribution for empty input.
func describe(data []float64) Distribution {
	d := Distribution{N: len(data)}
	if len(data) == 0 {
		return d
	}
	if len(data) > 1 {
		d.Mean, d.StdDev = stat.MeanStdDev(data, nil)
	} else {
		d.Mean = data[0]
	}
	d.Median, _ = stats.Median(data)
	d.P25, _ = stats.Percentile(data, 25)
	d.P75, _ = stats.Percentile(data, 75)
	return d
}

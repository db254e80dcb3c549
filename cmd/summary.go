package cmd

import (
	"fmt"
	"io"

	sim "github.com/cisnet-lbc/smokehist/sim"
	"github.com/cisnet-lbc/smokehist/sim/trace"
)

// printSummary displays the cohort statistics at the end of a run.
func printSummary(w io.Writer, label string, stats sim.BatchStats, overall *trace.CohortSummary,
	groups map[trace.GroupKey]*trace.CohortSummary) {
	fmt.Fprintln(w, "=== Cohort Summary ===")
	if label != "" {
		fmt.Fprintf(w, "Label                : %s\n", label)
	}
	fmt.Fprintf(w, "Skipped Records      : %d\n", stats.Skipped)
	printCohort(w, overall)

	for _, k := range trace.SortedGroups(groups) {
		fmt.Fprintf(w, "--- Race %d, Sex %d ---\n", k.Race, k.Sex)
		printCohort(w, groups[k])
	}
}

func printCohort(w io.Writer, s *trace.CohortSummary) {
	fmt.Fprintf(w, "Individuals          : %d\n", s.Individuals)
	if s.Individuals == 0 {
		return
	}
	fmt.Fprintf(w, "Ever Smokers         : %d (%.4f, 95%% CI %.4f-%.4f)\n",
		s.EverSmokers, s.EverSmokerPrevalence, s.PrevalenceLow, s.PrevalenceHigh)
	fmt.Fprintf(w, "Quitters             : %d (%.4f of ever smokers)\n", s.Quitters, s.QuitFraction)
	fmt.Fprintf(w, "Other-Cause Deaths   : %d\n", s.Deaths)
	printDistribution(w, "Initiation Age", s.InitiationAge)
	printDistribution(w, "Cessation Age", s.CessationAge)
	printDistribution(w, "Death Age", s.DeathAge)
	printDistribution(w, "Average CPD", s.AverageCPD)
}

func printDistribution(w io.Writer, name string, d trace.Distribution) {
	if d.N == 0 {
		return
	}
	fmt.Fprintf(w, "%-21s: mean %.2f, sd %.2f, median %.2f, IQR %.2f-%.2f (n=%d)\n",
		name, d.Mean, d.StdDev, d.Median, d.P25, d.P75, d.N)
}

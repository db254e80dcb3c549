package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/cisnet-lbc/smokehist/sim"
	"github.com/cisnet-lbc/smokehist/sim/output"
	"github.com/cisnet-lbc/smokehist/sim/store"
	"github.com/cisnet-lbc/smokehist/sim/trace"
	"github.com/cisnet-lbc/smokehist/sim/workload"
)

var (
	populationPath   string // YAML population spec
	shards           int    // Independent simulator instances run in parallel
	cohortOutputPath string // Per-individual result file of cohort, "-" = stdout, empty = summary only
)

// cohortCmd simulates a synthetic population and prints its summary
var cohortCmd = &cobra.Command{
	Use:   "cohort",
	Short: "Simulate a synthetic population in parallel shards and summarize it",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		opts, err := buildCohortOptions(cmd.Flags().Changed, time.Now())
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		startTime := time.Now()
		if _, err := executeCohort(context.Background(), opts, os.Stdout); err != nil {
			logrus.Fatalf("%v [%s]", err, sim.CallPath(err))
		}
		logrus.Infof("Cohort simulation complete in %s.", time.Since(startTime))
	},
}

type cohortOptions struct {
	Tables     sim.TablePaths
	Sim        sim.SimulationConfig
	Population *workload.PopulationSpec
	Shards     int
	OutputPath string // "" = summary only, "-" = stdout
	DBPath     string
	Label      string
}

func buildCohortOptions(changed func(string) bool, now time.Time) (cohortOptions, error) {
	if configPath != "" {
		rc, err := loadRunConfig(configPath)
		if err != nil {
			return cohortOptions{}, err
		}
		applyRunConfig(rc, changed)
	}
	if populationPath == "" {
		return cohortOptions{}, fmt.Errorf("--population is required")
	}
	spec, err := workload.LoadPopulationSpec(populationPath)
	if err != nil {
		return cohortOptions{}, err
	}
	if err := spec.Validate(); err != nil {
		return cohortOptions{}, fmt.Errorf("population spec %s: %w", populationPath, err)
	}
	if shards < 1 {
		return cohortOptions{}, fmt.Errorf("--shards must be at least 1, got %d", shards)
	}

	cutoff, ok := sim.ClampCutoffYear(cutoffYear)
	if !ok {
		logrus.Warnf("cutoff year %d is after %d; using %d", cutoffYear, sim.DefaultCutoffYear, cutoff)
	}
	cfg := sim.SimulationConfig{
		Seeds: resolveSeeds(sim.Seeds{
			Initiation: initiationSeed,
			Cessation:  cessationSeed,
			Mortality:  mortalitySeed,
			Individual: individualSeed,
		}, now),
		ImmediateCessationYear: cessationYear,
		OutputMode:             sim.OutputMode(outputType),
		CutoffYear:             cutoff,
		IntensityStrategy:      sim.IntensityStrategy(intensityStrategy),
		ExcludedGroups:         excludedGroups,
		CigarettesPerDay:       cigarettesPerDay,
	}
	if err := cfg.Validate(); err != nil {
		return cohortOptions{}, err
	}

	label := runLabel
	if label == "" {
		label = spec.Label
	}
	return cohortOptions{
		Tables:     tablePaths(),
		Sim:        cfg,
		Population: spec,
		Shards:     shards,
		OutputPath: cohortOutputPath,
		DBPath:     dbPath,
		Label:      label,
	}, nil
}

// toOutcome flattens an individual for tracing.
func toOutcome(ind sim.Individual) trace.OutcomeRecord {
	rec := trace.OutcomeRecord{
		Race:         ind.Race,
		Sex:          ind.Sex,
		BirthYear:    ind.BirthYear,
		AverageCPD:   ind.AverageCPD,
		SmokingYears: len(ind.Trajectory),
	}
	rec.InitiationAge, rec.Initiated = ind.InitiationAge.Get()
	rec.CessationAge, rec.Quit = ind.CessationAge.Get()
	rec.DeathAge, rec.Died = ind.DeathAge.Get()
	return rec
}

// executeCohort generates the population, simulates it across shards and
// prints the summary to stdout.
func executeCohort(ctx context.Context, opts cohortOptions, stdout io.Writer) (*trace.SimulationTrace, error) {
	records := workload.GenerateRecords(opts.Population)
	logrus.Infof("Simulating %d individuals in %d shards", len(records), opts.Shards)

	tables, err := sim.LoadTables(opts.Tables)
	if err != nil {
		return nil, err
	}
	res, err := sim.RunSharded(ctx, tables, opts.Sim, records, opts.Shards)
	if err != nil {
		return nil, err
	}
	for i, seeds := range res.Seeds {
		logrus.Debugf("shard %d seeds: %s", i, seeds)
	}

	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelOutcomes, Label: opts.Label})
	for _, ind := range res.Individuals {
		st.RecordOutcome(toOutcome(ind))
	}

	if opts.OutputPath != "" {
		if err := writeIndividuals(opts, res.Individuals); err != nil {
			return nil, err
		}
	}
	if opts.DBPath != "" {
		if err := storeCohort(opts, res.Individuals); err != nil {
			return nil, err
		}
	}

	printSummary(stdout, opts.Label, res.Stats, trace.Summarize(st), trace.SummarizeByGroup(st))
	return st, nil
}

func writeIndividuals(opts cohortOptions, inds []sim.Individual) error {
	out, closeOut, err := openOutput(opts.OutputPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeOut(); closeErr != nil {
			logrus.Errorf("Error closing output %s: %v", opts.OutputPath, closeErr)
		}
	}()
	if opts.Sim.OutputMode == sim.OutputXML {
		info := output.NewRunInfo(Version, opts.Sim, opts.Tables, opts.OutputPath)
		if err := output.WriteRunInfo(out, info); err != nil {
			return err
		}
	}
	w, err := output.New(opts.Sim.OutputMode, out, output.Options{CutoffYear: opts.Sim.CutoffYear})
	if err != nil {
		return err
	}
	for _, ind := range inds {
		if err := w.Write(ind); err != nil {
			return err
		}
	}
	return w.Flush()
}

func storeCohort(opts cohortOptions, inds []sim.Individual) error {
	db, err := store.Open(opts.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	run := store.NewRun(opts.Label, opts.Sim)
	if err := db.SaveRun(run); err != nil {
		return err
	}
	if err := db.SaveIndividuals(run.ID, inds); err != nil {
		return err
	}
	logrus.Infof("Stored %d individuals in %s as run %s", len(inds), opts.DBPath, run.ID)
	return nil
}

func init() {
	registerEngineFlags(cohortCmd)
	cohortCmd.Flags().StringVar(&cohortOutputPath, "output", "", "Per-individual result file (- = stdout, empty = summary only)")
	cohortCmd.Flags().StringVar(&populationPath, "population", "", "YAML population spec")
	cohortCmd.Flags().IntVar(&shards, "shards", 4, "Independent simulators run in parallel (results depend on this count)")

	rootCmd.AddCommand(cohortCmd)
}

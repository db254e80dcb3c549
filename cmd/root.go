package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/cisnet-lbc/smokehist/sim"
	"github.com/cisnet-lbc/smokehist/sim/output"
	"github.com/cisnet-lbc/smokehist/sim/store"
)

// Version is echoed in run info.
const Version = "smokehist 2.0.0"

var (
	// Engine inputs
	dataDir           string    // Directory holding the five probability tables
	initiationSeed    int64     // Seed for the initiation stream (-1 = clock)
	cessationSeed     int64     // Seed for the cessation stream (-1 = clock)
	mortalitySeed     int64     // Seed for the other-cause mortality stream (-1 = clock)
	individualSeed    int64     // Seed for the individual-characteristics stream (-1 = clock)
	cessationYear     int       // Immediate cessation year, 0 = disabled
	cutoffYear        int       // Last simulated calendar year, may only be lowered
	intensityStrategy string    // switching or uptake
	cigarettesPerDay  []float64 // Representative cigarettes per day by intensity category

	// Run inputs and outputs
	inputPath  string // Batch file of race;sex;birthYear lines, "-" = stdin
	outputPath string // Result file of run, "-" = stdout
	outputType int    // 1 data, 2 text, 3 timeline, 4 XML
	race       int    // Race for single/repeat runs
	sex        int    // Sex for single/repeat runs
	birthYear  int    // Birth year for single/repeat runs; set to select repeat mode
	repeat     int    // Times to simulate race/sex/birth year
	dbPath     string // SQLite result store, empty = disabled
	runLabel   string // Label stored with the run
	configPath string // YAML run config

	logLevel string // Log verbosity level
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "smokehist",
	Short: "Monte-Carlo smoking history generator",
}

// runCmd simulates a batch file or one repeated individual
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate smoking histories for a batch file or a repeated individual",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		opts, err := buildRunOptions(cmd.Flags().Changed, time.Now())
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		stats, err := executeRun(opts)
		if err != nil {
			logrus.Fatalf("%v [%s]", err, sim.CallPath(err))
		}
		logrus.Infof("Simulation complete: %d simulated, %d skipped.", stats.Simulated, stats.Skipped)
	},
}

func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// runOptions is everything executeRun needs, after flags, config file and
// seed resolution have been applied.
type runOptions struct {
	Tables     sim.TablePaths
	Sim        sim.SimulationConfig
	InputPath  string
	OutputPath string
	Repeat     bool
	Race       int
	Sex        int
	BirthYear  int
	Count      int
	DBPath     string
	Label      string
}

// buildRunOptions merges the run config file under explicitly set flags.
// changed reports whether the user set a flag on the command line.
func buildRunOptions(changed func(string) bool, now time.Time) (runOptions, error) {
	if configPath != "" {
		rc, err := loadRunConfig(configPath)
		if err != nil {
			return runOptions{}, err
		}
		applyRunConfig(rc, changed)
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
		return runOptions{}, err
	}

	opts := runOptions{
		Tables:     tablePaths(),
		Sim:        cfg,
		InputPath:  inputPath,
		OutputPath: outputPath,
		Repeat:     changed("yob") || birthYear != 0,
		Race:       race,
		Sex:        sex,
		BirthYear:  birthYear,
		Count:      repeat,
		DBPath:     dbPath,
		Label:      runLabel,
	}
	if !opts.Repeat && opts.InputPath == "" {
		return runOptions{}, fmt.Errorf("either --input or --yob is required")
	}
	if opts.Repeat && opts.Count < 1 {
		return runOptions{}, fmt.Errorf("--repeat must be at least 1, got %d", opts.Count)
	}
	return opts, nil
}

// openOutput returns the result stream and its closer.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

func openInput(path string) (io.Reader, func() error, error) {
	if path == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening input file: %w", err)
	}
	return f, f.Close, nil
}

// logRunInfo echoes what is needed to reproduce the run.
func logRunInfo(opts runOptions) {
	logrus.Infof("Version: %s", Version)
	logrus.Infof("Seeds: %s", opts.Sim.Seeds)
	logrus.Infof("Data files: initiation=%s cessation=%s life=%s intensity=%s cpd=%s",
		opts.Tables.Initiation, opts.Tables.Cessation, opts.Tables.LifeTable, opts.Tables.Intensity, opts.Tables.CPD)
	logrus.Infof("Options: cessation year %d, cutoff year %d, intensity %s, output %s",
		opts.Sim.ImmediateCessationYear, opts.Sim.CutoffYear, opts.Sim.IntensityStrategy, opts.Sim.OutputMode)
}

// executeRun loads the tables, simulates and writes every individual.
func executeRun(opts runOptions) (sim.BatchStats, error) {
	logRunInfo(opts)
	tables, err := sim.LoadTables(opts.Tables)
	if err != nil {
		return sim.BatchStats{}, err
	}
	s, err := sim.NewSimulator(tables, opts.Sim)
	if err != nil {
		return sim.BatchStats{}, err
	}

	out, closeOut, err := openOutput(opts.OutputPath)
	if err != nil {
		return sim.BatchStats{}, err
	}
	defer func() {
		if closeErr := closeOut(); closeErr != nil {
			logrus.Errorf("Error closing output %s: %v", opts.OutputPath, closeErr)
		}
	}()

	if opts.Sim.OutputMode == sim.OutputXML {
		info := output.NewRunInfo(Version, opts.Sim, opts.Tables, opts.OutputPath)
		if err := output.WriteRunInfo(out, info); err != nil {
			return sim.BatchStats{}, err
		}
	}
	w, err := output.New(opts.Sim.OutputMode, out, output.Options{CutoffYear: opts.Sim.CutoffYear})
	if err != nil {
		return sim.BatchStats{}, err
	}

	sink, err := newResultSink(opts)
	if err != nil {
		return sim.BatchStats{}, err
	}
	defer sink.Close()

	emit := func(ind sim.Individual) error {
		if err := w.Write(ind); err != nil {
			return err
		}
		return sink.Add(ind)
	}

	var stats sim.BatchStats
	if opts.Repeat {
		stats, err = sim.Repeat(s, opts.Race, opts.Sex, opts.BirthYear, opts.Count, emit)
	} else {
		in, closeIn, openErr := openInput(opts.InputPath)
		if openErr != nil {
			return sim.BatchStats{}, openErr
		}
		defer closeIn()
		stats, err = sim.RunBatch(s, in, emit)
	}
	if err != nil {
		return stats, err
	}
	if err := w.Flush(); err != nil {
		return stats, fmt.Errorf("writing results: %w", err)
	}
	return stats, sink.Flush()
}

// resultSink buffers individuals into the optional result store.
type resultSink struct {
	db      *store.Store
	runID   string
	pending []sim.Individual
}

const sinkBatchSize = 1000

func newResultSink(opts runOptions) (*resultSink, error) {
	if opts.DBPath == "" {
		return &resultSink{}, nil
	}
	db, err := store.Open(opts.DBPath)
	if err != nil {
		return nil, err
	}
	run := store.NewRun(opts.Label, opts.Sim)
	if err := db.SaveRun(run); err != nil {
		db.Close()
		return nil, err
	}
	logrus.Infof("Storing results in %s as run %s", opts.DBPath, run.ID)
	return &resultSink{db: db, runID: run.ID}, nil
}

func (r *resultSink) Add(ind sim.Individual) error {
	if r.db == nil {
		return nil
	}
	r.pending = append(r.pending, ind)
	if len(r.pending) >= sinkBatchSize {
		return r.Flush()
	}
	return nil
}

func (r *resultSink) Flush() error {
	if r.db == nil || len(r.pending) == 0 {
		return nil
	}
	if err := r.db.SaveIndividuals(r.runID, r.pending); err != nil {
		return err
	}
	r.pending = r.pending[:0]
	return nil
}

func (r *resultSink) Close() {
	if r.db == nil {
		return
	}
	if err := r.db.Close(); err != nil {
		logrus.Errorf("Error closing result store: %v", err)
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerEngineFlags adds the flags shared by run and cohort.
func registerEngineFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&dataDir, "data-dir", ".", "Directory holding the probability tables")
	cmd.Flags().Int64Var(&initiationSeed, "initiation-seed", sim.ClockSeed, "Seed for initiation draws (-1 = clock)")
	cmd.Flags().Int64Var(&cessationSeed, "cessation-seed", sim.ClockSeed, "Seed for cessation draws (-1 = clock)")
	cmd.Flags().Int64Var(&mortalitySeed, "mortality-seed", sim.ClockSeed, "Seed for other-cause mortality draws (-1 = clock)")
	cmd.Flags().Int64Var(&individualSeed, "individual-seed", sim.ClockSeed, "Seed for individual-characteristics draws (-1 = clock)")
	cmd.Flags().IntVar(&cessationYear, "cessation-year", 0, "Immediate cessation year (0 = disabled)")
	cmd.Flags().IntVar(&cutoffYear, "cutoff-year", sim.DefaultCutoffYear, "Last simulated calendar year (may only be lowered)")
	cmd.Flags().StringVar(&intensityStrategy, "intensity", string(sim.StrategySwitching), "Intensity model (switching, uptake)")
	cmd.Flags().Float64SliceVar(&cigarettesPerDay, "cpd-values", nil, "Comma-separated cigarettes per day for each intensity category")
	cmd.Flags().IntVar(&outputType, "output-type", int(sim.OutputData), "Output format: 1 = data, 2 = text, 3 = timeline, 4 = XML")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite file to store results in")
	cmd.Flags().StringVar(&runLabel, "label", "", "Label stored with the run")
	cmd.Flags().StringVar(&configPath, "config", "", "YAML run config; explicit flags override it")
	cmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
}

// init sets up CLI flags and subcommands
func init() {
	registerEngineFlags(runCmd)
	runCmd.Flags().StringVar(&outputPath, "output", "-", "Result file (- = stdout)")
	runCmd.Flags().StringVar(&inputPath, "input", "", "Batch file of race;sex;birthYear lines (- = stdin)")
	runCmd.Flags().IntVar(&race, "race", 0, "Race for repeat mode")
	runCmd.Flags().IntVar(&sex, "sex", 0, "Sex for repeat mode")
	runCmd.Flags().IntVar(&birthYear, "yob", 0, "Birth year; selects repeat mode")
	runCmd.Flags().IntVar(&repeat, "repeat", 1, "Number of individuals to simulate in repeat mode")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}

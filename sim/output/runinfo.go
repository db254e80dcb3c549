package output

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/cisnet-lbc/smokehist/sim"
)

// RunInfo describes a run: version, seeds, data files and options.
type RunInfo struct {
	XMLName   xml.Name     `xml:"RUNINFO"`
	Version   string       `xml:"VERSION"`
	Seeds     runSeeds     `xml:"SEEDS"`
	DataFiles runDataFiles `xml:"DATAFILES"`
	Options   runOptions   `xml:"OPTIONS"`
	OutFiles  runOutFiles  `xml:"OUTFILES"`
}

type runSeeds struct {
	Initiation int64 `xml:"INIT_PRNG_SEED"`
	Cessation  int64 `xml:"CESS_PRNG_SEED"`
	Mortality  int64 `xml:"OCD_PRNG_SEED"`
	Individual int64 `xml:"MISC_PRNG_SEED"`
}

type runDataFiles struct {
	Initiation string `xml:"INITIATION"`
	Cessation  string `xml:"CESSATION"`
	LifeTable  string `xml:"OCD"`
	Intensity  string `xml:"QUINTILES"`
	CPD        string `xml:"CIG_PER_DAY"`
}

type runOptions struct {
	CessationYear int    `xml:"CESSATION_YR"`
	CutoffYear    int    `xml:"CUTOFF_YR"`
	Intensity     string `xml:"INTENSITY_MODEL"`
}

type runOutFiles struct {
	Output string `xml:"OUTPUT"`
}

// NewRunInfo collects the reproducibility details of a run.
func NewRunInfo(version string, cfg sim.SimulationConfig, paths sim.TablePaths, outputPath string) RunInfo {
	return RunInfo{
		Version: version,
		Seeds: runSeeds{
			Initiation: cfg.Seeds.Initiation,
			Cessation:  cfg.Seeds.Cessation,
			Mortality:  cfg.Seeds.Mortality,
			Individual: cfg.Seeds.Individual,
		},
		DataFiles: runDataFiles{
			Initiation: paths.Initiation,
			Cessation:  paths.Cessation,
			LifeTable:  paths.LifeTable,
			Intensity:  paths.Intensity,
			CPD:        paths.CPD,
		},
		Options: runOptions{
			CessationYear: cfg.ImmediateCessationYear,
			CutoffYear:    cfg.CutoffYear,
			Intensity:     string(cfg.IntensityStrategy),
		},
		OutFiles: runOutFiles{Output: outputPath},
	}
}

// WriteRunInfo writes info as an indented <RUNINFO> block.
func WriteRunInfo(w io.Writer, info RunInfo) error {
	b, err := xml.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run info: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", b); err != nil {
		return fmt.Errorf("writing run info: %w", err)
	}
	return nil
}

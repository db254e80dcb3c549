// Package output renders simulated individuals in the legacy result formats.
//
// Undefined ages are written as -999 here and nowhere else; the engine itself
// carries them as sim.OptionalAge.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/cisnet-lbc/smokehist/sim"
)

// MaxListedAge bounds per-age listings: ages at or above it are omitted.
const MaxListedAge = 100

var (
	DefaultRaceLabels = []string{"All Races", "White"}
	DefaultSexLabels  = []string{"Male", "Female"}
)

// Options configures the writers. Zero values select the defaults.
type Options struct {
	CutoffYear int      // horizon printed by the text and timeline formats
	RaceLabels []string // indexed by race code
	SexLabels  []string // indexed by sex code
}

func (o Options) withDefaults() Options {
	if o.CutoffYear == 0 {
		o.CutoffYear = sim.DefaultCutoffYear
	}
	if o.RaceLabels == nil {
		o.RaceLabels = DefaultRaceLabels
	}
	if o.SexLabels == nil {
		o.SexLabels = DefaultSexLabels
	}
	return o
}

// Writer renders individuals to an underlying stream. Output is buffered;
// callers must Flush when done.
type Writer interface {
	Write(ind sim.Individual) error
	Flush() error
}

// New returns the writer for mode.
func New(mode sim.OutputMode, w io.Writer, opts Options) (Writer, error) {
	p := &printer{w: bufio.NewWriter(w), opts: opts.withDefaults()}
	switch mode {
	case sim.OutputData:
		return &dataWriter{p}, nil
	case sim.OutputText:
		return &textWriter{p}, nil
	case sim.OutputTimeline:
		return &timelineWriter{p}, nil
	case sim.OutputXML:
		return &xmlWriter{p}, nil
	default:
		return nil, fmt.Errorf("unknown output mode %d", int(mode))
	}
}

// printer holds the first write error so format code can print freely.
type printer struct {
	w    *bufio.Writer
	opts Options
	err  error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) done() error {
	err := p.err
	p.err = nil
	return err
}

func (p *printer) Flush() error {
	if err := p.done(); err != nil {
		return err
	}
	return p.w.Flush()
}

func label(labels []string, i int) string {
	if i >= 0 && i < len(labels) {
		return labels[i]
	}
	return strconv.Itoa(i)
}

// listed returns the trajectory years printed in per-age listings.
func listed(ind sim.Individual) []sim.SmokingYear {
	out := make([]sim.SmokingYear, 0, len(ind.Trajectory))
	for _, y := range ind.Trajectory {
		if y.Age < MaxListedAge {
			out = append(out, y)
		}
	}
	return out
}

// dataWriter emits one semicolon-delimited line per individual:
// race;sex;yob;init;cess;death; followed by age;cpd; pairs.
type dataWriter struct{ *printer }

func (d *dataWriter) Write(ind sim.Individual) error {
	d.printf("%d;%d;%d;%d;%d;%d;", ind.Race, ind.Sex, ind.BirthYear,
		ind.InitiationAge.Legacy(), ind.CessationAge.Legacy(), ind.DeathAge.Legacy())
	for _, y := range listed(ind) {
		d.printf("%d;%.2f;", y.Age, y.CigarettesPerDay)
	}
	d.printf("\n")
	return d.done()
}

type textWriter struct{ *printer }

func (t *textWriter) Write(ind sim.Individual) error {
	t.printf("========================================================\n")
	t.printf(" Race:            %s\n", label(t.opts.RaceLabels, ind.Race))
	t.printf(" Sex:             %s\n", label(t.opts.SexLabels, ind.Sex))
	t.printf(" Year Of Birth:   %d\n", ind.BirthYear)

	if initAge, ok := ind.InitiationAge.Get(); ok {
		t.printf(" Initiation Age:  %d\n", initAge)
		if cess, ok := ind.CessationAge.Get(); ok {
			t.printf(" Cessation Age:   %d\n", cess)
		} else {
			t.printf(" Cessation Age:   Person Never Quit Smoking.\n")
		}
	} else {
		t.printf(" Initiation Age:  Person Never Initiated Smoking.\n")
	}

	if death, ok := ind.DeathAge.Get(); ok {
		t.printf(" Age At Death:    %d\n", death)
	} else {
		t.printf(" Age At Death:    Person alive through %d.\n", t.opts.CutoffYear)
	}

	if ind.Initiated() {
		t.printf(" Intensity Draw:  %f\n", ind.IntensityDraw)
		t.printf(" Average CPD:     %.2f\n", ind.AverageCPD)
		t.printf(" Age        Cigarettes per day\n")
		for _, y := range listed(ind) {
			t.printf(" %-10d %f\n", y.Age, y.CigarettesPerDay)
		}
	}
	return t.done()
}

// timelineWriter draws one character per year of life: '-' before
// initiation, 's' while smoking, 'q' after quitting and 'X' at death.
type timelineWriter struct{ *printer }

func timelineAge(a sim.OptionalAge) string {
	if v, ok := a.Get(); ok {
		return strconv.Itoa(v)
	}
	return "-"
}

func (tl *timelineWriter) Write(ind sim.Individual) error {
	race := label(tl.opts.RaceLabels, ind.Race)
	sex := label(tl.opts.SexLabels, ind.Sex)
	tl.printf("Hist !%c %c %d %s %s %s\n", race[0], sex[0], ind.BirthYear,
		timelineAge(ind.InitiationAge), timelineAge(ind.CessationAge), timelineAge(ind.DeathAge))

	tl.printf("Age  !")
	for i := 0; i < 17; i++ {
		tl.printf("----+")
	}

	death, dead := ind.DeathAge.Get()
	if dead && death == 0 {
		tl.printf("\n%4d X", ind.BirthYear)
	} else {
		tl.printf("\n%4d !", ind.BirthYear)
		initAge, initiated := ind.InitiationAge.Get()
		cess, quit := ind.CessationAge.Get()
		for age := 1; age <= tl.opts.CutoffYear-ind.BirthYear; age++ {
			switch {
			case dead && age == death:
				tl.printf("X")
			case !initiated || age < initAge:
				tl.printf("-")
			case quit && age >= cess:
				tl.printf("q")
			default:
				tl.printf("s")
			}
			if dead && age >= death {
				break
			}
		}
	}
	tl.printf("!%d\n", tl.opts.CutoffYear)
	tl.printf("!The average cigarettes smoked per day by age is not available with this type of output\n")
	return tl.done()
}

// xmlWriter emits tagged <RESULT> blocks, values on their own lines.
type xmlWriter struct{ *printer }

func (x *xmlWriter) tag(name string, value any) {
	x.printf("<%s>\n%v\n</%s>\n", name, value, name)
}

func (x *xmlWriter) Write(ind sim.Individual) error {
	x.printf("<RESULT>\n")
	x.tag("INITIATION_AGE", ind.InitiationAge.Legacy())
	x.tag("CESSATION_AGE", ind.CessationAge.Legacy())
	x.tag("OCD_AGE", ind.DeathAge.Legacy())
	if ind.Initiated() && len(ind.Trajectory) > 0 {
		years := listed(ind)
		x.printf("<SMOKING_HIST>\n")
		x.tag("INTENSITY", ind.Trajectory[0].Category+1)
		x.tag("AGE_CPD_COUNT", len(years))
		for _, y := range years {
			x.printf("<AGE_CPD>\n")
			x.tag("AGE", y.Age)
			x.tag("CPD", fmt.Sprintf("%f", y.CigarettesPerDay))
			x.printf("</AGE_CPD>\n")
		}
		x.printf("</SMOKING_HIST>\n")
	}
	x.printf("</RESULT>\n")
	return x.done()
}

// Package store provides SQLite persistence for simulation runs and the
// individuals they produced.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/cisnet-lbc/smokehist/sim"
)

// Store wraps a SQLite connection.
type Store struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at path.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		dsn = path
	}
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		conn.SetMaxOpenConns(1)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		initiation_seed INTEGER NOT NULL,
		cessation_seed INTEGER NOT NULL,
		mortality_seed INTEGER NOT NULL,
		individual_seed INTEGER NOT NULL,
		cutoff_year INTEGER NOT NULL,
		cessation_year INTEGER NOT NULL,
		strategy TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS individuals (
		run_id TEXT NOT NULL REFERENCES runs(id),
		seq INTEGER NOT NULL,
		race INTEGER NOT NULL,
		sex INTEGER NOT NULL,
		birth_year INTEGER NOT NULL,
		initiation_age INTEGER,
		cessation_age INTEGER,
		death_age INTEGER,
		average_cpd REAL NOT NULL,
		intensity_draw REAL NOT NULL,
		trajectory_json TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_individuals_group ON individuals(run_id, race, sex, birth_year);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Run is one stored simulation run.
type Run struct {
	ID        string
	Label     string
	Seeds     sim.Seeds
	Cutoff    int
	Policy    int // immediate-cessation year, 0 = disabled
	Strategy  sim.IntensityStrategy
	CreatedAt time.Time
}

// NewRun returns a Run with a fresh identifier for cfg.
func NewRun(label string, cfg sim.SimulationConfig) Run {
	return Run{
		ID:        uuid.NewString(),
		Label:     label,
		Seeds:     cfg.Seeds,
		Cutoff:    cfg.CutoffYear,
		Policy:    cfg.ImmediateCessationYear,
		Strategy:  cfg.IntensityStrategy,
		CreatedAt: time.Now().UTC(),
	}
}

type runRow struct {
	ID             string `db:"id"`
	Label          string `db:"label"`
	InitiationSeed int64  `db:"initiation_seed"`
	CessationSeed  int64  `db:"cessation_seed"`
	MortalitySeed  int64  `db:"mortality_seed"`
	IndividualSeed int64  `db:"individual_seed"`
	CutoffYear     int    `db:"cutoff_year"`
	CessationYear  int    `db:"cessation_year"`
	Strategy       string `db:"strategy"`
	CreatedAt      string `db:"created_at"`
}

// SaveRun inserts run.
func (s *Store) SaveRun(run Run) error {
	if _, err := uuid.Parse(run.ID); err != nil {
		return fmt.Errorf("run id %q: %w", run.ID, err)
	}
	_, err := s.conn.NamedExec(`INSERT INTO runs
		(id, label, initiation_seed, cessation_seed, mortality_seed, individual_seed,
		 cutoff_year, cessation_year, strategy, created_at)
		VALUES (:id, :label, :initiation_seed, :cessation_seed, :mortality_seed, :individual_seed,
		 :cutoff_year, :cessation_year, :strategy, :created_at)`,
		runRow{
			ID:             run.ID,
			Label:          run.Label,
			InitiationSeed: run.Seeds.Initiation,
			CessationSeed:  run.Seeds.Cessation,
			MortalitySeed:  run.Seeds.Mortality,
			IndividualSeed: run.Seeds.Individual,
			CutoffYear:     run.Cutoff,
			CessationYear:  run.Policy,
			Strategy:       string(run.Strategy),
			CreatedAt:      run.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// LoadRun returns the run with id.
func (s *Store) LoadRun(id string) (Run, error) {
	var row runRow
	if err := s.conn.Get(&row, "SELECT * FROM runs WHERE id = ?", id); err != nil {
		return Run{}, fmt.Errorf("load run %s: %w", id, err)
	}
	created, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return Run{}, fmt.Errorf("run %s created_at: %w", id, err)
	}
	return Run{
		ID:    row.ID,
		Label: row.Label,
		Seeds: sim.Seeds{
			Initiation: row.InitiationSeed,
			Cessation:  row.CessationSeed,
			Mortality:  row.MortalitySeed,
			Individual: row.IndividualSeed,
		},
		Cutoff:    row.CutoffYear,
		Policy:    row.CessationYear,
		Strategy:  sim.IntensityStrategy(row.Strategy),
		CreatedAt: created,
	}, nil
}

type individualRow struct {
	RunID          string        `db:"run_id"`
	Seq            int           `db:"seq"`
	Race           int           `db:"race"`
	Sex            int           `db:"sex"`
	BirthYear      int           `db:"birth_year"`
	InitiationAge  sql.NullInt64 `db:"initiation_age"`
	CessationAge   sql.NullInt64 `db:"cessation_age"`
	DeathAge       sql.NullInt64 `db:"death_age"`
	AverageCPD     float64       `db:"average_cpd"`
	IntensityDraw  float64       `db:"intensity_draw"`
	TrajectoryJSON string        `db:"trajectory_json"`
}

func nullAge(a sim.OptionalAge) sql.NullInt64 {
	v, ok := a.Get()
	return sql.NullInt64{Int64: int64(v), Valid: ok}
}

func optionalAge(n sql.NullInt64) sim.OptionalAge {
	if !n.Valid {
		return sim.NoAge
	}
	return sim.AgeOf(int(n.Int64))
}

// SaveIndividuals appends inds to runID in one transaction. Sequence numbers
// continue from the individuals already stored for the run.
func (s *Store) SaveIndividuals(runID string, inds []sim.Individual) error {
	if len(inds) == 0 {
		return nil
	}

	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	if err := tx.Get(&next, "SELECT COALESCE(MAX(seq) + 1, 0) FROM individuals WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("next sequence for run %s: %w", runID, err)
	}

	stmt, err := tx.PrepareNamed(`INSERT INTO individuals
		(run_id, seq, race, sex, birth_year, initiation_age, cessation_age, death_age,
		 average_cpd, intensity_draw, trajectory_json)
		VALUES (:run_id, :seq, :race, :sex, :birth_year, :initiation_age, :cessation_age, :death_age,
		 :average_cpd, :intensity_draw, :trajectory_json)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, ind := range inds {
		traj, err := json.Marshal(ind.Trajectory)
		if err != nil {
			return fmt.Errorf("encode trajectory: %w", err)
		}
		row := individualRow{
			RunID:          runID,
			Seq:            next + i,
			Race:           ind.Race,
			Sex:            ind.Sex,
			BirthYear:      ind.BirthYear,
			InitiationAge:  nullAge(ind.InitiationAge),
			CessationAge:   nullAge(ind.CessationAge),
			DeathAge:       nullAge(ind.DeathAge),
			AverageCPD:     ind.AverageCPD,
			IntensityDraw:  ind.IntensityDraw,
			TrajectoryJSON: string(traj),
		}
		if _, err := stmt.Exec(row); err != nil {
			return fmt.Errorf("insert individual %d: %w", row.Seq, err)
		}
	}

	return tx.Commit()
}

// LoadIndividuals returns the individuals of runID in the order they were saved.
func (s *Store) LoadIndividuals(runID string) ([]sim.Individual, error) {
	var rows []individualRow
	if err := s.conn.Select(&rows, "SELECT * FROM individuals WHERE run_id = ? ORDER BY seq", runID); err != nil {
		return nil, fmt.Errorf("load individuals for run %s: %w", runID, err)
	}

	inds := make([]sim.Individual, 0, len(rows))
	for _, r := range rows {
		ind := sim.Individual{
			Race:          r.Race,
			Sex:           r.Sex,
			BirthYear:     r.BirthYear,
			InitiationAge: optionalAge(r.InitiationAge),
			CessationAge:  optionalAge(r.CessationAge),
			DeathAge:      optionalAge(r.DeathAge),
			AverageCPD:    r.AverageCPD,
			IntensityDraw: r.IntensityDraw,
		}
		if err := json.Unmarshal([]byte(r.TrajectoryJSON), &ind.Trajectory); err != nil {
			return nil, fmt.Errorf("decode trajectory of individual %d: %w", r.Seq, err)
		}
		inds = append(inds, ind)
	}
	return inds, nil
}

// CountIndividuals returns how many individuals are stored for runID.
func (s *Store) CountIndividuals(runID string) (int, error) {
	var n int
	err := s.conn.Get(&n, "SELECT COUNT(*) FROM individuals WHERE run_id = ?", runID)
	return n, err
}

package trace

// TraceLevel controls whether outcomes are recorded.
type TraceLevel string

const (
	// TraceLevelNone disables recording (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelOutcomes captures one OutcomeRecord per simulated individual.
	TraceLevelOutcomes TraceLevel = "outcomes"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:     true,
	TraceLevelOutcomes: true,
	"":                 true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	Label string // free-form run label carried into summaries
}

// Enabled reports whether records should be collected.
func (c TraceConfig) Enabled() bool {
	return c.Level == TraceLevelOutcomes
}

// SimulationTrace collects outcome records during a run.
type SimulationTrace struct {
	Config   TraceConfig
	Outcomes []OutcomeRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:   config,
		Outcomes: make([]OutcomeRecord, 0),
	}
}

// RecordOutcome appends an outcome record. No-op when tracing is disabled.
func (st *SimulationTrace) RecordOutcome(record OutcomeRecord) {
	if !st.Config.Enabled() {
		return
	}
	st.Outcomes = append(st.Outcomes, record)
}

// Merge appends other's records after st's own, preserving order.
// Safe for nil other.
func (st *SimulationTrace) Merge(other *SimulationTrace) {
	if other == nil {
		return
	}
	st.Outcomes = append(st.Outcomes, other.Outcomes...)
}

// Package sim provides the smoking-history microsimulation engine.
//
// # Reading Guide
//
// Start with these files to understand a single simulation call:
//   - simulator.go: the per-individual state machine (initiation, cessation,
//     intensity, other-cause mortality) and the draw-budget alignment
//   - tables.go: loading and cross-checking the five probability tables
//   - rng.go: the Mersenne Twister streams, one per subsystem
//
// # Architecture
//
// The sim package owns the engine; collaborators live in sub-packages:
//   - sim/output/: data, text, timeline and XML result writers
//   - sim/trace/: outcome recording and cohort summaries
//   - sim/workload/: YAML population specs expanded into input records
//   - sim/store/: SQLite persistence of runs and individuals
//
// # Key Interfaces
//
//   - IntensityModel: assigns an initiator's cigarettes-per-day trajectory
//     (SwitchingModel by default, UptakeModel selectable)
//   - Uniform: the draw source models consume
//
// # Draw Budget
//
// Each Simulate call consumes exactly Simulator.DrawBudget draws from the
// individual stream, initiator or not, so the next individual starts at the
// same stream offset. The legacy program padded non-initiators and
// initiators to different counts (20 and 19 extra draws), so output is not
// seed-for-seed identical to it even with the same seeds and tables.
//
// # Errors
//
// Every failure is a *SimError carrying a kind and a call path. Only
// domain-value errors are recoverable; batch drivers skip those records and
// continue.
package sim

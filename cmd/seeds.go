package cmd

import (
	"time"

	"github.com/sirupsen/logrus"

	sim "github.com/cisnet-lbc/smokehist/sim"
)

// clockSeedStride separates clock-derived seeds of different subsystems.
const clockSeedStride = 104729

// resolveSeeds replaces every sim.ClockSeed with a non-negative seed derived
// from now. Subsystems resolved in the same call get distinct seeds.
func resolveSeeds(seeds sim.Seeds, now time.Time) sim.Seeds {
	base := now.UnixNano() / int64(time.Microsecond)
	resolve := func(v int64, i int64) int64 {
		if v != sim.ClockSeed {
			return v
		}
		return (base + i*clockSeedStride) & 0x7fffffff
	}
	resolved := sim.Seeds{
		Initiation: resolve(seeds.Initiation, 0),
		Cessation:  resolve(seeds.Cessation, 1),
		Mortality:  resolve(seeds.Mortality, 2),
		Individual: resolve(seeds.Individual, 3),
	}
	if resolved != seeds {
		logrus.Infof("Clock-derived seeds: %s", resolved)
	}
	return resolved
}

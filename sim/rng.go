package sim

import (
	"fmt"
	"hash/fnv"
)

// === RandomStream ===

const (
	mtN        = 624
	mtM        = 397
	matrixA    = 0x9908b0df
	upperMask  = 0x80000000
	lowerMask  = 0x7fffffff
	temperingB = 0x9d2c5680
	temperingC = 0xefc60000
)

// RandomStream is a 32-bit MT19937 generator. Draws are bit-exact with the
// reference genrand_int32/genrand_real1 pair, so a seed reproduces the same
// sequence in any conforming implementation.
//
// The zero value is unseeded; drawing from it panics with an internal-state
// error. Not safe for concurrent use.
type RandomStream struct {
	mt     [mtN]uint32
	mti    int
	seed   uint32
	draws  uint64
	seeded bool
}

// NewRandomStream returns a stream seeded with the low 32 bits of seed.
func NewRandomStream(seed uint64) *RandomStream {
	s := &RandomStream{}
	s.reseed(uint32(seed & 0xffffffff))
	return s
}

func (s *RandomStream) reseed(seed uint32) {
	s.mt[0] = seed
	for i := 1; i < mtN; i++ {
		s.mt[i] = 1812433253*(s.mt[i-1]^(s.mt[i-1]>>30)) + uint32(i)
	}
	s.mti = mtN
	s.seed = seed
	s.draws = 0
	s.seeded = true
}

// Uint32 returns the next tempered 32-bit output.
func (s *RandomStream) Uint32() uint32 {
	if !s.seeded {
		panic(internalErrorf("RandomStream.Uint32", "random stream used before it was seeded"))
	}
	mag01 := [2]uint32{0, matrixA}
	var y uint32

	if s.mti >= mtN {
		var kk int
		for kk = 0; kk < mtN-mtM; kk++ {
			y = (s.mt[kk] & upperMask) | (s.mt[kk+1] & lowerMask)
			s.mt[kk] = s.mt[kk+mtM] ^ (y >> 1) ^ mag01[y&1]
		}
		for ; kk < mtN-1; kk++ {
			y = (s.mt[kk] & upperMask) | (s.mt[kk+1] & lowerMask)
			s.mt[kk] = s.mt[kk+(mtM-mtN)] ^ (y >> 1) ^ mag01[y&1]
		}
		y = (s.mt[mtN-1] & upperMask) | (s.mt[0] & lowerMask)
		s.mt[mtN-1] = s.mt[mtM-1] ^ (y >> 1) ^ mag01[y&1]
		s.mti = 0
	}

	y = s.mt[s.mti]
	s.mti++
	s.draws++

	// Tempering
	y ^= y >> 11
	y ^= (y << 7) & temperingB
	y ^= (y << 15) & temperingC
	y ^= y >> 18
	return y
}

// NextUniform returns a draw on the closed interval [0,1].
func (s *RandomStream) NextUniform() float64 {
	return float64(s.Uint32()) * (1.0 / 4294967295.0)
}

// Skip discards n draws.
func (s *RandomStream) Skip(n int) {
	for i := 0; i < n; i++ {
		s.Uint32()
	}
}

// Draws returns the number of outputs generated since seeding.
func (s *RandomStream) Draws() uint64 { return s.draws }

// Seed returns the effective 32-bit seed.
func (s *RandomStream) Seed() uint32 { return s.seed }

// Seeded reports whether the stream can be drawn from.
func (s *RandomStream) Seeded() bool { return s.seeded }

// Uniform is the draw source consumed by the intensity strategies.
type Uniform interface {
	NextUniform() float64
}

// === Subsystem Constants ===

const (
	// SubsystemInitiation drives the initiation scan.
	SubsystemInitiation = "initiation"
	// SubsystemCessation drives the cessation scan.
	SubsystemCessation = "cessation"
	// SubsystemMortality drives the other-cause mortality scan.
	SubsystemMortality = "mortality"
	// SubsystemIndividual drives intensity assignment and category switching.
	SubsystemIndividual = "individual"
)

// Subsystems lists every stream a simulator owns, in seed order.
var Subsystems = []string{SubsystemInitiation, SubsystemCessation, SubsystemMortality, SubsystemIndividual}

// === PartitionedRNG ===

// PartitionedRNG holds one independently seeded RandomStream per subsystem.
// Each subsystem is seeded explicitly from Seeds; there is no derivation from
// a master seed, so legacy seed files keep reproducing legacy draws.
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PartitionedRNG struct {
	seeds      Seeds
	subsystems map[string]*RandomStream
}

// NewPartitionedRNG seeds all four streams. Negative seeds are rejected; the
// -1 wall-clock sentinel must be resolved by the caller.
func NewPartitionedRNG(seeds Seeds) (*PartitionedRNG, error) {
	if err := seeds.Validate(); err != nil {
		return nil, WithFrame(err, "NewPartitionedRNG")
	}
	p := &PartitionedRNG{seeds: seeds, subsystems: make(map[string]*RandomStream, len(Subsystems))}
	for _, name := range Subsystems {
		p.subsystems[name] = NewRandomStream(uint64(seeds.For(name)))
	}
	return p, nil
}

// ForSubsystem returns the stream owned by the named subsystem.
// The same name always returns the same instance.
func (p *PartitionedRNG) ForSubsystem(name string) (*RandomStream, error) {
	if p == nil {
		return nil, internalErrorf("PartitionedRNG.ForSubsystem", "random streams not initialized")
	}
	rng, ok := p.subsystems[name]
	if !ok || !rng.Seeded() {
		return nil, internalErrorf("PartitionedRNG.ForSubsystem", "no seeded stream for subsystem %q", name)
	}
	return rng, nil
}

// Seeds returns the seeds the streams were created from.
func (p *PartitionedRNG) Seeds() Seeds {
	return p.seeds
}

// DeriveSeeds returns the seeds for parallel shard number shard. Shard 0 uses
// base unchanged; other shards XOR each seed with a hash of the shard and
// subsystem name, masked to 32 bits.
func DeriveSeeds(base Seeds, shard int) Seeds {
	if shard == 0 {
		return base
	}
	derive := func(seed int64, name string) int64 {
		return (seed ^ fnv1a64(fmt.Sprintf("shard_%d/%s", shard, name))) & 0xffffffff
	}
	return Seeds{
		Initiation: derive(base.Initiation, SubsystemInitiation),
		Cessation:  derive(base.Cessation, SubsystemCessation),
		Mortality:  derive(base.Mortality, SubsystemMortality),
		Individual: derive(base.Individual, SubsystemIndividual),
	}
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

package sim

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// PartitionRecords splits records into at most n contiguous shards of
// near-equal size. Concatenating the shards restores the input order.
func PartitionRecords(records []Record, n int) [][]Record {
	if n < 1 {
		n = 1
	}
	if n > len(records) {
		n = len(records)
	}
	shards := make([][]Record, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		end := start + (len(records)-start)/(n-i)
		shards = append(shards, records[start:end])
		start = end
	}
	return shards
}

// ShardedResult is the merged output of RunSharded.
type ShardedResult struct {
	Individuals []Individual // shard order, then record order within a shard
	Stats       BatchStats
	Seeds       []Seeds // seeds used by each shard
}

// RunSharded simulates records on independent simulators, one per shard,
// in parallel. Shard i uses DeriveSeeds(cfg.Seeds, i), so the result depends
// only on the inputs and the shard count, never on scheduling. The first
// fatal error cancels the remaining shards.
func RunSharded(ctx context.Context, tables *Tables, cfg SimulationConfig, records []Record, shards int) (ShardedResult, error) {
	parts := PartitionRecords(records, shards)
	individuals := make([][]Individual, len(parts))
	stats := make([]BatchStats, len(parts))
	seeds := make([]Seeds, len(parts))

	g, ctx := errgroup.WithContext(ctx)
	for i, part := range parts {
		i, part := i, part
		seeds[i] = DeriveSeeds(cfg.Seeds, i)
		g.Go(func() error {
			shardCfg := cfg
			shardCfg.Seeds = seeds[i]
			s, err := NewSimulator(tables, shardCfg)
			if err != nil {
				return WithFrame(err, "RunSharded")
			}
			individuals[i] = make([]Individual, 0, len(part))
			stats[i], err = RunRecords(s, part, func(ind Individual) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				individuals[i] = append(individuals[i], ind)
				return nil
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return ShardedResult{}, err
	}

	res := ShardedResult{Individuals: make([]Individual, 0, len(records)), Seeds: seeds}
	for i := range parts {
		res.Individuals = append(res.Individuals, individuals[i]...)
		res.Stats.Simulated += stats[i].Simulated
		res.Stats.Skipped += stats[i].Skipped
	}
	return res, nil
}

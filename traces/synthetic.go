package traces

import (
	"fmt"
	"math/rand"

	"github.com/Louis-MariePhD/tiersim/simulator"
)

// sizeClass is one bucket of the empirical file-size distribution observed
// in the photo-cache dataset: a fixed size and the cumulative probability of
// drawing it.
type sizeClass struct {
	size int64
	cum  float64
}

var syntheticSizeClasses = []sizeClass{
	{33136, 0.1},
	{3263749, 0.5},
	{4925317, 0.7},
	{6043467, 0.85},
	{6050183, 0.95},
	{8387821, 1},
}

// SyntheticConfig shapes a generated workload.
type SyntheticConfig struct {
	Records      int     // total records to generate
	Files        int     // distinct file population
	Users        int     // distinct users, round-robin over files
	StartTime    float64 // virtual time of the first record
	MaxGapSec    int64   // upper bound on the inter-arrival gap
	GapDist      simulator.DistributionType
	ReadFraction float64 // probability a non-create record is a read
	DeleteEvery  int     // every Nth record deletes a random live file (0 = never)
}

// DefaultSyntheticConfig returns a small mixed read/write workload.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Records:      100000,
		Files:        5000,
		Users:        16,
		MaxGapSec:    5,
		GapDist:      simulator.DistExponential,
		ReadFraction: 0.8,
		DeleteEvery:  0,
	}
}

// SyntheticTrace is a seeded generated workload over the empirical size
// distribution. Identical seed and config reproduce the identical stream.
type SyntheticTrace struct {
	name      string
	records   []simulator.Record
	lifetimes map[string]float64
}

// GenerateSyntheticTrace builds the trace for cfg and seed.
func GenerateSyntheticTrace(cfg SyntheticConfig, seed int64) *SyntheticTrace {
	rng := rand.New(rand.NewSource(seed))
	gapDist := simulator.NewDistribution(cfg.GapDist)

	t := &SyntheticTrace{
		name:      fmt.Sprintf("synthetic(seed=%d)", seed),
		records:   make([]simulator.Record, 0, cfg.Records),
		lifetimes: make(map[string]float64),
	}

	sizes := make([]int64, cfg.Files)
	users := make([]string, cfg.Files)
	for i := range sizes {
		sizes[i] = sampleSize(rng)
		users[i] = fmt.Sprintf("user%d", i%maxInt(1, cfg.Users))
	}

	firstSeen := make(map[string]float64)
	lastSeen := make(map[string]float64)
	live := make(map[int]bool)

	now := cfg.StartTime
	for i := 0; i < cfg.Records; i++ {
		now += float64(gapDist.Sample(rng, 0, cfg.MaxGapSec))

		if cfg.DeleteEvery > 0 && i > 0 && i%cfg.DeleteEvery == 0 && len(live) > 0 {
			// delete a random live file
			idx := pickLive(rng, live)
			delete(live, idx)
			path := filePath(idx)
			t.records = append(t.records, simulator.Record{
				Timestamp: now, Op: simulator.OpDelete, Path: path, User: users[idx],
			})
			lastSeen[path] = now
			continue
		}

		idx := rng.Intn(cfg.Files)
		path := filePath(idx)
		op := simulator.OpGet
		if !live[idx] {
			op = simulator.OpPut
			live[idx] = true
		} else if rng.Float64() >= cfg.ReadFraction {
			op = simulator.OpPut
		}
		t.records = append(t.records, simulator.Record{
			Timestamp: now,
			Op:        op,
			Path:      path,
			Size:      sizes[idx],
			User:      users[idx],
		})
		if _, ok := firstSeen[path]; !ok {
			firstSeen[path] = now
		}
		lastSeen[path] = now
	}

	for path, first := range firstSeen {
		t.lifetimes[path] = lastSeen[path] - first
	}
	return t
}

func (t *SyntheticTrace) Name() string                  { return t.name }
func (t *SyntheticTrace) Records() []simulator.Record   { return t.records }
func (t *SyntheticTrace) Lifetimes() map[string]float64 { return t.lifetimes }

func filePath(idx int) string {
	return fmt.Sprintf("file%06d", idx)
}

func sampleSize(rng *rand.Rand) int64 {
	u := rng.Float64()
	for _, c := range syntheticSizeClasses {
		if u <= c.cum {
			return c.size
		}
	}
	return syntheticSizeClasses[len(syntheticSizeClasses)-1].size
}

func pickLive(rng *rand.Rand, live map[int]bool) int {
	n := rng.Intn(len(live))
	for idx := range live {
		if n == 0 {
			return idx
		}
		n--
	}
	return 0
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
